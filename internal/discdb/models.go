// Package discdb implements the relational discovery store (spec §4.A):
// hosts, subsystems, ports and their many-to-many associations, plus the
// per-host genctr and the discovery-entry join served to connecting hosts.
package discdb

import "time"

// Host is a configfs hosts/<nqn> directory reflected into the store.
// Its genctr is bumped any time the host's visible topology changes.
type Host struct {
	NQN       string `gorm:"primaryKey;size:223"`
	Genctr    uint64 `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Host) TableName() string { return "host" }

// Subsystem is a configfs subsystems/<nqn> directory.
type Subsystem struct {
	NQN          string `gorm:"primaryKey;size:223"`
	AllowAnyHost bool   `gorm:"not null;default:false"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (Subsystem) TableName() string { return "subsys" }

// TrType enumerates the NVMe-oF transport types. Only TCP ports get a
// bound listener; the others are mirrored into the store untouched.
type TrType string

const (
	TrTypeTCP  TrType = "tcp"
	TrTypeRDMA TrType = "rdma"
	TrTypeFC   TrType = "fc"
	TrTypeLoop TrType = "loop"
)

// AdrFam enumerates the address families carried on a discovery entry.
type AdrFam string

const (
	AdrFamIPv4 AdrFam = "ipv4"
	AdrFamIPv6 AdrFam = "ipv6"
	AdrFamFC   AdrFam = "fc"
	AdrFamIB   AdrFam = "ib"
	AdrFamLoop AdrFam = "loop"
)

// TReq enumerates the connection's secure channel requirement.
type TReq string

const (
	TReqRequired    TReq = "required"
	TReqNotRequired TReq = "not required"
	TReqNone        TReq = "none"
)

// Port is a configfs ports/<portid> directory.
type Port struct {
	PortID    uint16 `gorm:"primaryKey"`
	TrType    TrType `gorm:"not null;size:10"`
	AdrFam    AdrFam `gorm:"not null;size:10"`
	TrAddr    string `gorm:"not null;size:256"`
	TrSvcID   string `gorm:"not null;size:32"`
	TReq      TReq   `gorm:"not null;size:16"`
	Tsas      string `gorm:"size:256"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Port) TableName() string { return "port" }

// HostSubsys is the access-control relation: host h may discover subsys s.
type HostSubsys struct {
	HostNQN   string `gorm:"primaryKey;size:223"`
	SubsysNQN string `gorm:"primaryKey;size:223"`
}

func (HostSubsys) TableName() string { return "host_subsys" }

// SubsysPort is the advertisement relation: subsys s is reachable via port p.
type SubsysPort struct {
	SubsysNQN string `gorm:"primaryKey;size:223"`
	PortID    uint16 `gorm:"primaryKey"`
}

func (SubsysPort) TableName() string { return "subsys_port" }

// AllModels returns every model for auto-migration.
func AllModels() []any {
	return []any{
		&Host{},
		&Subsystem{},
		&Port{},
		&HostSubsys{},
		&SubsysPort{},
	}
}

// DiscEntry is one packed discovery log entry as served on the wire
// (spec §6); assembly lives in internal/dispatch, the join that produces
// the candidate set lives here.
type DiscEntry struct {
	TrType    TrType
	AdrFam    AdrFam
	TReq      TReq
	PortID    uint16
	TrSvcID   string
	SubNQN    string
	TrAddr    string
	Tsas      string
}

// WellKnownDiscoveryNQN is the host NQN synthesized for allow_any_host
// subsystems (spec §4.B, CREATE in SUBSYS_DIR).
const WellKnownDiscoveryNQN = "nqn.2014-08.org.nvmexpress.discovery"
