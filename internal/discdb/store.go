package discdb

import "context"

// HostStore provides CRUD on hosts and the per-host generation counter.
//
// All methods are safe for concurrent use; mutations are atomic with
// respect to concurrent readers (spec §4.A).
type HostStore interface {
	// CreateHost inserts a host row with genctr=0. Re-creating an existing
	// host is idempotent: the store returns nil and leaves the row as it is.
	CreateHost(ctx context.Context, nqn string) error

	// DeleteHost removes a host row. Returns ErrHostNotFound if absent.
	DeleteHost(ctx context.Context, nqn string) error

	// HostGenctr returns the host's current generation counter.
	HostGenctr(ctx context.Context, nqn string) (uint64, error)

	// HostExists reports whether a host row exists for nqn.
	HostExists(ctx context.Context, nqn string) (bool, error)
}

// SubsysStore provides CRUD on subsystems.
type SubsysStore interface {
	CreateSubsys(ctx context.Context, nqn string, allowAnyHost bool) error
	DeleteSubsys(ctx context.Context, nqn string) error
	SubsysExists(ctx context.Context, nqn string) (bool, error)
	GetSubsys(ctx context.Context, nqn string) (*Subsystem, error)

	// SetAllowAnyHost updates the allow_any_host attribute and toggles the
	// synthetic link to WellKnownDiscoveryNQN, bumping genctr for every
	// affected host (spec §4.B, MODIFY on SUBSYS/attr_allow_any_host).
	SetAllowAnyHost(ctx context.Context, nqn string, allow bool) error
}

// PortStore provides CRUD on ports.
type PortStore interface {
	CreatePort(ctx context.Context, p *Port) error
	DeletePort(ctx context.Context, portID uint16) error
	GetPort(ctx context.Context, portID uint16) (*Port, error)
	ListPorts(ctx context.Context) ([]*Port, error)

	// UpdatePortAttr re-writes a single attribute of an existing port and
	// bumps genctr for every host visible to any subsystem mapped to this
	// port (spec §4.B, MODIFY on PORT/addr_<attr>).
	UpdatePortAttr(ctx context.Context, portID uint16, attr string, value string) error
}

// LinkStore provides CRUD on the host_subsys and subsys_port relations.
// Every mutation bumps the genctr of every host whose visibility changes.
type LinkStore interface {
	// LinkHostSubsys inserts a host_subsys row, bumping the host's genctr
	// by exactly one. A pre-existing link is a no-op (spec §8 invariant 5).
	LinkHostSubsys(ctx context.Context, hostNQN, subsysNQN string) error

	// UnlinkHostSubsys removes a host_subsys row and bumps the host's genctr.
	UnlinkHostSubsys(ctx context.Context, hostNQN, subsysNQN string) error

	// LinkSubsysPort inserts a subsys_port row, bumping genctr for every
	// host currently associated with the subsystem.
	LinkSubsysPort(ctx context.Context, subsysNQN string, portID uint16) error

	// UnlinkSubsysPort removes a subsys_port row and bumps genctr for every
	// affected host.
	UnlinkSubsysPort(ctx context.Context, subsysNQN string, portID uint16) error
}

// DiscoveryStore provides the read path used by the command dispatcher to
// assemble the Discovery Log Page (spec §4.A, §6).
type DiscoveryStore interface {
	// HostDiscEntries enumerates, for hostNQN, every (subsystem,port) such
	// that (host,subsystem) is linked or subsystem.allow_any_host, AND
	// (subsystem,port) is linked. Entries are ordered deterministically
	// (by subsys NQN, then port id) so offset/max_len paging is stable
	// across calls.
	HostDiscEntries(ctx context.Context, hostNQN string) ([]DiscEntry, error)
}

// Store composes the full discovery store surface. Consumers should accept
// the narrowest sub-interface they actually need.
type Store interface {
	HostStore
	SubsysStore
	PortStore
	LinkStore
	DiscoveryStore

	// Close releases underlying database resources.
	Close() error
}
