// Package dispatch is the Command Dispatcher (spec §4.G): it routes
// each parsed SQE by (opcode, fctype), owns the per-endpoint tag table,
// and drives the PDU framer to produce completions. Grounded on
// pkg/adapter/nfs's opcode switch-dispatch shape, generalized from NFS
// procedure numbers to NVMe/Fabrics opcodes.
package dispatch

import (
	"context"
	"sync"

	"github.com/hreinecke/nvme-discd-go/internal/discdb"
	"github.com/hreinecke/nvme-discd-go/internal/logger"
	"github.com/hreinecke/nvme-discd-go/internal/pdu"
	"github.com/hreinecke/nvme-discd-go/internal/queue"
	"github.com/hreinecke/nvme-discd-go/internal/session"
)

// Fabrics command types (low byte of NSID, spec §6).
const (
	fctypePropertySet uint8 = 0x00
	fctypeConnect     uint8 = 0x01
	fctypePropertyGet uint8 = 0x04
)

// Admin opcodes.
const (
	opGetLogPage   uint8 = 0x02
	opIdentify     uint8 = 0x06
	opAbort        uint8 = 0x08
	opSetFeatures  uint8 = 0x09
	opAsyncEvent   uint8 = 0x0C
	opKeepAlive    uint8 = 0x18
)

// Log page identifiers.
const (
	lidDiscovery uint8 = 0x70
	lidSMART     uint8 = 0x02
)

// Set Features feature identifiers.
const (
	fidNumQueues uint8 = 0x07
	fidAsyncEvent uint8 = 0x0B
	fidKato       uint8 = 0x0F
)

// Property offsets (NVMe Base Spec §3.1).
const (
	propCAP  uint64 = 0x00
	propVS   uint64 = 0x08
	propCC   uint64 = 0x14
	propCSTS uint64 = 0x1C
)

const (
	capValue uint64 = 0x200f0003ff
	vsValue  uint32 = 0x00010400 // NVMe 1.4
)

// Config carries the controller identity surfaced through Identify and
// Property Get (spec §4.G, §6).
type Config struct {
	NQN            string
	KatoIntervalMS uint32
}

// Endpoint is the per-connection dispatch context: one Endpoint per
// accepted TCP connection (spec §3 "Endpoint"), holding the queue's
// qid, its tag table, and (once attached) its ControllerSession.
type Endpoint struct {
	QID     uint16
	Tags    *queue.Table
	Framer  *pdu.Framer
	PortID  uint16
	Session *session.Session
}

// Dispatcher routes incoming capsules to their admin/fabrics handlers
// and writes completions back through the endpoint's framer.
type Dispatcher struct {
	store          discdb.Store
	sessions       *session.Manager
	cfg            Config
	adminEndpoints *adminEndpointRegistry
}

// New builds a Dispatcher bound to store for discovery log assembly and
// sessions for Connect/Property/Keep-Alive/Set-Features handling. It
// registers itself as sessions' AENCompleter.
func New(store discdb.Store, sessions *session.Manager, cfg Config) *Dispatcher {
	d := &Dispatcher{
		store:          store,
		sessions:       sessions,
		cfg:            cfg,
		adminEndpoints: newAdminEndpointRegistry(),
	}
	sessions.SetCompleter(d)
	return d
}

// RegisterAdminEndpoint records which Endpoint currently serves s's
// admin queue (qid=0), so a later AEN notification can be completed on
// it. Called by the connection handler right after a successful
// qid=0 Connect.
func (d *Dispatcher) RegisterAdminEndpoint(s *session.Session, ep *Endpoint) {
	d.adminEndpoints.set(s, ep)
}

// UnregisterAdminEndpoint drops the admin-endpoint association on
// teardown of the admin connection.
func (d *Dispatcher) UnregisterAdminEndpoint(s *session.Session) {
	d.adminEndpoints.delete(s)
}

// adminEndpointRegistry is a small mutex-guarded map from session to
// its current admin-queue Endpoint, grounded on the same
// keyed-registry-under-one-mutex idiom as internal/session.
type adminEndpointRegistry struct {
	mu  sync.Mutex
	byS map[*session.Session]*Endpoint
}

func newAdminEndpointRegistry() *adminEndpointRegistry {
	return &adminEndpointRegistry{byS: make(map[*session.Session]*Endpoint)}
}

func (r *adminEndpointRegistry) set(s *session.Session, ep *Endpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byS[s] = ep
}

func (r *adminEndpointRegistry) delete(s *session.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byS, s)
}

func (r *adminEndpointRegistry) get(s *session.Session) (*Endpoint, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ep, ok := r.byS[s]
	return ep, ok
}

// HandleFrame dispatches one decoded PDU arriving on ep. Only
// CapsuleCmd frames carry commands in the receive states this
// controller implements (spec §4.D); H2CData frames are accepted for
// protocol completeness but never expected from a discovery-only host
// and are logged and dropped.
func (d *Dispatcher) HandleFrame(ctx context.Context, ep *Endpoint, f *pdu.Frame) error {
	if f.Capsule == nil {
		logger.Warn("dispatch: unexpected PDU in discovery flow", "type", f.Header.PDUType.String())
		return nil
	}
	return d.handleCapsule(ctx, ep, f.Capsule)
}

func (d *Dispatcher) handleCapsule(ctx context.Context, ep *Endpoint, c *pdu.CapsuleCmd) error {
	sqe := &c.SQE

	tag, err := ep.Tags.Acquire(sqe.CommandID)
	if err != nil {
		return ep.Framer.SendResp(statusResp(sqe.CommandID, pdu.StatusNSNotReady))
	}
	defer ep.Tags.Release(tag)

	// Connect is the one command expected on an I/O queue (qid>0): it
	// attaches the endpoint to an existing session (spec §4.F). Every
	// other command on qid>0 is rejected, since a discovery controller
	// has no I/O namespaces to serve there (spec §4.G).
	if sqe.Opcode == pdu.OpcodeFabrics && sqe.FCType() == fctypeConnect {
		return d.handleConnect(ctx, ep, sqe, c.Data)
	}
	if ep.QID > 0 {
		return ep.Framer.SendResp(statusResp(sqe.CommandID, pdu.StatusInvalidOpcode))
	}
	if sqe.Opcode == pdu.OpcodeFabrics {
		return d.handleFabrics(ctx, ep, sqe, c.Data)
	}

	switch sqe.Opcode {
	case opIdentify:
		return d.handleIdentify(ep, sqe)
	case opGetLogPage:
		return d.handleGetLogPage(ctx, ep, sqe)
	case opKeepAlive:
		return d.handleKeepAlive(ep, sqe)
	case opSetFeatures:
		return d.handleSetFeatures(ep, sqe)
	case opAsyncEvent:
		return d.handleAsyncEvent(ep, sqe)
	default:
		return ep.Framer.SendResp(statusResp(sqe.CommandID, pdu.StatusInvalidOpcode))
	}
}

// handleFabrics routes non-Connect Fabrics commands; Connect is
// intercepted earlier in handleCapsule since it alone is valid on an
// I/O queue.
func (d *Dispatcher) handleFabrics(ctx context.Context, ep *Endpoint, sqe *pdu.SQE, data []byte) error {
	switch sqe.FCType() {
	case fctypePropertySet:
		return d.handlePropertySet(ep, sqe)
	case fctypePropertyGet:
		return d.handlePropertyGet(ep, sqe)
	default:
		return ep.Framer.SendResp(statusResp(sqe.CommandID, pdu.StatusInvalidOpcode))
	}
}

func statusResp(commandID uint16, sc uint16) *pdu.CapsuleResp {
	return &pdu.CapsuleResp{CQE: pdu.CQE{
		CommandID: commandID,
		Status:    pdu.EncodeStatus(sc),
	}}
}

func successResp(commandID uint16, result uint32) *pdu.CapsuleResp {
	return &pdu.CapsuleResp{CQE: pdu.CQE{
		CommandID: commandID,
		Result:    result,
		Status:    pdu.EncodeStatus(pdu.StatusSuccess),
	}}
}

// encodeProp64 packs a register value into the low/high 32 bits a
// Property Get completion returns when ATTRIB.GetRegisterLength
// requests an 8-byte register (spec §6 CAP/VS/CSTS/CC).
func encodeProp64(v uint64) (lo, hi uint32) {
	return uint32(v), uint32(v >> 32)
}
