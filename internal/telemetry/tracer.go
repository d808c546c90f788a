package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Common attribute keys for discovery controller operations, following
// OpenTelemetry semantic conventions where applicable.
const (
	// ========================================================================
	// Connection attributes
	// ========================================================================
	AttrClientAddr = "conn.client_address"
	AttrListenAddr = "conn.listen_address"
	AttrConnID     = "conn.id"

	// ========================================================================
	// NVMe/TCP and fabrics attributes
	// ========================================================================
	AttrOpcode   = "nvme.opcode"
	AttrFcType   = "nvme.fctype"
	AttrHostNQN  = "nvme.host_nqn"
	AttrSubNQN   = "nvme.subsys_nqn"
	AttrCntlID   = "nvme.cntlid"
	AttrQID      = "nvme.qid"
	AttrStatus   = "nvme.status"
	AttrPDUType  = "nvme.pdu_type"
	AttrPDULen   = "nvme.pdu_len"

	// ========================================================================
	// Discovery store attributes
	// ========================================================================
	AttrGenctr    = "discdb.genctr"
	AttrDBBackend = "discdb.backend"
	AttrPortID    = "discdb.port_id"

	// ========================================================================
	// Configfs reflector attributes
	// ========================================================================
	AttrCfgPath      = "configfs.path"
	AttrCfgWatchType = "configfs.watch_type"
	AttrCfgAttrName  = "configfs.attr_name"
)

// Span names for operations.
// Format: <component>.<operation>
const (
	// ========================================================================
	// NVMe/TCP PDU framer
	// ========================================================================
	SpanPDURecv   = "pdu.recv"
	SpanPDUSend   = "pdu.send"
	SpanPDUICReq  = "pdu.ICReq"
	SpanPDUICResp = "pdu.ICResp"

	// ========================================================================
	// Admin/fabrics command dispatch
	// ========================================================================
	SpanDispatchRequest    = "dispatch.request"
	SpanDispatchConnect    = "dispatch.CONNECT"
	SpanDispatchPropGet    = "dispatch.PROPERTY_GET"
	SpanDispatchPropSet    = "dispatch.PROPERTY_SET"
	SpanDispatchIdentify   = "dispatch.IDENTIFY"
	SpanDispatchGetLogPage = "dispatch.GET_LOG_PAGE"
	SpanDispatchKeepAlive  = "dispatch.KEEP_ALIVE"
	SpanDispatchSetFeat    = "dispatch.SET_FEATURES"

	// ========================================================================
	// Controller session lifecycle
	// ========================================================================
	SpanSessionCreate = "session.create"
	SpanSessionReap   = "session.reap"
	SpanSessionKATO   = "session.kato_expired"

	// ========================================================================
	// Configfs reflector
	// ========================================================================
	SpanConfigfsWalk    = "configfs.walk"
	SpanConfigfsEvent   = "configfs.event"
	SpanConfigfsRescan  = "configfs.rescan"

	// ========================================================================
	// Discovery store operations
	// ========================================================================
	SpanDiscdbLookup = "discdb.lookup"
	SpanDiscdbCreate = "discdb.create"
	SpanDiscdbUpdate = "discdb.update"
	SpanDiscdbDelete = "discdb.delete"
	SpanDiscdbBump   = "discdb.bump_genctr"
)

// ClientAddr returns an attribute for the remote client address
func ClientAddr(addr string) attribute.KeyValue {
	return attribute.String(AttrClientAddr, addr)
}

// ListenAddr returns an attribute for the local listen address
func ListenAddr(addr string) attribute.KeyValue {
	return attribute.String(AttrListenAddr, addr)
}

// ConnID returns an attribute for the internal connection id
func ConnID(id string) attribute.KeyValue {
	return attribute.String(AttrConnID, id)
}

// Opcode returns an attribute for the admin/fabrics opcode name
func Opcode(name string) attribute.KeyValue {
	return attribute.String(AttrOpcode, name)
}

// FcType returns an attribute for the fabrics command type
func FcType(name string) attribute.KeyValue {
	return attribute.String(AttrFcType, name)
}

// HostNQN returns an attribute for the connecting host NQN
func HostNQN(nqn string) attribute.KeyValue {
	return attribute.String(AttrHostNQN, nqn)
}

// SubNQN returns an attribute for the subsystem NQN
func SubNQN(nqn string) attribute.KeyValue {
	return attribute.String(AttrSubNQN, nqn)
}

// CntlID returns an attribute for the controller id
func CntlID(id uint16) attribute.KeyValue {
	return attribute.Int(AttrCntlID, int(id))
}

// QID returns an attribute for the queue id
func QID(qid uint16) attribute.KeyValue {
	return attribute.Int(AttrQID, int(qid))
}

// Status returns an attribute for the NVMe status code
func Status(status int) attribute.KeyValue {
	return attribute.Int(AttrStatus, status)
}

// PDUType returns an attribute for the NVMe/TCP PDU type
func PDUType(t string) attribute.KeyValue {
	return attribute.String(AttrPDUType, t)
}

// PDULen returns an attribute for the PDU length in bytes
func PDULen(n uint32) attribute.KeyValue {
	return attribute.Int64(AttrPDULen, int64(n))
}

// Genctr returns an attribute for the discovery log generation counter
func Genctr(ctr uint64) attribute.KeyValue {
	return attribute.Int64(AttrGenctr, int64(ctr))
}

// DBBackend returns an attribute for the discovery store backend name
func DBBackend(name string) attribute.KeyValue {
	return attribute.String(AttrDBBackend, name)
}

// PortID returns an attribute for the discovery port id
func PortID(id uint16) attribute.KeyValue {
	return attribute.Int(AttrPortID, int(id))
}

// CfgPath returns an attribute for a configfs path
func CfgPath(path string) attribute.KeyValue {
	return attribute.String(AttrCfgPath, path)
}

// CfgWatchType returns an attribute for the watcher node kind
func CfgWatchType(t string) attribute.KeyValue {
	return attribute.String(AttrCfgWatchType, t)
}

// CfgAttrName returns an attribute for a configfs attribute file name
func CfgAttrName(name string) attribute.KeyValue {
	return attribute.String(AttrCfgAttrName, name)
}

// StartPDUSpan starts a span for a PDU framer operation.
func StartPDUSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, name, trace.WithAttributes(attrs...))
}

// StartDispatchSpan starts a span for a command dispatcher operation.
func StartDispatchSpan(ctx context.Context, opcode string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{Opcode(opcode)}
	allAttrs = append(allAttrs, attrs...)
	return StartSpan(ctx, "dispatch."+opcode, trace.WithAttributes(allAttrs...))
}

// StartDiscdbSpan starts a span for a discovery store operation.
func StartDiscdbSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, "discdb."+operation, trace.WithAttributes(attrs...))
}

// StartConfigfsSpan starts a span for a configfs reflector operation.
func StartConfigfsSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, "configfs."+operation, trace.WithAttributes(attrs...))
}
