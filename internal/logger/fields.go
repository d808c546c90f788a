package logger

import (
	"encoding/hex"
	"log/slog"
)

// Standard field keys for structured logging, used consistently across
// every log statement for log aggregation and querying.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// NVMe/TCP Protocol
	// ========================================================================
	KeyOpcode    = "opcode"     // admin/fabrics opcode name
	KeyFcType    = "fctype"     // fabrics command type (Connect, PropGet, ...)
	KeyHostNQN   = "host_nqn"   // connecting host NQN
	KeySubNQN    = "subsys_nqn" // subsystem NQN
	KeyCntlID    = "cntlid"     // controller id assigned at Connect
	KeyQID       = "qid"        // queue id (0 = admin/discovery queue)
	KeyGenctr    = "genctr"     // discovery log generation counter
	KeyStatus    = "status"     // NVMe status code (SC/SCT)
	KeyStatusMsg = "status_msg" // human-readable status message

	// ========================================================================
	// Connection / Transport
	// ========================================================================
	KeyClientAddr   = "client_addr"   // remote TCP address
	KeyListenAddr   = "listen_addr"   // local listen address
	KeyConnectionID = "connection_id" // internal connection identifier
	KeyPDUType      = "pdu_type"      // NVMe/TCP PDU type
	KeyPDULen       = "pdu_len"       // PDU length in bytes
	KeyHandle       = "handle"        // opaque byte handle, hex-encoded

	// ========================================================================
	// Configfs Reflector
	// ========================================================================
	KeyPath       = "path"        // configfs path
	KeyWatchType  = "watch_type"  // watcher node kind
	KeyEventMask  = "event_mask"  // raw inotify event mask
	KeyAttrName   = "attr_name"   // configfs attribute file name
	KeyAttrValue  = "attr_value"  // configfs attribute file value

	// ========================================================================
	// Discovery Store
	// ========================================================================
	KeyPortID    = "port_id"
	KeyTrType    = "trtype"
	KeyTrAddr    = "traddr"
	KeyDBBackend = "db_backend"

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // operation duration in milliseconds
	KeyError      = "error"       // error message
	KeyErrorCode  = "error_code"  // discdb error code
	KeyOperation  = "operation"   // sub-operation name
	KeyAttempt    = "attempt"     // retry attempt number
)

// TraceID returns a slog.Attr for OpenTelemetry trace ID
func TraceID(id string) slog.Attr { return slog.String(KeyTraceID, id) }

// SpanID returns a slog.Attr for OpenTelemetry span ID
func SpanID(id string) slog.Attr { return slog.String(KeySpanID, id) }

// Opcode returns a slog.Attr for the admin/fabrics opcode name
func Opcode(name string) slog.Attr { return slog.String(KeyOpcode, name) }

// FcType returns a slog.Attr for the fabrics command type
func FcType(name string) slog.Attr { return slog.String(KeyFcType, name) }

// HostNQN returns a slog.Attr for the connecting host NQN
func HostNQN(nqn string) slog.Attr { return slog.String(KeyHostNQN, nqn) }

// SubNQN returns a slog.Attr for the subsystem NQN
func SubNQN(nqn string) slog.Attr { return slog.String(KeySubNQN, nqn) }

// CntlID returns a slog.Attr for the controller id
func CntlID(id uint16) slog.Attr { return slog.Int(KeyCntlID, int(id)) }

// QID returns a slog.Attr for the queue id
func QID(qid uint16) slog.Attr { return slog.Int(KeyQID, int(qid)) }

// Genctr returns a slog.Attr for the discovery log generation counter
func Genctr(ctr uint64) slog.Attr { return slog.Uint64(KeyGenctr, ctr) }

// Status returns a slog.Attr for an NVMe status code
func Status(code int) slog.Attr { return slog.Int(KeyStatus, code) }

// StatusMsg returns a slog.Attr for a human-readable status message
func StatusMsg(msg string) slog.Attr { return slog.String(KeyStatusMsg, msg) }

// ClientAddr returns a slog.Attr for the remote TCP address
func ClientAddr(addr string) slog.Attr { return slog.String(KeyClientAddr, addr) }

// ListenAddr returns a slog.Attr for the local listen address
func ListenAddr(addr string) slog.Attr { return slog.String(KeyListenAddr, addr) }

// ConnectionID returns a slog.Attr for the internal connection identifier
func ConnectionID(id string) slog.Attr { return slog.String(KeyConnectionID, id) }

// PDUType returns a slog.Attr for the NVMe/TCP PDU type
func PDUType(t string) slog.Attr { return slog.String(KeyPDUType, t) }

// PDULen returns a slog.Attr for the PDU length in bytes
func PDULen(n uint32) slog.Attr { return slog.Uint64(KeyPDULen, uint64(n)) }

// Handle returns a slog.Attr for an opaque byte handle, formatted as hex
func Handle(h []byte) slog.Attr { return slog.String(KeyHandle, hex.EncodeToString(h)) }

// Path returns a slog.Attr for a configfs path
func Path(p string) slog.Attr { return slog.String(KeyPath, p) }

// WatchType returns a slog.Attr for the watcher node kind
func WatchType(t string) slog.Attr { return slog.String(KeyWatchType, t) }

// EventMask returns a slog.Attr for the raw inotify event mask
func EventMask(mask uint32) slog.Attr { return slog.Uint64(KeyEventMask, uint64(mask)) }

// AttrName returns a slog.Attr for a configfs attribute file name
func AttrName(name string) slog.Attr { return slog.String(KeyAttrName, name) }

// AttrValue returns a slog.Attr for a configfs attribute file value
func AttrValue(value string) slog.Attr { return slog.String(KeyAttrValue, value) }

// PortID returns a slog.Attr for a discovery port id
func PortID(id uint16) slog.Attr { return slog.Int(KeyPortID, int(id)) }

// TrType returns a slog.Attr for the transport type (tcp, rdma, fc)
func TrType(t string) slog.Attr { return slog.String(KeyTrType, t) }

// TrAddr returns a slog.Attr for the transport address
func TrAddr(addr string) slog.Attr { return slog.String(KeyTrAddr, addr) }

// DBBackend returns a slog.Attr for the discovery store backend name
func DBBackend(name string) slog.Attr { return slog.String(KeyDBBackend, name) }

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr { return slog.Float64(KeyDurationMs, ms) }

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorCode returns a slog.Attr for a discdb error code
func ErrorCode(code int) slog.Attr { return slog.Int(KeyErrorCode, code) }

// Operation returns a slog.Attr for a sub-operation name
func Operation(op string) slog.Attr { return slog.String(KeyOperation, op) }

// Attempt returns a slog.Attr for a retry attempt number
func Attempt(n int) slog.Attr { return slog.Int(KeyAttempt, n) }
