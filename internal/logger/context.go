package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for DiscContext in context.Context
var logContextKey = contextKey{}

// DiscContext holds connection-scoped logging context for a discovery
// controller session or reflector pass.
type DiscContext struct {
	TraceID    string    // OpenTelemetry trace ID
	SpanID     string    // OpenTelemetry span ID
	HostNQN    string    // connecting host NQN
	Opcode     string    // admin/fabrics opcode name (CONNECT, GET_LOG_PAGE, ...)
	ClientAddr string    // remote TCP address (host:port)
	CntlID     uint16    // controller id assigned at Connect
	QID        uint16    // queue id (0 = admin/discovery queue)
	StartTime  time.Time // for duration calculation
}

// WithContext returns a new context with the given DiscContext
func WithContext(ctx context.Context, dc *DiscContext) context.Context {
	return context.WithValue(ctx, logContextKey, dc)
}

// FromContext retrieves the DiscContext from context, or nil if not present
func FromContext(ctx context.Context) *DiscContext {
	if ctx == nil {
		return nil
	}
	dc, _ := ctx.Value(logContextKey).(*DiscContext)
	return dc
}

// NewDiscContext creates a new DiscContext for a freshly accepted connection
func NewDiscContext(clientAddr string) *DiscContext {
	return &DiscContext{
		ClientAddr: clientAddr,
		StartTime:  time.Now(),
	}
}

// Clone creates a copy of the DiscContext
func (dc *DiscContext) Clone() *DiscContext {
	if dc == nil {
		return nil
	}
	return &DiscContext{
		TraceID:    dc.TraceID,
		SpanID:     dc.SpanID,
		HostNQN:    dc.HostNQN,
		Opcode:     dc.Opcode,
		ClientAddr: dc.ClientAddr,
		CntlID:     dc.CntlID,
		QID:        dc.QID,
		StartTime:  dc.StartTime,
	}
}

// WithOpcode returns a copy with the opcode set
func (dc *DiscContext) WithOpcode(opcode string) *DiscContext {
	clone := dc.Clone()
	if clone != nil {
		clone.Opcode = opcode
	}
	return clone
}

// WithHost returns a copy with the host NQN set
func (dc *DiscContext) WithHost(hostNQN string) *DiscContext {
	clone := dc.Clone()
	if clone != nil {
		clone.HostNQN = hostNQN
	}
	return clone
}

// WithSession returns a copy with controller session identifiers set
func (dc *DiscContext) WithSession(cntlID, qid uint16) *DiscContext {
	clone := dc.Clone()
	if clone != nil {
		clone.CntlID = cntlID
		clone.QID = qid
	}
	return clone
}

// WithTrace returns a copy with trace info set
func (dc *DiscContext) WithTrace(traceID, spanID string) *DiscContext {
	clone := dc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (dc *DiscContext) DurationMs() float64 {
	if dc == nil || dc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(dc.StartTime).Microseconds()) / 1000.0
}
