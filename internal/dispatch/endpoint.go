package dispatch

import (
	"context"
	"net"

	"github.com/hreinecke/nvme-discd-go/internal/iface"
	"github.com/hreinecke/nvme-discd-go/internal/logger"
	"github.com/hreinecke/nvme-discd-go/internal/pdu"
	"github.com/hreinecke/nvme-discd-go/internal/queue"
	"github.com/hreinecke/nvme-discd-go/internal/session"
)

// Factory builds a Connection per accepted TCP socket and implements
// iface.ConnectionFactory.
type Factory struct {
	Dispatcher *Dispatcher
}

// NewConnection implements iface.ConnectionFactory.
func (f *Factory) NewConnection(conn net.Conn, portID uint16) iface.ConnectionHandler {
	return &Connection{conn: conn, portID: portID, dispatcher: f.Dispatcher}
}

// Connection is one accepted TCP socket's Endpoint worker (spec §3,
// §4.C/§4.D): it owns the PDU framer and the tag table until the
// socket closes, first negotiating ICReq/ICResp, then reading frames
// until the Connect command establishes which qid and session this
// endpoint serves.
type Connection struct {
	conn       net.Conn
	portID     uint16
	dispatcher *Dispatcher

	ep *Endpoint
}

// Serve implements iface.ConnectionHandler. It runs until ctx is
// cancelled or the connection errors/closes, mirroring the RECV_PDU →
// RECV_DATA → HANDLE_PDU loop of spec §4.D.
func (c *Connection) Serve(ctx context.Context) {
	defer c.conn.Close()

	framer := pdu.NewFramer(c.conn)
	if err := framer.Negotiate(pdu.DefaultMaxH2CData); err != nil {
		logger.Warn("dispatch: ICReq negotiation failed", "err", err)
		return
	}

	c.ep = &Endpoint{
		QID:    0xFFFF, // unknown until the first Connect arrives
		Tags:   queue.NewTable(queue.AdminQueueSize),
		Framer: framer,
		PortID: c.portID,
	}

	for {
		select {
		case <-ctx.Done():
			c.detach()
			return
		default:
		}

		frame, err := framer.ReadFrame()
		if err != nil {
			logger.Debug("dispatch: endpoint closed", "err", err)
			c.detach()
			return
		}

		if c.ep.QID == 0xFFFF {
			c.bindQID(frame)
		}

		if err := c.dispatcher.HandleFrame(ctx, c.ep, frame); err != nil {
			logger.Warn("dispatch: command handling failed", "err", err)
			c.detach()
			return
		}
	}
}

// bindQID extracts QID from the first command (always a Fabrics
// Connect per spec §4.F) and resizes the tag table once the
// negotiated queue size is known. The Connect command packs RECFMT
// (low 16 bits) and QID (high 16 bits) into CDW10, and SQSIZE into the
// low 16 bits of CDW11. Any other first command is left for the
// dispatcher to reject, since the admin-queue-sized default table is a
// safe fallback.
func (c *Connection) bindQID(frame *pdu.Frame) {
	if frame.Capsule == nil || frame.Capsule.SQE.Opcode != pdu.OpcodeFabrics {
		return
	}
	sqe := &frame.Capsule.SQE
	c.ep.QID = uint16(sqe.CDW10 >> 16)
	sqsize := uint16(sqe.CDW11&0xFFFF) + 1
	if c.ep.QID != 0 {
		c.ep.Tags = queue.NewTable(int(sqsize))
	}
}

// detach unregisters this connection's admin endpoint and releases its
// ControllerSession reference, if any (spec §4.F reap-at-zero).
func (c *Connection) detach() {
	if c.ep == nil || c.ep.Session == nil {
		return
	}
	if c.ep.QID == 0 {
		c.dispatcher.UnregisterAdminEndpoint(c.ep.Session)
	}
	c.dispatcher.sessions.Detach(c.ep.Session)
}
