package pdu

import (
	"fmt"
	"io"
	"net"
)

// DefaultMaxH2CData is the controller's advertised maximum per-C2HData
// payload when the caller does not override it.
const DefaultMaxH2CData = 64 * 1024

// Frame is one decoded PDU handed to the caller by ReadFrame, carrying
// exactly one of its non-nil fields depending on Header.PDUType.
type Frame struct {
	Header  Header
	Capsule *CapsuleCmd
	H2C     *H2CData
}

// Framer implements the receive state machine RECV_PDU → RECV_DATA →
// HANDLE_PDU → RECV_PDU over one accepted TCP connection (spec §4.D).
// Header/data digests are not implemented: Negotiate always responds
// with Digest=0, rejecting whatever the host requested implicitly by
// never setting the corresponding bit.
type Framer struct {
	conn       net.Conn
	maxR2T     uint32
	maxH2CData uint32
	pdo        uint8
}

// NewFramer wraps an accepted connection. Call Negotiate before
// ReadFrame/SendData.
func NewFramer(conn net.Conn) *Framer {
	return &Framer{conn: conn}
}

// Negotiate performs the single ICReq/ICResp exchange required before
// any capsule traffic (spec §4.D).
func (f *Framer) Negotiate(maxH2CData uint32) error {
	if maxH2CData == 0 {
		maxH2CData = DefaultMaxH2CData
	}
	buf := make([]byte, ICReqLen)
	if _, err := io.ReadFull(f.conn, buf); err != nil {
		return fmt.Errorf("pdu: recv ICReq: %w", err)
	}
	req, err := DecodeICReq(buf)
	if err != nil {
		return err
	}
	f.maxR2T = req.MaxR2T

	resp := &ICResp{PFV: req.PFV, CPDA: 0, Digest: 0, MaxH2CData: maxH2CData}
	if _, err := f.conn.Write(resp.Encode()); err != nil {
		return fmt.Errorf("pdu: send ICResp: %w", err)
	}
	f.maxH2CData = maxH2CData
	return nil
}

// ReadFrame blocks until one full PDU has been received and decoded, or
// returns an error (a short read or malformed header, both fatal to the
// connection per spec §4.D).
func (f *Framer) ReadFrame() (*Frame, error) {
	hdrBuf := make([]byte, HeaderLen)
	if _, err := io.ReadFull(f.conn, hdrBuf); err != nil {
		return nil, fmt.Errorf("pdu: recv header: %w", err)
	}
	hdr, err := DecodeHeader(hdrBuf)
	if err != nil {
		return nil, err
	}
	if hdr.PLen < HeaderLen {
		return nil, fmt.Errorf("pdu: PLen %d shorter than common header: %w", hdr.PLen, ErrMalformedHeader)
	}

	full := make([]byte, hdr.PLen)
	copy(full, hdrBuf)
	if rest := full[HeaderLen:]; len(rest) > 0 {
		if _, err := io.ReadFull(f.conn, rest); err != nil {
			return nil, fmt.Errorf("pdu: recv data: %w", err)
		}
	}

	switch hdr.PDUType {
	case TypeCapsuleCmd:
		c, err := DecodeCapsuleCmd(full)
		if err != nil {
			return nil, err
		}
		return &Frame{Header: hdr, Capsule: c}, nil
	case TypeH2CData:
		d, err := DecodeH2CData(full)
		if err != nil {
			return nil, err
		}
		return &Frame{Header: hdr, H2C: d}, nil
	default:
		return nil, fmt.Errorf("pdu: unexpected %s in RECV_PDU state: %w", hdr.PDUType, ErrMalformedHeader)
	}
}

// SendResp writes a CapsuleResp PDU.
func (f *Framer) SendResp(resp *CapsuleResp) error {
	_, err := f.conn.Write(resp.Encode())
	if err != nil {
		return fmt.Errorf("pdu: send CapsuleResp: %w", err)
	}
	return nil
}

// SendData segments payload across one or more C2HData PDUs, respecting
// the negotiated MaxH2CData chunk size and PDO alignment, marking the
// final PDU as both last and (when withSuccess) implicitly successful so
// no separate CapsuleResp is required (spec §4.D send_data).
func (f *Framer) SendData(commandID uint16, payload []byte, withSuccess bool) error {
	chunk := f.maxH2CData
	if chunk == 0 {
		chunk = DefaultMaxH2CData
	}
	total := uint32(len(payload))

	offset := uint32(0)
	for {
		end := offset + chunk
		if end > total {
			end = total
		}
		last := end == total
		d := &C2HData{
			CommandID:  commandID,
			DataOffset: offset,
			DataLength: end - offset,
			LastPDU:    last,
			Success:    last && withSuccess,
			Data:       payload[offset:end],
		}
		if _, err := f.conn.Write(d.Encode(f.pdo)); err != nil {
			return fmt.Errorf("pdu: send C2HData: %w", err)
		}
		offset = end
		if last {
			return nil
		}
	}
}

// SendR2T requests host→controller data for a prior write command.
func (f *Framer) SendR2T(r *R2T) error {
	if _, err := f.conn.Write(r.Encode()); err != nil {
		return fmt.Errorf("pdu: send R2T: %w", err)
	}
	return nil
}

// MaxR2T returns the host's advertised maximum outstanding R2Ts.
func (f *Framer) MaxR2T() uint32 { return f.maxR2T }
