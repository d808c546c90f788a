package pdu

import "encoding/binary"

// ICReqLen and ICRespLen are both fixed at 128 bytes by the NVMe/TCP
// transport specification (the connection's single initialization
// exchange, spec §4.D).
const (
	ICReqLen  = 128
	ICRespLen = 128
)

// Digest bits shared by ICReq.Digest and ICResp.Digest.
const (
	DigestHdgst uint8 = 1 << 0
	DigestDdgst uint8 = 1 << 1
)

// ICReq is the host's Initialize Connection Request.
type ICReq struct {
	Header Header
	PFV    uint16 // PDU version format
	HPDA   uint8  // host PDU data alignment, in 4-byte units
	Digest uint8  // DigestHdgst | DigestDdgst requested by the host
	MaxR2T uint32 // max outstanding R2T PDUs the host will accept
}

// DecodeICReq parses a 128-byte ICReq PDU.
func DecodeICReq(buf []byte) (*ICReq, error) {
	if len(buf) < ICReqLen {
		return nil, errShort("ICReq", ICReqLen, len(buf))
	}
	hdr, err := DecodeHeader(buf[:HeaderLen])
	if err != nil {
		return nil, err
	}
	if hdr.PDUType != TypeICReq {
		return nil, errWrongType(TypeICReq, hdr.PDUType)
	}
	return &ICReq{
		Header: hdr,
		PFV:    binary.LittleEndian.Uint16(buf[8:10]),
		HPDA:   buf[10],
		Digest: buf[11],
		MaxR2T: binary.LittleEndian.Uint32(buf[12:16]),
	}, nil
}

func (r *ICReq) HdgstRequested() bool { return r.Digest&DigestHdgst != 0 }
func (r *ICReq) DdgstRequested() bool { return r.Digest&DigestDdgst != 0 }

// ICResp is the controller's Initialize Connection Response.
type ICResp struct {
	PFV        uint16
	CPDA       uint8  // controller PDU data alignment, in 4-byte units
	Digest     uint8  // digests the controller will actually use
	MaxH2CData uint32 // max bytes the controller will accept per H2CData PDU
}

// Encode serializes a 128-byte ICResp PDU.
func (r *ICResp) Encode() []byte {
	buf := make([]byte, ICRespLen)
	hdr := Header{PDUType: TypeICResp, HLen: ICRespLen, PLen: ICRespLen}
	copy(buf[:HeaderLen], hdr.Encode())
	binary.LittleEndian.PutUint16(buf[8:10], r.PFV)
	buf[10] = r.CPDA
	buf[11] = r.Digest
	binary.LittleEndian.PutUint32(buf[12:16], r.MaxH2CData)
	return buf
}
