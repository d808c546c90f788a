package pdu

// CapsuleCmdHdrLen is the PDU-specific header length for CapsuleCmd: the
// common header plus the 64-byte SQE, with no PDU-specific fields beyond
// that (in-capsule data, if any, follows immediately, PDO-aligned).
const CapsuleCmdHdrLen = HeaderLen + SQELen

// CapsuleCmd carries one host→controller command, with optional in-
// capsule data (ICD) inline after the SQE (spec §4.D).
type CapsuleCmd struct {
	Header Header
	SQE    SQE
	Data   []byte // in-capsule data, if PLen > HLen
}

// DecodeCapsuleCmd parses a CapsuleCmd PDU. buf must contain the full PDU
// (header + SQE + any in-capsule data) as indicated by the header's PLen.
func DecodeCapsuleCmd(buf []byte) (*CapsuleCmd, error) {
	if len(buf) < CapsuleCmdHdrLen {
		return nil, errShort("CapsuleCmd header", CapsuleCmdHdrLen, len(buf))
	}
	hdr, err := DecodeHeader(buf[:HeaderLen])
	if err != nil {
		return nil, err
	}
	if hdr.PDUType != TypeCapsuleCmd {
		return nil, errWrongType(TypeCapsuleCmd, hdr.PDUType)
	}
	sqe, err := DecodeSQE(buf[HeaderLen:CapsuleCmdHdrLen])
	if err != nil {
		return nil, err
	}
	c := &CapsuleCmd{Header: hdr, SQE: *sqe}
	if int(hdr.PLen) > CapsuleCmdHdrLen {
		if len(buf) < int(hdr.PLen) {
			return nil, errShort("CapsuleCmd data", int(hdr.PLen), len(buf))
		}
		c.Data = append([]byte(nil), buf[CapsuleCmdHdrLen:hdr.PLen]...)
	}
	return c, nil
}

// CapsuleRespLen is the fixed PDU length of a CapsuleResp: common header
// plus the 16-byte completion, never carries data (spec §4.D).
const CapsuleRespLen = HeaderLen + CQELen

// CapsuleResp carries one controller→host completion.
type CapsuleResp struct {
	CQE CQE
}

// Encode serializes a CapsuleResp PDU.
func (r *CapsuleResp) Encode() []byte {
	buf := make([]byte, CapsuleRespLen)
	hdr := Header{PDUType: TypeCapsuleResp, HLen: CapsuleRespLen, PLen: CapsuleRespLen}
	copy(buf[:HeaderLen], hdr.Encode())
	copy(buf[HeaderLen:], r.CQE.Encode())
	return buf
}

// DecodeCapsuleResp parses a CapsuleResp PDU (used by tests acting as a
// simulated host).
func DecodeCapsuleResp(buf []byte) (*CapsuleResp, error) {
	if len(buf) < CapsuleRespLen {
		return nil, errShort("CapsuleResp", CapsuleRespLen, len(buf))
	}
	hdr, err := DecodeHeader(buf[:HeaderLen])
	if err != nil {
		return nil, err
	}
	if hdr.PDUType != TypeCapsuleResp {
		return nil, errWrongType(TypeCapsuleResp, hdr.PDUType)
	}
	cqe, err := DecodeCQE(buf[HeaderLen:CapsuleRespLen])
	if err != nil {
		return nil, err
	}
	return &CapsuleResp{CQE: *cqe}, nil
}
