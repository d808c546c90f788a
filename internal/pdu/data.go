package pdu

import "encoding/binary"

// dataHdrFieldsLen is the PDU-specific header length shared by H2CData,
// C2HData, and R2T: cccid, ttag/rsvd, offset, length, reserved.
const dataHdrFieldsLen = 16

// C2HData carries controller→host data (the discovery log page payload,
// when it exceeds the in-capsule data limit). Framer.SendData segments a
// response across multiple C2HData PDUs respecting MaxH2CData-equivalent
// sizing (spec §4.D); data follows the header with no PDO padding.
type C2HData struct {
	CommandID  uint16
	DataOffset uint32
	DataLength uint32
	LastPDU    bool
	Success    bool // final PDU implies command success, no CapsuleResp follows
	Data       []byte
}

// Encode serializes a C2HData PDU with its data payload, PDO-aligned so
// that Data begins at a multiple of the negotiated alignment.
func (d *C2HData) Encode(pdo uint8) []byte {
	specificLen := HeaderLen + dataHdrFieldsLen
	dataStart := alignUp(specificLen, int(pdo))
	total := dataStart + len(d.Data)

	buf := make([]byte, total)
	var flags Flags
	if d.LastPDU {
		flags |= FlagLastPDU
	}
	if d.Success {
		flags |= FlagSuccess
	}
	hdr := Header{
		PDUType: TypeC2HData,
		Flags:   flags,
		HLen:    uint8(specificLen),
		PDO:     uint8(dataStart),
		PLen:    uint32(total),
	}
	copy(buf[:HeaderLen], hdr.Encode())
	binary.LittleEndian.PutUint16(buf[8:10], d.CommandID)
	binary.LittleEndian.PutUint32(buf[12:16], d.DataOffset)
	binary.LittleEndian.PutUint32(buf[16:20], d.DataLength)
	copy(buf[dataStart:], d.Data)
	return buf
}

// DecodeC2HData parses a full C2HData PDU (used by tests acting as a
// simulated host).
func DecodeC2HData(buf []byte) (*C2HData, error) {
	if len(buf) < HeaderLen+dataHdrFieldsLen {
		return nil, errShort("C2HData header", HeaderLen+dataHdrFieldsLen, len(buf))
	}
	hdr, err := DecodeHeader(buf[:HeaderLen])
	if err != nil {
		return nil, err
	}
	if hdr.PDUType != TypeC2HData {
		return nil, errWrongType(TypeC2HData, hdr.PDUType)
	}
	d := &C2HData{
		CommandID:  binary.LittleEndian.Uint16(buf[8:10]),
		DataOffset: binary.LittleEndian.Uint32(buf[12:16]),
		DataLength: binary.LittleEndian.Uint32(buf[16:20]),
		LastPDU:    hdr.Flags.Has(FlagLastPDU),
		Success:    hdr.Flags.Has(FlagSuccess),
	}
	if int(hdr.PLen) > int(hdr.PDO) {
		d.Data = append([]byte(nil), buf[hdr.PDO:hdr.PLen]...)
	}
	return d, nil
}

// H2CData carries host→controller data requested by a prior R2T.
type H2CData struct {
	CommandID  uint16
	TTag       uint16
	DataOffset uint32
	DataLength uint32
	LastPDU    bool
	Data       []byte
}

// DecodeH2CData parses a full H2CData PDU.
func DecodeH2CData(buf []byte) (*H2CData, error) {
	if len(buf) < HeaderLen+dataHdrFieldsLen {
		return nil, errShort("H2CData header", HeaderLen+dataHdrFieldsLen, len(buf))
	}
	hdr, err := DecodeHeader(buf[:HeaderLen])
	if err != nil {
		return nil, err
	}
	if hdr.PDUType != TypeH2CData {
		return nil, errWrongType(TypeH2CData, hdr.PDUType)
	}
	d := &H2CData{
		CommandID:  binary.LittleEndian.Uint16(buf[8:10]),
		TTag:       binary.LittleEndian.Uint16(buf[10:12]),
		DataOffset: binary.LittleEndian.Uint32(buf[12:16]),
		DataLength: binary.LittleEndian.Uint32(buf[16:20]),
		LastPDU:    hdr.Flags.Has(FlagLastPDU),
	}
	if int(hdr.PLen) > int(hdr.PDO) {
		d.Data = append([]byte(nil), buf[hdr.PDO:hdr.PLen]...)
	}
	return d, nil
}

// R2T requests host→controller data transfer for a prior write command.
// The discovery controller never issues writes of its own, but R2T
// encode/decode is kept symmetric with H2CData for protocol completeness.
type R2T struct {
	CommandID  uint16
	TTag       uint16
	R2TOffset  uint32
	R2TLength  uint32
}

const R2TLen = HeaderLen + dataHdrFieldsLen

// Encode serializes an R2T PDU (no data payload).
func (r *R2T) Encode() []byte {
	buf := make([]byte, R2TLen)
	hdr := Header{PDUType: TypeR2T, HLen: R2TLen, PLen: R2TLen}
	copy(buf[:HeaderLen], hdr.Encode())
	binary.LittleEndian.PutUint16(buf[8:10], r.CommandID)
	binary.LittleEndian.PutUint16(buf[10:12], r.TTag)
	binary.LittleEndian.PutUint32(buf[12:16], r.R2TOffset)
	binary.LittleEndian.PutUint32(buf[16:20], r.R2TLength)
	return buf
}

// DecodeR2T parses an R2T PDU.
func DecodeR2T(buf []byte) (*R2T, error) {
	if len(buf) < R2TLen {
		return nil, errShort("R2T", R2TLen, len(buf))
	}
	hdr, err := DecodeHeader(buf[:HeaderLen])
	if err != nil {
		return nil, err
	}
	if hdr.PDUType != TypeR2T {
		return nil, errWrongType(TypeR2T, hdr.PDUType)
	}
	return &R2T{
		CommandID: binary.LittleEndian.Uint16(buf[8:10]),
		TTag:      binary.LittleEndian.Uint16(buf[10:12]),
		R2TOffset: binary.LittleEndian.Uint32(buf[12:16]),
		R2TLength: binary.LittleEndian.Uint32(buf[16:20]),
	}, nil
}

func alignUp(n, align int) int {
	if align <= 1 {
		return n
	}
	rem := n % align
	if rem == 0 {
		return n
	}
	return n + (align - rem)
}
