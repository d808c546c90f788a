// Package pdu implements the wire-level NVMe/TCP PDU framer (spec §4.D):
// ICReq/ICResp, CapsuleCmd/CapsuleResp, H2CData/R2T/C2HData encode and
// decode, plus the RECV_PDU→RECV_DATA→HANDLE_PDU receive state machine.
// Wire codec style follows the teacher's avoidance of reflection-based
// codecs for hot-path structures: explicit encoding/binary little-endian
// reads into fixed-size header structs.
package pdu

import (
	"encoding/binary"
	"fmt"
)

// Type is the NVMe/TCP PDU type carried in the common header's first
// byte (NVMe-TCP Transport Specification §2.2).
type Type uint8

const (
	TypeICReq       Type = 0x00
	TypeICResp      Type = 0x01
	TypeH2CTermReq  Type = 0x02
	TypeC2HTermReq  Type = 0x03
	TypeCapsuleCmd  Type = 0x04
	TypeCapsuleResp Type = 0x05
	TypeH2CData     Type = 0x06
	TypeC2HData     Type = 0x07
	TypeR2T         Type = 0x09
)

func (t Type) String() string {
	switch t {
	case TypeICReq:
		return "ICReq"
	case TypeICResp:
		return "ICResp"
	case TypeH2CTermReq:
		return "H2CTermReq"
	case TypeC2HTermReq:
		return "C2HTermReq"
	case TypeCapsuleCmd:
		return "CapsuleCmd"
	case TypeCapsuleResp:
		return "CapsuleResp"
	case TypeH2CData:
		return "H2CData"
	case TypeC2HData:
		return "C2HData"
	case TypeR2T:
		return "R2T"
	default:
		return fmt.Sprintf("Type(0x%02x)", uint8(t))
	}
}

// Flags are the common header's per-PDU flag bits.
type Flags uint8

const (
	// FlagHDGSTF indicates a header digest trails the PDU-specific header.
	FlagHDGSTF Flags = 1 << 0
	// FlagDDGSTF indicates a data digest trails the data payload.
	FlagDDGSTF Flags = 1 << 1
	// FlagLastPDU marks the final data PDU of a transfer (C2HData/H2CData).
	FlagLastPDU Flags = 1 << 2
	// FlagSuccess on the final C2HData PDU means the command completed
	// successfully and no separate CapsuleResp follows.
	FlagSuccess Flags = 1 << 3
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// HeaderLen is the size of the common PDU header shared by every PDU type.
const HeaderLen = 8

// Header is the 8-byte common header prefixing every NVMe/TCP PDU.
type Header struct {
	PDUType Type
	Flags   Flags
	HLen    uint8  // header length (common + PDU-specific), excluding data
	PDO     uint8  // PDU Data Offset: byte offset of data from PDU start
	PLen    uint32 // total PDU length: header + specific + data + digests
}

// Encode writes the header in wire order.
func (h Header) Encode() []byte {
	buf := make([]byte, HeaderLen)
	buf[0] = byte(h.PDUType)
	buf[1] = byte(h.Flags)
	buf[2] = h.HLen
	buf[3] = h.PDO
	binary.LittleEndian.PutUint32(buf[4:8], h.PLen)
	return buf
}

// DecodeHeader parses the 8-byte common header from buf.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderLen {
		return Header{}, fmt.Errorf("pdu: short common header: %d bytes", len(buf))
	}
	return Header{
		PDUType: Type(buf[0]),
		Flags:   Flags(buf[1]),
		HLen:    buf[2],
		PDO:     buf[3],
		PLen:    binary.LittleEndian.Uint32(buf[4:8]),
	}, nil
}
