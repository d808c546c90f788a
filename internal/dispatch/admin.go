package dispatch

import (
	"context"
	"encoding/binary"

	"github.com/hreinecke/nvme-discd-go/internal/discdb"
	"github.com/hreinecke/nvme-discd-go/internal/logger"
	"github.com/hreinecke/nvme-discd-go/internal/pdu"
	"github.com/hreinecke/nvme-discd-go/internal/session"
)

// idCtrlLen is the fixed size of the NVMe Identify Controller data
// structure (NVMe Base Spec §5.17.2.1). Only the fields spec §4.G names
// are populated; the remainder stays zero.
const idCtrlLen = 4096

// cntrlTypeDiscovery is the Identify Controller CNTRLTYPE value for a
// discovery controller (NVMe Base Spec §5.17.2.1).
const cntrlTypeDiscovery = 0x02

func (d *Dispatcher) handleIdentify(ep *Endpoint, sqe *pdu.SQE) error {
	cns := uint8(sqe.CDW10 & 0xFF)
	if cns != 0x01 {
		return ep.Framer.SendResp(statusResp(sqe.CommandID, pdu.StatusBadAttributes))
	}
	if ep.Session == nil {
		return ep.Framer.SendResp(statusResp(sqe.CommandID, pdu.StatusInvalidField))
	}

	buf := make([]byte, idCtrlLen)
	buf[76] = 3                                                   // CMIC
	binary.LittleEndian.PutUint16(buf[78:80], ep.Session.CntlID)  // CNTLID
	binary.LittleEndian.PutUint32(buf[80:84], 0x00010400)         // VER: NVMe 1.4.0
	buf[111] = cntrlTypeDiscovery                                 // CNTRLTYPE
	buf[261] = 1 << 2                                             // LPA.ext_data (64-bit Get Log Page offset)
	kas := d.cfg.KatoIntervalMS / 100
	binary.LittleEndian.PutUint16(buf[320:322], uint16(kas))      // KAS
	binary.LittleEndian.PutUint32(buf[536:540], 0x00100005)       // SGLS
	binary.LittleEndian.PutUint16(buf[514:516], uint16(ep.Tags.Size())) // MAXCMD
	copy(buf[768:1024], []byte(d.cfg.NQN))                        // SUBNQN

	return d.sendIdentifyResult(ep, sqe.CommandID, buf)
}

func (d *Dispatcher) sendIdentifyResult(ep *Endpoint, commandID uint16, payload []byte) error {
	if err := ep.Framer.SendData(commandID, payload, true); err != nil {
		return err
	}
	return nil
}

// discLogEntryLen is the fixed per-entry size of the discovery log page
// (spec §6).
const discLogEntryLen = 1024

// discLogHdrLen is the fixed discovery log page header size (spec §6).
const discLogHdrLen = 1024

func (d *Dispatcher) handleGetLogPage(ctx context.Context, ep *Endpoint, sqe *pdu.SQE) error {
	lid := uint8(sqe.CDW10 & 0xFF)
	numdl := uint16(sqe.CDW10 >> 16)
	numdu := uint16(sqe.CDW11 & 0xFFFF)
	lenBytes := ((uint32(numdu)<<16 | uint32(numdl)) + 1) * 4
	offset := uint64(sqe.CDW12) | uint64(sqe.CDW13)<<32

	switch lid {
	case lidDiscovery:
		return d.sendDiscoveryLog(ctx, ep, sqe, offset, lenBytes)
	case lidSMART:
		page := make([]byte, lenBytes)
		return d.sendIdentifyResult(ep, sqe.CommandID, page)
	default:
		return ep.Framer.SendResp(statusResp(sqe.CommandID, pdu.StatusInvalidField))
	}
}

func (d *Dispatcher) sendDiscoveryLog(ctx context.Context, ep *Endpoint, sqe *pdu.SQE, offset uint64, lenBytes uint32) error {
	if ep.Session == nil {
		return ep.Framer.SendResp(statusResp(sqe.CommandID, pdu.StatusInvalidField))
	}
	entries, err := d.store.HostDiscEntries(ctx, ep.Session.HostNQN)
	if err != nil {
		return ep.Framer.SendResp(statusResp(sqe.CommandID, pdu.StatusInvalidField))
	}
	genctr, err := d.store.HostGenctr(ctx, ep.Session.HostNQN)
	if err != nil {
		return ep.Framer.SendResp(statusResp(sqe.CommandID, pdu.StatusInvalidField))
	}

	full := make([]byte, discLogHdrLen+len(entries)*discLogEntryLen)
	binary.LittleEndian.PutUint64(full[0:8], genctr)
	binary.LittleEndian.PutUint64(full[8:16], uint64(len(entries)))
	binary.LittleEndian.PutUint16(full[16:18], 1) // recfmt

	for i, e := range entries {
		off := discLogHdrLen + i*discLogEntryLen
		encodeDiscEntry(full[off:off+discLogEntryLen], e)
	}

	if offset > uint64(len(full)) {
		offset = uint64(len(full))
	}
	page := full[offset:]
	if uint32(len(page)) > lenBytes {
		page = page[:lenBytes]
	}
	return d.sendIdentifyResult(ep, sqe.CommandID, page)
}

func (d *Dispatcher) handleKeepAlive(ep *Endpoint, sqe *pdu.SQE) error {
	if ep.Session != nil {
		ep.Session.ResetKato()
	}
	return ep.Framer.SendResp(successResp(sqe.CommandID, 0))
}

func (d *Dispatcher) handleSetFeatures(ep *Endpoint, sqe *pdu.SQE) error {
	if ep.Session == nil {
		return ep.Framer.SendResp(statusResp(sqe.CommandID, pdu.StatusInvalidField))
	}
	fid := uint8(sqe.CDW10 & 0xFF)
	switch fid {
	case fidNumQueues:
		requestedCQ := uint16(sqe.CDW11 & 0xFFFF)
		requestedSQ := uint16(sqe.CDW11 >> 16)
		n := uint32(requestedCQ)
		if uint32(requestedSQ) < n {
			n = uint32(requestedSQ)
		}
		ep.Session.SetMaxEndpoints(n + 1)
		return ep.Framer.SendResp(successResp(sqe.CommandID, sqe.CDW11))
	case fidAsyncEvent:
		ep.Session.SetAENMask(sqe.CDW11)
		return ep.Framer.SendResp(successResp(sqe.CommandID, 0))
	case fidKato:
		ep.Session.SetKatoTimeout(sqe.CDW11)
		return ep.Framer.SendResp(successResp(sqe.CommandID, sqe.CDW11))
	default:
		return ep.Framer.SendResp(statusResp(sqe.CommandID, pdu.StatusInvalidField))
	}
}

// handleAsyncEvent implements the implicit Async Event Request admin
// opcode (Glossary "AEN"): the command itself never completes
// immediately. It is registered as pending against the session and
// completed later by session.Manager.notify when a topology change
// fires (spec §4.G closing paragraph, §9 Open Question resolution).
func (d *Dispatcher) handleAsyncEvent(ep *Endpoint, sqe *pdu.SQE) error {
	if ep.Session == nil {
		return ep.Framer.SendResp(statusResp(sqe.CommandID, pdu.StatusInvalidField))
	}
	d.sessions.PostAEN(ep.Session, sqe.CommandID)
	return nil
}

// CompleteAEN implements session.AENCompleter: writes the deferred
// completion for a previously-submitted Async Event Request once a
// Discovery Log Change notification fires (spec §4.G, Glossary "AEN").
// It looks up the admin endpoint currently serving s's admin queue via
// the registry RegisterAdminEndpoint installed at Connect time.
func (d *Dispatcher) CompleteAEN(s *session.Session, commandID uint16, result uint32) {
	ep, ok := d.adminEndpoints.get(s)
	if !ok {
		return
	}
	if err := ep.Framer.SendResp(successResp(commandID, result)); err != nil {
		logger.Warn("dispatch: AEN completion failed", "hostnqn", s.HostNQN, "err", err)
	}
}

// encodeDiscEntry packs one joined (subsystem,port) row into its
// 1024-byte wire entry (spec §6).
func encodeDiscEntry(buf []byte, e discdb.DiscEntry) {
	buf[0] = trTypeCode(e.TrType)
	buf[1] = adrFamCode(e.AdrFam)
	buf[2] = 2 // SUBTYPE: discovery referral
	buf[3] = tReqCode(e.TReq)
	binary.LittleEndian.PutUint16(buf[4:6], e.PortID)
	binary.LittleEndian.PutUint16(buf[6:8], 0xFFFF) // CNTLID
	binary.LittleEndian.PutUint16(buf[8:10], 0)      // ASQSZ
	copy(buf[32:64], []byte(e.TrSvcID))
	copy(buf[256:512], []byte(e.SubNQN))
	copy(buf[512:768], []byte(e.TrAddr))
	copy(buf[768:1024], []byte(e.Tsas))
}

// Transport type codes (NVMe-oF spec, Discovery Log Entry TRTYPE).
func trTypeCode(t discdb.TrType) uint8 {
	switch t {
	case discdb.TrTypeRDMA:
		return 1
	case discdb.TrTypeFC:
		return 2
	case discdb.TrTypeLoop:
		return 254
	default:
		return 3 // tcp
	}
}

func adrFamCode(a discdb.AdrFam) uint8 {
	switch a {
	case discdb.AdrFamIPv6:
		return 2
	case discdb.AdrFamFC:
		return 3
	case discdb.AdrFamIB:
		return 4
	case discdb.AdrFamLoop:
		return 254
	default:
		return 1 // ipv4
	}
}

func tReqCode(t discdb.TReq) uint8 {
	switch t {
	case discdb.TReqRequired:
		return 1
	case discdb.TReqNone:
		return 3
	default:
		return 2 // not required
	}
}
