package dispatch

import (
	"context"

	"github.com/hreinecke/nvme-discd-go/internal/pdu"
)

// handleConnect implements the §4.F attach discipline for both the
// admin queue (qid=0, new session) and I/O queues (qid>0, attach to an
// existing one). The cntlid is returned in the completion's Result
// field (low 16 bits), per the Fabrics Connect response format.
func (d *Dispatcher) handleConnect(ctx context.Context, ep *Endpoint, sqe *pdu.SQE, data []byte) error {
	cd, err := pdu.DecodeConnectData(data)
	if err != nil {
		return ep.Framer.SendResp(statusResp(sqe.CommandID, pdu.StatusInvalidField))
	}

	s, err := d.sessions.Connect(cd.HostNQN, ep.QID, cd.CntlID)
	if err != nil {
		return ep.Framer.SendResp(statusResp(sqe.CommandID, pdu.StatusConnectInvalidParam))
	}
	ep.Session = s

	if ep.QID == 0 {
		// CDW12 on the Fabrics Connect command carries KATO in
		// milliseconds, meaningful only for the admin queue.
		s.SetKatoTimeout(sqe.CDW12)
		d.RegisterAdminEndpoint(s, ep)
	}

	return ep.Framer.SendResp(successResp(sqe.CommandID, uint32(s.CntlID)))
}

// handlePropertySet applies a Property Set to CC and derives CSTS
// (spec §4.F), the only writable register this controller exposes.
// The Fabrics Property Set command carries ATTRIB in CDW10, the
// register offset in CDW11, and the 64-bit value across CDW12/CDW13.
func (d *Dispatcher) handlePropertySet(ep *Endpoint, sqe *pdu.SQE) error {
	if ep.Session == nil {
		return ep.Framer.SendResp(statusResp(sqe.CommandID, pdu.StatusInvalidField))
	}
	offset := uint64(sqe.CDW11)
	value := uint64(sqe.CDW12) | uint64(sqe.CDW13)<<32
	switch offset {
	case propCC:
		ep.Session.SetCC(uint32(value))
	default:
		return ep.Framer.SendResp(statusResp(sqe.CommandID, pdu.StatusInvalidField))
	}
	return ep.Framer.SendResp(successResp(sqe.CommandID, 0))
}

// handlePropertyGet returns CAP, VS, CC, or CSTS (spec §4.G, §6). The
// Fabrics Property Get command carries ATTRIB in CDW10 and the
// register offset in CDW11.
func (d *Dispatcher) handlePropertyGet(ep *Endpoint, sqe *pdu.SQE) error {
	offset := uint64(sqe.CDW11)
	var lo, hi uint32
	switch offset {
	case propCAP:
		lo, hi = encodeProp64(capValue)
	case propVS:
		lo = vsValue
	case propCC:
		if ep.Session != nil {
			lo = ep.Session.CC()
		}
	case propCSTS:
		if ep.Session != nil {
			lo = ep.Session.CSTS()
		}
	default:
		return ep.Framer.SendResp(statusResp(sqe.CommandID, pdu.StatusInvalidField))
	}
	resp := successResp(sqe.CommandID, lo)
	resp.CQE.Result2 = hi
	return ep.Framer.SendResp(resp)
}
