package dispatch

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"testing"

	"github.com/hreinecke/nvme-discd-go/internal/discdb"
	"github.com/hreinecke/nvme-discd-go/internal/pdu"
	"github.com/hreinecke/nvme-discd-go/internal/queue"
	"github.com/hreinecke/nvme-discd-go/internal/session"
)

// fakeStore implements discdb.Store with only the read path dispatch
// actually exercises; every mutator is unreachable from this package's
// commands and panics if called.
type fakeStore struct {
	entries []discdb.DiscEntry
	genctr  uint64
}

func (f *fakeStore) CreateHost(ctx context.Context, nqn string) error { panic("unused") }
func (f *fakeStore) DeleteHost(ctx context.Context, nqn string) error { panic("unused") }
func (f *fakeStore) HostGenctr(ctx context.Context, nqn string) (uint64, error) {
	return f.genctr, nil
}
func (f *fakeStore) HostExists(ctx context.Context, nqn string) (bool, error) { panic("unused") }
func (f *fakeStore) CreateSubsys(ctx context.Context, nqn string, allowAnyHost bool) error {
	panic("unused")
}
func (f *fakeStore) DeleteSubsys(ctx context.Context, nqn string) error { panic("unused") }
func (f *fakeStore) SubsysExists(ctx context.Context, nqn string) (bool, error) {
	panic("unused")
}
func (f *fakeStore) GetSubsys(ctx context.Context, nqn string) (*discdb.Subsystem, error) {
	panic("unused")
}
func (f *fakeStore) SetAllowAnyHost(ctx context.Context, nqn string, allow bool) error {
	panic("unused")
}
func (f *fakeStore) CreatePort(ctx context.Context, p *discdb.Port) error { panic("unused") }
func (f *fakeStore) DeletePort(ctx context.Context, portID uint16) error  { panic("unused") }
func (f *fakeStore) GetPort(ctx context.Context, portID uint16) (*discdb.Port, error) {
	panic("unused")
}
func (f *fakeStore) ListPorts(ctx context.Context) ([]*discdb.Port, error) { panic("unused") }
func (f *fakeStore) UpdatePortAttr(ctx context.Context, portID uint16, attr, value string) error {
	panic("unused")
}
func (f *fakeStore) LinkHostSubsys(ctx context.Context, hostNQN, subsysNQN string) error {
	panic("unused")
}
func (f *fakeStore) UnlinkHostSubsys(ctx context.Context, hostNQN, subsysNQN string) error {
	panic("unused")
}
func (f *fakeStore) LinkSubsysPort(ctx context.Context, subsysNQN string, portID uint16) error {
	panic("unused")
}
func (f *fakeStore) UnlinkSubsysPort(ctx context.Context, subsysNQN string, portID uint16) error {
	panic("unused")
}
func (f *fakeStore) HostDiscEntries(ctx context.Context, hostNQN string) ([]discdb.DiscEntry, error) {
	return f.entries, nil
}
func (f *fakeStore) Close() error { return nil }

func newTestDispatcher(store discdb.Store) (*Dispatcher, *session.Manager) {
	sessions := session.NewManager(1000)
	d := New(store, sessions, Config{NQN: "nqn.test.discovery", KatoIntervalMS: 1000})
	return d, sessions
}

// newTestEndpoint wires an Endpoint to one end of a net.Pipe, returning
// the peer conn a test uses to read back completions/data. Framer
// internals (maxH2CData) stay at their zero-value defaults; dispatch
// handlers never call Negotiate in these tests.
func newTestEndpoint(qid uint16) (*Endpoint, net.Conn) {
	server, client := net.Pipe()
	ep := &Endpoint{
		QID:    qid,
		Tags:   queue.NewTable(queue.AdminQueueSize),
		Framer: pdu.NewFramer(server),
	}
	return ep, client
}

func readCapsuleResp(t *testing.T, conn net.Conn) *pdu.CapsuleResp {
	t.Helper()
	buf := make([]byte, pdu.CapsuleRespLen)
	if _, err := io.ReadFull(conn, buf); err != nil {
		t.Fatalf("read CapsuleResp: %v", err)
	}
	resp, err := pdu.DecodeCapsuleResp(buf)
	if err != nil {
		t.Fatalf("decode CapsuleResp: %v", err)
	}
	return resp
}

func readAllC2HData(t *testing.T, conn net.Conn) []byte {
	t.Helper()
	var out []byte
	for {
		hdrBuf := make([]byte, pdu.HeaderLen)
		if _, err := io.ReadFull(conn, hdrBuf); err != nil {
			t.Fatalf("read C2HData header: %v", err)
		}
		hdr, err := pdu.DecodeHeader(hdrBuf)
		if err != nil {
			t.Fatalf("decode header: %v", err)
		}
		full := make([]byte, hdr.PLen)
		copy(full, hdrBuf)
		if rest := full[pdu.HeaderLen:]; len(rest) > 0 {
			if _, err := io.ReadFull(conn, rest); err != nil {
				t.Fatalf("read C2HData body: %v", err)
			}
		}
		d, err := pdu.DecodeC2HData(full)
		if err != nil {
			t.Fatalf("decode C2HData: %v", err)
		}
		out = append(out, d.Data...)
		if d.LastPDU {
			return out
		}
	}
}

func connectFrame(commandID uint16, qid uint16, sqsize uint16, kato uint32, hostNQN, subNQN string, cntlID uint16) (*pdu.CapsuleCmd, []byte) {
	data := make([]byte, pdu.ConnectDataLen)
	binary.LittleEndian.PutUint16(data[16:18], cntlID)
	copy(data[256:], []byte(subNQN))
	copy(data[512:], []byte(hostNQN))
	sqe := pdu.SQE{
		Opcode:    pdu.OpcodeFabrics,
		CommandID: commandID,
		NSID:      uint32(fctypeConnect),
		CDW10:     uint32(qid)<<16 | 0, // RECFMT=0, QID in high bits
		CDW11:     uint32(sqsize),
		CDW12:     kato,
	}
	return &pdu.CapsuleCmd{SQE: sqe, Data: data}, data
}

func doConnect(t *testing.T, d *Dispatcher, ep *Endpoint, conn net.Conn, qid uint16, sqsize uint16, kato uint32, hostNQN string, cntlID uint16) *pdu.CapsuleResp {
	t.Helper()
	cmd, _ := connectFrame(1, qid, sqsize, kato, hostNQN, "nqn.2014-08.org.nvmexpress.discovery", cntlID)
	done := make(chan error, 1)
	go func() {
		done <- d.HandleFrame(context.Background(), ep, &pdu.Frame{Capsule: cmd})
	}()
	resp := readCapsuleResp(t, conn)
	if err := <-done; err != nil {
		t.Fatalf("HandleFrame(connect) = %v", err)
	}
	return resp
}

func TestDispatcher_ConnectAdminAllocatesSession(t *testing.T) {
	t.Parallel()

	d, _ := newTestDispatcher(&fakeStore{})
	ep, conn := newTestEndpoint(0)

	resp := doConnect(t, d, ep, conn, 0, 32, 2000, "nqn.host1", 0xFFFF)
	if resp.CQE.Status != pdu.EncodeStatus(pdu.StatusSuccess) {
		t.Fatalf("status = %#x; want success", resp.CQE.Status)
	}
	if ep.Session == nil {
		t.Fatal("expected session to be attached to endpoint")
	}
	if resp.CQE.Result != uint32(ep.Session.CntlID) {
		t.Fatalf("completion Result = %d; want cntlid %d", resp.CQE.Result, ep.Session.CntlID)
	}
}

func TestDispatcher_ConnectIOAttachesExistingSession(t *testing.T) {
	t.Parallel()

	d, _ := newTestDispatcher(&fakeStore{})
	adminEP, adminConn := newTestEndpoint(0)
	doConnect(t, d, adminEP, adminConn, 0, 32, 2000, "nqn.host1", 0xFFFF)
	cntlID := adminEP.Session.CntlID

	ioEP, ioConn := newTestEndpoint(1)
	resp := doConnect(t, d, ioEP, ioConn, 1, 32, 0, "nqn.host1", cntlID)
	if resp.CQE.Status != pdu.EncodeStatus(pdu.StatusSuccess) {
		t.Fatalf("status = %#x; want success", resp.CQE.Status)
	}
	if ioEP.Session != adminEP.Session {
		t.Fatal("io Connect should attach the same session object")
	}
}

func TestDispatcher_ConnectRejectsWrongCntlID(t *testing.T) {
	t.Parallel()

	d, _ := newTestDispatcher(&fakeStore{})
	ep, conn := newTestEndpoint(1)
	resp := doConnect(t, d, ep, conn, 1, 32, 0, "nqn.host1", 77)
	if resp.CQE.Status != pdu.EncodeStatus(pdu.StatusConnectInvalidParam) {
		t.Fatalf("status = %#x; want NVME_SC_CONNECT_INVALID_PARAM", resp.CQE.Status)
	}
}

func TestDispatcher_RejectsNonConnectOnIOQueue(t *testing.T) {
	t.Parallel()

	d, _ := newTestDispatcher(&fakeStore{})
	ep, conn := newTestEndpoint(1)

	sqe := pdu.SQE{Opcode: opKeepAlive, CommandID: 5}
	done := make(chan error, 1)
	go func() {
		done <- d.HandleFrame(context.Background(), ep, &pdu.Frame{Capsule: &pdu.CapsuleCmd{SQE: sqe}})
	}()
	resp := readCapsuleResp(t, conn)
	if err := <-done; err != nil {
		t.Fatalf("HandleFrame = %v", err)
	}
	if resp.CQE.Status != pdu.EncodeStatus(pdu.StatusInvalidOpcode) {
		t.Fatalf("status = %#x; want NVME_SC_INVALID_OPCODE", resp.CQE.Status)
	}
}

func TestDispatcher_PropertySetGetCCRoundTrip(t *testing.T) {
	t.Parallel()

	d, _ := newTestDispatcher(&fakeStore{})
	ep, conn := newTestEndpoint(0)
	doConnect(t, d, ep, conn, 0, 32, 0, "nqn.host1", 0xFFFF)

	setSQE := pdu.SQE{Opcode: pdu.OpcodeFabrics, CommandID: 2, NSID: uint32(fctypePropertySet), CDW11: uint32(propCC), CDW12: uint32(session.CCEn)}
	done := make(chan error, 1)
	go func() { done <- d.HandleFrame(context.Background(), ep, &pdu.Frame{Capsule: &pdu.CapsuleCmd{SQE: setSQE}}) }()
	setResp := readCapsuleResp(t, conn)
	if err := <-done; err != nil {
		t.Fatalf("HandleFrame(set) = %v", err)
	}
	if setResp.CQE.Status != pdu.EncodeStatus(pdu.StatusSuccess) {
		t.Fatalf("Property Set status = %#x; want success", setResp.CQE.Status)
	}

	getSQE := pdu.SQE{Opcode: pdu.OpcodeFabrics, CommandID: 3, NSID: uint32(fctypePropertyGet), CDW11: uint32(propCSTS)}
	done = make(chan error, 1)
	go func() { done <- d.HandleFrame(context.Background(), ep, &pdu.Frame{Capsule: &pdu.CapsuleCmd{SQE: getSQE}}) }()
	getResp := readCapsuleResp(t, conn)
	if err := <-done; err != nil {
		t.Fatalf("HandleFrame(get) = %v", err)
	}
	if getResp.CQE.Result&session.CSTSRDY == 0 {
		t.Fatalf("CSTS = %#x; want RDY set after CC.EN=1", getResp.CQE.Result)
	}
}

func TestDispatcher_Identify(t *testing.T) {
	t.Parallel()

	d, _ := newTestDispatcher(&fakeStore{})
	ep, conn := newTestEndpoint(0)
	doConnect(t, d, ep, conn, 0, 32, 0, "nqn.host1", 0xFFFF)

	sqe := pdu.SQE{Opcode: opIdentify, CommandID: 4, CDW10: 0x01}
	done := make(chan error, 1)
	go func() { done <- d.HandleFrame(context.Background(), ep, &pdu.Frame{Capsule: &pdu.CapsuleCmd{SQE: sqe}}) }()
	payload := readAllC2HData(t, conn)
	if err := <-done; err != nil {
		t.Fatalf("HandleFrame(identify) = %v", err)
	}
	if len(payload) != idCtrlLen {
		t.Fatalf("identify payload len = %d; want %d", len(payload), idCtrlLen)
	}
	if payload[111] != cntrlTypeDiscovery {
		t.Fatalf("CNTRLTYPE = %d; want %d", payload[111], cntrlTypeDiscovery)
	}
	if got := binary.LittleEndian.Uint16(payload[78:80]); got != ep.Session.CntlID {
		t.Fatalf("CNTLID = %d; want %d", got, ep.Session.CntlID)
	}
	subnqn := string(payload[768:1024])
	if got := subnqn[:len("nqn.test.discovery")]; got != "nqn.test.discovery" {
		t.Fatalf("SUBNQN = %q", got)
	}
}

func TestDispatcher_GetLogPageDiscovery(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		genctr: 7,
		entries: []discdb.DiscEntry{
			{TrType: discdb.TrTypeTCP, AdrFam: discdb.AdrFamIPv4, TReq: discdb.TReqNotRequired, PortID: 1, TrSvcID: "4420", SubNQN: "nqn.sub1", TrAddr: "10.0.0.1"},
		},
	}
	d, _ := newTestDispatcher(store)
	ep, conn := newTestEndpoint(0)
	doConnect(t, d, ep, conn, 0, 32, 0, "nqn.host1", 0xFFFF)

	sqe := pdu.SQE{Opcode: opGetLogPage, CommandID: 6, CDW10: uint32(lidDiscovery) | (uint32(2048/4-1) << 16)}
	done := make(chan error, 1)
	go func() { done <- d.HandleFrame(context.Background(), ep, &pdu.Frame{Capsule: &pdu.CapsuleCmd{SQE: sqe}}) }()
	page := readAllC2HData(t, conn)
	if err := <-done; err != nil {
		t.Fatalf("HandleFrame(get log page) = %v", err)
	}
	if len(page) != discLogHdrLen+discLogEntryLen {
		t.Fatalf("page len = %d; want %d", len(page), discLogHdrLen+discLogEntryLen)
	}
	if got := binary.LittleEndian.Uint64(page[0:8]); got != 7 {
		t.Fatalf("genctr = %d; want 7", got)
	}
	if got := binary.LittleEndian.Uint64(page[8:16]); got != 1 {
		t.Fatalf("numrec = %d; want 1", got)
	}
	entry := page[discLogHdrLen : discLogHdrLen+discLogEntryLen]
	if entry[0] != 3 { // TCP
		t.Fatalf("TRTYPE = %d; want 3 (tcp)", entry[0])
	}
}

func TestDispatcher_KeepAliveResetsKato(t *testing.T) {
	t.Parallel()

	d, _ := newTestDispatcher(&fakeStore{})
	ep, conn := newTestEndpoint(0)
	doConnect(t, d, ep, conn, 0, 32, 2000, "nqn.host1", 0xFFFF)

	sqe := pdu.SQE{Opcode: opKeepAlive, CommandID: 8}
	done := make(chan error, 1)
	go func() { done <- d.HandleFrame(context.Background(), ep, &pdu.Frame{Capsule: &pdu.CapsuleCmd{SQE: sqe}}) }()
	resp := readCapsuleResp(t, conn)
	if err := <-done; err != nil {
		t.Fatalf("HandleFrame(keepalive) = %v", err)
	}
	if resp.CQE.Status != pdu.EncodeStatus(pdu.StatusSuccess) {
		t.Fatalf("status = %#x; want success", resp.CQE.Status)
	}
}

func TestDispatcher_SetFeaturesAsyncEventMask(t *testing.T) {
	t.Parallel()

	d, _ := newTestDispatcher(&fakeStore{})
	ep, conn := newTestEndpoint(0)
	doConnect(t, d, ep, conn, 0, 32, 0, "nqn.host1", 0xFFFF)

	sqe := pdu.SQE{Opcode: opSetFeatures, CommandID: 9, CDW10: uint32(fidAsyncEvent), CDW11: session.AENDiscoveryLogChange}
	done := make(chan error, 1)
	go func() { done <- d.HandleFrame(context.Background(), ep, &pdu.Frame{Capsule: &pdu.CapsuleCmd{SQE: sqe}}) }()
	resp := readCapsuleResp(t, conn)
	if err := <-done; err != nil {
		t.Fatalf("HandleFrame(set features) = %v", err)
	}
	if resp.CQE.Status != pdu.EncodeStatus(pdu.StatusSuccess) {
		t.Fatalf("status = %#x; want success", resp.CQE.Status)
	}
}

func TestDispatcher_AsyncEventCompletesOnNotify(t *testing.T) {
	t.Parallel()

	d, sessions := newTestDispatcher(&fakeStore{})
	ep, conn := newTestEndpoint(0)
	doConnect(t, d, ep, conn, 0, 32, 0, "nqn.host1", 0xFFFF)

	enableSQE := pdu.SQE{Opcode: opSetFeatures, CommandID: 10, CDW10: uint32(fidAsyncEvent), CDW11: session.AENDiscoveryLogChange}
	done := make(chan error, 1)
	go func() { done <- d.HandleFrame(context.Background(), ep, &pdu.Frame{Capsule: &pdu.CapsuleCmd{SQE: enableSQE}}) }()
	readCapsuleResp(t, conn)
	if err := <-done; err != nil {
		t.Fatalf("enable AEN mask: %v", err)
	}

	aerSQE := pdu.SQE{Opcode: opAsyncEvent, CommandID: 42}
	if err := d.HandleFrame(context.Background(), ep, &pdu.Frame{Capsule: &pdu.CapsuleCmd{SQE: aerSQE}}); err != nil {
		t.Fatalf("HandleFrame(async event) = %v", err)
	}

	readDone := make(chan *pdu.CapsuleResp, 1)
	go func() { readDone <- readCapsuleResp(t, conn) }()
	sessions.NotifyHost("nqn.host1")

	resp := <-readDone
	if resp.CQE.CommandID != 42 {
		t.Fatalf("AEN completion CommandID = %d; want 42", resp.CQE.CommandID)
	}
	if resp.CQE.Result != session.AENResultDiscoveryLogChange {
		t.Fatalf("AEN completion Result = %#x; want %#x", resp.CQE.Result, session.AENResultDiscoveryLogChange)
	}
}
