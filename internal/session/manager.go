package session

import (
	"sync"
)

// key identifies a session by the exact (hostnqn,cntlid) pair §4.F
// requires qid>0 Connect to match.
type key struct {
	hostNQN string
	cntlID  uint16
}

// Manager is the process-wide ControllerSession table. One Manager per
// running controller process (spec §4.F: "transient, in-memory only").
type Manager struct {
	mu             sync.Mutex
	sessions       map[key]*Session
	nextCntlID     uint16
	katoIntervalMS uint32
	completer      AENCompleter
}

// NewManager builds an empty session table. katoIntervalMS is the
// watchdog tick period; 0 selects DefaultKatoIntervalMS.
func NewManager(katoIntervalMS uint32) *Manager {
	if katoIntervalMS == 0 {
		katoIntervalMS = DefaultKatoIntervalMS
	}
	return &Manager{
		sessions:       make(map[key]*Session),
		nextCntlID:     1,
		katoIntervalMS: katoIntervalMS,
	}
}

// Connect implements the qid=0 / qid>0 Fabrics Connect discipline of
// spec §4.F:
//
//   - qid==0 always allocates a brand new session with a freshly
//     minted cntlid; the host must have supplied the 0xFFFF sentinel,
//     else ErrInvalidParam.
//   - qid!=0 must locate an existing session by the exact
//     (hostNQN,cntlID) pair the host supplied, else ErrInvalidParam.
//
// The returned Session's refcount is incremented for the caller's new
// endpoint; callers must eventually call Detach.
func (m *Manager) Connect(hostNQN string, qid uint16, cntlID uint16) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if qid == 0 {
		if cntlID != 0xFFFF {
			return nil, ErrInvalidParam
		}
		id := m.nextCntlID
		m.nextCntlID++
		s := &Session{
			HostNQN:        hostNQN,
			CntlID:         id,
			katoIntervalMS: m.katoIntervalMS,
			maxEndpoints:   DefaultMaxEndpoints,
			refs:           1,
		}
		m.sessions[key{hostNQN, id}] = s
		return s, nil
	}

	s, ok := m.sessions[key{hostNQN, cntlID}]
	if !ok {
		return nil, ErrInvalidParam
	}
	s.mu.Lock()
	s.refs++
	s.mu.Unlock()
	return s, nil
}

// Detach releases one endpoint's reference on s, reaping the session
// from the table when its refcount reaches zero (spec §4.F).
func (m *Manager) Detach(s *Session) {
	s.mu.Lock()
	s.refs--
	dead := s.refs <= 0
	s.mu.Unlock()
	if !dead {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, key{s.HostNQN, s.CntlID})
}

// Lookup finds an existing session without affecting its refcount, for
// command dispatch on an already-attached endpoint.
func (m *Manager) Lookup(hostNQN string, cntlID uint16) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[key{hostNQN, cntlID}]
	return s, ok
}

// Count returns the number of live sessions, for metrics.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Tick advances every session's keep-alive countdown by one interval,
// invoking onExpire for each session whose countdown reaches zero. The
// expired session is removed from the table before onExpire runs so a
// racing Connect never observes a session mid-teardown; onExpire is
// responsible for tearing down the session's endpoints (closing its
// TCP connections), which lives outside this package.
func (m *Manager) Tick(onExpire func(s *Session)) {
	m.mu.Lock()
	expired := make([]*Session, 0)
	for k, s := range m.sessions {
		if s.decrementKato() {
			delete(m.sessions, k)
			expired = append(expired, s)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		onExpire(s)
	}
}

// All returns a snapshot of every live session, for NotifyAll.
func (m *Manager) All() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// ForHost returns every live session belonging to hostNQN, for
// NotifyHost.
func (m *Manager) ForHost(hostNQN string) []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Session, 0)
	for k, s := range m.sessions {
		if k.hostNQN == hostNQN {
			out = append(out, s)
		}
	}
	return out
}
