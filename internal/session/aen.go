package session

// AENCompleter completes a previously-submitted Async Event Request
// command with a given completion status/result. It is implemented by
// the dispatcher, which owns the queue tag table and the PDU framer
// needed to actually write a CapsuleResp back to the host.
type AENCompleter interface {
	CompleteAEN(s *Session, commandID uint16, result uint32)
}

// AENResultDiscoveryLogChange is the Async Event Request completion
// DW0 value for a Discovery Log Page Change notification (NVMe-oF:
// AsyncEventType=Notice(0x2), AsyncEventInfo=0x0F "Discovery Log Page
// Change", LogPageIdentifier=0x70, the Discovery log page).
const AENResultDiscoveryLogChange uint32 = 0x70<<16 | 0x0F<<8 | 0x02

// SetCompleter wires the manager to the dispatcher's AEN completion
// path. Must be called once before any NotifyHost/NotifyAll traffic.
func (m *Manager) SetCompleter(c AENCompleter) {
	m.mu.Lock()
	m.completer = c
	m.mu.Unlock()
}

// PostAEN registers commandID as an outstanding Async Event Request on
// s, per the implicit Async Event Request admin opcode (spec §4.G,
// Glossary "AEN"). If a Discovery Log Change notification is already
// pending (posted before any AEN request arrived), it is completed
// immediately instead of being queued.
func (m *Manager) PostAEN(s *Session, commandID uint16) {
	s.mu.Lock()
	pending := s.pendingEvent
	if pending {
		s.pendingEvent = false
	} else {
		s.pendingAEN = append(s.pendingAEN, commandID)
	}
	completer := m.completerRef()
	s.mu.Unlock()

	if pending && completer != nil {
		completer.CompleteAEN(s, commandID, AENResultDiscoveryLogChange)
	}
}

func (m *Manager) completerRef() AENCompleter {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.completer
}

// notify completes the oldest pending AEN request on s with a
// Discovery Log Change notification, or, if none is outstanding, sets
// pendingEvent so the next Async Event Request completes immediately.
func (m *Manager) notify(s *Session) {
	s.mu.Lock()
	if !s.aenEnabled() {
		s.mu.Unlock()
		return
	}
	var commandID uint16
	var found bool
	if len(s.pendingAEN) > 0 {
		commandID = s.pendingAEN[0]
		s.pendingAEN = s.pendingAEN[1:]
		found = true
	} else {
		s.pendingEvent = true
	}
	completer := m.completerRef()
	s.mu.Unlock()

	if found && completer != nil {
		completer.CompleteAEN(s, commandID, AENResultDiscoveryLogChange)
	}
}

// NotifyHost implements configfs.AENNotifier: wakes every live session
// belonging to hostNQN (spec §4.G "posts a Discovery Log Page Change
// AEN to hosts with that event enabled").
func (m *Manager) NotifyHost(hostNQN string) {
	for _, s := range m.ForHost(hostNQN) {
		m.notify(s)
	}
}

// NotifyAll implements configfs.AENNotifier: wakes every live session,
// used for topology changes not scoped to a single host (subsystem or
// port add/remove, allow_any_host toggles).
func (m *Manager) NotifyAll() {
	for _, s := range m.All() {
		m.notify(s)
	}
}
