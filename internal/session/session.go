// Package session is the Controller Session registry (spec §4.F): a
// process-wide table keyed by (hostnqn, cntlid), grounded on
// pkg/controlplane/runtime's keyed-registry-under-one-mutex idiom and
// pkg/metadata/lock_manager.go's mutex-protected resource-table style.
package session

import (
	"errors"
	"sync"
)

// ErrInvalidParam is returned for a Connect whose cntlid does not match
// §4.F's lookup discipline (surfaced by the dispatcher as
// NVME_SC_CONNECT_INVALID_PARAM).
var ErrInvalidParam = errors.New("session: invalid cntlid for connect")

// Controller Configuration (CC) bits (NVMe Base Spec §3.1.4).
const (
	CCEn      uint32 = 1 << 0
	CCShnMask uint32 = 0x3 << 14
)

// Controller Status (CSTS) bits (NVMe Base Spec §3.1.5).
const (
	CSTSRDY          uint32 = 1 << 0
	CSTSShstMask     uint32 = 0x3 << 2
	CSTSShstComplete uint32 = 0x2 << 2
)

// AEN mask bits (NVMe Base Spec §5.21.1.11, Set Features FID 0Bh).
const (
	AENDiscoveryLogChange uint32 = 1 << 31
)

const (
	// DefaultKatoIntervalMS is the keep-alive watchdog tick period
	// (spec §4.G: "every kato_interval_ms (default 1000 ms)").
	DefaultKatoIntervalMS = 1000
	// DefaultMaxEndpoints bounds the negotiable queue count until Set
	// Features FID 07h narrows it.
	DefaultMaxEndpoints = 128
)

// Session is one ControllerSession: a logical controller identified by
// (HostNQN, CntlID), transient and in-memory only (spec §3).
type Session struct {
	HostNQN string
	CntlID  uint16

	mu             sync.Mutex
	cc             uint32
	csts           uint32
	katoMS         uint32
	katoTicks      int32
	katoIntervalMS uint32
	aenMask        uint32
	maxEndpoints   uint32
	refs           int32
	pendingAEN     []uint16 // outstanding Async Event Request command ids
	pendingEvent   bool     // a Discovery Log Change fired with no AEN request outstanding
}

// CC returns the current Controller Configuration register value.
func (s *Session) CC() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cc
}

// CSTS returns the current Controller Status register value.
func (s *Session) CSTS() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.csts
}

// SetCC applies a Property Set write to CC and derives CSTS from it per
// NVMe Base Spec §3.1.5 (spec §4.F).
func (s *Session) SetCC(cc uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cc = cc
	if cc&CCEn != 0 {
		s.csts |= CSTSRDY
	} else {
		s.csts &^= CSTSRDY
		s.csts = (s.csts &^ CSTSShstMask) | CSTSShstComplete
	}
	if cc&CCShnMask != 0 {
		s.csts = (s.csts &^ CSTSShstMask) | CSTSShstComplete
	}
}

// ResetKato restarts the keep-alive countdown from the session's
// current timeout, called on every Keep Alive command (spec §4.G).
func (s *Session) ResetKato() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetKatoLocked()
}

func (s *Session) resetKatoLocked() {
	interval := s.katoIntervalMS
	if interval == 0 {
		interval = DefaultKatoIntervalMS
		s.katoIntervalMS = interval
	}
	s.katoTicks = int32(s.katoMS / interval)
}

// SetKatoTimeout applies Set Features FID 0Fh: kato_ticks = kato_ms /
// kato_interval_ms (spec §4.G), and restarts the countdown.
func (s *Session) SetKatoTimeout(katoMS uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.katoMS = katoMS
	s.resetKatoLocked()
}

// decrementKato is called once per watchdog tick; it returns true when
// the countdown has just reached zero (session expired).
func (s *Session) decrementKato() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.katoTicks <= 0 {
		return false
	}
	s.katoTicks--
	return s.katoTicks == 0
}

// SetMaxEndpoints applies Set Features FID 07h's negotiated queue count.
func (s *Session) SetMaxEndpoints(n uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < s.maxEndpoints || s.maxEndpoints == 0 {
		s.maxEndpoints = n
	}
}

// MaxEndpoints returns the negotiated queue count.
func (s *Session) MaxEndpoints() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxEndpoints
}

// SetAENMask applies Set Features FID 0Bh.
func (s *Session) SetAENMask(mask uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aenMask = mask
}

func (s *Session) aenEnabled() bool {
	return s.aenMask&AENDiscoveryLogChange != 0
}
