package session

import (
	"context"
	"time"
)

// RunWatchdog ticks the keep-alive countdown every katoIntervalMS until
// ctx is cancelled, invoking onExpire for each session whose countdown
// reaches zero (spec §4.F: "a KATO countdown watchdog tears down a
// session's endpoints on expiry"). Intended to run in its own
// goroutine for the lifetime of the controller process.
func (m *Manager) RunWatchdog(ctx context.Context, onExpire func(s *Session)) {
	interval := time.Duration(m.katoIntervalMS) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Tick(onExpire)
		}
	}
}
