// Package iface is the Interface Manager (spec §4.C): it binds one TCP
// listener per distinct (trtype=tcp, traddr, trsvcid) endpoint discovered
// by internal/configfs and hands accepted connections to a
// ConnectionFactory supplied by the caller (internal/dispatch), grounded on
// pkg/adapter/base.go's BaseAdapter.ServeWithFactory accept-loop pattern.
package iface

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/hreinecke/nvme-discd-go/internal/discdb"
	"github.com/hreinecke/nvme-discd-go/internal/logger"
)

// ConnectionHandler serves one accepted connection until it closes or ctx
// is cancelled.
type ConnectionHandler interface {
	Serve(ctx context.Context)
}

// ConnectionFactory creates a ConnectionHandler for a freshly accepted TCP
// connection on a given port id.
type ConnectionFactory interface {
	NewConnection(conn net.Conn, portID uint16) ConnectionHandler
}

// Config configures every listener the manager binds.
type Config struct {
	// ShutdownTimeout bounds how long UnbindPort waits for active
	// connections before force-closing them.
	ShutdownTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
}

// Manager tracks one portListener per bound port id and implements
// configfs.PortBinder.
type Manager struct {
	factory ConnectionFactory
	cfg     Config

	mu        sync.Mutex
	listeners map[uint16]*portListener
	byAddr    map[string]uint16
}

// NewManager creates an Interface Manager with no listeners bound.
func NewManager(factory ConnectionFactory, cfg Config) *Manager {
	cfg.applyDefaults()
	return &Manager{
		factory:   factory,
		cfg:       cfg,
		listeners: make(map[uint16]*portListener),
		byAddr:    make(map[string]uint16),
	}
}

// BindPort opens a TCP listener for port, a no-op for non-TCP transports
// and for a port id already bound (spec §8 invariant 5, idempotent
// replay). Binding the same (traddr,trsvcid) endpoint under a second
// port id fails with EBUSY (spec §4.C).
func (m *Manager) BindPort(ctx context.Context, port *discdb.Port) error {
	if port.TrType != discdb.TrTypeTCP {
		return nil
	}
	addr := net.JoinHostPort(port.TrAddr, port.TrSvcID)

	m.mu.Lock()
	if _, exists := m.listeners[port.PortID]; exists {
		m.mu.Unlock()
		return nil
	}
	if owner, exists := m.byAddr[addr]; exists && owner != port.PortID {
		m.mu.Unlock()
		return fmt.Errorf("iface: %s already bound by port %d: %w", addr, owner, errEBUSY)
	}
	m.mu.Unlock()

	pl := newPortListener(port.PortID, addr, m.factory, m.cfg)
	if err := pl.start(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	m.listeners[port.PortID] = pl
	m.byAddr[addr] = port.PortID
	m.mu.Unlock()

	logger.Info("iface: port bound", "port", port.PortID, "addr", addr)
	return nil
}

// UnbindPort closes the listener for portID, if any, waiting up to
// Config.ShutdownTimeout for in-flight connections to finish.
func (m *Manager) UnbindPort(ctx context.Context, portID uint16) error {
	m.mu.Lock()
	pl, ok := m.listeners[portID]
	if ok {
		delete(m.listeners, portID)
		delete(m.byAddr, pl.addr)
	}
	m.mu.Unlock()
	if !ok {
		return nil
	}
	logger.Info("iface: port unbound", "port", portID, "addr", pl.addr)
	return pl.stop(ctx)
}

// Shutdown unbinds every currently bound port, used on controller
// shutdown.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	ids := make([]uint16, 0, len(m.listeners))
	for id := range m.listeners {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	var firstErr error
	for _, id := range ids {
		if err := m.UnbindPort(ctx, id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ActivePorts returns the port ids currently bound, for status reporting.
func (m *Manager) ActivePorts() []uint16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]uint16, 0, len(m.listeners))
	for id := range m.listeners {
		ids = append(ids, id)
	}
	return ids
}
