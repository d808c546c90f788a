package iface

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/hreinecke/nvme-discd-go/internal/logger"
)

// errEBUSY is returned (wrapped) when a second port tries to bind an
// already-bound (traddr,trsvcid) endpoint.
var errEBUSY = unix.EBUSY

// portListener owns one TCP listener and its accepted connections,
// grounded on pkg/adapter/base.go's BaseAdapter: shutdown channel,
// WaitGroup-tracked connections, sync.Once shutdown, sync.Map of active
// connections for forced closure.
type portListener struct {
	portID  uint16
	addr    string
	factory ConnectionFactory
	cfg     Config

	listener net.Listener

	activeConns  sync.WaitGroup
	shutdownOnce sync.Once
	shutdown     chan struct{}
	connCount    atomic.Int32
	connections  sync.Map

	shutdownCtx    context.Context
	cancelRequests context.CancelFunc
}

func newPortListener(portID uint16, addr string, factory ConnectionFactory, cfg Config) *portListener {
	shutdownCtx, cancel := context.WithCancel(context.Background())
	return &portListener{
		portID:         portID,
		addr:           addr,
		factory:        factory,
		cfg:            cfg,
		shutdown:       make(chan struct{}),
		shutdownCtx:    shutdownCtx,
		cancelRequests: cancel,
	}
}

// reuseAddrControl sets SO_REUSEADDR on the listening socket so a
// restarted controller can rebind a port still in TIME_WAIT.
func reuseAddrControl(_, _ string, c syscall.RawConn) error {
	var ctrlErr error
	err := c.Control(func(fd uintptr) {
		ctrlErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return ctrlErr
}

func (p *portListener) start(ctx context.Context) error {
	lc := net.ListenConfig{Control: reuseAddrControl}
	ln, err := lc.Listen(ctx, "tcp", p.addr)
	if err != nil {
		return fmt.Errorf("iface: listen %s: %w", p.addr, err)
	}
	p.listener = ln
	go p.acceptLoop()
	return nil
}

func (p *portListener) acceptLoop() {
	for {
		conn, err := p.listener.Accept()
		if err != nil {
			select {
			case <-p.shutdown:
				return
			default:
				logger.Debug("iface: accept error", "port", p.portID, "error", err)
				continue
			}
		}

		if tcp, ok := conn.(*net.TCPConn); ok {
			if err := tcp.SetNoDelay(true); err != nil {
				logger.Debug("iface: set TCP_NODELAY", "port", p.portID, "error", err)
			}
		}

		p.activeConns.Add(1)
		p.connCount.Add(1)
		addr := conn.RemoteAddr().String()
		p.connections.Store(addr, conn)

		logger.Debug("iface: connection accepted", "port", p.portID, "address", addr, "active", p.connCount.Load())

		handler := p.factory.NewConnection(conn, p.portID)
		go func(addr string, c net.Conn) {
			defer func() {
				p.connections.Delete(addr)
				p.activeConns.Done()
				p.connCount.Add(-1)
				logger.Debug("iface: connection closed", "port", p.portID, "address", addr, "active", p.connCount.Load())
			}()
			handler.Serve(p.shutdownCtx)
		}(addr, conn)
	}
}

// stop closes the listener and waits up to cfg.ShutdownTimeout for
// in-flight connections, force-closing any that remain.
func (p *portListener) stop(ctx context.Context) error {
	p.shutdownOnce.Do(func() {
		close(p.shutdown)
		if p.listener != nil {
			_ = p.listener.Close()
		}
		p.interruptBlockingReads()
		p.cancelRequests()
	})

	done := make(chan struct{})
	go func() {
		p.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(p.cfg.ShutdownTimeout):
		remaining := p.connCount.Load()
		p.forceCloseConnections()
		return fmt.Errorf("iface: port %d shutdown timeout, %d connections force-closed", p.portID, remaining)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *portListener) interruptBlockingReads() {
	deadline := time.Now().Add(100 * time.Millisecond)
	p.connections.Range(func(_, value any) bool {
		if conn, ok := value.(net.Conn); ok {
			_ = conn.SetReadDeadline(deadline)
		}
		return true
	})
}

func (p *portListener) forceCloseConnections() {
	p.connections.Range(func(key, value any) bool {
		if conn, ok := value.(net.Conn); ok {
			_ = conn.Close()
			logger.Debug("iface: force-closed connection", "port", p.portID, "address", key)
		}
		return true
	})
}
