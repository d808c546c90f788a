// Package configfs watches the kernel nvmet configfs tree and reflects
// its create/delete/modify events into the relational discovery store
// (spec §4.B), deriving genctr bumps through internal/discdb rather than
// sprinkling them through the event handlers (spec §9).
package configfs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/hreinecke/nvme-discd-go/internal/discdb"
	"github.com/hreinecke/nvme-discd-go/internal/logger"
	"github.com/hreinecke/nvme-discd-go/internal/telemetry"
)

const (
	dirHosts      = "hosts"
	dirPorts      = "ports"
	dirSubsystems = "subsystems"
	dirAllowedHosts = "allowed_hosts"
	dirPortSubsys   = "subsystems"
)

// PortBinder is the Interface Manager's reflector-facing surface: binding
// and unbinding TCP listeners in reaction to configfs port events (spec
// §4.B: "bind TCP listener if trtype=tcp" / "unbind listener").
type PortBinder interface {
	BindPort(ctx context.Context, port *discdb.Port) error
	UnbindPort(ctx context.Context, portID uint16) error
}

// AENNotifier lets the reflector trigger Asynchronous Event Notifications
// without depending on internal/session or internal/dispatch directly
// (spec §4.G "Async Event Notification").
type AENNotifier interface {
	// NotifyHost signals that a single host's topology changed.
	NotifyHost(hostNQN string)
	// NotifyAll signals that topology changed in a way that may affect
	// any host (subsystem/port level events).
	NotifyAll()
}

// Config configures the reflector.
type Config struct {
	// Root is the configfs tree root (default /sys/kernel/config/nvmet).
	Root string
}

func (c *Config) applyDefaults() {
	if c.Root == "" {
		c.Root = "/sys/kernel/config/nvmet"
	}
}

// Reflector is the fsnotify-based watch tree described by spec §4.B.
type Reflector struct {
	root   string
	store  discdb.Store
	binder PortBinder
	aen    AENNotifier

	fsw *fsnotify.Watcher

	mu  sync.Mutex
	reg *registry

	done chan struct{}
	wg   sync.WaitGroup
}

// New creates a reflector. Call Start to perform the initial walk and
// begin watching.
func New(cfg Config, store discdb.Store, binder PortBinder, aen AENNotifier) (*Reflector, error) {
	cfg.applyDefaults()
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("configfs: create fsnotify watcher: %w", err)
	}
	return &Reflector{
		root:   cfg.Root,
		store:  store,
		binder: binder,
		aen:    aen,
		fsw:    fsw,
		reg:    newRegistry(),
		done:   make(chan struct{}),
	}, nil
}

// Start performs the initial walk (HOSTS → SUBSYSTEMS → PORTS, per spec
// §4.B so link resolution finds targets) and then starts the event loop
// in a background goroutine.
func (r *Reflector) Start(ctx context.Context) error {
	if err := r.walk(ctx); err != nil {
		return err
	}
	r.wg.Add(1)
	go r.loop(ctx)
	return nil
}

// Stop terminates the event loop and releases the inotify descriptor.
func (r *Reflector) Stop() error {
	close(r.done)
	err := r.fsw.Close()
	r.wg.Wait()
	return err
}

// addWatch registers a watcher for a path if not already present (spec
// §4.B: "duplicate-add is idempotent").
func (r *Reflector) addWatch(w *watcher) error {
	r.mu.Lock()
	added := r.reg.add(w)
	r.mu.Unlock()
	if !added {
		return nil
	}
	if err := r.fsw.Add(w.Path); err != nil {
		r.mu.Lock()
		r.reg.remove(w.Path)
		r.mu.Unlock()
		return fmt.Errorf("configfs: watch %s: %w", w.Path, err)
	}
	logger.Debug("configfs watch added", "path", w.Path, "type", w.Type.String())
	return nil
}

func (r *Reflector) removeWatch(path string) {
	r.mu.Lock()
	r.reg.remove(path)
	r.mu.Unlock()
	_ = r.fsw.Remove(path)
}

func (r *Reflector) lookup(path string) (*watcher, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reg.get(path)
}

// loop drains fsnotify events until Stop is called or ctx is cancelled,
// forcing a full rescan on inotify queue overflow (spec §4.B failure
// semantics).
func (r *Reflector) loop(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		case ev, ok := <-r.fsw.Events:
			if !ok {
				return
			}
			r.handleEvent(ctx, ev)
		case err, ok := <-r.fsw.Errors:
			if !ok {
				return
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				logger.Warn("configfs: inotify queue overflow, forcing full rescan")
				if rerr := r.rescan(ctx); rerr != nil {
					logger.Error("configfs: rescan failed", "error", rerr)
				}
				continue
			}
			logger.Debug("configfs: watcher error", "error", err)
		}
	}
}

// rescan tears down every watcher and re-walks the tree from scratch
// (spec §4.B: "an inotify queue overflow MUST cause a full rescan").
func (r *Reflector) rescan(ctx context.Context) error {
	ctx, span := telemetry.StartConfigfsSpan(ctx, "rescan")
	defer span.End()

	r.mu.Lock()
	paths := make([]string, 0, len(r.reg.byPath))
	for p := range r.reg.byPath {
		paths = append(paths, p)
	}
	r.reg = newRegistry()
	r.mu.Unlock()

	for _, p := range paths {
		_ = r.fsw.Remove(p)
	}

	return r.walk(ctx)
}

// handleEvent routes one fsnotify event by looking up the watcher for
// either the event path itself (a self-delete on a directly-watched
// node) or its parent directory (a create/delete/modify of a child).
func (r *Reflector) handleEvent(ctx context.Context, ev fsnotify.Event) {
	ctx, span := telemetry.StartConfigfsSpan(ctx, "event", telemetry.CfgPath(ev.Name))
	defer span.End()

	if w, ok := r.lookup(ev.Name); ok && ev.Op.Has(fsnotify.Remove) {
		r.handleDeleteSelf(ctx, w)
		return
	}

	parentPath := filepath.Dir(ev.Name)
	parent, ok := r.lookup(parentPath)
	if !ok {
		return
	}
	name := filepath.Base(ev.Name)

	switch {
	case ev.Op.Has(fsnotify.Create):
		r.handleCreate(ctx, parent, name)
	case ev.Op.Has(fsnotify.Remove):
		r.handleDelete(ctx, parent, name)
	case ev.Op.Has(fsnotify.Write):
		r.handleModify(ctx, parent, name)
	}
}

func readDirNames(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

func parsePortID(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("configfs: invalid port id %q: %w", s, err)
	}
	return uint16(v), nil
}
