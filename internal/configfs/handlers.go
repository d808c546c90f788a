package configfs

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/hreinecke/nvme-discd-go/internal/discdb"
	"github.com/hreinecke/nvme-discd-go/internal/logger"
)

// handleCreate dispatches a CREATE event by the type of the directory it
// occurred in, mirroring original_source/inotify.c's process_inotify_event
// CREATE branch.
func (r *Reflector) handleCreate(ctx context.Context, parent *watcher, name string) {
	switch parent.Type {
	case TypeHostDir:
		r.onHostCreate(ctx, parent.Path, name)
	case TypeSubsysDir:
		r.onSubsysCreate(ctx, parent.Path, name)
	case TypePortDir:
		r.onPortCreate(ctx, parent.Path, name)
	case TypeSubsysHostsDir:
		r.onSubsysHostCreate(ctx, parent, name)
	case TypePortSubsysDir:
		r.onPortSubsysCreate(ctx, parent, name)
	}
}

// handleDelete dispatches a DELETE event for a child removed from a
// watched directory (not the directory itself — that is DELETE_SELF,
// handled by handleDeleteSelf).
func (r *Reflector) handleDelete(ctx context.Context, parent *watcher, name string) {
	switch parent.Type {
	case TypeSubsysHostsDir:
		r.onSubsysHostDelete(ctx, parent, name)
	case TypePortSubsysDir:
		r.onPortSubsysDelete(ctx, parent, name)
	}
}

// handleModify dispatches a MODIFY (write) event for an attribute file,
// whose parent directory is the node the attribute belongs to.
func (r *Reflector) handleModify(ctx context.Context, parent *watcher, name string) {
	switch parent.Type {
	case TypeSubsys:
		if name == attrAllowAnyHost {
			r.onSubsysAllowAnyModify(ctx, parent)
		}
	case TypePort:
		if strings.HasPrefix(name, attrPrefixPort) {
			r.onPortAttrModify(ctx, parent, name)
		}
	}
}

// handleDeleteSelf dispatches a DELETE_SELF event: the node itself, not
// one of its children, has been removed from configfs.
func (r *Reflector) handleDeleteSelf(ctx context.Context, w *watcher) {
	switch w.Type {
	case TypeHost:
		if err := r.store.DeleteHost(ctx, w.HostNQN); err != nil {
			logger.Error("configfs: delete host", "host", w.HostNQN, "error", err)
		}
		r.removeWatch(w.Path)
	case TypeSubsys:
		if err := r.store.DeleteSubsys(ctx, w.SubsysNQN); err != nil {
			logger.Error("configfs: delete subsys", "subsys", w.SubsysNQN, "error", err)
		}
		r.removeWatch(w.Path)
		r.removeWatch(filepath.Join(w.Path, dirAllowedHosts))
		r.aen.NotifyAll()
	case TypePort:
		if err := r.store.DeletePort(ctx, w.PortID); err != nil {
			logger.Error("configfs: delete port", "port", w.PortID, "error", err)
		}
		if err := r.binder.UnbindPort(ctx, w.PortID); err != nil {
			logger.Error("configfs: unbind port", "port", w.PortID, "error", err)
		}
		r.removeWatch(w.Path)
		r.removeWatch(filepath.Join(w.Path, dirPortSubsys))
		r.aen.NotifyAll()
	default:
		logger.Warn("configfs: unexpected DELETE_SELF", "path", w.Path, "type", w.Type.String())
		r.removeWatch(w.Path)
	}
}

func (r *Reflector) onHostCreate(ctx context.Context, hostsDir, name string) {
	if err := r.store.CreateHost(ctx, name); err != nil {
		logger.Error("configfs: create host", "host", name, "error", err)
		return
	}
	path := filepath.Join(hostsDir, name)
	if err := r.addWatch(&watcher{Type: TypeHost, Path: path, HostNQN: name}); err != nil {
		logger.Error("configfs: watch host", "host", name, "error", err)
	}
}

func (r *Reflector) onSubsysCreate(ctx context.Context, subsysDir, name string) {
	path := filepath.Join(subsysDir, name)
	allowAny := readAttrBool(path, attrAllowAnyHost)

	if err := r.store.CreateSubsys(ctx, name, allowAny); err != nil {
		logger.Error("configfs: create subsys", "subsys", name, "error", err)
		return
	}
	if err := r.addWatch(&watcher{Type: TypeSubsys, Path: path, SubsysNQN: name}); err != nil {
		logger.Error("configfs: watch subsys", "subsys", name, "error", err)
	}

	hostsDir := filepath.Join(path, dirAllowedHosts)
	if err := r.addWatch(&watcher{Type: TypeSubsysHostsDir, Path: hostsDir, SubsysNQN: name}); err != nil {
		logger.Error("configfs: watch allowed_hosts", "subsys", name, "error", err)
		return
	}
	names, err := readDirNames(hostsDir)
	if err != nil {
		logger.Debug("configfs: read allowed_hosts", "subsys", name, "error", err)
	}
	for _, hostNQN := range names {
		if err := r.store.LinkHostSubsys(ctx, hostNQN, name); err != nil {
			logger.Error("configfs: link host_subsys during walk", "host", hostNQN, "subsys", name, "error", err)
		}
	}

	if allowAny {
		r.aen.NotifyAll()
	}
}

func (r *Reflector) onSubsysHostCreate(ctx context.Context, parent *watcher, hostNQN string) {
	if err := r.store.LinkHostSubsys(ctx, hostNQN, parent.SubsysNQN); err != nil {
		logger.Error("configfs: link host_subsys", "host", hostNQN, "subsys", parent.SubsysNQN, "error", err)
		return
	}
	r.aen.NotifyHost(hostNQN)
}

func (r *Reflector) onSubsysHostDelete(ctx context.Context, parent *watcher, hostNQN string) {
	if err := r.store.UnlinkHostSubsys(ctx, hostNQN, parent.SubsysNQN); err != nil {
		logger.Error("configfs: unlink host_subsys", "host", hostNQN, "subsys", parent.SubsysNQN, "error", err)
		return
	}
	r.aen.NotifyHost(hostNQN)
}

func (r *Reflector) onSubsysAllowAnyModify(ctx context.Context, w *watcher) {
	allow := readAttrBool(w.Path, attrAllowAnyHost)
	if err := r.store.SetAllowAnyHost(ctx, w.SubsysNQN, allow); err != nil {
		logger.Error("configfs: set allow_any_host", "subsys", w.SubsysNQN, "error", err)
		return
	}
	r.aen.NotifyAll()
}

func (r *Reflector) onPortCreate(ctx context.Context, portsDir, name string) {
	portID, err := parsePortID(name)
	if err != nil {
		logger.Error("configfs: parse port id", "name", name, "error", err)
		return
	}
	path := filepath.Join(portsDir, name)
	port := readPortAttrs(path, portID)

	if err := r.store.CreatePort(ctx, port); err != nil {
		logger.Error("configfs: create port", "port", portID, "error", err)
		return
	}
	if err := r.addWatch(&watcher{Type: TypePort, Path: path, PortID: portID}); err != nil {
		logger.Error("configfs: watch port", "port", portID, "error", err)
	}

	subsysDir := filepath.Join(path, dirPortSubsys)
	if err := r.addWatch(&watcher{Type: TypePortSubsysDir, Path: subsysDir, PortID: portID}); err != nil {
		logger.Error("configfs: watch port subsystems", "port", portID, "error", err)
		return
	}
	names, err := readDirNames(subsysDir)
	if err != nil {
		logger.Debug("configfs: read port subsystems", "port", portID, "error", err)
	}
	for _, subsysNQN := range names {
		if err := r.store.LinkSubsysPort(ctx, subsysNQN, portID); err != nil {
			logger.Error("configfs: link subsys_port during walk", "subsys", subsysNQN, "port", portID, "error", err)
		}
	}

	if port.TrType == discdb.TrTypeTCP {
		if err := r.binder.BindPort(ctx, port); err != nil {
			logger.Error("configfs: bind port", "port", portID, "error", err)
		}
	}
}

func (r *Reflector) onPortAttrModify(ctx context.Context, w *watcher, attrName string) {
	value := readAttr(w.Path, attrName)
	if err := r.store.UpdatePortAttr(ctx, w.PortID, attrName, value); err != nil {
		logger.Error("configfs: update port attr", "port", w.PortID, "attr", attrName, "error", err)
		return
	}
	r.aen.NotifyAll()
}

func (r *Reflector) onPortSubsysCreate(ctx context.Context, parent *watcher, subsysNQN string) {
	if err := r.store.LinkSubsysPort(ctx, subsysNQN, parent.PortID); err != nil {
		logger.Error("configfs: link subsys_port", "subsys", subsysNQN, "port", parent.PortID, "error", err)
		return
	}
	r.aen.NotifyAll()
}

func (r *Reflector) onPortSubsysDelete(ctx context.Context, parent *watcher, subsysNQN string) {
	if err := r.store.UnlinkSubsysPort(ctx, subsysNQN, parent.PortID); err != nil {
		logger.Error("configfs: unlink subsys_port", "subsys", subsysNQN, "port", parent.PortID, "error", err)
		return
	}
	r.aen.NotifyAll()
}

// readPortAttrs reads every addr_* attribute file for a newly discovered
// port directory, mirroring original_source/inotify.c's port_read_attr().
func readPortAttrs(dir string, portID uint16) *discdb.Port {
	port := &discdb.Port{PortID: portID}
	for _, name := range portAttrs {
		value := readAttr(dir, attrPrefixPort+name)
		switch name {
		case "trtype":
			port.TrType = discdb.TrType(value)
		case "traddr":
			port.TrAddr = value
		case "trsvcid":
			port.TrSvcID = value
		case "adrfam":
			port.AdrFam = discdb.AdrFam(value)
		case "treq":
			port.TReq = discdb.TReq(value)
		case "tsas":
			port.Tsas = value
		}
	}
	return port
}
