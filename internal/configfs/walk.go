package configfs

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/hreinecke/nvme-discd-go/internal/logger"
	"github.com/hreinecke/nvme-discd-go/internal/telemetry"
)

// walk performs the startup tree walk in HOSTS → SUBSYSTEMS → PORTS
// order (spec §4.B), matching original_source/inotify.c's ordering so
// that port→subsystem and subsystem→host link resolution always finds
// an already-known target.
func (r *Reflector) walk(ctx context.Context) error {
	ctx, span := telemetry.StartConfigfsSpan(ctx, "walk")
	defer span.End()

	hostsDir := filepath.Join(r.root, dirHosts)
	if err := r.addWatch(&watcher{Type: TypeHostDir, Path: hostsDir}); err != nil {
		return err
	}
	names, err := readDirNames(hostsDir)
	if err != nil {
		return fmt.Errorf("configfs: walk hosts: %w", err)
	}
	for _, name := range names {
		r.handleCreate(ctx, mustWatcher(r, hostsDir), name)
	}

	subsysDir := filepath.Join(r.root, dirSubsystems)
	if err := r.addWatch(&watcher{Type: TypeSubsysDir, Path: subsysDir}); err != nil {
		return err
	}
	names, err = readDirNames(subsysDir)
	if err != nil {
		return fmt.Errorf("configfs: walk subsystems: %w", err)
	}
	for _, name := range names {
		r.handleCreate(ctx, mustWatcher(r, subsysDir), name)
	}

	portsDir := filepath.Join(r.root, dirPorts)
	if err := r.addWatch(&watcher{Type: TypePortDir, Path: portsDir}); err != nil {
		return err
	}
	names, err = readDirNames(portsDir)
	if err != nil {
		return fmt.Errorf("configfs: walk ports: %w", err)
	}
	for _, name := range names {
		r.handleCreate(ctx, mustWatcher(r, portsDir), name)
	}

	logger.Info("configfs: initial walk complete", "root", r.root)
	return nil
}

func mustWatcher(r *Reflector, path string) *watcher {
	w, ok := r.lookup(path)
	if !ok {
		panic("configfs: watcher missing immediately after addWatch: " + path)
	}
	return w
}
