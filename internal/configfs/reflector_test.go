package configfs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hreinecke/nvme-discd-go/internal/discdb"
)

type fakeBinder struct {
	bound   map[uint16]*discdb.Port
	unbound []uint16
}

func newFakeBinder() *fakeBinder {
	return &fakeBinder{bound: make(map[uint16]*discdb.Port)}
}

func (b *fakeBinder) BindPort(ctx context.Context, port *discdb.Port) error {
	b.bound[port.PortID] = port
	return nil
}

func (b *fakeBinder) UnbindPort(ctx context.Context, portID uint16) error {
	delete(b.bound, portID)
	b.unbound = append(b.unbound, portID)
	return nil
}

type fakeAEN struct {
	hostNotifies []string
	allNotifies  int
}

func (f *fakeAEN) NotifyHost(hostNQN string) { f.hostNotifies = append(f.hostNotifies, hostNQN) }
func (f *fakeAEN) NotifyAll()                { f.allNotifies++ }

// newFakeTree lays out a minimal nvmet-style configfs tree: one host, one
// subsystem (allow_any_host=0) with nqn.host1 in allowed_hosts, and one TCP
// port with nqn.sub1 mapped under ports/1/subsystems.
func newFakeTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	mustMkdir(t, filepath.Join(root, dirHosts, "nqn.host1"))

	subsysDir := filepath.Join(root, dirSubsystems, "nqn.sub1")
	mustMkdir(t, subsysDir)
	mustWriteFile(t, filepath.Join(subsysDir, attrAllowAnyHost), "0")
	mustMkdir(t, filepath.Join(subsysDir, dirAllowedHosts, "nqn.host1"))

	portDir := filepath.Join(root, dirPorts, "1")
	mustMkdir(t, portDir)
	mustWriteFile(t, filepath.Join(portDir, "addr_trtype"), "tcp")
	mustWriteFile(t, filepath.Join(portDir, "addr_traddr"), "10.0.0.1")
	mustWriteFile(t, filepath.Join(portDir, "addr_trsvcid"), "4420")
	mustWriteFile(t, filepath.Join(portDir, "addr_adrfam"), "ipv4")
	mustWriteFile(t, filepath.Join(portDir, "addr_treq"), "not required")
	mustWriteFile(t, filepath.Join(portDir, "addr_tsas"), "")
	mustMkdir(t, filepath.Join(portDir, dirPortSubsys, "nqn.sub1"))

	return root
}

func mustMkdir(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(path, 0o755))
}

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newTestReflector(t *testing.T, root string) (*Reflector, discdb.Store, *fakeBinder, *fakeAEN) {
	t.Helper()
	store, err := discdb.New(&discdb.Config{Backend: discdb.BackendSQLite, SQLite: discdb.SQLiteConfig{Path: ":memory:"}})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	binder := newFakeBinder()
	aen := &fakeAEN{}
	r, err := New(Config{Root: root}, store, binder, aen)
	require.NoError(t, err)
	t.Cleanup(func() { r.Stop() })

	return r, store, binder, aen
}

func TestReflector_WalkPopulatesStoreAndBindsPort(t *testing.T) {
	t.Parallel()

	root := newFakeTree(t)
	r, store, binder, _ := newTestReflector(t, root)
	ctx := context.Background()

	require.NoError(t, r.Start(ctx))

	entries, err := store.HostDiscEntries(ctx, "nqn.host1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "nqn.sub1", entries[0].SubNQN)

	require.Contains(t, binder.bound, uint16(1))
}

func TestReflector_WalkIsIdempotentOnReplay(t *testing.T) {
	t.Parallel()

	root := newFakeTree(t)
	r, store, _, _ := newTestReflector(t, root)
	ctx := context.Background()

	require.NoError(t, r.walk(ctx))
	require.NoError(t, r.walk(ctx))

	genctr, err := store.HostGenctr(ctx, "nqn.host1")
	require.NoError(t, err)
	// The first walk links host1 to nqn.sub1 and nqn.sub1 to port 1 (one
	// bump each); the second walk finds both links present and adds none.
	require.Equal(t, uint64(2), genctr, "a second walk over the same tree must not bump genctr again")
}

func TestReflector_PortAttrModifyBumpsGenctrAndNotifies(t *testing.T) {
	t.Parallel()

	root := newFakeTree(t)
	r, store, _, aen := newTestReflector(t, root)
	ctx := context.Background()
	require.NoError(t, r.Start(ctx))

	before, err := store.HostGenctr(ctx, "nqn.host1")
	require.NoError(t, err)

	mustWriteFile(t, filepath.Join(root, dirPorts, "1", "addr_trsvcid"), "8009")

	require.Eventually(t, func() bool {
		after, err := store.HostGenctr(ctx, "nqn.host1")
		return err == nil && after > before
	}, 2*time.Second, 20*time.Millisecond, "port attribute modify should bump host1's genctr")

	require.Eventually(t, func() bool {
		return aen.allNotifies > 0
	}, 2*time.Second, 20*time.Millisecond, "port attribute modify should trigger NotifyAll")

	port, err := store.GetPort(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "8009", port.TrSvcID)
}

func TestReflector_HostDirDeleteRemovesHostAndWatch(t *testing.T) {
	t.Parallel()

	root := newFakeTree(t)
	r, store, _, _ := newTestReflector(t, root)
	ctx := context.Background()
	require.NoError(t, r.Start(ctx))

	require.NoError(t, os.RemoveAll(filepath.Join(root, dirHosts, "nqn.host1")))

	require.Eventually(t, func() bool {
		exists, err := store.HostExists(ctx, "nqn.host1")
		return err == nil && !exists
	}, 2*time.Second, 20*time.Millisecond, "deleting the host directory should delete the host row")

	require.Eventually(t, func() bool {
		_, watched := r.lookup(filepath.Join(root, dirHosts, "nqn.host1"))
		return !watched
	}, 2*time.Second, 20*time.Millisecond, "deleting the host directory should drop its watch")
}

func TestReflector_PortDeleteUnbindsAndNotifies(t *testing.T) {
	t.Parallel()

	root := newFakeTree(t)
	r, store, binder, aen := newTestReflector(t, root)
	ctx := context.Background()
	require.NoError(t, r.Start(ctx))
	require.Contains(t, binder.bound, uint16(1))

	require.NoError(t, os.RemoveAll(filepath.Join(root, dirPorts, "1")))

	require.Eventually(t, func() bool {
		_, ok := binder.bound[1]
		return !ok
	}, 2*time.Second, 20*time.Millisecond, "deleting the port directory should unbind its listener")

	require.Eventually(t, func() bool {
		return aen.allNotifies > 0
	}, 2*time.Second, 20*time.Millisecond, "deleting the port should notify all hosts")

	_, err := store.GetPort(ctx, 1)
	require.ErrorIs(t, err, discdb.ErrPortNotFound)
}

func TestReflector_SubsysHostsCreateNotifiesSingleHost(t *testing.T) {
	t.Parallel()

	root := newFakeTree(t)
	r, store, _, aen := newTestReflector(t, root)
	ctx := context.Background()
	require.NoError(t, r.Start(ctx))

	mustMkdir(t, filepath.Join(root, dirHosts, "nqn.host2"))
	require.Eventually(t, func() bool {
		exists, err := store.HostExists(ctx, "nqn.host2")
		return err == nil && exists
	}, 2*time.Second, 20*time.Millisecond, "host2 directory create should reach the store first")

	mustMkdir(t, filepath.Join(root, dirSubsystems, "nqn.sub1", dirAllowedHosts, "nqn.host2"))

	require.Eventually(t, func() bool {
		for _, h := range aen.hostNotifies {
			if h == "nqn.host2" {
				return true
			}
		}
		return false
	}, 2*time.Second, 20*time.Millisecond, "linking a host into allowed_hosts should notify that host specifically")
}
