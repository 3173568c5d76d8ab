package schedule

import (
	"context"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tempodel/internal/logging"
)

func newTestMarker(fsys afero.Fs) *marker {
	return &marker{
		fs:      fsys,
		path:    "/state/schedule.json.lock",
		retries: 3,
		delay:   time.Millisecond,
		logger:  logging.NewNop(),
		now:     time.Now,
		alive:   func(int) bool { return true },
	}
}

func TestMarkerAcquireWritesOwnerAndReleases(t *testing.T) {
	fsys := afero.NewMemMapFs()
	m := newTestMarker(fsys)

	release, acquired := m.acquire(context.Background(), "daemon", "save")
	require.True(t, acquired)

	data, err := afero.ReadFile(fsys, m.path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "daemon_save_"+strconv.Itoa(os.Getpid())+" "), string(data))

	release()
	exists, _ := afero.Exists(fsys, m.path)
	assert.False(t, exists)
}

func TestMarkerProceedsWhenHeldByLiveProcess(t *testing.T) {
	fsys := afero.NewMemMapFs()
	m := newTestMarker(fsys)
	require.NoError(t, afero.WriteFile(fsys, m.path, []byte("cli_load_1 other"), 0o644))

	release, acquired := m.acquire(context.Background(), "daemon", "load")
	assert.False(t, acquired)
	release()

	data, err := afero.ReadFile(fsys, m.path)
	require.NoError(t, err, "foreign marker must survive")
	assert.Equal(t, "cli_load_1 other", string(data))
}

func TestMarkerRemovesDeadOwner(t *testing.T) {
	fsys := afero.NewMemMapFs()
	m := newTestMarker(fsys)
	m.alive = func(pid int) bool { return pid != 999999 }
	require.NoError(t, afero.WriteFile(fsys, m.path, []byte("checker_save_999999"), 0o644))

	release, acquired := m.acquire(context.Background(), "cli", "save")
	require.True(t, acquired)
	release()
}

func TestMarkerRemovesExpiredMarker(t *testing.T) {
	fsys := afero.NewMemMapFs()
	m := newTestMarker(fsys)
	m.staleAfter = time.Minute
	require.NoError(t, afero.WriteFile(fsys, m.path, []byte("gui_load_1"), 0o644))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, fsys.Chtimes(m.path, old, old))

	_, acquired := m.acquire(context.Background(), "cli", "load")
	assert.True(t, acquired)
}

func TestMarkerReleaseLeavesReplacedMarker(t *testing.T) {
	fsys := afero.NewMemMapFs()
	m := newTestMarker(fsys)

	release, acquired := m.acquire(context.Background(), "cli", "save")
	require.True(t, acquired)
	require.NoError(t, afero.WriteFile(fsys, m.path, []byte("daemon_load_2 new"), 0o644))

	release()
	exists, _ := afero.Exists(fsys, m.path)
	assert.True(t, exists)
}

func TestMarkerPID(t *testing.T) {
	pid, ok := markerPID("checker_load_1234 8c9e")
	require.True(t, ok)
	assert.Equal(t, 1234, pid)

	pid, ok = markerPID("gui_save_77")
	require.True(t, ok)
	assert.Equal(t, 77, pid)

	_, ok = markerPID("garbage")
	assert.False(t, ok)
}

func TestMarkerGivesUpOnCancelledContext(t *testing.T) {
	fsys := afero.NewMemMapFs()
	m := newTestMarker(fsys)
	m.retries = 1000
	m.delay = time.Hour
	require.NoError(t, afero.WriteFile(fsys, m.path, []byte("cli_load_1"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	_, acquired := m.acquire(ctx, "cli", "load")
	assert.False(t, acquired)
	assert.Less(t, time.Since(start), time.Second)
}
