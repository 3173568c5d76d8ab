package checker_test

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tempodel/internal/checker"
	"tempodel/internal/config"
	"tempodel/internal/logging"
	"tempodel/internal/reconcile"
	"tempodel/internal/schedule"
	"tempodel/internal/testsupport"
)

type fixture struct {
	cfg        *config.Config
	store      *schedule.Store
	reconciler *reconcile.Reconciler
	root       string
}

func newFixture(t *testing.T, opts ...testsupport.ConfigOption) fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	fsys := afero.NewOsFs()
	return fixture{
		cfg:        cfg,
		store:      schedule.NewStoreFromConfig(cfg, fsys, "test", logging.NewNop()),
		reconciler: reconcile.New(fsys, logging.NewNop()),
		root:       filepath.Join(testsupport.BaseDir(cfg), "targets"),
	}
}

func (f fixture) schedule(t *testing.T, path string, deleteAt time.Time) {
	t.Helper()
	_, err := f.store.AddOrUpdate(context.Background(), schedule.Request{Path: path, DeleteAt: schedule.Epoch(deleteAt)})
	require.NoError(t, err)
}

func TestRunOnceDeletesDueTargets(t *testing.T) {
	f := newFixture(t)
	testsupport.WriteTree(t, f.root, "due.txt", "later.txt")
	due := filepath.Join(f.root, "due.txt")
	later := filepath.Join(f.root, "later.txt")
	f.schedule(t, due, time.Now().Add(-time.Minute))
	f.schedule(t, later, time.Now().Add(time.Hour))

	c := checker.New(f.cfg, f.store, f.reconciler, logging.NewNop())
	result, err := c.RunOnce(context.Background(), checker.TriggerManual)
	require.NoError(t, err)

	assert.True(t, result.Changed)
	assert.Equal(t, 1, result.Count(reconcile.ActionDeleted))
	assert.False(t, testsupport.Exists(t, due))
	assert.True(t, testsupport.Exists(t, later))

	entries := f.store.List(context.Background())
	require.Len(t, entries, 1)
	assert.Equal(t, later, entries[0].Path)

	status := c.Status()
	assert.Equal(t, 1, status.Passes)
	assert.Equal(t, checker.TriggerManual, status.LastTrigger)
	assert.NotEmpty(t, status.LastPassID)
	assert.Equal(t, 1, status.Entries)
	assert.Equal(t, 1, status.Totals[reconcile.ActionDeleted])
}

func TestRunOnceRecoversPanics(t *testing.T) {
	f := newFixture(t)
	f.reconciler.AddReporter(reconcile.ReporterFunc(func(context.Context, reconcile.Pass) {
		panic("reporter exploded")
	}))

	c := checker.New(f.cfg, f.store, f.reconciler, logging.NewNop())
	_, err := c.RunOnce(context.Background(), checker.TriggerManual)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reporter exploded")

	status := c.Status()
	assert.Equal(t, 1, status.Failures)
	assert.Contains(t, status.LastError, "panicked")
}

func TestStartupCleanupPrunesMissingTargets(t *testing.T) {
	f := newFixture(t)
	testsupport.WriteTree(t, f.root, "present.txt")
	f.schedule(t, filepath.Join(f.root, "present.txt"), time.Now().Add(time.Hour))
	f.schedule(t, filepath.Join(f.root, "vanished.txt"), time.Now().Add(time.Hour))

	c := checker.New(f.cfg, f.store, f.reconciler, logging.NewNop())
	result, err := c.StartupCleanup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Count(reconcile.ActionPruned))
	assert.Len(t, f.store.List(context.Background()), 1)
}

func TestRunContinuesAfterCrashedPass(t *testing.T) {
	f := newFixture(t)
	var calls atomic.Int32
	f.reconciler.AddReporter(reconcile.ReporterFunc(func(context.Context, reconcile.Pass) {
		if calls.Add(1) == 1 {
			panic("first pass crashes")
		}
	}))

	c := checker.New(f.cfg, f.store, f.reconciler, logging.NewNop(),
		checker.WithIntervals(10*time.Millisecond, 20*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool { return c.Status().Passes >= 3 }, 5*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	status := c.Status()
	assert.False(t, status.Running)
	assert.Equal(t, 1, status.Failures)
	assert.Empty(t, status.LastError)
}

func TestRunRejectsSecondStart(t *testing.T) {
	f := newFixture(t)
	c := checker.New(f.cfg, f.store, f.reconciler, logging.NewNop(), checker.WithIntervals(time.Hour, time.Hour))
	go func() { _ = c.Run(context.Background()) }()
	require.Eventually(t, func() bool { return c.Status().Running }, 5*time.Second, 5*time.Millisecond)

	assert.Error(t, c.Run(context.Background()))
	c.Stop()
	assert.False(t, c.Status().Running)
}

func TestScheduleWatchTriggersEarlyPass(t *testing.T) {
	f := newFixture(t, testsupport.WithScheduleWatch())
	testsupport.WriteTree(t, f.root, "soon.txt")
	target := filepath.Join(f.root, "soon.txt")

	c := checker.New(f.cfg, f.store, f.reconciler, logging.NewNop(), checker.WithIntervals(time.Hour, time.Hour))
	go func() { _ = c.Run(context.Background()) }()
	t.Cleanup(c.Stop)
	// Startup cleanup plus the first tick; the watch is installed between them.
	require.Eventually(t, func() bool { return c.Status().Passes >= 2 }, 5*time.Second, 5*time.Millisecond)

	cli := schedule.NewStoreFromConfig(f.cfg, afero.NewOsFs(), "cli", logging.NewNop())
	_, err := cli.AddOrUpdate(context.Background(), schedule.Request{
		Path:     target,
		DeleteAt: schedule.Epoch(time.Now().Add(-time.Second)),
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return !testsupport.Exists(t, target) }, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return c.Status().LastTrigger == checker.TriggerWatch }, 5*time.Second, 10*time.Millisecond)
}
