package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"tempodel/internal/api"
	"tempodel/internal/checker"
	"tempodel/internal/config"
	"tempodel/internal/history"
	"tempodel/internal/logging"
	"tempodel/internal/metrics"
	"tempodel/internal/notifications"
	"tempodel/internal/reconcile"
	"tempodel/internal/schedule"
)

// LockFileName is the single-instance lock inside the log directory.
const LockFileName = "tempodeld.lock"

// ErrAlreadyRunning reports that another process holds the daemon lock.
var ErrAlreadyRunning = errors.New("another tempodel daemon instance is already running")

// AcquireLock takes the single-instance lock inside logDir. Pass the result to
// WithLock so Start reuses it.
func AcquireLock(logDir string) (*flock.Flock, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	lock := flock.New(filepath.Join(logDir, LockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrAlreadyRunning
	}
	return lock, nil
}

// Daemon coordinates the checker loop and the HTTP API and enforces
// single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	checker  *checker.Checker
	store    *schedule.Store
	journal  *history.Journal
	metrics  *metrics.Metrics
	notifier notifications.Service

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	api     *apiServer
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	ScheduleFile string
	LockFilePath string
	HistoryPath  string
	Checker      checker.Status
}

// Option configures optional daemon collaborators.
type Option func(*Daemon)

// WithJournal exposes the history journal path in status output.
func WithJournal(j *history.Journal) Option {
	return func(d *Daemon) { d.journal = j }
}

// WithMetrics serves m on /metrics and records API requests.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Daemon) { d.metrics = m }
}

// WithNotifier sends lifecycle notifications through n.
func WithNotifier(n notifications.Service) Option {
	return func(d *Daemon) {
		if n != nil {
			d.notifier = n
		}
	}
}

// WithLock hands an already acquired lock from AcquireLock to the daemon.
func WithLock(l *flock.Flock) Option {
	return func(d *Daemon) {
		if l != nil {
			d.lock = l
			d.lockPath = l.Path()
		}
	}
}

// New constructs a daemon around an already wired checker.
func New(cfg *config.Config, chk *checker.Checker, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || chk == nil {
		return nil, errors.New("daemon requires config and checker")
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, LockFileName)
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		checker:  chk,
		store:    chk.Store(),
		notifier: notifications.NewService(nil),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Start acquires the daemon lock, launches the checker loop and serves the API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if !d.lock.Locked() {
		if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
			return fmt.Errorf("create lock directory: %w", err)
		}
		ok, err := d.lock.TryLock()
		if err != nil {
			return fmt.Errorf("acquire lock: %w", err)
		}
		if !ok {
			return ErrAlreadyRunning
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	srv, err := newAPIServer(d.cfg, d, d.logger)
	if err == nil {
		err = srv.start(runCtx)
	}
	if err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start api: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := d.checker.Run(runCtx); err != nil {
			logging.ErrorWithContext(d.logger, "checker exited", "checker_exit_failed", logging.Error(err))
		}
	}()

	d.mu.Lock()
	d.cancel = cancel
	d.done = done
	d.api = srv
	d.mu.Unlock()
	d.running.Store(true)

	d.logger.Info("tempodel daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("api", srv.address()),
	)
	if d.cfg.Notifications.Lifecycle {
		entries := len(d.store.List(ctx))
		if err := d.notifier.NotifyDaemonStarted(ctx, d.store.Path(), entries); err != nil {
			d.logger.Debug("start notification failed", logging.Error(err))
		}
	}
	return nil
}

// Stop stops the checker and the API and releases the daemon lock. The
// in-flight pass completes first.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.mu.Lock()
	cancel, done, srv := d.cancel, d.done, d.api
	d.cancel, d.done, d.api = nil, nil, nil
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	srv.stop()
	if done != nil {
		<-done
	}
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_unlock_failed",
			logging.Error(err),
			logging.String(logging.FieldPath, d.lockPath),
			logging.String(logging.FieldImpact, "next start may report another instance until the process exits"),
		)
	}
	d.running.Store(false)

	if d.cfg.Notifications.Lifecycle {
		ctx, cancelNotify := context.WithTimeout(context.Background(), 5*time.Second)
		if err := d.notifier.NotifyDaemonStopped(ctx, "shutdown requested"); err != nil {
			d.logger.Debug("stop notification failed", logging.Error(err))
		}
		cancelNotify()
	}
	d.logger.Info("tempodel daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.journal != nil {
		return d.journal.Close()
	}
	return nil
}

// APIAddress returns the bound API address, or "" when the API is disabled.
func (d *Daemon) APIAddress() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.api.address()
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		ScheduleFile: d.store.Path(),
		LockFilePath: d.lockPath,
		Checker:      d.checker.Status(),
	}
	if d.journal != nil {
		status.HistoryPath = d.journal.Path()
	}
	return status
}

// ListEntries returns the schedule ordered by due time.
func (d *Daemon) ListEntries(ctx context.Context) []schedule.Entry {
	return d.store.List(ctx)
}

// AddEntries schedules every path in req and wakes the checker so entries
// that are already due are handled without waiting for the next tick.
func (d *Daemon) AddEntries(ctx context.Context, req api.AddRequest) ([]schedule.Entry, error) {
	requests, err := req.Requests(time.Now())
	if err != nil {
		return nil, err
	}
	for _, r := range requests {
		if _, err := schedule.Normalize(r.Path); err != nil {
			return nil, err
		}
	}
	added := make([]schedule.Entry, 0, len(requests))
	for _, r := range requests {
		entry, err := d.store.AddOrUpdate(ctx, r)
		if err != nil {
			return added, fmt.Errorf("schedule %s: %w", r.Path, err)
		}
		added = append(added, entry)
	}
	d.refreshEntryGauge(ctx)
	d.checker.Wake()
	return added, nil
}

// RemoveEntries unschedules paths. Paths with no entry are reported as missing.
func (d *Daemon) RemoveEntries(ctx context.Context, paths []string) (removed, missing []string, err error) {
	for _, p := range paths {
		ok, rerr := d.store.Remove(ctx, p)
		if rerr != nil {
			return removed, missing, fmt.Errorf("unschedule %s: %w", p, rerr)
		}
		if ok {
			removed = append(removed, p)
		} else {
			missing = append(missing, p)
		}
	}
	if len(removed) > 0 {
		d.refreshEntryGauge(ctx)
	}
	return removed, missing, nil
}

// Reconcile runs an on-demand pass, joining one already in flight.
func (d *Daemon) Reconcile(ctx context.Context) (reconcile.Result, error) {
	return d.checker.RunOnce(ctx, checker.TriggerAPI)
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

func (d *Daemon) refreshEntryGauge(ctx context.Context) {
	if d.metrics == nil {
		return
	}
	d.metrics.SetScheduleEntries(len(d.store.List(ctx)))
}
