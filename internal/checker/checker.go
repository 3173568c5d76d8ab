package checker

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"tempodel/internal/config"
	"tempodel/internal/logging"
	"tempodel/internal/metrics"
	"tempodel/internal/notifications"
	"tempodel/internal/reconcile"
	"tempodel/internal/schedule"
)

// passKey is the single singleflight key; every pass covers the whole schedule.
const passKey = "pass"

// Trigger values recorded with each pass.
const (
	TriggerTick    = "tick"
	TriggerWatch   = "watch"
	TriggerManual  = "manual"
	TriggerAPI     = "api"
	TriggerStartup = "startup_cleanup"
)

// Checker runs reconciliation passes against a schedule store on a fixed
// interval. Timer, watch and on-demand passes share one singleflight group,
// so at most one pass touches the store at a time within the process.
type Checker struct {
	store      *schedule.Store
	reconciler *reconcile.Reconciler
	logger     *slog.Logger
	notifier   notifications.Service
	metrics    *metrics.Metrics

	interval       time.Duration
	backoff        time.Duration
	startupCleanup bool
	watchSchedule  bool
	now            func() time.Time

	group singleflight.Group
	wake  chan struct{}

	mu     sync.RWMutex
	cancel func()
	wg     sync.WaitGroup
	state  Status
}

// Option configures optional Checker behavior.
type Option func(*Checker)

// WithNotifier routes tick crashes to a notification service.
func WithNotifier(n notifications.Service) Option {
	return func(c *Checker) {
		if n != nil {
			c.notifier = n
		}
	}
}

// WithMetrics records tick crashes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Checker) { c.metrics = m }
}

// WithIntervals overrides the configured tick interval and error backoff.
func WithIntervals(interval, backoff time.Duration) Option {
	return func(c *Checker) {
		if interval > 0 {
			c.interval = interval
		}
		if backoff > 0 {
			c.backoff = backoff
		}
	}
}

// WithClock replaces the wall clock used for due-time comparisons.
func WithClock(now func() time.Time) Option {
	return func(c *Checker) {
		if now != nil {
			c.now = now
		}
	}
}

// New constructs a Checker from configuration.
func New(cfg *config.Config, store *schedule.Store, reconciler *reconcile.Reconciler, logger *slog.Logger, opts ...Option) *Checker {
	c := &Checker{
		store:          store,
		reconciler:     reconciler,
		logger:         logging.NewComponentLogger(logger, "checker"),
		notifier:       notifications.NewService(nil),
		interval:       cfg.CheckInterval(),
		backoff:        cfg.ErrorBackoff(),
		startupCleanup: cfg.Checker.StartupCleanup,
		watchSchedule:  cfg.Checker.WatchSchedule,
		now:            time.Now,
		wake:           make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store returns the schedule store passes run against.
func (c *Checker) Store() *schedule.Store { return c.store }

// Wake requests an early pass. Requests made while one is already pending
// are coalesced.
func (c *Checker) Wake() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}
