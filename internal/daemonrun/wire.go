package daemonrun

import (
	"errors"
	"log/slog"

	"github.com/spf13/afero"

	"tempodel/internal/checker"
	"tempodel/internal/config"
	"tempodel/internal/history"
	"tempodel/internal/logging"
	"tempodel/internal/metrics"
	"tempodel/internal/notifications"
	"tempodel/internal/reconcile"
	"tempodel/internal/schedule"
)

// Components bundles the collaborators shared by the daemon and by one-shot
// CLI passes.
type Components struct {
	Store      *schedule.Store
	Reconciler *reconcile.Reconciler
	Journal    *history.Journal
	Notifier   notifications.Service
	Metrics    *metrics.Metrics
	Checker    *checker.Checker
}

// Wire builds the store, reconciler and checker for role and registers the
// configured reporters: history journal, failure notifications and metrics
// when m is non-nil. A journal that cannot be opened is logged and skipped.
func Wire(cfg *config.Config, logger *slog.Logger, role string, m *metrics.Metrics, opts ...checker.Option) (*Components, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	fsys := afero.NewOsFs()

	c := &Components{
		Store:    schedule.NewStoreFromConfig(cfg, fsys, role, logger),
		Notifier: notifications.NewService(cfg),
		Metrics:  m,
	}
	c.Reconciler = reconcile.New(fsys, logger)

	journal, err := history.OpenFromConfig(cfg, logger)
	if err != nil {
		logging.WarnWithContext(logger, "history journal unavailable", "history_open_failed",
			logging.Error(err),
			logging.String(logging.FieldPath, cfg.History.Path),
			logging.String(logging.FieldErrorHint, "check permissions on the history path or disable [history]"),
			logging.String(logging.FieldImpact, "outcomes are only recorded in logs"),
		)
	} else if journal != nil {
		c.Journal = journal
		c.Reconciler.AddReporter(journal)
	}
	if reporter := notifications.NewFailureReporter(cfg, c.Notifier, logger); reporter != nil {
		c.Reconciler.AddReporter(reporter)
	}
	if m != nil {
		c.Reconciler.AddReporter(m)
	}

	checkerOpts := append([]checker.Option{
		checker.WithNotifier(c.Notifier),
		checker.WithMetrics(m),
	}, opts...)
	c.Checker = checker.New(cfg, c.Store, c.Reconciler, logger, checkerOpts...)
	return c, nil
}

// Close releases the journal.
func (c *Components) Close() error {
	if c == nil || c.Journal == nil {
		return nil
	}
	return c.Journal.Close()
}
