package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"tempodel/internal/config"
	"tempodel/internal/daemon"
	"tempodel/internal/history"
	"tempodel/internal/logging"
	"tempodel/internal/metrics"
	"tempodel/internal/preflight"
)

const (
	// PIDFileName is written inside the log directory while the daemon runs.
	PIDFileName = "tempodeld.pid"

	historyPruneInterval = 24 * time.Hour
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the tempodel daemon runtime loop and blocks until SIGINT,
// SIGTERM or cancellation of cmdCtx.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	// Everything below touches files a running instance owns.
	lock, err := daemon.AcquireLock(cfg.Paths.LogDir)
	if err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("tempodeld-%s.log", runID))
	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout"},
		FilePath:    logPath,
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	sessionID := uuid.NewString()
	logger = logger.With(logging.String(logging.FieldRole, "daemon"), logging.String("session_id", sessionID))

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update %s link: %v\n", logging.LogFileName, err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "tempodeld-*.log", Exclude: []string{logPath}},
	)
	logConfigSnapshot(logger, cfg)
	if err := runPreflight(signalCtx, logger, cfg); err != nil {
		return err
	}

	pidPath := filepath.Join(cfg.Paths.LogDir, PIDFileName)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	m := metrics.New()
	components, err := Wire(cfg, logger, "daemon", m)
	if err != nil {
		return err
	}
	defer components.Close()

	d, err := daemon.New(cfg, components.Checker, logger,
		daemon.WithJournal(components.Journal),
		daemon.WithMetrics(m),
		daemon.WithNotifier(components.Notifier),
		daemon.WithLock(lock),
	)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "stop the other tempodeld instance or free api.bind"),
		)
		return err
	}
	defer d.Stop()

	go pruneHistory(signalCtx, logger, components.Journal, cfg.History.RetentionDays)

	<-signalCtx.Done()
	logger.Info("tempodel daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

// runPreflight logs every failed check and returns an error when a required
// one failed.
func runPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) error {
	var blocking []string
	for _, r := range preflight.Failed(preflight.RunAll(ctx, cfg)) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.Bool("required", r.Required),
		)
		if r.Required {
			blocking = append(blocking, r.Name+": "+r.Detail)
		}
	}
	if len(blocking) > 0 {
		return fmt.Errorf("preflight: %s", strings.Join(blocking, "; "))
	}
	return nil
}

// pruneHistory applies the journal retention window now and once a day.
func pruneHistory(ctx context.Context, logger *slog.Logger, journal *history.Journal, days int) {
	if journal == nil || days <= 0 {
		return
	}
	ticker := time.NewTicker(historyPruneInterval)
	defer ticker.Stop()
	for {
		removed, err := journal.PruneRetention(ctx, days)
		if err != nil {
			logging.WarnWithContext(logger, "history retention failed", "history_prune_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "history database keeps growing until the next attempt"),
			)
		} else if removed > 0 {
			logger.Info("history pruned",
				logging.String(logging.FieldEventType, "history_pruned"),
				logging.Int64("passes_removed", removed),
				logging.Int("retention_days", days),
			)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, logging.LogFileName)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.String("schedule_file", cfg.Paths.ScheduleFile),
		logging.Duration("interval", cfg.CheckInterval()),
		logging.Duration("error_backoff", cfg.ErrorBackoff()),
		logging.Int("lock_retries", cfg.Lock.Retries),
		logging.Duration("lock_retry_delay", cfg.LockRetryDelay()),
		logging.Bool("startup_cleanup", cfg.Checker.StartupCleanup),
		logging.Bool("watch_schedule", cfg.Checker.WatchSchedule),
		logging.Bool("history_enabled", cfg.History.Enabled),
		logging.Bool("ntfy_configured", cfg.Notifications.NtfyTopic != ""),
		logging.String("api_bind", cfg.API.Bind),
		logging.Bool("api_token_set", cfg.API.Token != ""),
	)
}
