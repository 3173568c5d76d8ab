package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"tempodel/internal/config"
	"tempodel/internal/logging"
	"tempodel/internal/reconcile"
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond

	// Fixed-width UTC timestamps so text comparison orders chronologically.
	timeLayout = "2006-01-02T15:04:05.000000000Z"
)

// Journal records reconciliation outcomes in SQLite.
type Journal struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// OpenFromConfig opens the configured journal. It returns nil without error
// when history is disabled.
func OpenFromConfig(cfg *config.Config, logger *slog.Logger) (*Journal, error) {
	if cfg == nil || !cfg.History.Enabled {
		return nil, nil
	}
	return Open(cfg.History.Path, logger)
}

// Open initializes or connects to the journal database.
func Open(path string, logger *slog.Logger) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure history directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	j := &Journal{db: db, path: path, logger: logging.NewComponentLogger(logger, "history")}
	if err := j.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

// Close closes the underlying database connection.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Path returns the database file location.
func (j *Journal) Path() string { return j.path }

// Record stores a pass and its non-trivial outcomes. Passes where every entry
// was simply kept are not recorded.
func (j *Journal) Record(ctx context.Context, pass reconcile.Pass) error {
	notable := make([]reconcile.Outcome, 0, len(pass.Result.Outcomes))
	for _, o := range pass.Result.Outcomes {
		if o.Action != reconcile.ActionKept {
			notable = append(notable, o)
		}
	}
	if len(notable) == 0 {
		return nil
	}

	id := pass.ID
	if id == "" {
		id = uuid.NewString()
	}
	ranAt := pass.Now.UTC().Format(timeLayout)

	return retryOnBusy(ctx, func() error {
		tx, err := j.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin history tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO passes (id, trigger_name, ran_at, duration_ms, changed, outcomes) VALUES (?, ?, ?, ?, ?, ?)`,
			id, pass.Trigger, ranAt, pass.Duration.Milliseconds(), boolToInt(pass.Result.Changed), len(pass.Result.Outcomes),
		); err != nil {
			return fmt.Errorf("insert pass: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO events (pass_id, path, action, is_dir, periodic, error_message, child_failures, next_delete_at, recorded_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare event insert: %w", err)
		}
		defer stmt.Close()

		for _, o := range notable {
			if _, err := stmt.ExecContext(ctx,
				id, o.Path, string(o.Action), boolToInt(o.IsDir), boolToInt(o.Periodic),
				nullableError(o.Err), len(o.ChildFailures), nullableFloat(o.NextDeleteAt), ranAt,
			); err != nil {
				return fmt.Errorf("insert event: %w", err)
			}
		}
		return tx.Commit()
	})
}

// Report implements reconcile.Reporter. Journal failures are logged and never
// interrupt the pass.
func (j *Journal) Report(ctx context.Context, pass reconcile.Pass) {
	if j == nil {
		return
	}
	if err := j.Record(ctx, pass); err != nil {
		logging.WarnWithContext(j.logger, "history record failed", "history_record_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the history database path and disk space"),
			logging.String(logging.FieldImpact, "pass outcomes missing from history"),
		)
	}
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func nullableError(err error) any {
	if err == nil {
		return nil
	}
	return err.Error()
}

func nullableFloat(v float64) any {
	if v == 0 {
		return nil
	}
	return v
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
