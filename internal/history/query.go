package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"tempodel/internal/schedule"
)

// Event is one recorded outcome.
type Event struct {
	ID            int64
	PassID        string
	Trigger       string
	Path          string
	Action        string
	IsDir         bool
	Periodic      bool
	Error         string
	ChildFailures int
	NextDeleteAt  *time.Time
	RecordedAt    time.Time
}

// Filter narrows Recent results.
type Filter struct {
	Limit  int
	Path   string
	Action string
}

const defaultRecentLimit = 50

// Recent returns the newest events first.
func (j *Journal) Recent(ctx context.Context, f Filter) ([]Event, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultRecentLimit
	}

	var where []string
	var args []any
	if p := strings.TrimSpace(f.Path); p != "" {
		where = append(where, "e.path = ?")
		args = append(args, p)
	}
	if a := strings.TrimSpace(f.Action); a != "" {
		where = append(where, "e.action = ?")
		args = append(args, a)
	}
	query := `SELECT e.id, e.pass_id, p.trigger_name, e.path, e.action, e.is_dir, e.periodic,
                     e.error_message, e.child_failures, e.next_delete_at, e.recorded_at
              FROM events e JOIN passes p ON p.id = e.pass_id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY e.id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			ev         Event
			isDir      int
			periodic   int
			errMsg     sql.NullString
			nextDelete sql.NullFloat64
			recorded   string
		)
		if err := rows.Scan(&ev.ID, &ev.PassID, &ev.Trigger, &ev.Path, &ev.Action, &isDir, &periodic,
			&errMsg, &ev.ChildFailures, &nextDelete, &recorded); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.IsDir = isDir != 0
		ev.Periodic = periodic != 0
		ev.Error = errMsg.String
		if nextDelete.Valid {
			t := schedule.FromEpoch(nextDelete.Float64)
			ev.NextDeleteAt = &t
		}
		if ts, err := time.Parse(timeLayout, recorded); err == nil {
			ev.RecordedAt = ts
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// Totals counts recorded events by action.
func (j *Journal) Totals(ctx context.Context) (map[string]int, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT action, COUNT(1) FROM events GROUP BY action`)
	if err != nil {
		return nil, fmt.Errorf("query totals: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]int)
	for rows.Next() {
		var action string
		var count int
		if err := rows.Scan(&action, &count); err != nil {
			return nil, fmt.Errorf("scan totals: %w", err)
		}
		totals[action] = count
	}
	return totals, rows.Err()
}

// Prune deletes passes (and their events) recorded before cutoff.
func (j *Journal) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	var removed int64
	err := retryOnBusy(ctx, func() error {
		res, err := j.db.ExecContext(ctx, `DELETE FROM passes WHERE ran_at < ?`, cutoff.UTC().Format(timeLayout))
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	return removed, nil
}

// PruneRetention applies a retention window in days. Zero keeps everything.
func (j *Journal) PruneRetention(ctx context.Context, days int) (int64, error) {
	if j == nil || days <= 0 {
		return 0, nil
	}
	return j.Prune(ctx, time.Now().AddDate(0, 0, -days))
}
