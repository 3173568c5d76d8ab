package api

import (
	"errors"
	"fmt"
	"time"

	"tempodel/internal/checker"
	"tempodel/internal/reconcile"
	"tempodel/internal/schedule"
)

// ErrInvalidRequest reports an add request whose timing fields cannot be resolved.
var ErrInvalidRequest = errors.New("invalid schedule request")

// FromEntry converts a schedule entry into its transport shape.
func FromEntry(e schedule.Entry, now time.Time) Entry {
	out := Entry{
		Path:          e.Path,
		IsDir:         e.IsDir,
		Kind:          string(e.Kind),
		DeleteAt:      e.DueTime().Format(dateTimeFormat),
		DeleteAtEpoch: e.DeleteAt,
		Periodic:      e.Periodic,
		Due:           e.Due(schedule.Epoch(now)),
	}
	if rec, ok := e.Recurrence(); ok {
		out.RecurrenceSeconds = rec
	}
	return out
}

// FromEntries converts a slice of schedule entries.
func FromEntries(entries []schedule.Entry, now time.Time) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		out = append(out, FromEntry(e, now))
	}
	return out
}

// FromOutcome converts a reconciliation outcome.
func FromOutcome(o reconcile.Outcome) Outcome {
	out := Outcome{
		Path:     o.Path,
		Action:   string(o.Action),
		IsDir:    o.IsDir,
		Periodic: o.Periodic,
	}
	if o.Err != nil {
		out.Error = o.Err.Error()
	}
	for _, cf := range o.ChildFailures {
		failure := ChildFailure{Path: cf.Path}
		if cf.Err != nil {
			failure.Error = cf.Err.Error()
		}
		out.ChildFailures = append(out.ChildFailures, failure)
	}
	if o.NextDeleteAt != 0 {
		out.NextDeleteAt = schedule.FromEpoch(o.NextDeleteAt).Format(dateTimeFormat)
	}
	return out
}

// FromResult converts a pass result.
func FromResult(r reconcile.Result) ReconcileResponse {
	resp := ReconcileResponse{
		Changed:  r.Changed,
		Entries:  len(r.Kept),
		Counts:   countsByName(r.Counts()),
		Outcomes: make([]Outcome, 0, len(r.Outcomes)),
	}
	for _, o := range r.Outcomes {
		resp.Outcomes = append(resp.Outcomes, FromOutcome(o))
	}
	return resp
}

// FromCheckerStatus converts a checker snapshot.
func FromCheckerStatus(s checker.Status) CheckerStatus {
	return CheckerStatus{
		Running:     s.Running,
		StartedAt:   formatTime(s.StartedAt),
		LastPassAt:  formatTime(s.LastPassAt),
		LastPassID:  s.LastPassID,
		LastTrigger: s.LastTrigger,
		LastError:   s.LastError,
		Passes:      s.Passes,
		Failures:    s.Failures,
		Entries:     s.Entries,
		Totals:      countsByName(s.Totals),
	}
}

// Requests resolves the request into one schedule mutation per path.
func (r AddRequest) Requests(now time.Time) ([]schedule.Request, error) {
	if len(r.Paths) == 0 {
		return nil, schedule.ErrEmptyPath
	}
	kind, err := schedule.ParseKind(r.Kind)
	if err != nil {
		return nil, err
	}

	var (
		deleteAt   float64
		recurrence float64
	)
	switch {
	case r.In != "" && r.At != "":
		return nil, fmt.Errorf("%w: in and at are mutually exclusive", ErrInvalidRequest)
	case r.In != "":
		seconds, err := schedule.ParseRecurrence(r.In)
		if err != nil {
			return nil, err
		}
		deleteAt = schedule.Epoch(now) + seconds
		recurrence = seconds
	case r.At != "":
		at, err := time.Parse(time.RFC3339, r.At)
		if err != nil {
			return nil, fmt.Errorf("%w: parse at: %v", ErrInvalidRequest, err)
		}
		deleteAt = schedule.Epoch(at)
		recurrence = deleteAt - schedule.Epoch(now)
	default:
		return nil, fmt.Errorf("%w: one of in or at is required", ErrInvalidRequest)
	}

	out := make([]schedule.Request, 0, len(r.Paths))
	for _, p := range r.Paths {
		out = append(out, schedule.Request{
			Path:       p,
			DeleteAt:   deleteAt,
			Periodic:   r.Periodic,
			Recurrence: recurrence,
			Kind:       kind,
		})
	}
	return out, nil
}

func countsByName(counts map[reconcile.Action]int) map[string]int {
	out := make(map[string]int, len(counts))
	for action, n := range counts {
		out[string(action)] = n
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
