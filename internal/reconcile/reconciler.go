package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/afero"

	"tempodel/internal/logging"
	"tempodel/internal/schedule"
)

// Reconciler decides the fate of each scheduled entry and performs the
// deletions and wipes that fall due.
type Reconciler struct {
	fs        afero.Fs
	logger    *slog.Logger
	reporters []Reporter
	clock     func() time.Time
}

// New constructs a Reconciler. A nil fs selects the OS filesystem.
func New(fsys afero.Fs, logger *slog.Logger, reporters ...Reporter) *Reconciler {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &Reconciler{
		fs:        fsys,
		logger:    logging.NewComponentLogger(logger, "reconciler"),
		reporters: reporters,
		clock:     time.Now,
	}
}

// AddReporter registers an additional outcome sink.
func (r *Reconciler) AddReporter(rep Reporter) {
	if rep != nil {
		r.reporters = append(r.reporters, rep)
	}
}

// Reconcile processes entries against now (epoch seconds). Entries are
// handled independently; duplicates of an already handled path are dropped.
// Result.Changed is set when any entry was dropped or rescheduled.
func (r *Reconciler) Reconcile(ctx context.Context, entries []schedule.Entry, now float64) Result {
	start := r.clock()
	logger := logging.WithContext(ctx, r.logger)

	result := Result{Kept: make([]schedule.Entry, 0, len(entries))}
	seen := make(map[string]struct{}, len(entries))

	for _, entry := range entries {
		var outcome Outcome
		switch {
		case entry.Malformed():
			outcome = Outcome{Path: entry.Path, Action: ActionMalformed}
		default:
			if _, dup := seen[entry.Path]; dup {
				outcome = Outcome{Path: entry.Path, Action: ActionDuplicate}
				break
			}
			seen[entry.Path] = struct{}{}
			outcome = r.process(&entry, now)
		}

		if outcome.Action.Dropped() {
			result.Changed = true
		} else {
			if outcome.Action != ActionKept {
				result.Changed = true
			}
			result.Kept = append(result.Kept, entry)
		}
		result.Outcomes = append(result.Outcomes, outcome)
		r.logOutcome(logger, outcome)
	}

	r.report(ctx, "reconcile", now, start, result)
	return result
}

// process handles one valid, first-seen entry. It may advance entry.DeleteAt.
func (r *Reconciler) process(entry *schedule.Entry, now float64) Outcome {
	outcome := Outcome{Path: entry.Path, IsDir: entry.IsDir, Periodic: entry.Periodic}

	info, exists := schedule.Exists(r.fs, entry.Path)
	if !entry.Due(now) {
		if exists || entry.Periodic {
			outcome.Action = ActionKept
		} else {
			outcome.Action = ActionPruned
		}
		return outcome
	}

	if !exists {
		outcome.Action = ActionMissing
		return outcome
	}

	isDir := entry.IsDir
	if info != nil {
		isDir = info.IsDir()
	}
	outcome.IsDir = isDir

	recurrence, periodic := entry.Recurrence()
	if !periodic {
		if err := deleteTarget(r.fs, entry.Path, isDir); err != nil {
			outcome.Action = ActionFailed
			outcome.Err = err
			return outcome
		}
		outcome.Action = ActionDeleted
		return outcome
	}

	if isDir {
		failures, err := wipeDirectory(r.fs, entry.Path)
		if err != nil {
			outcome.Action = ActionFailed
			outcome.Err = err
			return outcome
		}
		outcome.ChildFailures = failures
		outcome.Action = ActionWiped
	} else {
		if err := deleteTarget(r.fs, entry.Path, false); err != nil {
			outcome.Action = ActionFailed
			outcome.Err = err
			return outcome
		}
		outcome.Action = ActionRescheduled
	}

	entry.DeleteAt = now + recurrence
	entry.IsDir = isDir
	outcome.NextDeleteAt = entry.DeleteAt
	return outcome
}

// Prune drops non-periodic entries whose target is missing, whether or not
// they are due. It performs no deletions.
func (r *Reconciler) Prune(ctx context.Context, entries []schedule.Entry) Result {
	start := r.clock()
	logger := logging.WithContext(ctx, r.logger)

	result := Result{Kept: make([]schedule.Entry, 0, len(entries))}
	for _, entry := range entries {
		if entry.Malformed() {
			outcome := Outcome{Path: entry.Path, Action: ActionMalformed}
			result.Outcomes = append(result.Outcomes, outcome)
			result.Changed = true
			r.logOutcome(logger, outcome)
			continue
		}
		if _, exists := schedule.Exists(r.fs, entry.Path); !exists && !entry.Periodic {
			outcome := Outcome{Path: entry.Path, Action: ActionPruned, IsDir: entry.IsDir}
			result.Outcomes = append(result.Outcomes, outcome)
			result.Changed = true
			r.logOutcome(logger, outcome)
			continue
		}
		result.Kept = append(result.Kept, entry)
	}

	r.report(ctx, "startup_cleanup", schedule.Epoch(start), start, result)
	return result
}

func (r *Reconciler) logOutcome(logger *slog.Logger, o Outcome) {
	attrs := []logging.Attr{
		logging.String(logging.FieldPath, o.Path),
		logging.String(logging.FieldAction, string(o.Action)),
	}
	if o.NextDeleteAt != 0 {
		attrs = append(attrs, logging.String("next_delete_at", schedule.FromEpoch(o.NextDeleteAt).Format("2006-01-02 15:04:05")))
	}

	switch o.Action {
	case ActionKept:
		logger.Debug("entry not due", logging.Args(attrs...)...)
	case ActionDeleted:
		logger.Info("target deleted", logging.Args(append(attrs, logging.String(logging.FieldEventType, "target_deleted"))...)...)
	case ActionRescheduled:
		logger.Info("periodic file deleted; rescheduled", logging.Args(append(attrs, logging.String(logging.FieldEventType, "target_rescheduled"))...)...)
	case ActionWiped:
		if !o.Incomplete() {
			logger.Info("periodic directory wiped; rescheduled", logging.Args(append(attrs, logging.String(logging.FieldEventType, "target_wiped"))...)...)
			return
		}
		for _, failure := range o.ChildFailures {
			logging.WarnWithContext(logger, "wipe could not remove child", "wipe_child_failed",
				logging.String(logging.FieldPath, failure.Path),
				logging.String(logging.FieldAction, string(o.Action)),
				logging.Error(failure.Err),
				logging.String(logging.FieldErrorHint, "check permissions or open handles on the child"),
				logging.String(logging.FieldImpact, "child remains until the next wipe"),
			)
		}
		logging.WarnWithContext(logger, "periodic directory wipe incomplete; rescheduled", "target_wipe_incomplete",
			append(attrs,
				logging.Int("failed_children", len(o.ChildFailures)),
				logging.String(logging.FieldImpact, "some contents survived this wipe"),
			)...,
		)
	case ActionPruned:
		logger.Info("target gone before due time; entry pruned", logging.Args(append(attrs, logging.String(logging.FieldEventType, "entry_pruned"))...)...)
	case ActionMissing:
		logger.Info("due target no longer exists; entry dropped", logging.Args(append(attrs, logging.String(logging.FieldEventType, "target_missing"))...)...)
	case ActionFailed:
		logging.ErrorWithContext(logger, "deletion failed; entry dropped", "target_delete_failed",
			append(attrs,
				logging.Error(o.Err),
				logging.Bool("periodic", o.Periodic),
				logging.String(logging.FieldErrorHint, "check permissions and whether the target is in use, then schedule it again"),
			)...,
		)
	case ActionMalformed, ActionDuplicate:
		logging.WarnWithContext(logger, "invalid schedule entry dropped", "entry_"+string(o.Action),
			append(attrs, logging.String(logging.FieldImpact, "entry removed from schedule"))...,
		)
	}
}

func (r *Reconciler) report(ctx context.Context, trigger string, now float64, start time.Time, result Result) {
	if len(r.reporters) == 0 {
		return
	}
	id, _ := logging.PassIDFromContext(ctx)
	if t, ok := TriggerFromContext(ctx); ok {
		trigger = t
	}
	pass := Pass{
		ID:       id,
		Trigger:  trigger,
		Now:      schedule.FromEpoch(now),
		Duration: r.clock().Sub(start),
		Result:   result,
	}
	for _, rep := range r.reporters {
		rep.Report(ctx, pass)
	}
}
