package reconcile

import (
	"time"

	"tempodel/internal/schedule"
)

// Action names what a pass did with one entry.
type Action string

const (
	// ActionKept leaves a not-yet-due entry untouched.
	ActionKept Action = "kept"
	// ActionPruned drops a non-periodic entry whose target vanished before it was due.
	ActionPruned Action = "pruned"
	// ActionDeleted removes a due non-periodic target and drops the entry.
	ActionDeleted Action = "deleted"
	// ActionWiped empties a due periodic directory and reschedules it.
	ActionWiped Action = "wiped"
	// ActionRescheduled deletes a due periodic file and reschedules it.
	ActionRescheduled Action = "rescheduled"
	// ActionMissing drops a due entry whose target no longer exists.
	ActionMissing Action = "missing"
	// ActionFailed drops a due entry whose delete or wipe failed.
	ActionFailed Action = "failed"
	// ActionMalformed drops an entry without a usable path or due time.
	ActionMalformed Action = "malformed"
	// ActionDuplicate drops a repeat of a path already handled in this pass.
	ActionDuplicate Action = "duplicate"
)

// Actions lists every action in reporting order.
var Actions = []Action{
	ActionKept, ActionPruned, ActionDeleted, ActionWiped, ActionRescheduled,
	ActionMissing, ActionFailed, ActionMalformed, ActionDuplicate,
}

// Dropped reports whether the action removes the entry from the schedule.
func (a Action) Dropped() bool {
	switch a {
	case ActionKept, ActionWiped, ActionRescheduled:
		return false
	default:
		return true
	}
}

// ChildFailure records one child of a wiped directory that could not be removed.
type ChildFailure struct {
	Path string
	Err  error
}

// Outcome is the decision taken for one entry.
type Outcome struct {
	Path     string
	Action   Action
	IsDir    bool
	Periodic bool
	Err      error
	// ChildFailures is set for wipes where some children survived.
	ChildFailures []ChildFailure
	// NextDeleteAt is the new due time of a rescheduled entry.
	NextDeleteAt float64
}

// Incomplete reports a wipe that rescheduled despite failed children.
func (o Outcome) Incomplete() bool {
	return len(o.ChildFailures) > 0
}

// Result is the output of one pass.
type Result struct {
	Kept     []schedule.Entry
	Changed  bool
	Outcomes []Outcome
}

// Count returns how many outcomes carry the given action.
func (r Result) Count(action Action) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Action == action {
			n++
		}
	}
	return n
}

// Counts tallies outcomes by action, omitting zero counts.
func (r Result) Counts() map[Action]int {
	counts := make(map[Action]int)
	for _, o := range r.Outcomes {
		counts[o.Action]++
	}
	return counts
}

// Pass describes one completed reconciliation for reporters.
type Pass struct {
	ID       string
	Trigger  string
	Now      time.Time
	Duration time.Duration
	Result   Result
}
