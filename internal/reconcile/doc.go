// Package reconcile implements the per-pass decision over the schedule.
//
// For each entry a pass either keeps it, prunes it (target gone before it was
// due), deletes the target and drops it, or wipes/deletes a periodic target and
// moves its due time forward by the recurrence. Failed actions and missing due
// targets are dropped rather than retried. The filesystem is re-inspected at
// action time; the cached directory flag is only a fallback.
//
// Every decision becomes an Outcome. The Reconciler logs outcomes itself and
// forwards each completed Pass to registered Reporters (history, metrics,
// notifications).
package reconcile
