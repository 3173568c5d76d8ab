// Package history keeps a SQLite journal of reconciliation outcomes.
//
// Each pass that did more than keep entries is stored with its trigger and
// duration, and every non-trivial outcome (deleted, wiped, rescheduled, pruned,
// missing, failed, malformed, duplicate) becomes an event row. The journal
// plugs into the reconciler as a Reporter and backs the `tempodel history`
// command. Retention pruning removes passes older than the configured window.
package history
