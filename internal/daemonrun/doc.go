// Package daemonrun hosts the tempodeld process runtime: signal handling,
// per-run log files with a stable tempodel.log pointer, pid file, log and
// history retention, and the wiring of store, reconciler reporters, checker
// and daemon. Wire is also used by the CLI for one-shot local passes.
package daemonrun
