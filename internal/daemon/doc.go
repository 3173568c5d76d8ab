// Package daemon coordinates the long-running tempodel checker process.
//
// It wires the checker loop, the schedule store and the optional history,
// metrics and notification collaborators into a single lifecycle with
// flock-based locking to prevent multiple instances. The daemon serves a
// small HTTP API for status, schedule mutations, on-demand passes and
// Prometheus metrics.
//
// Keep orchestration logic here: reconciliation rules live in reconcile and
// persistence in schedule, while the daemon focuses on startup, shutdown,
// and high level coordination.
package daemon
