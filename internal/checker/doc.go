// Package checker runs the background reconciliation loop.
//
// A Checker loads the schedule, reconciles it against the current time and
// saves it back when anything changed, once per configured interval. Crashed
// or failed passes are isolated and followed by an extended backoff. Passes
// requested on demand (CLI or HTTP API) and passes woken by schedule edits
// share one singleflight group with the timer so they never interleave.
package checker
