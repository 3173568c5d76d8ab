// Package logs reads the daemon log for `tempodel logs`.
//
// Last returns the final lines of a file with bounded memory. Follow streams
// appended lines until the context ends, re-resolving the tempodel.log
// pointer when a daemon restart swaps it to a new per-run file.
package logs
