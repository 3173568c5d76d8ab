// Package api defines wire-format types and converters for the daemon HTTP
// API, plus a small client the CLI uses to reach a running tempodeld.
//
// DTOs use camelCase JSON tags. Timestamps are RFC3339 with milliseconds;
// due times are also carried as epoch seconds so scripts can compare them
// without parsing. AddRequest.Requests is the single place user-facing
// durations and timestamps become schedule mutations, shared by the local
// CLI path and the daemon handler.
package api
