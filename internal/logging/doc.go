// Package logging assembles structured slog loggers and formatting helpers used
// across Tempodel.
//
// It owns the console and JSON handlers, level and output plumbing, a fan-out
// handler that mirrors daemon output into a JSON log file, and context helpers
// that tag records with the reconciliation pass and process role. Warnings and
// errors should go through WarnWithContext and ErrorWithContext so every record
// carries an event type and an operator hint.
package logging
