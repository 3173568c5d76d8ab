// Package schedule owns the scheduled-deletion data model and its persistence.
//
// Entries live in a single JSON array file shared by every tempodel process.
// Access is coordinated by an advisory "<schedule>.lock" marker polled with a
// short bounded budget, and writes go through a temp file plus rename so a
// reader never sees a partial schedule. Load and Save favour availability: a
// corrupt file becomes an empty schedule and is rewritten, malformed records are
// dropped, and I/O failures are logged rather than returned.
//
// Store.Update provides the load-modify-save cycle used by both the mutation
// helpers (AddOrUpdate, Remove) and the reconciliation pass, serialized within a
// process by a mutex. The marker is never held while deletions run.
package schedule
