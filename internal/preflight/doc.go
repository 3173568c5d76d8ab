// Package preflight provides readiness checks for the filesystem paths and
// external services tempodel depends on.
//
// These checks run in two contexts:
//   - daemonrun calls RunAll before starting the checker. A failed Required
//     check aborts startup; other failures are logged as warnings.
//   - The CLI "tempodel status" command renders every result.
//
// Each check is gated by its config toggle, so disabled features are skipped.
package preflight
