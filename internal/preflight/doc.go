// Package preflight provides readiness checks for the filesystem paths and
// external services seqwatch depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll once at startup and logs every failure.
//   - The CLI "seqwatch check" command prints the results as a table and
//     exits non-zero when any check failed.
//
// Checks for optional collaborators (event bus, history API, ntfy) are only
// run when those are configured.
package preflight
