// Package services defines shared utilities consumed by the reconciler and its
// external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp poll identifiers, run identifiers, and
//     watched roots for logging.
//   - Structured error markers plus the Wrap helper so callers can classify
//     failures (missing files, malformed metadata, registry or dispatch
//     trouble) with errors.Is.
//   - Failure, which keeps a payload-ready message next to its marker.
package services
