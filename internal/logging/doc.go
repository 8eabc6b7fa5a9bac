// Package logging assembles structured slog loggers and formatting helpers used
// across seqwatch.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so reconciler code can tag log
// lines with poll identifiers, watched roots, and run identifiers. The package
// also provides a no-op logger for tests and wiring code that cannot fail.
package logging
