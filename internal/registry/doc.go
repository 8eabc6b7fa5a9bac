// Package registry talks to the run registry, the authoritative record of
// sequencing runs, their state history, sample sheets, and analyses.
//
// Client is the contract the reconciler and the actions depend on. HTTPClient
// implements it against the registry's REST API: reads are anonymous, and
// every write carries the configured API key in the Authorization header.
// Writes are never retried here; callers decide.
package registry
