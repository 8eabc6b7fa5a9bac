// Package eventlog journals every emitted event in a local SQLite database.
//
// The journal doubles as the default dedup history: Journal implements both
// events.Dispatcher and events.History. Tracking wraps the delivering sinks
// so each entry carries its delivery outcome, and only delivered entries are
// offered as history. It also backs the `events list` and `events prune`
// commands for operators who want to see what the reconciler has told the
// outside world.
package eventlog
