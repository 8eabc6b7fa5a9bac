// Package notifications pushes operator alerts via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and degrades to a no-op when notifications are disabled. The
// reconciler's warning events (incomplete directories, duplicate runs) reach
// ntfy through Sink, and the daemon reports failed polls directly.
package notifications
