package services

import "context"

type contextKey string

const (
	pollIDKey contextKey = "poll_id"
	runIDKey  contextKey = "run_id"
	rootKey   contextKey = "watch_root"
)

// WithPollID annotates context with the identifier of the current poll cycle.
func WithPollID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, pollIDKey, id)
}

// PollIDFromContext extracts the poll identifier if present.
func PollIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(pollIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRunID annotates context with the sequencing run being reconciled.
func WithRunID(ctx context.Context, runID string) context.Context {
	if runID == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, runID)
}

// RunIDFromContext returns the run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithWatchRoot annotates context with the watched root being scanned.
func WithWatchRoot(ctx context.Context, root string) context.Context {
	if root == "" {
		return ctx
	}
	return context.WithValue(ctx, rootKey, root)
}

// WatchRootFromContext returns the watched root if present.
func WatchRootFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(rootKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
