package logging

import (
	"context"
	"log/slog"

	"seqwatch/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldPollID identifies the poll cycle a record belongs to.
	FieldPollID = "poll_id"
	// FieldRunID is the standardized key for sequencing run identifiers.
	FieldRunID = "run_id"
	// FieldPath is the standardized key for directory paths.
	FieldPath = "path"
	// FieldWatchRoot is the standardized key for watched root directories.
	FieldWatchRoot = "watch_root"
	// FieldState carries lifecycle states.
	FieldState = "state"
	// FieldTrigger carries event trigger names.
	FieldTrigger = "trigger"
	// FieldEventType is the standardized key for machine-readable log event names.
	FieldEventType = "event_type"
	// FieldErrorHint suggests a next step to the operator.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for the consequence of a warning.
	FieldImpact = "impact"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := services.PollIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldPollID, id))
	}
	if root, ok := services.WatchRootFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldWatchRoot, root))
	}
	if runID, ok := services.RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, runID))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
