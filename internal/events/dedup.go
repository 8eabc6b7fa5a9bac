package events

import (
	"context"
	"log/slog"
	"time"

	"seqwatch/internal/logging"
)

// DefaultDedupWindow is how far back identical events suppress a new one.
const DefaultDedupWindow = 7 * 24 * time.Hour

// Deduplicator suppresses events whose exact payload was already emitted for
// the same trigger within the window. Lookups that fail are treated as "not
// seen", so a broken history can cause a repeat but never a lost event.
type Deduplicator struct {
	history    History
	dispatcher Dispatcher
	window     time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// DedupOption customizes a Deduplicator.
type DedupOption func(*Deduplicator)

// WithClock overrides the time source.
func WithClock(now func() time.Time) DedupOption {
	return func(d *Deduplicator) {
		if now != nil {
			d.now = now
		}
	}
}

// NewDeduplicator wires a history and a dispatcher. A non-positive window
// uses DefaultDedupWindow.
func NewDeduplicator(history History, dispatcher Dispatcher, window time.Duration, logger *slog.Logger, opts ...DedupOption) *Deduplicator {
	if history == nil {
		history = NoHistory{}
	}
	if dispatcher == nil {
		dispatcher = Discard
	}
	if window <= 0 {
		window = DefaultDedupWindow
	}
	d := &Deduplicator{
		history:    history,
		dispatcher: dispatcher,
		window:     window,
		logger:     logging.NewComponentLogger(logger, "dedup"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Seen reports whether an identical event exists in the window.
func (d *Deduplicator) Seen(ctx context.Context, event Event) bool {
	since := d.now().UTC().Add(-d.window)
	payloads, err := d.history.Query(ctx, event.Trigger, since)
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, d.logger), "event history unavailable; treating event as new", "dedup_history_failed",
			logging.String(logging.FieldTrigger, event.Trigger),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the event history backend"),
			logging.String(logging.FieldImpact, "a duplicate notification may be sent"),
		)
		return false
	}
	for _, p := range payloads {
		if Equal(p, event.Payload) {
			return true
		}
	}
	return false
}

// Emit dispatches event unless an identical one was emitted within the
// window. It returns whether the event was dispatched.
func (d *Deduplicator) Emit(ctx context.Context, event Event) (bool, error) {
	if d.Seen(ctx, event) {
		logging.WithContext(ctx, d.logger).Debug("identical event emitted within window; suppressed",
			logging.String(logging.FieldTrigger, event.Trigger),
			logging.Duration("window", d.window),
		)
		return false, nil
	}
	if err := d.dispatcher.Dispatch(ctx, event); err != nil {
		return false, err
	}
	return true, nil
}
