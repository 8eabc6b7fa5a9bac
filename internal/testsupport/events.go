package testsupport

import (
	"context"
	"sync"
	"testing"
	"time"

	"seqwatch/internal/config"
	"seqwatch/internal/eventlog"
	"seqwatch/internal/events"
)

type recorded struct {
	event events.Event
	at    time.Time
}

// Recorder is an in-memory events.Dispatcher and events.History.
type Recorder struct {
	mu      sync.Mutex
	entries []recorded
	now     func() time.Time

	// DispatchErr fails every Dispatch call without recording.
	DispatchErr error
	// QueryErr fails every Query call.
	QueryErr error
}

// NewRecorder returns an empty recorder using the wall clock.
func NewRecorder() *Recorder {
	return &Recorder{now: time.Now}
}

// SetClock overrides the timestamps given to recorded events.
func (r *Recorder) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

func (r *Recorder) Dispatch(_ context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.DispatchErr != nil {
		return r.DispatchErr
	}
	r.entries = append(r.entries, recorded{event: event, at: r.now()})
	return nil
}

func (r *Recorder) Query(_ context.Context, trigger string, since time.Time) ([]events.Payload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.QueryErr != nil {
		return nil, r.QueryErr
	}
	var out []events.Payload
	for _, e := range r.entries {
		if e.event.Trigger == trigger && e.at.After(since) {
			out = append(out, e.event.Payload)
		}
	}
	return out, nil
}

// Events returns recorded events in dispatch order.
func (r *Recorder) Events() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Event, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.event)
	}
	return out
}

// ByTrigger returns recorded events with the given trigger.
func (r *Recorder) ByTrigger(trigger string) []events.Event {
	var out []events.Event
	for _, e := range r.Events() {
		if e.Trigger == trigger {
			out = append(out, e)
		}
	}
	return out
}

// Reset forgets everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = nil
}

// FindEvent returns the first event with trigger whose payload contains every
// key/value in subset.
func FindEvent(list []events.Event, trigger string, subset events.Payload) (events.Event, bool) {
	for _, ev := range list {
		if ev.Trigger != trigger {
			continue
		}
		matched := true
		for k, v := range subset {
			got, ok := ev.Payload[k]
			if !ok || !events.Equal(events.Payload{"v": got}, events.Payload{"v": v}) {
				matched = false
				break
			}
		}
		if matched {
			return ev, true
		}
	}
	return events.Event{}, false
}

// MustOpenJournal opens the journal for cfg and closes it at test cleanup.
func MustOpenJournal(t testing.TB, cfg *config.Config) *eventlog.Journal {
	t.Helper()
	journal, err := eventlog.Open(cfg)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { _ = journal.Close() })
	return journal
}
