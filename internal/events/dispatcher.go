package events

import (
	"context"
	"errors"

	"seqwatch/internal/services"
)

// Dispatcher delivers an event somewhere.
type Dispatcher interface {
	Dispatch(ctx context.Context, event Event) error
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, event Event) error

func (f DispatcherFunc) Dispatch(ctx context.Context, event Event) error { return f(ctx, event) }

// Discard drops every event.
var Discard Dispatcher = DispatcherFunc(func(context.Context, Event) error { return nil })

// Fanout delivers each event to every dispatcher in order. Failures do not
// stop later dispatchers; they are joined and tagged services.ErrDispatch.
type Fanout []Dispatcher

func (f Fanout) Dispatch(ctx context.Context, event Event) error {
	var errs []error
	for _, d := range f {
		if d == nil {
			continue
		}
		if err := d.Dispatch(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	joined := errors.Join(errs...)
	if errors.Is(joined, services.ErrDispatch) {
		return joined
	}
	return services.Wrap(services.ErrDispatch, "events", "fanout", event.Trigger, joined)
}

// Filter forwards only events whose trigger is listed.
func Filter(next Dispatcher, triggers ...string) Dispatcher {
	allowed := make(map[string]struct{}, len(triggers))
	for _, t := range triggers {
		allowed[t] = struct{}{}
	}
	return DispatcherFunc(func(ctx context.Context, event Event) error {
		if _, ok := allowed[event.Trigger]; !ok {
			return nil
		}
		return next.Dispatch(ctx, event)
	})
}
