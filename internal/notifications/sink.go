package notifications

import (
	"context"

	"seqwatch/internal/events"
)

// Sink forwards the reconciler's warning events to a Service. Other
// triggers are ignored.
type Sink struct {
	service Service
}

// NewSink wraps svc.
func NewSink(svc Service) *Sink {
	if svc == nil {
		svc = noopService{}
	}
	return &Sink{service: svc}
}

func (s *Sink) Dispatch(ctx context.Context, event events.Event) error {
	var kind Event
	switch event.Trigger {
	case events.TriggerIncompleteDirectory:
		kind = EventIncompleteDirectory
	case events.TriggerDuplicateRun:
		kind = EventDuplicateRun
	default:
		return nil
	}
	payload := make(Payload, len(event.Payload))
	for k, v := range event.Payload {
		payload[k] = v
	}
	return s.service.Publish(ctx, kind, payload)
}
