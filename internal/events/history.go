package events

import (
	"context"
	"time"
)

// History returns payloads of events with the given trigger emitted after
// since.
type History interface {
	Query(ctx context.Context, trigger string, since time.Time) ([]Payload, error)
}

// NoHistory never remembers anything, so nothing is ever suppressed.
type NoHistory struct{}

func (NoHistory) Query(context.Context, string, time.Time) ([]Payload, error) { return nil, nil }
