package actions

import (
	"context"

	"seqwatch/internal/events"
	"seqwatch/internal/lifecycle"
	"seqwatch/internal/services"
)

// Applier is an events.Dispatcher that turns emitted events into registry
// writes. Warning triggers carry no registry change and are ignored.
type Applier struct {
	actions *Actions
}

// NewApplier wraps an action set.
func NewApplier(actions *Actions) *Applier {
	return &Applier{actions: actions}
}

func (a *Applier) Dispatch(ctx context.Context, event events.Event) error {
	p := event.Payload
	runID := p.String(events.KeyRunID)
	state := lifecycle.State(p.String(events.KeyState))
	if runID != "" {
		ctx = services.WithRunID(ctx, runID)
	}

	switch event.Trigger {
	case events.TriggerNewDirectory:
		if isAnalysis(p) {
			return a.actions.AddAnalysis(ctx, runID, p.String(events.KeyPath), state, p.String(events.KeySummaryFile))
		}
		return a.actions.AddRunWithInfo(ctx, p.String(events.KeyRunParameters), p.String(events.KeyRunInfo), p.String(events.KeyPath), state)
	case events.TriggerStateChange:
		if isAnalysis(p) {
			return a.actions.UpdateAnalysis(ctx, runID, p.String(events.KeyAnalysisID), state, p.String(events.KeySummaryFile))
		}
		if state == lifecycle.StateMoved {
			if path := p.String(events.KeyPath); path != "" {
				if err := a.actions.UpdateRunPath(ctx, runID, path); err != nil {
					return err
				}
			}
		}
		return a.actions.UpdateRunState(ctx, runID, state)
	case events.TriggerNewSampleSheet:
		return a.actions.UpdateSampleSheet(ctx, runID, p.String(events.KeySampleSheet))
	default:
		return nil
	}
}

func isAnalysis(p events.Payload) bool {
	return p.String(events.KeyDirectoryType) == string(lifecycle.DirectoryAnalysis)
}
