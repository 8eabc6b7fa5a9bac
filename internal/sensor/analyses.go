package sensor

import (
	"context"
	"sort"

	"seqwatch/internal/events"
	"seqwatch/internal/lifecycle"
	"seqwatch/internal/logging"
	"seqwatch/internal/registry"
	"seqwatch/internal/services"
)

// checkReadyRuns fetches full records of ready runs on every analysis
// platform and reconciles their analysis directories.
func (s *Sensor) checkReadyRuns(ctx context.Context, c *cycle) error {
	for _, platform := range s.analysisPlatforms {
		runs, err := s.registry.GetRuns(ctx, registry.RunFilter{
			Platform: platform,
			State:    lifecycle.StateReady,
		})
		if err != nil {
			return services.Wrap(services.ErrRegistry, "sensor", "poll", "list ready "+platform+" runs", err)
		}
		c.logger.Debug("ready runs found", logging.String("platform", platform), logging.Int("runs", len(runs)))
		c.report.ReadyRuns += len(runs)
		for _, runID := range sortedRunIDs(runs) {
			run := runs[runID]
			s.checkAnalyses(services.WithRunID(ctx, runID), c, runID, run.Path, run.Analyses)
		}
	}
	return nil
}

// checkAnalyses compares the analysis directories of a run with the
// analyses the registry knows about.
func (s *Sensor) checkAnalyses(ctx context.Context, c *cycle, runID, runPath string, known []registry.Analysis) {
	logger := logging.WithContext(ctx, s.logger)
	dirs, err := lifecycle.ListAnalyses(runPath)
	if err != nil {
		logging.WarnWithContext(logger, "failed to list analysis directories", "analysis_scan_failed",
			logging.String(logging.FieldPath, runPath),
			logging.Error(err),
			logging.String(logging.FieldImpact, "analyses of this run are not reported this poll"),
		)
		return
	}
	registered := registry.Run{RunID: runID, Analyses: known}
	for _, dir := range dirs {
		current := lifecycle.AnalysisState(dir.Path)
		logger.Debug("looking at analysis", logging.String(logging.FieldPath, dir.Path), logging.String("summary_file", dir.SummaryFile))

		if existing, ok := registered.Analysis(dir.ID, dir.Path); ok {
			if existing.State == current {
				continue
			}
			logger.Info("analysis changed state",
				logging.String(logging.FieldPath, dir.Path),
				logging.String("from", string(existing.State)),
				logging.String(logging.FieldState, string(current)),
			)
			s.emit(ctx, c, events.New(events.TriggerStateChange, events.Payload{
				events.KeyRunID:           runID,
				events.KeyAnalysisID:      dir.ID,
				events.KeySummaryFile:     events.Nullable(dir.SummaryFile),
				events.KeyState:           string(current),
				events.KeyDirectoryType:   string(lifecycle.DirectoryAnalysis),
				events.KeyPath:            dir.Path,
				events.KeyTargetDirectory: s.nullableTarget(),
			}))
			continue
		}

		logger.Info("new analysis found", logging.String(logging.FieldPath, dir.Path), logging.String(logging.FieldState, string(current)))
		s.emit(ctx, c, events.New(events.TriggerNewDirectory, events.Payload{
			events.KeyRunID:           runID,
			events.KeySummaryFile:     events.Nullable(dir.SummaryFile),
			events.KeyPath:            dir.Path,
			events.KeyState:           string(current),
			events.KeyDirectoryType:   string(lifecycle.DirectoryAnalysis),
			events.KeyTargetDirectory: s.nullableTarget(),
		}))
	}
}

func sortedRunIDs(runs map[string]registry.Run) []string {
	ids := make([]string, 0, len(runs))
	for id := range runs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
