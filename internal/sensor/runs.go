package sensor

import (
	"context"
	"errors"
	"path/filepath"

	"seqwatch/internal/events"
	"seqwatch/internal/lifecycle"
	"seqwatch/internal/logging"
	"seqwatch/internal/registry"
	"seqwatch/internal/rundir"
	"seqwatch/internal/samplesheet"
	"seqwatch/internal/services"
)

// checkNewRuns walks every watched root looking for unregistered runs and
// runs that moved within or were duplicated across the roots.
func (s *Sensor) checkNewRuns(ctx context.Context, c *cycle, registered map[string]registry.Run) {
	for _, root := range s.roots {
		rootCtx := services.WithWatchRoot(ctx, root.Path)
		logger := logging.WithContext(rootCtx, s.logger)

		if !rundir.IsDir(root.Path) {
			c.report.MissingRoots = append(c.report.MissingRoots, root.Path)
			logging.ErrorWithContext(logger, "watched directory does not exist", "watch_root_missing",
				logging.String(logging.FieldPath, root.Path),
				logging.String(logging.FieldErrorHint, "check sensor.watch_directories and that the share is mounted"),
			)
			continue
		}
		dirs, err := rundir.Subdirectories(root.Path)
		if err != nil {
			c.report.MissingRoots = append(c.report.MissingRoots, root.Path)
			logging.ErrorWithContext(logger, "failed to list watched directory", "watch_root_unreadable",
				logging.String(logging.FieldPath, root.Path),
				logging.Error(err),
			)
			continue
		}
		logger.Debug("checking watched directory", logging.String(logging.FieldPath, root.Path), logging.Int("directories", len(dirs)))

		for _, dir := range dirs {
			c.report.Directories++
			s.checkDirectory(rootCtx, c, registered, dir)
		}
	}
}

func (s *Sensor) checkDirectory(ctx context.Context, c *cycle, registered map[string]registry.Run, dir string) {
	meta, err := s.parser.Inspect(dir)
	if err != nil {
		s.handleIncomplete(ctx, c, dir, err)
		return
	}
	ctx = services.WithRunID(ctx, meta.RunID)
	logger := logging.WithContext(ctx, s.logger)
	logger.Debug("identified run", logging.String(logging.FieldPath, dir), logging.String("platform", meta.Platform))

	run, known := registered[meta.RunID]
	if !known {
		state := lifecycle.RunState(dir)
		logger.Info("new run directory found",
			logging.String(logging.FieldPath, dir),
			logging.String(logging.FieldState, string(state)),
		)
		s.emit(ctx, c, events.New(events.TriggerNewDirectory, events.Payload{
			events.KeyRunID:         meta.RunID,
			events.KeyRunParameters: rundir.RunParametersPath(dir),
			events.KeyRunInfo:       rundir.RunInfoPath(dir),
			events.KeyPath:          dir,
			events.KeyState:         string(state),
			events.KeyDirectoryType: string(lifecycle.DirectoryRun),
		}))
		s.checkAnalyses(ctx, c, meta.RunID, dir, nil)
		return
	}

	registeredPath := run.Path
	registeredExists := rundir.Exists(registeredPath)
	if !registeredExists && !samePath(registeredPath, dir) && !run.Moved() {
		logger.Info("run directory moved",
			logging.String("from", registeredPath),
			logging.String(logging.FieldPath, dir),
		)
		s.emit(ctx, c, events.New(events.TriggerStateChange, events.Payload{
			events.KeyRunID:         meta.RunID,
			events.KeyPath:          dir,
			events.KeyState:         string(lifecycle.StateMoved),
			events.KeyDirectoryType: string(lifecycle.DirectoryRun),
		}))
		c.moved[meta.RunID] = struct{}{}
	}
	if registeredExists && !samePath(registeredPath, dir) {
		logging.WarnWithContext(logger, "run found in more than one location", "duplicate_run",
			logging.String(logging.FieldPath, registeredPath),
			logging.String("duplicate_path", dir),
			logging.String(logging.FieldErrorHint, "remove or rename one of the copies"),
			logging.String(logging.FieldImpact, "the duplicate is ignored"),
		)
		s.emitOnce(ctx, c, events.New(events.TriggerDuplicateRun, events.Payload{
			events.KeyRunID:         meta.RunID,
			events.KeyPath:          registeredPath,
			events.KeyDuplicatePath: dir,
			events.KeyEmail:         s.emailList(),
		}))
	}
}

// handleIncomplete reports a directory that is not (yet) a valid run.
// Missing files mean incomplete; anything else is an error.
func (s *Sensor) handleIncomplete(ctx context.Context, c *cycle, dir string, cause error) {
	c.report.Incomplete++
	state := lifecycle.StateError
	if errors.Is(cause, services.ErrNotFound) {
		state = lifecycle.StateIncomplete
	}
	logger := logging.WithContext(ctx, s.logger)
	logger.Debug("incomplete run directory",
		logging.String(logging.FieldPath, dir),
		logging.String(logging.FieldState, string(state)),
		logging.String("reason", cause.Error()),
	)
	if len(s.emails) == 0 {
		logger.Info("no email addresses provided, no event dispatched", logging.String(logging.FieldPath, dir))
		return
	}
	s.emitOnce(ctx, c, events.New(events.TriggerIncompleteDirectory, events.Payload{
		events.KeyPath:          dir,
		events.KeyState:         string(state),
		events.KeyDirectoryType: string(lifecycle.DirectoryRun),
		events.KeyMessage:       cause.Error(),
		events.KeyEmail:         s.emailList(),
	}))
}

// checkExistingRuns re-examines every registered run that was not moved
// during this cycle.
func (s *Sensor) checkExistingRuns(ctx context.Context, c *cycle, registered map[string]registry.Run) {
	for _, runID := range sortedRunIDs(registered) {
		run := registered[runID]
		runCtx := services.WithRunID(ctx, runID)
		logger := logging.WithContext(runCtx, s.logger)
		logger.Debug("checking registered run", logging.String(logging.FieldPath, run.Path))

		if _, moved := c.moved[runID]; moved {
			continue
		}
		present := rundir.IsDir(run.Path)
		if !present {
			if run.Moved() {
				continue
			}
			logger.Info("run directory left the watched directories",
				logging.String(logging.FieldPath, run.Path),
			)
			s.emit(runCtx, c, events.New(events.TriggerStateChange, events.Payload{
				events.KeyRunID:         runID,
				events.KeyPath:          nil,
				events.KeyState:         string(lifecycle.StateMoved),
				events.KeyDirectoryType: string(lifecycle.DirectoryRun),
			}))
			continue
		}

		current := lifecycle.RunState(run.Path)
		previous, hasHistory := run.CurrentState()
		if !hasHistory || previous != current {
			logger.Info("run changed state",
				logging.String(logging.FieldPath, run.Path),
				logging.String("from", string(previous)),
				logging.String(logging.FieldState, string(current)),
			)
			s.emit(runCtx, c, events.New(events.TriggerStateChange, events.Payload{
				events.KeyRunID:           runID,
				events.KeyPath:            run.Path,
				events.KeyState:           string(current),
				events.KeyDirectoryType:   string(lifecycle.DirectoryRun),
				events.KeyPlatform:        run.Platform,
				events.KeyTargetDirectory: s.nullableTarget(),
			}))
		}

		s.checkSampleSheet(runCtx, c, run)
	}
}

func (s *Sensor) checkSampleSheet(ctx context.Context, c *cycle, run registry.Run) {
	sheet, found, err := samplesheet.Newer(run.Path, run.LatestSampleSheetTime())
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "sample sheet lookup failed", "samplesheet_lookup_failed",
			logging.String(logging.FieldPath, run.Path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "sample sheet changes for this run are not reported this poll"),
		)
		return
	}
	if !found {
		return
	}
	s.emit(ctx, c, events.New(events.TriggerNewSampleSheet, events.Payload{
		events.KeyRunID:       run.RunID,
		events.KeySampleSheet: sheet.Path,
	}))
}

func (s *Sensor) emailList() []string {
	return append([]string{}, s.emails...)
}

func samePath(a, b string) bool {
	return filepath.Clean(a) == filepath.Clean(b)
}
