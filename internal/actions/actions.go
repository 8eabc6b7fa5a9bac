package actions

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"seqwatch/internal/config"
	"seqwatch/internal/lifecycle"
	"seqwatch/internal/logging"
	"seqwatch/internal/registry"
	"seqwatch/internal/rundir"
	"seqwatch/internal/services"
)

// Actions wraps registry writes with validation and logging.
type Actions struct {
	registry registry.Writer
	interop  []config.InteropDestination
	logger   *slog.Logger
}

// New builds the action set. cfg supplies the InterOp destination table and
// may be nil.
func New(writer registry.Writer, cfg *config.Config, logger *slog.Logger) *Actions {
	a := &Actions{
		registry: writer,
		logger:   logging.NewComponentLogger(logger, "actions"),
	}
	if cfg != nil {
		a.interop = append([]config.InteropDestination(nil), cfg.InteropDestinations...)
	}
	return a
}

// AddRun registers the run at path from its metadata file. The info file is
// expected next to it.
func (a *Actions) AddRun(ctx context.Context, runParameters, path string, state lifecycle.State) error {
	if err := require("add run", "runparameters", runParameters, "path", path, "state", string(state)); err != nil {
		return err
	}
	runInfo := rundir.RunInfoPath(filepath.Dir(runParameters))
	return a.AddRunWithInfo(ctx, runParameters, runInfo, path, state)
}

// AddRunWithInfo registers a run with explicit metadata and info files.
func (a *Actions) AddRunWithInfo(ctx context.Context, runParameters, runInfo, path string, state lifecycle.State) error {
	if err := require("add run", "runparameters", runParameters, "runinfo", runInfo, "path", path, "state", string(state)); err != nil {
		return err
	}
	a.log(ctx, "registering run", logging.String(logging.FieldPath, path), logging.String(logging.FieldState, string(state)))
	return a.registry.AddRun(ctx, registry.AddRunRequest{
		RunParametersPath: runParameters,
		RunInfoPath:       runInfo,
		Path:              path,
		State:             state,
	})
}

// UpdateRunState appends state to the run's history.
func (a *Actions) UpdateRunState(ctx context.Context, runID string, state lifecycle.State) error {
	if err := require("update run state", "run_id", runID, "state", string(state)); err != nil {
		return err
	}
	a.log(ctx, "updating run state", logging.String(logging.FieldRunID, runID), logging.String(logging.FieldState, string(state)))
	return a.registry.UpdateRunState(ctx, runID, string(state))
}

// UpdateRunPath records the new location of a run directory.
func (a *Actions) UpdateRunPath(ctx context.Context, runID, path string) error {
	if err := require("update run path", "run_id", runID, "path", path); err != nil {
		return err
	}
	a.log(ctx, "updating run path", logging.String(logging.FieldRunID, runID), logging.String(logging.FieldPath, path))
	return a.registry.UpdateRunPath(ctx, runID, path)
}

// UpdateSampleSheet registers a sample sheet for a run.
func (a *Actions) UpdateSampleSheet(ctx context.Context, runID, samplesheet string) error {
	if err := require("update samplesheet", "run_id", runID, "samplesheet", samplesheet); err != nil {
		return err
	}
	a.log(ctx, "registering sample sheet", logging.String(logging.FieldRunID, runID), logging.String(logging.FieldPath, samplesheet))
	return a.registry.UpdateSampleSheet(ctx, runID, samplesheet)
}

// AddAnalysis registers an analysis directory. summaryFile may be empty.
func (a *Actions) AddAnalysis(ctx context.Context, runID, path string, state lifecycle.State, summaryFile string) error {
	if err := require("add analysis", "run_id", runID, "path", path, "state", string(state)); err != nil {
		return err
	}
	a.log(ctx, "registering analysis", logging.String(logging.FieldRunID, runID), logging.String(logging.FieldPath, path))
	return a.registry.AddAnalysis(ctx, runID, registry.AddAnalysisRequest{
		Path:        path,
		State:       state,
		SummaryFile: summaryFile,
	})
}

// UpdateAnalysis changes the state and/or summary of an analysis.
func (a *Actions) UpdateAnalysis(ctx context.Context, runID, analysisID string, state lifecycle.State, summaryFile string) error {
	if err := require("update analysis", "run_id", runID, "analysis_id", analysisID); err != nil {
		return err
	}
	if state == "" && summaryFile == "" {
		return services.Fail(services.ErrValidation, "update analysis: nothing to update for analysis %s of %s", analysisID, runID)
	}
	a.log(ctx, "updating analysis",
		logging.String(logging.FieldRunID, runID),
		logging.String("analysis_id", analysisID),
		logging.String(logging.FieldState, string(state)),
	)
	return a.registry.UpdateAnalysis(ctx, runID, analysisID, registry.UpdateAnalysisRequest{
		State:       state,
		SummaryFile: summaryFile,
	})
}

// InteropDestination returns where InterOp files of platform are copied.
func (a *Actions) InteropDestination(platform string) (string, bool) {
	for _, dest := range a.interop {
		if dest.Platform == platform {
			return dest.Path, true
		}
	}
	return "", false
}

func (a *Actions) log(ctx context.Context, msg string, attrs ...logging.Attr) {
	logging.WithContext(ctx, a.logger).Info(msg, logging.Args(attrs...)...)
}

// require checks name/value pairs and reports the first empty value.
func require(operation string, pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			return services.Fail(services.ErrValidation, "%s: %s is required", operation, pairs[i])
		}
	}
	return nil
}
