package testsupport

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"seqwatch/internal/lifecycle"
	"seqwatch/internal/registry"
	"seqwatch/internal/rundir"
	"seqwatch/internal/services"
)

// RegistryCall records one write made against a FakeRegistry.
type RegistryCall struct {
	Method string
	RunID  string
	Args   []string
}

// FakeRegistry is an in-memory registry.Client. AddRun parses the uploaded
// metadata file the way the real registry does.
type FakeRegistry struct {
	mu     sync.Mutex
	runs   map[string]registry.Run
	calls  []RegistryCall
	reads  []registry.RunFilter
	parser *rundir.Parser
	now    func() time.Time

	// GetRunsErr fails every GetRuns call matching GetRunsErrFilter (or all
	// calls when the filter is nil).
	GetRunsErr       error
	GetRunsErrFilter func(registry.RunFilter) bool
	// WriteErr fails every write.
	WriteErr error
}

// NewFakeRegistry returns an empty fake.
func NewFakeRegistry() *FakeRegistry {
	return &FakeRegistry{
		runs:   make(map[string]registry.Run),
		parser: rundir.NewParser(nil),
		now:    time.Now,
	}
}

// Seed stores run as-is.
func (f *FakeRegistry) Seed(runs ...registry.Run) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, run := range runs {
		f.runs[run.RunID] = run
	}
}

// Run returns the stored copy of a run.
func (f *FakeRegistry) Run(runID string) (registry.Run, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[runID]
	return run, ok
}

// Calls returns the recorded writes in order.
func (f *FakeRegistry) Calls() []RegistryCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RegistryCall(nil), f.calls...)
}

// Reads returns the filters GetRuns was called with.
func (f *FakeRegistry) Reads() []registry.RunFilter {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]registry.RunFilter(nil), f.reads...)
}

func (f *FakeRegistry) GetRuns(_ context.Context, filter registry.RunFilter) (map[string]registry.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads = append(f.reads, filter)
	if f.GetRunsErr != nil && (f.GetRunsErrFilter == nil || f.GetRunsErrFilter(filter)) {
		return nil, f.GetRunsErr
	}
	out := make(map[string]registry.Run)
	for id, run := range f.runs {
		if filter.Platform != "" && run.Platform != filter.Platform {
			continue
		}
		if filter.State != "" {
			state, ok := run.CurrentState()
			if !ok || state != filter.State {
				continue
			}
		}
		out[id] = cloneRun(run, filter.Brief)
	}
	return out, nil
}

func (f *FakeRegistry) record(method, runID string, args ...string) error {
	f.calls = append(f.calls, RegistryCall{Method: method, RunID: runID, Args: args})
	return f.WriteErr
}

func (f *FakeRegistry) AddRun(_ context.Context, req registry.AddRunRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("AddRun", "", req.Path, string(req.State)); err != nil {
		return err
	}
	meta, err := f.parser.ReadMetadata(filepath.Dir(req.RunParametersPath))
	if err != nil {
		return services.Wrap(services.ErrRegistry, "fake registry", "add run", req.RunParametersPath, err)
	}
	if _, exists := f.runs[meta.RunID]; exists {
		return services.Wrap(services.ErrRegistry, "fake registry", "add run", fmt.Sprintf("run %s already exists", meta.RunID), nil)
	}
	f.calls[len(f.calls)-1].RunID = meta.RunID
	f.runs[meta.RunID] = registry.Run{
		RunID:        meta.RunID,
		Path:         req.Path,
		Platform:     meta.Platform,
		StateHistory: []registry.StateEntry{{State: req.State, Time: registry.FormatTime(f.now())}},
	}
	return nil
}

func (f *FakeRegistry) UpdateRunState(_ context.Context, runID, state string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("UpdateRunState", runID, state); err != nil {
		return err
	}
	run, ok := f.runs[runID]
	if !ok {
		return errUnknownRun(runID)
	}
	entry := registry.StateEntry{State: lifecycle.State(state), Time: registry.FormatTime(f.now())}
	run.StateHistory = append([]registry.StateEntry{entry}, run.StateHistory...)
	f.runs[runID] = run
	return nil
}

func (f *FakeRegistry) UpdateRunPath(_ context.Context, runID, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("UpdateRunPath", runID, path); err != nil {
		return err
	}
	run, ok := f.runs[runID]
	if !ok {
		return errUnknownRun(runID)
	}
	run.Path = path
	f.runs[runID] = run
	return nil
}

func (f *FakeRegistry) UpdateSampleSheet(_ context.Context, runID, samplesheet string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("UpdateSampleSheet", runID, samplesheet); err != nil {
		return err
	}
	run, ok := f.runs[runID]
	if !ok {
		return errUnknownRun(runID)
	}
	info, err := os.Stat(samplesheet)
	if err != nil {
		return services.Wrap(services.ErrRegistry, "fake registry", "update samplesheet", samplesheet, err)
	}
	run.SampleSheets = append(append([]registry.SampleSheet(nil), run.SampleSheets...), registry.SampleSheet{
		Path:             samplesheet,
		ModificationTime: registry.FormatTime(info.ModTime()),
	})
	f.runs[runID] = run
	return nil
}

func (f *FakeRegistry) AddAnalysis(_ context.Context, runID string, req registry.AddAnalysisRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("AddAnalysis", runID, req.Path, string(req.State), req.SummaryFile); err != nil {
		return err
	}
	run, ok := f.runs[runID]
	if !ok {
		return errUnknownRun(runID)
	}
	run.Analyses = append(append([]registry.Analysis(nil), run.Analyses...), registry.Analysis{
		AnalysisID:  registry.ID(filepath.Base(req.Path)),
		Path:        req.Path,
		State:       req.State,
		SummaryFile: req.SummaryFile,
	})
	f.runs[runID] = run
	return nil
}

func (f *FakeRegistry) UpdateAnalysis(_ context.Context, runID, analysisID string, req registry.UpdateAnalysisRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("UpdateAnalysis", runID, analysisID, string(req.State), req.SummaryFile); err != nil {
		return err
	}
	run, ok := f.runs[runID]
	if !ok {
		return errUnknownRun(runID)
	}
	analyses := append([]registry.Analysis(nil), run.Analyses...)
	for i := range analyses {
		if string(analyses[i].AnalysisID) != analysisID {
			continue
		}
		if req.State != "" {
			analyses[i].State = req.State
		}
		if req.SummaryFile != "" {
			analyses[i].SummaryFile = req.SummaryFile
		}
		run.Analyses = analyses
		f.runs[runID] = run
		return nil
	}
	return services.Wrap(services.ErrRegistry, "fake registry", "update analysis", fmt.Sprintf("analysis %s not found for run %s", analysisID, runID), nil)
}

// RunIDs lists stored run ids in sorted order.
func (f *FakeRegistry) RunIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.runs))
	for id := range f.runs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func cloneRun(run registry.Run, brief bool) registry.Run {
	out := run
	out.StateHistory = append([]registry.StateEntry(nil), run.StateHistory...)
	out.SampleSheets = append([]registry.SampleSheet(nil), run.SampleSheets...)
	if brief {
		out.Analyses = nil
	} else {
		out.Analyses = append([]registry.Analysis(nil), run.Analyses...)
	}
	return out
}

func errUnknownRun(runID string) error {
	return services.Wrap(services.ErrRegistry, "fake registry", "lookup", "unknown run "+runID, errors.New("HTTP 404"))
}

// RegisteredRun builds a registry.Run with a single-entry state history.
func RegisteredRun(runID, path, platform string, state lifecycle.State) registry.Run {
	return registry.Run{
		RunID:        runID,
		Path:         path,
		Platform:     platform,
		StateHistory: []registry.StateEntry{{State: state, Time: "2024-06-20T11:09:03.617000Z"}},
	}
}
