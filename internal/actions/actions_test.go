package actions_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"seqwatch/internal/actions"
	"seqwatch/internal/config"
	"seqwatch/internal/events"
	"seqwatch/internal/lifecycle"
	"seqwatch/internal/rundir"
	"seqwatch/internal/services"
	"seqwatch/internal/testsupport"
)

func TestAddRunDerivesInfoFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	root := cfg.Sensor.WatchDirectories[0]
	dir := testsupport.NewRunDir(t, root, "run1", rundir.NovaSeqXPlus, "20240620_LH00123_0001_A22FLKJLT3")
	fake := testsupport.NewFakeRegistry()
	a := actions.New(fake, cfg, nil)

	if err := a.AddRun(context.Background(), rundir.RunParametersPath(dir), dir, lifecycle.StatePending); err != nil {
		t.Fatalf("AddRun: %v", err)
	}
	run, ok := fake.Run("20240620_LH00123_0001_A22FLKJLT3")
	if !ok {
		t.Fatal("expected run to be registered")
	}
	if run.Platform != rundir.NovaSeqXPlus || run.Path != dir {
		t.Fatalf("unexpected run %#v", run)
	}
	if state, _ := run.CurrentState(); state != lifecycle.StatePending {
		t.Fatalf("state = %s", state)
	}
}

func TestWrappersValidateArguments(t *testing.T) {
	a := actions.New(testsupport.NewFakeRegistry(), nil, nil)
	ctx := context.Background()
	tests := []struct {
		name string
		call func() error
	}{
		{"add run", func() error { return a.AddRun(ctx, "", "/p", lifecycle.StateNew) }},
		{"update state", func() error { return a.UpdateRunState(ctx, "r1", "") }},
		{"update path", func() error { return a.UpdateRunPath(ctx, "", "/p") }},
		{"update samplesheet", func() error { return a.UpdateSampleSheet(ctx, "r1", " ") }},
		{"add analysis", func() error { return a.AddAnalysis(ctx, "r1", "", lifecycle.StateReady, "") }},
		{"update analysis", func() error { return a.UpdateAnalysis(ctx, "r1", "1", "", "") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestInteropDestination(t *testing.T) {
	cfg := config.Default()
	cfg.InteropDestinations = []config.InteropDestination{
		{Platform: rundir.NovaSeqXPlus, Path: "/mnt/interop/novaseq"},
		{Platform: rundir.MiSeq, Path: "/mnt/interop/miseq"},
	}
	a := actions.New(nil, &cfg, nil)
	if got, ok := a.InteropDestination(rundir.MiSeq); !ok || got != "/mnt/interop/miseq" {
		t.Fatalf("got %q, %v", got, ok)
	}
	if _, ok := a.InteropDestination(rundir.NextSeq5x0); ok {
		t.Fatal("expected no destination for NextSeq")
	}
}

func TestApplierMapsEventsToWrites(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	root := cfg.Sensor.WatchDirectories[0]
	dir := testsupport.NewRunDir(t, root, "run1", rundir.NovaSeqXPlus, "run-1")
	moved := filepath.Join(root, "run1-moved")
	sheet := testsupport.Touch(t, filepath.Join(dir, "SampleSheet.csv"))

	fake := testsupport.NewFakeRegistry()
	applier := actions.NewApplier(actions.New(fake, cfg, nil))
	ctx := context.Background()

	steps := []events.Event{
		events.New(events.TriggerNewDirectory, events.Payload{
			events.KeyRunID:         "run-1",
			events.KeyRunParameters: rundir.RunParametersPath(dir),
			events.KeyRunInfo:       rundir.RunInfoPath(dir),
			events.KeyPath:          dir,
			events.KeyState:         "pending",
			events.KeyDirectoryType: "run",
		}),
		events.New(events.TriggerNewSampleSheet, events.Payload{
			events.KeyRunID:       "run-1",
			events.KeySampleSheet: sheet,
		}),
		events.New(events.TriggerNewDirectory, events.Payload{
			events.KeyRunID:           "run-1",
			events.KeySummaryFile:     nil,
			events.KeyPath:            filepath.Join(dir, "Analysis", "1"),
			events.KeyState:           "pending",
			events.KeyDirectoryType:   "analysis",
			events.KeyTargetDirectory: nil,
		}),
		events.New(events.TriggerStateChange, events.Payload{
			events.KeyRunID:         "run-1",
			events.KeyAnalysisID:    "1",
			events.KeySummaryFile:   nil,
			events.KeyState:         "ready",
			events.KeyDirectoryType: "analysis",
			events.KeyPath:          filepath.Join(dir, "Analysis", "1"),
		}),
		events.New(events.TriggerStateChange, events.Payload{
			events.KeyRunID:         "run-1",
			events.KeyPath:          moved,
			events.KeyState:         "moved",
			events.KeyDirectoryType: "run",
		}),
		events.New(events.TriggerDuplicateRun, events.Payload{events.KeyRunID: "run-1"}),
	}
	for _, ev := range steps {
		if err := applier.Dispatch(ctx, ev); err != nil {
			t.Fatalf("Dispatch %s: %v", ev, err)
		}
	}

	var methods []string
	for _, call := range fake.Calls() {
		methods = append(methods, call.Method)
	}
	want := []string{"AddRun", "UpdateSampleSheet", "AddAnalysis", "UpdateAnalysis", "UpdateRunPath", "UpdateRunState"}
	if len(methods) != len(want) {
		t.Fatalf("calls = %v, want %v", methods, want)
	}
	for i := range want {
		if methods[i] != want[i] {
			t.Fatalf("calls = %v, want %v", methods, want)
		}
	}

	run, _ := fake.Run("run-1")
	if run.Path != moved || !run.Moved() {
		t.Fatalf("expected moved run at %s, got %#v", moved, run)
	}
	if len(run.Analyses) != 1 || run.Analyses[0].State != lifecycle.StateReady {
		t.Fatalf("unexpected analyses %#v", run.Analyses)
	}
	if len(run.SampleSheets) != 1 || run.SampleSheets[0].Path != sheet {
		t.Fatalf("unexpected sample sheets %#v", run.SampleSheets)
	}
}

func TestApplierMoveWithoutPathOnlyUpdatesState(t *testing.T) {
	fake := testsupport.NewFakeRegistry()
	fake.Seed(testsupport.RegisteredRun("run-1", "/gone", rundir.MiSeq, lifecycle.StateReady))
	applier := actions.NewApplier(actions.New(fake, nil, nil))

	err := applier.Dispatch(context.Background(), events.New(events.TriggerStateChange, events.Payload{
		events.KeyRunID:         "run-1",
		events.KeyPath:          nil,
		events.KeyState:         "moved",
		events.KeyDirectoryType: "run",
	}))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	calls := fake.Calls()
	if len(calls) != 1 || calls[0].Method != "UpdateRunState" {
		t.Fatalf("unexpected calls %v", calls)
	}
}

func TestApplierReturnsRegistryErrors(t *testing.T) {
	fake := testsupport.NewFakeRegistry()
	fake.WriteErr = services.Wrap(services.ErrRegistry, "registry", "update", "HTTP 500", nil)
	applier := actions.NewApplier(actions.New(fake, nil, nil))

	err := applier.Dispatch(context.Background(), events.New(events.TriggerNewSampleSheet, events.Payload{
		events.KeyRunID:       "run-1",
		events.KeySampleSheet: "/x/SampleSheet.csv",
	}))
	if !errors.Is(err, services.ErrRegistry) {
		t.Fatalf("expected registry error, got %v", err)
	}
	if len(fake.Calls()) != 1 {
		t.Fatalf("expected exactly one attempt, got %d", len(fake.Calls()))
	}
}
