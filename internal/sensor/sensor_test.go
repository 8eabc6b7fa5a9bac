package sensor_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"seqwatch/internal/actions"
	"seqwatch/internal/config"
	"seqwatch/internal/events"
	"seqwatch/internal/lifecycle"
	"seqwatch/internal/registry"
	"seqwatch/internal/rundir"
	"seqwatch/internal/sensor"
	"seqwatch/internal/services"
	"seqwatch/internal/testsupport"
)

const (
	novaRunID = "20240620_LH00123_0042_A22FLKJLT3"
	miseqRun  = "240620_M00123_0007_000000000-L9XYZ"
)

type harness struct {
	cfg      *config.Config
	root     string
	registry *testsupport.FakeRegistry
	recorder *testsupport.Recorder
	sensor   *sensor.Sensor
}

func newHarness(t *testing.T, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	root := testsupport.Mkdir(t, cfg.Sensor.WatchDirectories[0])
	h := &harness{
		cfg:      cfg,
		root:     root,
		registry: testsupport.NewFakeRegistry(),
		recorder: testsupport.NewRecorder(),
	}
	h.sensor = sensor.New(cfg, h.registry, h.recorder, h.recorder, nil)
	return h
}

// poll runs one cycle and returns only the events it produced.
func (h *harness) poll(t *testing.T) []events.Event {
	t.Helper()
	before := len(h.recorder.Events())
	if _, err := h.sensor.Poll(context.Background()); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	return h.recorder.Events()[before:]
}

func only(t *testing.T, got []events.Event, trigger string) events.Event {
	t.Helper()
	if len(got) != 1 {
		t.Fatalf("expected exactly one event, got %d: %v", len(got), got)
	}
	if got[0].Trigger != trigger {
		t.Fatalf("expected %s, got %s", trigger, got[0])
	}
	return got[0]
}

func TestNewRunEmitsNewDirectory(t *testing.T) {
	h := newHarness(t)
	dir := testsupport.NewRunDir(t, h.root, "run1", rundir.MiSeq, miseqRun)

	ev := only(t, h.poll(t), events.TriggerNewDirectory)
	want := events.Payload{
		"run_id":         miseqRun,
		"runparameters":  filepath.Join(dir, "RunParameters.xml"),
		"runinfo":        filepath.Join(dir, "RunInfo.xml"),
		"path":           dir,
		"state":          "pending",
		"directory_type": "run",
	}
	if !events.Equal(ev.Payload, want) {
		t.Fatalf("payload = %v, want %v", ev.Payload, want)
	}
}

func TestIdempotentOnceRegistryCatchesUp(t *testing.T) {
	h := newHarness(t)
	dir := testsupport.NewRunDir(t, h.root, "run1", rundir.NovaSeqXPlus, novaRunID, testsupport.Ready(), testsupport.Completed())
	testsupport.WriteSampleSheet(t, dir, "SampleSheet.csv", time.Date(2024, 6, 20, 11, 9, 3, 0, time.UTC))
	testsupport.NewAnalysisDir(t, dir, "1", true, true)

	applier := actions.NewApplier(actions.New(h.registry, h.cfg, nil))
	s := sensor.New(h.cfg, h.registry, events.Fanout{h.recorder, applier}, h.recorder, nil)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := s.Poll(ctx); err != nil {
			t.Fatalf("Poll %d: %v", i, err)
		}
	}
	before := len(h.recorder.Events())
	report, err := s.Poll(ctx)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if extra := h.recorder.Events()[before:]; len(extra) != 0 {
		t.Fatalf("expected a quiet poll, got %v", extra)
	}
	if report.TotalEmitted() != 0 || report.DispatchFailures != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	before = len(h.recorder.Events())
	if _, err := s.Poll(ctx); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if extra := h.recorder.Events()[before:]; len(extra) != 0 {
		t.Fatalf("expected second quiet poll, got %v", extra)
	}
}

func TestMoveWithinWatchedRoots(t *testing.T) {
	h := newHarness(t)
	oldPath := filepath.Join(h.root, "old")
	newPath := testsupport.NewRunDir(t, h.root, "new", rundir.NovaSeqXPlus, novaRunID, testsupport.Ready())
	h.registry.Seed(testsupport.RegisteredRun(novaRunID, oldPath, rundir.NovaSeqXPlus, lifecycle.StateReady))

	ev := only(t, h.poll(t), events.TriggerStateChange)
	want := events.Payload{
		"run_id":         novaRunID,
		"path":           newPath,
		"state":          "moved",
		"directory_type": "run",
	}
	if !events.Equal(ev.Payload, want) {
		t.Fatalf("payload = %v, want %v", ev.Payload, want)
	}

	run, _ := h.registry.Run(novaRunID)
	run.StateHistory = append([]registry.StateEntry{{State: lifecycle.StateMoved}}, run.StateHistory...)
	h.registry.Seed(run)

	if got := h.poll(t); len(got) != 0 {
		t.Fatalf("expected no re-fire while registry state is moved, got %v", got)
	}
}

func TestDanglingRegisteredSymlinkCountsAsMoved(t *testing.T) {
	h := newHarness(t, testsupport.WithNotificationEmail("seq@example.org"))
	oldPath := filepath.Join(h.root, "old")
	if err := os.Symlink(filepath.Join(h.root, "missing-target"), oldPath); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	newPath := testsupport.NewRunDir(t, h.root, "moved", rundir.NovaSeqXPlus, novaRunID, testsupport.Ready())
	h.registry.Seed(testsupport.RegisteredRun(novaRunID, oldPath, rundir.NovaSeqXPlus, lifecycle.StateReady))

	ev := only(t, h.poll(t), events.TriggerStateChange)
	if ev.Payload.String("state") != "moved" || ev.Payload.String("path") != newPath {
		t.Fatalf("unexpected payload %v", ev.Payload)
	}
}

func TestRunLeavingWatchedRootsIsMovedWithNullPath(t *testing.T) {
	h := newHarness(t)
	h.registry.Seed(testsupport.RegisteredRun(novaRunID, filepath.Join(h.root, "gone"), rundir.NovaSeqXPlus, lifecycle.StateReady))

	ev := only(t, h.poll(t), events.TriggerStateChange)
	if !ev.Payload.IsNull("path") || ev.Payload.String("state") != "moved" {
		t.Fatalf("unexpected payload %v", ev.Payload)
	}

	moved := testsupport.RegisteredRun(novaRunID, filepath.Join(h.root, "gone"), rundir.NovaSeqXPlus, lifecycle.StateMoved)
	h.registry.Seed(moved)
	if got := h.poll(t); len(got) != 0 {
		t.Fatalf("expected nothing for a run already moved to an unknown place, got %v", got)
	}
}

func TestDuplicateRunIsSuppressedOnRepoll(t *testing.T) {
	h := newHarness(t, testsupport.WithNotificationEmail("seq@example.org"))
	original := testsupport.NewRunDir(t, h.root, "a", rundir.NovaSeqXPlus, novaRunID, testsupport.Ready())
	copyDir := testsupport.NewRunDir(t, h.root, "b", rundir.NovaSeqXPlus, novaRunID, testsupport.Ready())
	h.registry.Seed(testsupport.RegisteredRun(novaRunID, original, rundir.NovaSeqXPlus, lifecycle.StateReady))

	ev := only(t, h.poll(t), events.TriggerDuplicateRun)
	want := events.Payload{
		"run_id":         novaRunID,
		"path":           original,
		"duplicate_path": copyDir,
		"email":          []string{"seq@example.org"},
	}
	if !events.Equal(ev.Payload, want) {
		t.Fatalf("payload = %v, want %v", ev.Payload, want)
	}

	report, err := h.sensor.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if got := h.recorder.ByTrigger(events.TriggerDuplicateRun); len(got) != 1 {
		t.Fatalf("expected duplicate to be suppressed, got %d events", len(got))
	}
	if report.Suppressed != 1 {
		t.Fatalf("expected 1 suppressed, got %d", report.Suppressed)
	}
}

func TestSampleSheetFreshness(t *testing.T) {
	h := newHarness(t)
	dir := testsupport.NewRunDir(t, h.root, "run1", rundir.NovaSeqXPlus, novaRunID, testsupport.Ready())
	sheetTime := time.Date(2024, 6, 20, 11, 9, 3, 617000000, time.UTC)
	sheet := testsupport.WriteSampleSheet(t, dir, "SampleSheet.csv", sheetTime)

	run := testsupport.RegisteredRun(novaRunID, dir, rundir.NovaSeqXPlus, lifecycle.StateReady)
	run.SampleSheets = []registry.SampleSheet{{
		Path:             sheet,
		ModificationTime: "2024-06-20T13:09:03.000000+02:00",
	}}
	h.registry.Seed(run)

	if got := h.poll(t); len(got) != 0 {
		t.Fatalf("same instant in another offset must not be newer, got %v", got)
	}

	newer := testsupport.WriteSampleSheet(t, dir, "samplesheet_v2.csv", sheetTime.Add(time.Second))
	ev := only(t, h.poll(t), events.TriggerNewSampleSheet)
	want := events.Payload{"run_id": novaRunID, "samplesheet": newer}
	if !events.Equal(ev.Payload, want) {
		t.Fatalf("payload = %v, want %v", ev.Payload, want)
	}
}

func TestUnregisteredSheetIsReportedWhenRegisteredPathGone(t *testing.T) {
	h := newHarness(t)
	dir := testsupport.NewRunDir(t, h.root, "run1", rundir.NovaSeqXPlus, novaRunID, testsupport.Ready())
	sheet := testsupport.WriteSampleSheet(t, dir, "SampleSheet.csv", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	run := testsupport.RegisteredRun(novaRunID, dir, rundir.NovaSeqXPlus, lifecycle.StateReady)
	run.SampleSheets = []registry.SampleSheet{{
		Path:             filepath.Join(dir, "deleted.csv"),
		ModificationTime: "2030-01-01T00:00:00.000000Z",
	}}
	h.registry.Seed(run)

	ev := only(t, h.poll(t), events.TriggerNewSampleSheet)
	if ev.Payload.String("samplesheet") != sheet {
		t.Fatalf("unexpected payload %v", ev.Payload)
	}
}

func TestEndToEndLifecycle(t *testing.T) {
	h := newHarness(t, testsupport.WithNotificationEmail("seq@example.org"))
	dir := testsupport.Mkdir(t, filepath.Join(h.root, "run1"))

	ev := only(t, h.poll(t), events.TriggerIncompleteDirectory)
	if ev.Payload.String("state") != "incomplete" || ev.Payload.String("path") != dir {
		t.Fatalf("unexpected payload %v", ev.Payload)
	}
	if ev.Payload.String("message") != filepath.Join(dir, "RunParameters.xml")+" does not exist" {
		t.Fatalf("unexpected message %q", ev.Payload.String("message"))
	}

	testsupport.Touch(t, filepath.Join(dir, "RunParameters.xml"))
	ev = only(t, h.poll(t), events.TriggerIncompleteDirectory)
	if ev.Payload.String("state") != "error" {
		t.Fatalf("expected error state, got %v", ev.Payload)
	}

	testsupport.WriteRunParameters(t, dir, rundir.NovaSeqXPlus, novaRunID)
	testsupport.WriteRunInfo(t, dir)
	ev = only(t, h.poll(t), events.TriggerNewDirectory)
	if ev.Payload.String("state") != "pending" {
		t.Fatalf("expected pending, got %v", ev.Payload)
	}

	testsupport.WriteCopyComplete(t, dir)
	h.registry.Seed(testsupport.RegisteredRun(novaRunID, dir, rundir.NovaSeqXPlus, lifecycle.StatePending))
	ev = only(t, h.poll(t), events.TriggerStateChange)
	want := events.Payload{
		"run_id":           novaRunID,
		"path":             dir,
		"state":            "ready",
		"directory_type":   "run",
		"platform":         rundir.NovaSeqXPlus,
		"target_directory": nil,
	}
	if !events.Equal(ev.Payload, want) {
		t.Fatalf("payload = %v, want %v", ev.Payload, want)
	}
}

func TestIncompleteDirectoryWithoutRecipientsDispatchesNothing(t *testing.T) {
	h := newHarness(t)
	testsupport.Mkdir(t, filepath.Join(h.root, "scratch"))

	before := len(h.recorder.Events())
	report, err := h.sensor.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if got := h.recorder.Events()[before:]; len(got) != 0 {
		t.Fatalf("expected no events, got %v", got)
	}
	if report.Incomplete != 1 {
		t.Fatalf("expected incomplete count 1, got %d", report.Incomplete)
	}
}

func TestInvalidMetadataClassifiedAsError(t *testing.T) {
	tests := []struct {
		name    string
		content string
		message string
	}{
		{
			name:    "serial mismatch",
			content: "<RunParameters><InstrumentSerialNumber>XX001</InstrumentSerialNumber><RunID>r</RunID></RunParameters>",
			message: "Serial number XX001 does not belong to NovaSeq X Plus",
		},
		{
			name:    "unknown platform",
			content: "<RunParameters><RunID>r</RunID></RunParameters>",
			message: "Could not identify platform",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, testsupport.WithNotificationEmail("seq@example.org"))
			dir := testsupport.Mkdir(t, filepath.Join(h.root, "run"))
			testsupport.WriteFile(t, filepath.Join(dir, "RunParameters.xml"), tt.content)
			testsupport.WriteRunInfo(t, dir)

			ev := only(t, h.poll(t), events.TriggerIncompleteDirectory)
			if ev.Payload.String("state") != "error" || ev.Payload.String("message") != tt.message {
				t.Fatalf("unexpected payload %v", ev.Payload)
			}
		})
	}
}

func TestEmptyRunInfoClassifiedAsError(t *testing.T) {
	h := newHarness(t, testsupport.WithNotificationEmail("seq@example.org"))
	dir := testsupport.Mkdir(t, filepath.Join(h.root, "run"))
	testsupport.WriteRunParameters(t, dir, rundir.NovaSeqXPlus, novaRunID)
	runInfo := testsupport.Touch(t, rundir.RunInfoPath(dir))

	ev := only(t, h.poll(t), events.TriggerIncompleteDirectory)
	want := events.Payload{
		"path":           dir,
		"state":          "error",
		"directory_type": "run",
		"message":        runInfo + " is empty",
		"email":          []string{"seq@example.org"},
	}
	if !events.Equal(ev.Payload, want) {
		t.Fatalf("payload = %v, want %v", ev.Payload, want)
	}
}

func TestEmptyStateHistoryAlwaysDiffers(t *testing.T) {
	h := newHarness(t)
	dir := testsupport.NewRunDir(t, h.root, "run1", rundir.NovaSeqXPlus, novaRunID)
	h.registry.Seed(registry.Run{RunID: novaRunID, Path: dir, Platform: rundir.NovaSeqXPlus})

	ev := only(t, h.poll(t), events.TriggerStateChange)
	if ev.Payload.String("state") != "pending" {
		t.Fatalf("unexpected payload %v", ev.Payload)
	}
}

func TestTargetDirectoryIsForwarded(t *testing.T) {
	h := newHarness(t, testsupport.WithTargetDirectory("/mnt/shared"))
	dir := testsupport.NewRunDir(t, h.root, "run1", rundir.NovaSeqXPlus, novaRunID, testsupport.Ready())
	h.registry.Seed(testsupport.RegisteredRun(novaRunID, dir, rundir.NovaSeqXPlus, lifecycle.StatePending))

	ev := only(t, h.poll(t), events.TriggerStateChange)
	if ev.Payload.String("target_directory") != "/mnt/shared" {
		t.Fatalf("unexpected payload %v", ev.Payload)
	}
}

func TestReadyRunAnalyses(t *testing.T) {
	h := newHarness(t, testsupport.WithTargetDirectory("/mnt/shared"))
	dir := testsupport.NewRunDir(t, h.root, "run1", rundir.NovaSeqXPlus, novaRunID, testsupport.Ready(), testsupport.Completed())
	newDir, newSummary := testsupport.NewAnalysisDir(t, dir, "2", false, true)
	knownDir, _ := testsupport.NewAnalysisDir(t, dir, "1", true, false)
	testsupport.Mkdir(t, filepath.Join(dir, "Analysis", "tmp_scratch"))

	run := testsupport.RegisteredRun(novaRunID, dir, rundir.NovaSeqXPlus, lifecycle.StateReady)
	run.Analyses = []registry.Analysis{{AnalysisID: "1", Path: knownDir, State: lifecycle.StatePending}}
	h.registry.Seed(run)

	got := h.poll(t)
	if len(got) != 2 {
		t.Fatalf("expected 2 analysis events, got %v", got)
	}
	change, ok := testsupport.FindEvent(got, events.TriggerStateChange, events.Payload{"directory_type": "analysis"})
	if !ok {
		t.Fatalf("missing analysis state_change in %v", got)
	}
	wantChange := events.Payload{
		"run_id":           novaRunID,
		"analysis_id":      "1",
		"summary_file":     nil,
		"state":            "ready",
		"directory_type":   "analysis",
		"path":             knownDir,
		"target_directory": "/mnt/shared",
	}
	if !events.Equal(change.Payload, wantChange) {
		t.Fatalf("payload = %v, want %v", change.Payload, wantChange)
	}
	added, ok := testsupport.FindEvent(got, events.TriggerNewDirectory, events.Payload{"directory_type": "analysis"})
	if !ok {
		t.Fatalf("missing analysis new_directory in %v", got)
	}
	wantAdded := events.Payload{
		"run_id":           novaRunID,
		"summary_file":     newSummary,
		"path":             newDir,
		"state":            "pending",
		"directory_type":   "analysis",
		"target_directory": "/mnt/shared",
	}
	if !events.Equal(added.Payload, wantAdded) {
		t.Fatalf("payload = %v, want %v", added.Payload, wantAdded)
	}

	reads := h.registry.Reads()
	if len(reads) != 2 || !reads[0].Brief || reads[1].Platform != rundir.NovaSeqXPlus || reads[1].State != lifecycle.StateReady || reads[1].Brief {
		t.Fatalf("unexpected registry reads %+v", reads)
	}
}

func TestNewRunAnalysesAreReportedImmediately(t *testing.T) {
	h := newHarness(t)
	dir := testsupport.NewRunDir(t, h.root, "run1", rundir.NovaSeqXPlus, novaRunID, testsupport.Ready())
	testsupport.NewAnalysisDir(t, dir, "1", true, false)

	got := h.poll(t)
	if len(got) != 2 || got[0].Trigger != events.TriggerNewDirectory || got[1].Trigger != events.TriggerNewDirectory {
		t.Fatalf("unexpected events %v", got)
	}
	if got[1].Payload.String("directory_type") != "analysis" {
		t.Fatalf("expected analysis after run, got %v", got[1])
	}
}

func TestMissingRootIsSkipped(t *testing.T) {
	h := newHarness(t, testsupport.WithWatchRoots("runs", "missing"))
	testsupport.NewRunDir(t, h.root, "run1", rundir.MiSeq, miseqRun)

	before := len(h.recorder.Events())
	report, err := h.sensor.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(h.recorder.Events()[before:]) != 1 {
		t.Fatalf("expected the run in the present root to be reported")
	}
	if len(report.MissingRoots) != 1 || filepath.Base(report.MissingRoots[0]) != "missing" {
		t.Fatalf("unexpected missing roots %v", report.MissingRoots)
	}
}

func TestBriefRegistryFailureAbortsPoll(t *testing.T) {
	h := newHarness(t)
	testsupport.NewRunDir(t, h.root, "run1", rundir.MiSeq, miseqRun)
	h.registry.GetRunsErr = errors.New("connection refused")

	_, err := h.sensor.Poll(context.Background())
	if !errors.Is(err, services.ErrRegistry) {
		t.Fatalf("expected registry error, got %v", err)
	}
	if len(h.recorder.Events()) != 0 {
		t.Fatal("expected no events")
	}
}

func TestReadyRunRegistryFailureFollowsRunPhase(t *testing.T) {
	h := newHarness(t)
	testsupport.NewRunDir(t, h.root, "run1", rundir.MiSeq, miseqRun)
	h.registry.GetRunsErr = errors.New("timeout")
	h.registry.GetRunsErrFilter = func(f registry.RunFilter) bool { return !f.Brief }

	_, err := h.sensor.Poll(context.Background())
	if !errors.Is(err, services.ErrRegistry) {
		t.Fatalf("expected registry error, got %v", err)
	}
	if len(h.recorder.ByTrigger(events.TriggerNewDirectory)) != 1 {
		t.Fatal("expected run phase events before the failure")
	}
}

func TestDispatchFailureIsCountedNotFatal(t *testing.T) {
	h := newHarness(t)
	testsupport.NewRunDir(t, h.root, "run1", rundir.MiSeq, miseqRun)
	testsupport.NewRunDir(t, h.root, "run2", rundir.MiSeq, "240620_M00123_0008_000000000-L9XYQ")
	h.recorder.DispatchErr = errors.New("bus down")

	report, err := h.sensor.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if report.DispatchFailures != 2 || report.Directories != 2 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestPollIDIsAssigned(t *testing.T) {
	h := newHarness(t)
	report, err := h.sensor.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if report.PollID == "" {
		t.Fatal("expected a poll id")
	}
	ctx := services.WithPollID(context.Background(), "fixed")
	report, err = h.sensor.Poll(ctx)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if report.PollID != "fixed" {
		t.Fatalf("poll id = %s", report.PollID)
	}
}
