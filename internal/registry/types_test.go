package registry_test

import (
	"path/filepath"
	"testing"
	"time"

	"seqwatch/internal/lifecycle"
	"seqwatch/internal/registry"
	"seqwatch/internal/testsupport"
)

func TestCurrentStateEmptyHistory(t *testing.T) {
	run := registry.Run{RunID: "r"}
	if _, ok := run.CurrentState(); ok {
		t.Fatal("expected no state for empty history")
	}
	if run.Moved() {
		t.Fatal("empty history is not moved")
	}
	run.StateHistory = []registry.StateEntry{{State: lifecycle.StateMoved}, {State: lifecycle.StateReady}}
	if !run.Moved() {
		t.Fatal("expected moved")
	}
}

func TestLatestSampleSheetTime(t *testing.T) {
	dir := t.TempDir()
	sheet := testsupport.WriteSampleSheet(t, dir, "SampleSheet.csv", time.Now())

	run := registry.Run{}
	if got := run.LatestSampleSheetTime(); got != nil {
		t.Fatalf("expected nil without sheets, got %v", got)
	}

	run.SampleSheets = []registry.SampleSheet{
		{Path: filepath.Join(dir, "gone.csv"), ModificationTime: "2024-01-01T00:00:00.000000Z"},
		{Path: sheet, ModificationTime: "2024-06-20T11:09:03.617000Z"},
	}
	got := run.LatestSampleSheetTime()
	want := time.Date(2024, 6, 20, 11, 9, 3, 0, time.UTC)
	if got == nil || !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	run.SampleSheets = run.SampleSheets[:1]
	if got := run.LatestSampleSheetTime(); got != nil {
		t.Fatalf("expected nil when last sheet is missing on disk, got %v", got)
	}
}

func TestParseAndFormatTime(t *testing.T) {
	ts, ok := registry.ParseTime("2024-06-20T11:09:03.617000Z")
	if !ok {
		t.Fatal("expected parse")
	}
	if got := registry.FormatTime(ts); got != "2024-06-20T11:09:03.000000Z" {
		t.Fatalf("unexpected format %q", got)
	}
	if _, ok := registry.ParseTime("yesterday"); ok {
		t.Fatal("expected parse failure")
	}
	if ts, ok := registry.ParseTime("2024-06-20T11:09:03"); !ok || ts.Location() != time.UTC {
		t.Fatalf("expected zone-less value as UTC, got %v %v", ts, ok)
	}
}

func TestAnalysisLookupFallsBackToPath(t *testing.T) {
	run := registry.Run{Analyses: []registry.Analysis{
		{Path: "/r/Analysis/1", State: lifecycle.StatePending},
		{AnalysisID: "2", Path: "/r/Analysis/2", State: lifecycle.StateReady},
	}}
	if a, ok := run.Analysis("1", "/r/Analysis/1"); !ok || a.State != lifecycle.StatePending {
		t.Fatalf("expected path fallback, got %+v %v", a, ok)
	}
	if a, ok := run.Analysis("2", "/elsewhere"); !ok || a.State != lifecycle.StateReady {
		t.Fatalf("expected id match, got %+v %v", a, ok)
	}
	if _, ok := run.Analysis("3", "/r/Analysis/3"); ok {
		t.Fatal("expected no match")
	}
}
