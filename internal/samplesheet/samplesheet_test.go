package samplesheet_test

import (
	"path/filepath"
	"testing"
	"time"

	"seqwatch/internal/samplesheet"
	"seqwatch/internal/testsupport"
)

func TestMatches(t *testing.T) {
	cases := map[string]bool{
		"SampleSheet.csv":       true,
		"samplesheet.csv":       true,
		"SAMPLESHEET_v2.CSV":    true,
		"Samplesheet-final.csv": true,
		"SampleSheet.txt":       false,
		"my_SampleSheet.csv":    false,
	}
	for name, want := range cases {
		if got := samplesheet.Matches(name); got != want {
			t.Fatalf("Matches(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestFindPicksNewest(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2024, 6, 20, 11, 0, 0, 0, time.UTC)
	testsupport.WriteSampleSheet(t, dir, "SampleSheet.csv", base)
	newest := testsupport.WriteSampleSheet(t, dir, "samplesheet_v2.csv", base.Add(time.Hour))
	testsupport.WriteSampleSheet(t, dir, "notes.csv", base.Add(2*time.Hour))

	sheet, ok, err := samplesheet.Find(dir)
	if err != nil || !ok {
		t.Fatalf("Find: ok=%v err=%v", ok, err)
	}
	if sheet.Path != newest {
		t.Fatalf("expected %s, got %s", newest, sheet.Path)
	}
	if !sheet.ModTime.Equal(base.Add(time.Hour)) || sheet.ModTime.Location() != time.UTC {
		t.Fatalf("unexpected mod time %v", sheet.ModTime)
	}
}

func TestFindNoSheets(t *testing.T) {
	if _, ok, err := samplesheet.Find(t.TempDir()); ok || err != nil {
		t.Fatalf("expected no sheet, got ok=%v err=%v", ok, err)
	}
}

func TestNewer(t *testing.T) {
	dir := t.TempDir()
	mtime := time.Date(2024, 6, 20, 11, 9, 3, 617_000_000, time.UTC)
	path := testsupport.WriteSampleSheet(t, dir, "SampleSheet.csv", mtime)

	if sheet, ok, _ := samplesheet.Newer(dir, nil); !ok || sheet.Path != path {
		t.Fatalf("expected sheet when nothing is known, got %+v %v", sheet, ok)
	}

	// Registered time differs only below one second: not newer.
	known := time.Date(2024, 6, 20, 11, 9, 3, 0, time.UTC)
	if _, ok, _ := samplesheet.Newer(dir, &known); ok {
		t.Fatal("expected sub-second difference to be ignored")
	}

	older := known.Add(-time.Second)
	if _, ok, _ := samplesheet.Newer(dir, &older); !ok {
		t.Fatal("expected sheet newer than known time")
	}

	local := known.In(time.FixedZone("CEST", 2*3600))
	if _, ok, _ := samplesheet.Newer(dir, &local); ok {
		t.Fatal("expected zone-shifted equal instant not to count as newer")
	}
}

func TestListSkipsDirectories(t *testing.T) {
	dir := t.TempDir()
	testsupport.Mkdir(t, filepath.Join(dir, "SampleSheet.csv"))
	sheets, err := samplesheet.List(dir)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(sheets) != 0 {
		t.Fatalf("expected directories to be skipped, got %v", sheets)
	}
}
