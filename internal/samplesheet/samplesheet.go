// Package samplesheet finds the most recent sample sheet in a run directory.
package samplesheet

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

const (
	namePrefix = "samplesheet"
	nameSuffix = ".csv"
)

var fold = cases.Fold()

// Sheet is a sample sheet found on disk. ModTime is UTC, truncated to whole
// seconds.
type Sheet struct {
	Path    string
	ModTime time.Time
}

// Matches reports whether name looks like a sample sheet, ignoring case.
func Matches(name string) bool {
	folded := fold.String(name)
	return strings.HasPrefix(folded, namePrefix) && strings.HasSuffix(folded, nameSuffix)
}

// Normalize converts ts to the comparison form used for sample sheet times.
func Normalize(ts time.Time) time.Time {
	return ts.UTC().Truncate(time.Second)
}

// List returns every sample sheet directly inside dir, newest first. Ties
// are ordered by name.
func List(dir string) ([]Sheet, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	sheets := make([]Sheet, 0, 2)
	for _, entry := range entries {
		if entry.IsDir() || !Matches(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		sheets = append(sheets, Sheet{Path: path, ModTime: Normalize(info.ModTime())})
	}
	sort.SliceStable(sheets, func(i, j int) bool {
		if !sheets[i].ModTime.Equal(sheets[j].ModTime) {
			return sheets[i].ModTime.After(sheets[j].ModTime)
		}
		return sheets[i].Path < sheets[j].Path
	})
	return sheets, nil
}

// Find returns the newest sample sheet in dir.
func Find(dir string) (Sheet, bool, error) {
	sheets, err := List(dir)
	if err != nil || len(sheets) == 0 {
		return Sheet{}, false, err
	}
	return sheets[0], true, nil
}

// Newer returns the newest sample sheet in dir when it should be reported:
// always when known is nil, otherwise only when it is strictly newer than
// known at second resolution.
func Newer(dir string, known *time.Time) (Sheet, bool, error) {
	sheet, ok, err := Find(dir)
	if err != nil || !ok {
		return Sheet{}, false, err
	}
	if known == nil {
		return sheet, true, nil
	}
	if sheet.ModTime.After(Normalize(*known)) {
		return sheet, true, nil
	}
	return Sheet{}, false, nil
}
