package lifecycle

import (
	"path/filepath"
	"sort"

	"seqwatch/internal/rundir"
)

// AnalysisDir is one numbered analysis directory inside a run.
type AnalysisDir struct {
	ID          string
	Path        string
	SummaryFile string
}

// ListAnalyses returns the numerically named analysis directories under
// dir/Analysis. A run without an analysis folder has none.
func ListAnalyses(dir string) ([]AnalysisDir, error) {
	root := filepath.Join(dir, rundir.AnalysisDir)
	if !rundir.IsDir(root) {
		return nil, nil
	}
	subdirs, err := rundir.Subdirectories(root)
	if err != nil {
		return nil, err
	}
	out := make([]AnalysisDir, 0, len(subdirs))
	for _, path := range subdirs {
		id := filepath.Base(path)
		if !isDigits(id) {
			continue
		}
		out = append(out, AnalysisDir{ID: id, Path: path, SummaryFile: SummaryFile(path)})
	}
	return out, nil
}

// SummaryFile returns the first summary artifact under an analysis
// directory, or "" when there is none.
func SummaryFile(analysisDir string) string {
	matches, err := filepath.Glob(filepath.Join(analysisDir, rundir.SummaryGlob))
	if err != nil || len(matches) == 0 {
		return ""
	}
	sort.Strings(matches)
	for _, match := range matches {
		if rundir.IsFile(match) {
			return match
		}
	}
	return ""
}

func isDigits(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
