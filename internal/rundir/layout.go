package rundir

import (
	"os"
	"path/filepath"
)

// File names at the root of a run directory.
const (
	RunParametersFile    = "RunParameters.xml"
	RunInfoFile          = "RunInfo.xml"
	CopyCompleteFile     = "CopyComplete.txt"
	CompletionStatusFile = "RunCompletionStatus.xml"
	AnalysisDir          = "Analysis"
)

// SummaryGlob locates the analysis summary artifact relative to an analysis
// directory.
var SummaryGlob = filepath.Join("Data", "summary", "*", "detailed_summary.json")

// RunParametersPath returns the metadata file path for dir.
func RunParametersPath(dir string) string { return filepath.Join(dir, RunParametersFile) }

// RunInfoPath returns the info file path for dir.
func RunInfoPath(dir string) string { return filepath.Join(dir, RunInfoFile) }

// IsFile reports whether path exists and is a regular file, following symlinks.
func IsFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// IsDir reports whether path exists and is a directory, following symlinks.
func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// Exists reports whether path resolves to an existing file or directory.
// A dangling symlink does not exist.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Subdirectories lists the immediate subdirectories of dir sorted by name.
// Symlinks that resolve to directories are included.
func Subdirectories(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() || (entry.Type()&os.ModeSymlink != 0 && IsDir(path)) {
			out = append(out, path)
		}
	}
	return out, nil
}
