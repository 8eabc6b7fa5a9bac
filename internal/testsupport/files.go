package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"seqwatch/internal/rundir"
)

// WriteFile writes content to path, creating parent directories.
func WriteFile(t testing.TB, path, content string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// Touch creates an empty file at path.
func Touch(t testing.TB, path string) string {
	t.Helper()
	return WriteFile(t, path, "")
}

// Mkdir creates dir and its parents.
func Mkdir(t testing.TB, dir string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	return dir
}

// SetModTime sets both access and modification time of path.
func SetModTime(t testing.TB, path string, ts time.Time) {
	t.Helper()
	if err := os.Chtimes(path, ts, ts); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
}

// Remove deletes path recursively.
func Remove(t testing.TB, path string) {
	t.Helper()
	if err := os.RemoveAll(path); err != nil {
		t.Fatalf("remove %s: %v", path, err)
	}
}

// Rename moves path to target, creating target's parent.
func Rename(t testing.TB, path, target string) {
	t.Helper()
	Mkdir(t, filepath.Dir(target))
	if err := os.Rename(path, target); err != nil {
		t.Fatalf("rename %s -> %s: %v", path, target, err)
	}
}

// SerialFor returns a serial number that matches the built-in prefix for platform.
func SerialFor(platform string) string {
	for _, p := range rundir.DefaultPlatforms() {
		if p.Name == platform {
			return p.SerialPrefix + "00123"
		}
	}
	return "X00123"
}

// RunParametersXML renders a metadata document for platform. The run id
// element is spelled RunId for MiSeq, as those instruments write it.
func RunParametersXML(platform, runID string) string {
	tag := "InstrumentSerialNumber"
	idTag := "RunID"
	for _, p := range rundir.DefaultPlatforms() {
		if p.Name == platform {
			tag = p.SerialTag
		}
	}
	if platform == rundir.MiSeq {
		idTag = "RunId"
	}
	return fmt.Sprintf("<?xml version=\"1.0\"?>\n<RunParameters>\n  <%s>%s</%s>\n  <%s>%s</%s>\n</RunParameters>\n",
		tag, SerialFor(platform), tag, idTag, runID, idTag)
}

// WriteRunParameters writes a valid metadata file into dir.
func WriteRunParameters(t testing.TB, dir, platform, runID string) string {
	t.Helper()
	return WriteFile(t, rundir.RunParametersPath(dir), RunParametersXML(platform, runID))
}

// WriteRunInfo writes a non-empty info file into dir.
func WriteRunInfo(t testing.TB, dir string) string {
	t.Helper()
	return WriteFile(t, rundir.RunInfoPath(dir), "<?xml version=\"1.0\"?>\n<RunInfo Version=\"6\"/>\n")
}

// WriteCopyComplete writes the copy-complete marker into dir.
func WriteCopyComplete(t testing.TB, dir string) string {
	t.Helper()
	return Touch(t, filepath.Join(dir, rundir.CopyCompleteFile))
}

// WriteCompletionStatus writes a completion status document with a single
// tag/value pair.
func WriteCompletionStatus(t testing.TB, dir, tag, value string) string {
	t.Helper()
	content := fmt.Sprintf("<?xml version=\"1.0\"?>\n<RunCompletionStatus>\n  <%s>%s</%s>\n</RunCompletionStatus>\n", tag, value, tag)
	return WriteFile(t, filepath.Join(dir, rundir.CompletionStatusFile), content)
}

// RunOption adjusts a generated run directory.
type RunOption func(t testing.TB, dir string)

// Ready adds the copy-complete marker.
func Ready() RunOption {
	return func(t testing.TB, dir string) { WriteCopyComplete(t, dir) }
}

// Completed adds a successful NovaSeq-style completion status.
func Completed() RunOption {
	return func(t testing.TB, dir string) { WriteCompletionStatus(t, dir, "RunStatus", "RunCompleted") }
}

// Failed adds an unsuccessful completion status.
func Failed() RunOption {
	return func(t testing.TB, dir string) { WriteCompletionStatus(t, dir, "RunStatus", "RunErrored") }
}

// NewRunDir creates root/name with valid metadata and info files for
// platform and runID, then applies opts.
func NewRunDir(t testing.TB, root, name, platform, runID string, opts ...RunOption) string {
	t.Helper()
	dir := Mkdir(t, filepath.Join(root, name))
	WriteRunParameters(t, dir, platform, runID)
	WriteRunInfo(t, dir)
	for _, opt := range opts {
		opt(t, dir)
	}
	return dir
}

// NewAnalysisDir creates runDir/Analysis/id. When ready is set the
// copy-complete marker is written; when summary is set a summary artifact is
// written and its path returned.
func NewAnalysisDir(t testing.TB, runDir, id string, ready, summary bool) (string, string) {
	t.Helper()
	dir := Mkdir(t, filepath.Join(runDir, rundir.AnalysisDir, id))
	if ready {
		WriteCopyComplete(t, dir)
	}
	var summaryPath string
	if summary {
		summaryPath = WriteFile(t, filepath.Join(dir, "Data", "summary", "4.2.7", "detailed_summary.json"), "{}")
	}
	return dir, summaryPath
}

// WriteSampleSheet writes a sample sheet into dir with the given mtime.
func WriteSampleSheet(t testing.TB, dir, name string, mtime time.Time) string {
	t.Helper()
	path := WriteFile(t, filepath.Join(dir, name), "[Header]\nFileFormatVersion,2\n")
	SetModTime(t, path, mtime)
	return path
}
