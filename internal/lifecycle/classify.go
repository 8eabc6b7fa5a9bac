package lifecycle

import (
	"path/filepath"

	"seqwatch/internal/rundir"
)

// completionRule is one tag/value pair that marks a finished run. Rules are
// evaluated in order and the first rule whose tag is present decides.
type completionRule struct {
	Tag     string
	Success string
}

var completionRules = []completionRule{
	{Tag: "RunStatus", Success: "RunCompleted"},
	{Tag: "CompletionStatus", Success: "CompletedAsPlanned"},
}

// RunState classifies the run directory at dir.
//
//	metadata or info missing                  -> incomplete
//	copy-complete present, status succeeded   -> ready
//	copy-complete present, status failed      -> error
//	copy-complete present, no status file     -> ready
//	copy-complete absent                      -> pending
//	anything else                             -> undefined
func RunState(dir string) State {
	params := rundir.RunParametersPath(dir)
	info := rundir.RunInfoPath(dir)
	copyComplete := filepath.Join(dir, rundir.CopyCompleteFile)
	status := filepath.Join(dir, rundir.CompletionStatusFile)

	switch {
	case !rundir.IsFile(params) || !rundir.IsFile(info):
		return StateIncomplete
	case rundir.IsFile(copyComplete):
		if !rundir.IsFile(status) {
			return StateReady
		}
		ok, err := RunCompleted(status)
		if err != nil || !ok {
			return StateError
		}
		return StateReady
	case !rundir.Exists(copyComplete):
		return StatePending
	default:
		return StateUndefined
	}
}

// RunCompleted reports whether the completion status file at path records a
// successful run.
func RunCompleted(path string) (bool, error) {
	doc, err := rundir.ReadDocument(path)
	if err != nil {
		return false, err
	}
	for _, rule := range completionRules {
		value, ok := doc.Find(rule.Tag)
		if !ok {
			continue
		}
		return value == rule.Success, nil
	}
	return false, nil
}

// AnalysisState classifies the analysis directory at dir.
func AnalysisState(dir string) State {
	if rundir.IsFile(filepath.Join(dir, rundir.CopyCompleteFile)) {
		return StateReady
	}
	return StatePending
}
