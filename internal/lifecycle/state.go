// Package lifecycle classifies run and analysis directories into lifecycle
// states from the marker and metadata files present on disk.
package lifecycle

// State is the lifecycle stage of a run or analysis directory.
type State string

const (
	StateNew        State = "new"
	StateReady      State = "ready"
	StateError      State = "error"
	StateMoved      State = "moved"
	StatePending    State = "pending"
	StateUndefined  State = "undefined"
	StateIncomplete State = "incomplete"
)

func (s State) String() string { return string(s) }

// DirectoryType distinguishes run directories from analysis directories in
// event payloads.
type DirectoryType string

const (
	DirectoryRun      DirectoryType = "run"
	DirectoryAnalysis DirectoryType = "analysis"
)

func (t DirectoryType) String() string { return string(t) }
