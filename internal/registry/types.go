package registry

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"seqwatch/internal/lifecycle"
	"seqwatch/internal/rundir"
)

// StateEntry is one element of a run's state history.
type StateEntry struct {
	State lifecycle.State `json:"state"`
	Time  string          `json:"time,omitempty"`
}

// SampleSheet is a sample sheet the registry knows about.
type SampleSheet struct {
	Path             string `json:"path"`
	ModificationTime string `json:"modification_time,omitempty"`
}

// Analysis is a registered analysis of a run.
type Analysis struct {
	AnalysisID  ID              `json:"analysis_id"`
	Path        string          `json:"path"`
	State       lifecycle.State `json:"state"`
	SummaryFile string          `json:"summary_file,omitempty"`
}

// Run is a registered sequencing run. StateHistory is newest first.
type Run struct {
	RunID        string        `json:"run_id"`
	Path         string        `json:"path"`
	Platform     string        `json:"platform"`
	StateHistory []StateEntry  `json:"state_history,omitempty"`
	SampleSheets []SampleSheet `json:"samplesheets,omitempty"`
	Analyses     []Analysis    `json:"analysis,omitempty"`
}

// CurrentState returns the most recent registered state. An empty history
// reports false and compares unequal to every observed state.
func (r Run) CurrentState() (lifecycle.State, bool) {
	if len(r.StateHistory) == 0 {
		return "", false
	}
	return r.StateHistory[0].State, true
}

// Moved reports whether the registry already considers the run moved.
func (r Run) Moved() bool {
	state, ok := r.CurrentState()
	return ok && state == lifecycle.StateMoved
}

// LatestSampleSheetTime returns the modification time of the most recently
// registered sample sheet, normalized to UTC whole seconds. It returns nil
// when no sheet is registered, when that sheet no longer exists on disk, or
// when its timestamp cannot be parsed.
func (r Run) LatestSampleSheetTime() *time.Time {
	if len(r.SampleSheets) == 0 {
		return nil
	}
	latest := r.SampleSheets[len(r.SampleSheets)-1]
	if latest.Path == "" || !rundir.Exists(latest.Path) {
		return nil
	}
	ts, ok := ParseTime(latest.ModificationTime)
	if !ok {
		return nil
	}
	return &ts
}

// Analysis looks up a registered analysis by id, falling back to path when
// the registry did not expose an id.
func (r Run) Analysis(id, path string) (Analysis, bool) {
	for _, a := range r.Analyses {
		if a.AnalysisID != "" && string(a.AnalysisID) == id {
			return a, true
		}
	}
	for _, a := range r.Analyses {
		if a.AnalysisID == "" && a.Path == path {
			return a, true
		}
	}
	return Analysis{}, false
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999Z07:00",
	"2006-01-02 15:04:05",
}

// ParseTime parses a registry timestamp ("2024-06-20T11:09:03.617000Z" and
// close relatives). Zone-less values are taken as UTC. The result is
// truncated to whole seconds.
func ParseTime(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC().Truncate(time.Second), true
		}
	}
	return time.Time{}, false
}

// FormatTime renders ts the way the registry writes timestamps.
func FormatTime(ts time.Time) string {
	return ts.UTC().Format("2006-01-02T15:04:05.000000Z")
}

// ID is an identifier the registry may encode as a JSON string or number.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// RunFilter narrows GetRuns. Brief asks the registry to omit nested
// analysis and sample sheet detail.
type RunFilter struct {
	Platform string
	State    lifecycle.State
	Brief    bool
}

// AddRunRequest registers a new run from its metadata and info files.
type AddRunRequest struct {
	RunParametersPath string
	RunInfoPath       string
	Path              string
	State             lifecycle.State
}

// AddAnalysisRequest registers a new analysis. SummaryFile is optional.
type AddAnalysisRequest struct {
	Path        string
	State       lifecycle.State
	SummaryFile string
}

// UpdateAnalysisRequest changes an analysis. Empty fields are left alone.
type UpdateAnalysisRequest struct {
	State       lifecycle.State
	SummaryFile string
}
