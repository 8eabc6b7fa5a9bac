package sensor

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Report summarizes one poll cycle.
type Report struct {
	PollID           string
	StartedAt        time.Time
	Duration         time.Duration
	RegisteredRuns   int
	Directories      int
	Incomplete       int
	ReadyRuns        int
	Emitted          map[string]int
	Suppressed       int
	DispatchFailures int
	MissingRoots     []string
}

func newReport(pollID string, started time.Time) *Report {
	return &Report{PollID: pollID, StartedAt: started, Emitted: make(map[string]int)}
}

// TotalEmitted returns the number of events dispatched across all triggers.
func (r Report) TotalEmitted() int {
	total := 0
	for _, n := range r.Emitted {
		total += n
	}
	return total
}

// Summary renders the report as a single log-friendly line.
func (r Report) Summary() string {
	triggers := make([]string, 0, len(r.Emitted))
	for trigger := range r.Emitted {
		triggers = append(triggers, trigger)
	}
	sort.Strings(triggers)
	parts := make([]string, 0, len(triggers))
	for _, trigger := range triggers {
		parts = append(parts, fmt.Sprintf("%s=%d", trigger, r.Emitted[trigger]))
	}
	emitted := "none"
	if len(parts) > 0 {
		emitted = strings.Join(parts, " ")
	}
	return fmt.Sprintf("%d directories, %d registered runs, events: %s, %d suppressed, %d failed",
		r.Directories, r.RegisteredRuns, emitted, r.Suppressed, r.DispatchFailures)
}
