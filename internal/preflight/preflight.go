package preflight

import (
	"context"

	"seqwatch/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	for _, root := range cfg.WatchedRoots() {
		results = append(results, CheckWatchedRoot("Watched directory", root.Path))
	}
	if len(cfg.Sensor.WatchDirectories) == 0 {
		results = append(results, Result{Name: "Watched directory", Detail: "none configured (sensor.watch_directories)"})
	}

	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	results = append(results, CheckRegistry(ctx, cfg.Registry.URL, cfg.Actions.Apply, cfg.Registry.APIKey))

	if cfg.Events.BusURL != "" {
		results = append(results, CheckEndpoint("Event bus", cfg.Events.BusURL))
	} else {
		results = append(results, Result{Name: "Event bus", Passed: true, Detail: "not configured (journal only)"})
	}
	if cfg.Events.History == config.HistoryRemote {
		results = append(results, CheckEndpoint("Event history", cfg.Events.APIURL))
	}
	if cfg.Notifications.NtfyTopic != "" {
		results = append(results, CheckEndpoint("ntfy", cfg.Notifications.NtfyTopic))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
