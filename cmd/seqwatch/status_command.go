package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"seqwatch/internal/config"
	"seqwatch/internal/daemonctl"
	"seqwatch/internal/lifecycle"
	"seqwatch/internal/rundir"
	"seqwatch/internal/samplesheet"
	"seqwatch/internal/services"
)

type directoryStatus struct {
	Path        string `json:"path"`
	RunID       string `json:"run_id,omitempty"`
	Platform    string `json:"platform,omitempty"`
	State       string `json:"state"`
	SampleSheet string `json:"samplesheet,omitempty"`
	Analyses    int    `json:"analyses"`
	Problem     string `json:"problem,omitempty"`
}

type rootStatus struct {
	Root        string            `json:"root"`
	Missing     bool              `json:"missing,omitempty"`
	Directories []directoryStatus `json:"directories"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Classify the watched directories on disk without contacting the registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			parser := rundir.NewParser(rundir.PlatformsFromConfig(cfg))

			var roots []rootStatus
			for _, root := range cfg.WatchedRoots() {
				status := rootStatus{Root: root.Path, Directories: []directoryStatus{}}
				dirs, err := rundir.Subdirectories(root.Path)
				if err != nil || !rundir.IsDir(root.Path) {
					status.Missing = true
					roots = append(roots, status)
					continue
				}
				for _, dir := range dirs {
					status.Directories = append(status.Directories, inspectDirectory(parser, dir))
				}
				roots = append(roots, status)
			}

			if jsonOutput {
				return writeJSON(cmd, roots)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			kind, message := daemonState(cfg)
			fmt.Fprintln(out, renderStatusLine("Daemon", kind, message, colorize))
			for _, root := range roots {
				fmt.Fprintln(out)
				fmt.Fprintln(out, renderSectionHeader(root.Root, colorize))
				if root.Missing {
					fmt.Fprintln(out, renderStatusLine("Root", statusError, "missing or unreadable", colorize))
					continue
				}
				if len(root.Directories) == 0 {
					fmt.Fprintln(out, renderStatusLine("Root", statusInfo, "no directories", colorize))
					continue
				}
				rows := make([][]string, 0, len(root.Directories))
				for _, d := range root.Directories {
					detail := d.Problem
					if detail == "" {
						detail = orDash(d.SampleSheet)
					}
					rows = append(rows, []string{
						d.Path,
						orDash(d.RunID),
						orDash(d.Platform),
						d.State,
						strconv.Itoa(d.Analyses),
						detail,
					})
				}
				fmt.Fprintln(out, renderTable([]string{"Directory", "Run ID", "Platform", "State", "Analyses", "Sample sheet / problem"}, rows, 4))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the classification as JSON")
	return cmd
}

func inspectDirectory(parser *rundir.Parser, dir string) directoryStatus {
	status := directoryStatus{Path: dir}
	meta, err := parser.Inspect(dir)
	if err != nil {
		status.State = string(lifecycle.StateError)
		if errors.Is(err, services.ErrNotFound) {
			status.State = string(lifecycle.StateIncomplete)
		}
		status.Problem = err.Error()
		return status
	}
	status.RunID = meta.RunID
	status.Platform = meta.Platform
	status.State = string(lifecycle.RunState(dir))
	if sheet, ok, err := samplesheet.Find(dir); err == nil && ok {
		status.SampleSheet = sheet.Path
	}
	if analyses, err := lifecycle.ListAnalyses(dir); err == nil {
		status.Analyses = len(analyses)
	}
	return status
}

// daemonState reports whether the pid recorded by the daemon is alive.
func daemonState(cfg *config.Config) (statusKind, string) {
	pid, state := daemonctl.Process(cfg)
	switch state {
	case daemonctl.StateRunning:
		return statusOK, fmt.Sprintf("running (pid %d)", pid)
	case daemonctl.StateStalePID:
		return statusWarn, fmt.Sprintf("stale pid file (pid %d)", pid)
	default:
		return statusInfo, "not running"
	}
}
