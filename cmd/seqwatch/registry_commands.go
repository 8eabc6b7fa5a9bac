package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"seqwatch/internal/config"
	"seqwatch/internal/lifecycle"
	"seqwatch/internal/rundir"
)

var knownStates = []lifecycle.State{
	lifecycle.StateNew,
	lifecycle.StatePending,
	lifecycle.StateReady,
	lifecycle.StateError,
	lifecycle.StateIncomplete,
	lifecycle.StateMoved,
	lifecycle.StateUndefined,
}

func parseState(value string) (lifecycle.State, error) {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	for _, state := range knownStates {
		if string(state) == trimmed {
			return state, nil
		}
	}
	names := make([]string, 0, len(knownStates))
	for _, state := range knownStates {
		names = append(names, string(state))
	}
	return "", fmt.Errorf("unknown state %q (want one of %s)", value, strings.Join(names, ", "))
}

func expandArg(value string) (string, error) {
	expanded, err := config.ExpandPath(strings.TrimSpace(value))
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	return expanded, nil
}

func newRegistryCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newRegisterRunCommand(ctx),
		newUpdateStateCommand(ctx),
		newUpdatePathCommand(ctx),
		newUpdateSampleSheetCommand(ctx),
		newAddAnalysisCommand(ctx),
		newUpdateAnalysisCommand(ctx),
		newInteropDestinationCommand(ctx),
	}
}

func newRegisterRunCommand(ctx *commandContext) *cobra.Command {
	var stateFlag string
	var runInfo string

	cmd := &cobra.Command{
		Use:   "register-run <run-directory>",
		Short: "Register a run directory with the registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := expandArg(args[0])
			if err != nil {
				return err
			}
			state, err := parseState(stateFlag)
			if err != nil {
				return err
			}
			a, err := ctx.actions(cmd)
			if err != nil {
				return err
			}
			info := rundir.RunInfoPath(dir)
			if runInfo != "" {
				if info, err = expandArg(runInfo); err != nil {
					return err
				}
			}
			if err := a.AddRunWithInfo(cmd.Context(), rundir.RunParametersPath(dir), info, dir, state); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s as %s\n", dir, state)
			return nil
		},
	}
	cmd.Flags().StringVar(&stateFlag, "state", string(lifecycle.StatePending), "Initial state")
	cmd.Flags().StringVar(&runInfo, "runinfo", "", "Info file to upload instead of <run-directory>/RunInfo.xml")
	return cmd
}

func newUpdateStateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "update-state <run-id> <state>",
		Short: "Append a state to a run's history",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := parseState(args[1])
			if err != nil {
				return err
			}
			a, err := ctx.actions(cmd)
			if err != nil {
				return err
			}
			if err := a.UpdateRunState(cmd.Context(), args[0], state); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Run %s is now %s\n", args[0], state)
			return nil
		},
	}
}

func newUpdatePathCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "update-path <run-id> <path>",
		Short: "Record a new location for a run directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := expandArg(args[1])
			if err != nil {
				return err
			}
			a, err := ctx.actions(cmd)
			if err != nil {
				return err
			}
			if err := a.UpdateRunPath(cmd.Context(), args[0], path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Run %s path set to %s\n", args[0], path)
			return nil
		},
	}
}

func newUpdateSampleSheetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "update-samplesheet <run-id> <samplesheet>",
		Short: "Register a sample sheet for a run",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := expandArg(args[1])
			if err != nil {
				return err
			}
			a, err := ctx.actions(cmd)
			if err != nil {
				return err
			}
			if err := a.UpdateSampleSheet(cmd.Context(), args[0], path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered sample sheet %s for %s\n", path, args[0])
			return nil
		},
	}
}

func newAddAnalysisCommand(ctx *commandContext) *cobra.Command {
	var stateFlag string
	var summary string

	cmd := &cobra.Command{
		Use:   "add-analysis <run-id> <analysis-directory>",
		Short: "Register an analysis directory for a run",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := expandArg(args[1])
			if err != nil {
				return err
			}
			state, err := parseState(stateFlag)
			if err != nil {
				return err
			}
			summaryFile := lifecycle.SummaryFile(dir)
			if summary != "" {
				if summaryFile, err = expandArg(summary); err != nil {
					return err
				}
			}
			a, err := ctx.actions(cmd)
			if err != nil {
				return err
			}
			if err := a.AddAnalysis(cmd.Context(), args[0], dir, state, summaryFile); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered analysis %s for %s as %s\n", dir, args[0], state)
			return nil
		},
	}
	cmd.Flags().StringVar(&stateFlag, "state", string(lifecycle.StatePending), "Analysis state")
	cmd.Flags().StringVar(&summary, "summary-file", "", "Summary to upload (defaults to the detected detailed_summary.json)")
	return cmd
}

func newUpdateAnalysisCommand(ctx *commandContext) *cobra.Command {
	var stateFlag string
	var summary string

	cmd := &cobra.Command{
		Use:   "update-analysis <run-id> <analysis-id>",
		Short: "Update the state or summary of a registered analysis",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var state lifecycle.State
			if stateFlag != "" {
				parsed, err := parseState(stateFlag)
				if err != nil {
					return err
				}
				state = parsed
			}
			summaryFile := ""
			if summary != "" {
				expanded, err := expandArg(summary)
				if err != nil {
					return err
				}
				summaryFile = expanded
			}
			a, err := ctx.actions(cmd)
			if err != nil {
				return err
			}
			if err := a.UpdateAnalysis(cmd.Context(), args[0], args[1], state, summaryFile); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated analysis %s of %s\n", args[1], args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&stateFlag, "state", "", "New analysis state")
	cmd.Flags().StringVar(&summary, "summary-file", "", "Summary to upload")
	return cmd
}

func newInteropDestinationCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "interop-destination <platform>",
		Short: "Print where InterOp files of a platform are copied",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.actions(cmd)
			if err != nil {
				return err
			}
			dest, ok := a.InteropDestination(args[0])
			if !ok {
				return fmt.Errorf("no interop destination configured for platform %q", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), dest)
			return nil
		},
	}
}
