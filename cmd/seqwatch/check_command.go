package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"seqwatch/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify watched roots, state directories and remote endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			fmt.Fprintln(out, renderSectionHeader("Config", colorize))
			fmt.Fprintln(out, renderStatusLine("Path", statusInfo, orDash(ctx.configPath), colorize))
			fmt.Fprintln(out, renderStatusLine("Apply actions", statusInfo, yesNo(cfg.Actions.Apply), colorize))
			fmt.Fprintln(out, renderStatusLine("Event history", statusInfo, cfg.Events.History, colorize))
			fmt.Fprintln(out)

			fmt.Fprintln(out, renderSectionHeader("Checks", colorize))
			results := preflight.RunAll(cmd.Context(), cfg)
			for _, result := range results {
				kind := statusOK
				if !result.Passed {
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
			}
			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d of %d checks failed", len(failed), len(results))
			}
			return nil
		},
	}
}
