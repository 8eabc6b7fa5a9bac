package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"seqwatch/internal/lifecycle"
	"seqwatch/internal/registry"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var platform string
	var state string
	var full bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List runs known to the registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.registryClient()
			if err != nil {
				return err
			}
			runs, err := client.GetRuns(cmd.Context(), registry.RunFilter{
				Platform: platform,
				State:    lifecycle.State(state),
				Brief:    !full,
			})
			if err != nil {
				return err
			}

			ids := make([]string, 0, len(runs))
			for id := range runs {
				ids = append(ids, id)
			}
			sort.Strings(ids)

			if jsonOutput {
				list := make([]registry.Run, 0, len(ids))
				for _, id := range ids {
					list = append(list, runs[id])
				}
				return writeJSON(cmd, list)
			}

			out := cmd.OutOrStdout()
			if len(ids) == 0 {
				fmt.Fprintln(out, "No runs registered")
				return nil
			}
			rows := make([][]string, 0, len(ids))
			for _, id := range ids {
				run := runs[id]
				current, ok := run.CurrentState()
				stateLabel := string(current)
				if !ok {
					stateLabel = "-"
				}
				rows = append(rows, []string{
					id,
					orDash(run.Platform),
					stateLabel,
					strconv.Itoa(len(run.SampleSheets)),
					strconv.Itoa(len(run.Analyses)),
					run.Path,
				})
			}
			fmt.Fprintln(out, renderTable([]string{"Run ID", "Platform", "State", "Sheets", "Analyses", "Path"}, rows, 3, 4))
			return nil
		},
	}
	cmd.Flags().StringVar(&platform, "platform", "", "Only runs of this platform")
	cmd.Flags().StringVar(&state, "state", "", "Only runs whose current state matches")
	cmd.Flags().BoolVar(&full, "full", false, "Request analyses as well as sample sheets")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print runs as JSON")
	return cmd
}
