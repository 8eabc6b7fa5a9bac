package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"seqwatch/internal/daemonrun"
)

func newPollCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Run a single reconciliation cycle and print its report",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			rt, err := daemonrun.NewRuntime(cfg, ctx.logger(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer rt.Close()

			report, err := rt.Sensor.Poll(cmd.Context())
			if err != nil {
				return fmt.Errorf("poll: %w", err)
			}
			if jsonOutput {
				return writeJSON(cmd, report)
			}

			out := cmd.OutOrStdout()
			rows := [][]string{
				{"Poll ID", report.PollID},
				{"Duration", report.Duration.Round(time.Millisecond).String()},
				{"Registered runs", strconv.Itoa(report.RegisteredRuns)},
				{"Directories", strconv.Itoa(report.Directories)},
				{"Incomplete", strconv.Itoa(report.Incomplete)},
				{"Ready runs", strconv.Itoa(report.ReadyRuns)},
				{"Suppressed", strconv.Itoa(report.Suppressed)},
				{"Dispatch failures", strconv.Itoa(report.DispatchFailures)},
			}
			triggers := make([]string, 0, len(report.Emitted))
			for trigger := range report.Emitted {
				triggers = append(triggers, trigger)
			}
			sort.Strings(triggers)
			for _, trigger := range triggers {
				rows = append(rows, []string{"Emitted " + trigger, strconv.Itoa(report.Emitted[trigger])})
			}
			if len(report.MissingRoots) > 0 {
				rows = append(rows, []string{"Missing roots", strings.Join(report.MissingRoots, ", ")})
			}
			fmt.Fprintln(out, renderTable([]string{"Field", "Value"}, rows))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the report as JSON")
	return cmd
}
