package main

import (
	"github.com/spf13/cobra"

	"seqwatch/internal/daemonrun"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	var skipPreflight bool
	var development bool

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the poll loop in the foreground until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:      ctx.logLevel(),
				Development:   development,
				SkipPreflight: skipPreflight,
			})
		},
	}
	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Start even when startup checks fail")
	cmd.Flags().BoolVar(&development, "dev", false, "Include source locations in log output")
	return cmd
}
