package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"seqwatch/internal/daemonctl"
)

func newStartCommand(ctx *commandContext) *cobra.Command {
	var skipPreflight bool
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			executable, err := os.Executable()
			if err != nil {
				return fmt.Errorf("resolve executable: %w", err)
			}
			pid, state, err := daemonctl.EnsureStarted(cfg, executable, daemonctl.LaunchOptions{
				ConfigPath:    ctx.configPath,
				LogLevel:      ctx.logLevel(),
				SkipPreflight: skipPreflight,
			}, wait)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if state == daemonctl.StateRunning {
				fmt.Fprintf(out, "Daemon already running (pid %d)\n", pid)
				return nil
			}
			fmt.Fprintf(out, "Daemon started (pid %d)\n", pid)
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Start even when startup checks fail")
	cmd.Flags().DurationVar(&wait, "wait", 15*time.Second, "How long to wait for the daemon to come up")
	return cmd
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	var grace time.Duration

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the background daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			pid, state, err := daemonctl.Stop(cfg, grace)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch state {
			case daemonctl.StateStopped:
				fmt.Fprintln(out, "Daemon is not running")
			case daemonctl.StateStalePID:
				fmt.Fprintf(out, "Removed stale pid file (pid %d)\n", pid)
			case daemonctl.StateKilled:
				fmt.Fprintf(out, "Daemon did not exit after %s; killed pid %d\n", grace, pid)
			default:
				fmt.Fprintf(out, "Daemon stopped (pid %d)\n", pid)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&grace, "grace", 10*time.Second, "Time to wait after SIGTERM before SIGKILL")
	return cmd
}
