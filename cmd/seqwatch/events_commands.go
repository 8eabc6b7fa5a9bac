package main

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"seqwatch/internal/eventlog"
	"seqwatch/internal/events"
)

func newEventsCommand(ctx *commandContext) *cobra.Command {
	eventsCmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect and maintain the local event journal",
	}
	eventsCmd.AddCommand(newEventsListCommand(ctx))
	eventsCmd.AddCommand(newEventsStatsCommand(ctx))
	eventsCmd.AddCommand(newEventsPruneCommand(ctx))
	return eventsCmd
}

func (c *commandContext) withJournal(fn func(*eventlog.Journal) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	if !cfg.Events.Journal {
		return errors.New("event journal is disabled (events.journal = false)")
	}
	journal, err := eventlog.Open(cfg)
	if err != nil {
		return err
	}
	defer journal.Close()
	return fn(journal)
}

type journalEntryView struct {
	ID        string         `json:"id"`
	Trigger   string         `json:"trigger"`
	PollID    string         `json:"poll_id,omitempty"`
	EmittedAt time.Time      `json:"emitted_at"`
	Payload   events.Payload `json:"payload"`
	// DeliveryError is set for events a downstream sink rejected.
	DeliveryError string `json:"delivery_error,omitempty"`
}

func newEventsListCommand(ctx *commandContext) *cobra.Command {
	var trigger string
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show journaled events, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withJournal(func(journal *eventlog.Journal) error {
				entries, err := journal.List(cmd.Context(), eventlog.ListFilter{Trigger: trigger, Limit: limit})
				if err != nil {
					return err
				}
				if jsonOutput {
					views := make([]journalEntryView, 0, len(entries))
					for _, e := range entries {
						views = append(views, journalEntryView{ID: e.ID, Trigger: e.Trigger, PollID: e.PollID, EmittedAt: e.EmittedAt, Payload: e.Payload, DeliveryError: e.DeliveryError})
					}
					return writeJSON(cmd, views)
				}

				out := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintln(out, "No events recorded")
					return nil
				}
				rows := make([][]string, 0, len(entries))
				for _, e := range entries {
					rows = append(rows, []string{
						e.EmittedAt.Local().Format("2006-01-02 15:04:05"),
						e.Trigger,
						orDash(e.Payload.String(events.KeyRunID)),
						orDash(e.Payload.String(events.KeyState)),
						orDash(e.Payload.String(events.KeyPath)),
						yesNo(e.DeliveryError == ""),
					})
				}
				fmt.Fprintln(out, renderTable([]string{"Emitted", "Trigger", "Run", "State", "Path", "Delivered"}, rows))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&trigger, "trigger", "", "Only events with this trigger name")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of events (0 for all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print events as JSON")
	return cmd
}

func newEventsStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count journaled events per trigger",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withJournal(func(journal *eventlog.Journal) error {
				stats, err := journal.Stats(cmd.Context())
				if err != nil {
					return err
				}
				triggers := make([]string, 0, len(stats))
				for trigger := range stats {
					triggers = append(triggers, trigger)
				}
				sort.Strings(triggers)
				rows := make([][]string, 0, len(triggers))
				total := 0
				for _, trigger := range triggers {
					rows = append(rows, []string{trigger, strconv.Itoa(stats[trigger])})
					total += stats[trigger]
				}
				rows = append(rows, []string{"total", strconv.Itoa(total)})
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Trigger", "Events"}, rows, 1))
				return nil
			})
		},
	}
}

func newEventsPruneCommand(ctx *commandContext) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete journaled events older than the retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withJournal(func(journal *eventlog.Journal) error {
				retention := days
				if !cmd.Flags().Changed("older-than-days") {
					retention = ctx.config.Events.JournalRetentionDays
				}
				if retention <= 0 {
					return errors.New("retention must be positive (--older-than-days or events.journal_retention_days)")
				}
				cutoff := time.Now().AddDate(0, 0, -retention)
				removed, err := journal.Prune(cmd.Context(), cutoff)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d events older than %d days\n", removed, retention)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "older-than-days", 0, "Retention in days (defaults to events.journal_retention_days)")
	return cmd
}
