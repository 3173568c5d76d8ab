package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tempodel/internal/history"
	"tempodel/internal/schedule"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var (
		limit      int
		path       string
		action     string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent deletions, wipes and failures",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			journal, err := history.OpenFromConfig(cfg, ctx.logger())
			if err != nil {
				return err
			}
			if journal == nil {
				return fmt.Errorf("history is disabled: set history.enabled = true in the configuration")
			}
			defer journal.Close()

			filterPath := strings.TrimSpace(path)
			if filterPath != "" {
				if filterPath, err = schedule.Normalize(filterPath); err != nil {
					return err
				}
			}
			events, err := journal.Recent(cmd.Context(), history.Filter{
				Limit:  limit,
				Path:   filterPath,
				Action: strings.ToLower(strings.TrimSpace(action)),
			})
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, events)
			}

			out := cmd.OutOrStdout()
			if len(events) == 0 {
				fmt.Fprintln(out, "No history recorded")
				return nil
			}
			rows := make([][]string, 0, len(events))
			for _, ev := range events {
				detail := ev.Error
				if detail == "" && ev.ChildFailures > 0 {
					detail = fmt.Sprintf("%d children failed", ev.ChildFailures)
				}
				if detail == "" && ev.NextDeleteAt != nil {
					detail = "next " + ev.NextDeleteAt.Local().Format(displayTimeFormat)
				}
				rows = append(rows, []string{
					ev.RecordedAt.Local().Format(displayTimeFormat),
					ev.Action,
					ev.Path,
					ev.Trigger,
					detail,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"When", "Action", "Path", "Trigger", "Detail"},
				rows,
				nil,
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum events to show")
	cmd.Flags().StringVar(&path, "path", "", "Only show events for this path")
	cmd.Flags().StringVar(&action, "action", "", "Only show one action (deleted, wiped, rescheduled, missing, failed, pruned)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print events as JSON")
	return cmd
}
