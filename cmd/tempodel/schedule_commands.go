package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tempodel/internal/api"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	var (
		in       string
		at       string
		kind     string
		periodic bool
		remote   bool
	)

	cmd := &cobra.Command{
		Use:   "add <path>...",
		Short: "Schedule paths for deletion",
		Long: "Schedule one or more files or directories for deletion.\n\n" +
			"--in accepts seconds or a unit suffix (90, 45s, 30m, 1.5h, 7d, 2w). " +
			"With --periodic the same interval becomes the recurrence: files are " +
			"deleted and directories are emptied every interval.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := api.AddRequest{
				Paths:    args,
				In:       strings.TrimSpace(in),
				At:       strings.TrimSpace(at),
				Periodic: periodic,
				Kind:     strings.TrimSpace(kind),
			}

			var entries []api.Entry
			if remote {
				client, err := ctx.apiClient()
				if err != nil {
					return err
				}
				added, err := client.Add(cmd.Context(), req)
				if err != nil {
					return wrapDaemonError(err, ctx.configValue().API.Bind)
				}
				entries = added
			} else {
				now := time.Now()
				requests, err := req.Requests(now)
				if err != nil {
					return err
				}
				store, err := ctx.openStore()
				if err != nil {
					return err
				}
				for _, r := range requests {
					entry, err := store.AddOrUpdate(cmd.Context(), r)
					if err != nil {
						return fmt.Errorf("schedule %s: %w", r.Path, err)
					}
					entries = append(entries, api.FromEntry(entry, now))
				}
			}

			out := cmd.OutOrStdout()
			for _, e := range entries {
				fmt.Fprintf(out, "Scheduled %s (%s) for %s%s\n", e.Path, entryKind(e), displayTime(e.DeleteAtEpoch), recurrenceSuffix(e))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&in, "in", "", "Delete after this long (e.g. 30m, 7d)")
	cmd.Flags().StringVar(&at, "at", "", "Delete at an RFC3339 timestamp")
	cmd.Flags().StringVar(&kind, "kind", "", "Treat targets as file or dir instead of inspecting them")
	cmd.Flags().BoolVar(&periodic, "periodic", false, "Repeat the deletion every interval")
	cmd.Flags().BoolVar(&remote, "remote", false, "Send the request to the running daemon")
	cmd.MarkFlagsMutuallyExclusive("in", "at")
	cmd.MarkFlagsOneRequired("in", "at")
	return cmd
}

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:     "remove <path>...",
		Aliases: []string{"rm"},
		Short:   "Unschedule paths without deleting them",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var removed, missing []string
			if remote {
				client, err := ctx.apiClient()
				if err != nil {
					return err
				}
				resp, err := client.Remove(cmd.Context(), args...)
				if err != nil {
					return wrapDaemonError(err, ctx.configValue().API.Bind)
				}
				removed, missing = resp.Removed, resp.Missing
			} else {
				store, err := ctx.openStore()
				if err != nil {
					return err
				}
				for _, p := range args {
					ok, err := store.Remove(cmd.Context(), p)
					if err != nil {
						return fmt.Errorf("unschedule %s: %w", p, err)
					}
					if ok {
						removed = append(removed, p)
					} else {
						missing = append(missing, p)
					}
				}
			}

			out := cmd.OutOrStdout()
			for _, p := range removed {
				fmt.Fprintf(out, "Unscheduled %s\n", p)
			}
			for _, p := range missing {
				fmt.Fprintf(out, "Not scheduled: %s\n", p)
			}
			if len(removed) == 0 {
				return fmt.Errorf("no matching entries")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&remote, "remote", false, "Send the request to the running daemon")
	return cmd
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var (
		jsonOutput bool
		remote     bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show scheduled entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			var entries []api.Entry
			if remote {
				client, err := ctx.apiClient()
				if err != nil {
					return err
				}
				listed, err := client.Schedule(cmd.Context())
				if err != nil {
					return wrapDaemonError(err, ctx.configValue().API.Bind)
				}
				entries = listed
			} else {
				store, err := ctx.openStore()
				if err != nil {
					return err
				}
				entries = api.FromEntries(store.List(cmd.Context()), time.Now())
			}

			if jsonOutput {
				return writeJSON(cmd, api.ScheduleListResponse{Entries: entries})
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "Nothing scheduled")
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{
					e.Path,
					entryKind(e),
					displayTime(e.DeleteAtEpoch),
					recurrenceLabel(e),
					yesNo(e.Due),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Path", "Kind", "Delete At", "Every", "Due"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print entries as JSON")
	cmd.Flags().BoolVar(&remote, "remote", false, "Read the schedule through the running daemon")
	return cmd
}
