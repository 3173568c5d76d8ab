package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"tempodel/internal/api"
	"tempodel/internal/checker"
	"tempodel/internal/daemonrun"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var (
		remote     bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run one reconciliation pass now",
		Long: "Delete every due target and reschedule periodic entries.\n\n" +
			"By default the pass runs in this process against the schedule file. " +
			"With --remote the running daemon performs the pass.",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp api.ReconcileResponse
			if remote {
				client, err := ctx.apiClient()
				if err != nil {
					return err
				}
				resp, err = client.Reconcile(cmd.Context())
				if err != nil {
					return wrapDaemonError(err, ctx.configValue().API.Bind)
				}
			} else {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				components, err := daemonrun.Wire(cfg, ctx.logger(), cliRole, nil)
				if err != nil {
					return err
				}
				defer components.Close()

				result, err := components.Checker.RunOnce(cmd.Context(), checker.TriggerManual)
				if err != nil {
					return err
				}
				resp = api.FromResult(result)
			}

			if jsonOutput {
				return writeJSON(cmd, resp)
			}
			printReconcile(cmd.OutOrStdout(), resp)
			return nil
		},
	}

	cmd.Flags().BoolVar(&remote, "remote", false, "Ask the running daemon to run the pass")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the pass result as JSON")
	return cmd
}

func printReconcile(out io.Writer, resp api.ReconcileResponse) {
	acted := 0
	for _, o := range resp.Outcomes {
		if o.Action == "kept" {
			continue
		}
		acted++
		line := fmt.Sprintf("%-12s %s", o.Action, o.Path)
		switch {
		case o.Error != "":
			line += ": " + o.Error
		case len(o.ChildFailures) > 0:
			line += fmt.Sprintf(" (%d children could not be removed)", len(o.ChildFailures))
		case o.NextDeleteAt != "":
			line += " (next " + o.NextDeleteAt + ")"
		}
		fmt.Fprintln(out, line)
	}
	if acted == 0 {
		fmt.Fprintln(out, "Nothing due")
	}

	names := make([]string, 0, len(resp.Counts))
	for name, n := range resp.Counts {
		if n > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	summary := fmt.Sprintf("%d scheduled", resp.Entries)
	for _, name := range names {
		summary += fmt.Sprintf(", %d %s", resp.Counts[name], name)
	}
	fmt.Fprintln(out, summary)
}
