package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tempodel/internal/api"
	"tempodel/internal/config"
	"tempodel/internal/preflight"
	"tempodel/internal/schedule"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and schedule status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			entries := store.List(cmd.Context())

			var (
				daemonStatus *api.DaemonStatus
				daemonErr    error
			)
			if client, err := api.NewClient(cfg); err == nil {
				st, err := client.Status(cmd.Context())
				if err == nil {
					daemonStatus = &st
				} else {
					daemonErr = err
				}
			}

			if jsonOutput {
				if daemonStatus == nil {
					daemonStatus = &api.DaemonStatus{ScheduleFile: cfg.Paths.ScheduleFile}
				}
				daemonStatus.Checker.Entries = len(entries)
				return writeJSON(cmd, daemonStatus)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range statusLines(cfg, entries, daemonStatus, daemonErr, time.Now(), colorize) {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out)
			for _, line := range checkLines(preflight.RunAll(cmd.Context(), cfg), colorize) {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print status as JSON")
	return cmd
}

func statusLines(cfg *config.Config, entries []schedule.Entry, st *api.DaemonStatus, daemonErr error, now time.Time, colorize bool) []string {
	lines := renderSectionHeader("Daemon", colorize)
	switch {
	case st != nil && st.Running:
		lines = append(lines, renderStatusLine("Daemon", statusOK, fmt.Sprintf("running (pid %d)", st.PID), colorize))
		lines = append(lines, checkerLines(st.Checker, colorize)...)
	case strings.TrimSpace(cfg.API.Bind) == "":
		lines = append(lines, renderStatusLine("Daemon", statusInfo, "api disabled", colorize))
	case daemonErr != nil:
		lines = append(lines, renderStatusLine("Daemon", statusWarn, "not reachable at "+cfg.API.Bind, colorize))
	default:
		lines = append(lines, renderStatusLine("Daemon", statusWarn, "not running", colorize))
	}

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Schedule", colorize)...)
	lines = append(lines, renderValueLine("File", cfg.Paths.ScheduleFile))
	lines = append(lines, renderValueLine("Entries", fmt.Sprintf("%d", len(entries))))

	nowEpoch := schedule.Epoch(now)
	due, periodic := 0, 0
	for _, e := range entries {
		if e.Due(nowEpoch) {
			due++
		}
		if e.EffectivelyPeriodic() {
			periodic++
		}
	}
	lines = append(lines, renderValueLine("Periodic", fmt.Sprintf("%d", periodic)))
	if due > 0 {
		lines = append(lines, renderStatusLine("Due", statusWarn, fmt.Sprintf("%d waiting for a pass", due), colorize))
	}
	if next, ok := nextUpcoming(entries, nowEpoch); ok {
		lines = append(lines, renderValueLine("Next", fmt.Sprintf("%s at %s", next.Path, next.DueTime().Local().Format(displayTimeFormat))))
	}
	return lines
}

func checkerLines(st api.CheckerStatus, colorize bool) []string {
	var lines []string
	if st.LastPassAt != "" {
		lines = append(lines, renderValueLine("Last pass", fmt.Sprintf("%s (%s)", st.LastPassAt, st.LastTrigger)))
	}
	lines = append(lines, renderValueLine("Passes", fmt.Sprintf("%d (%d failed)", st.Passes, st.Failures)))
	if st.LastError != "" {
		lines = append(lines, renderStatusLine("Last error", statusError, st.LastError, colorize))
	}
	names := make([]string, 0, len(st.Totals))
	for name, n := range st.Totals {
		if n > 0 && name != "kept" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		lines = append(lines, renderValueLine(strings.ToUpper(name[:1])+name[1:], fmt.Sprintf("%d", st.Totals[name])))
	}
	return lines
}

func checkLines(results []preflight.Result, colorize bool) []string {
	lines := renderSectionHeader("Checks", colorize)
	for _, r := range results {
		kind := statusOK
		switch {
		case !r.Passed && r.Required:
			kind = statusError
		case !r.Passed:
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine(r.Name, kind, r.Detail, colorize))
	}
	return lines
}

func nextUpcoming(entries []schedule.Entry, now float64) (schedule.Entry, bool) {
	var (
		next  schedule.Entry
		found bool
	)
	for _, e := range entries {
		if e.Due(now) {
			continue
		}
		if !found || e.DeleteAt < next.DeleteAt {
			next = e
			found = true
		}
	}
	return next, found
}
