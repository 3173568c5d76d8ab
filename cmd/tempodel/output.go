package main

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/spf13/cobra"

	"tempodel/internal/api"
	"tempodel/internal/schedule"
)

const displayTimeFormat = "2006-01-02 15:04:05"

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func entryKind(e api.Entry) string {
	if e.IsDir {
		return "dir"
	}
	return "file"
}

func displayTime(epoch float64) string {
	return schedule.FromEpoch(epoch).Local().Format(displayTimeFormat)
}

func recurrenceLabel(e api.Entry) string {
	if !e.Periodic || e.RecurrenceSeconds <= 0 {
		return "-"
	}
	return formatSeconds(e.RecurrenceSeconds)
}

func recurrenceSuffix(e api.Entry) string {
	if label := recurrenceLabel(e); label != "-" {
		return ", every " + label
	}
	return ""
}

func formatSeconds(seconds float64) string {
	if seconds > maxDurationSeconds {
		return fmt.Sprintf("%.0fd", seconds/86400)
	}
	return time.Duration(seconds * float64(time.Second)).Round(time.Second).String()
}

var maxDurationSeconds = time.Duration(math.MaxInt64).Seconds()
