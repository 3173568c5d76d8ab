package preflight

import (
	"context"
	"path/filepath"

	"tempodel/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Detail   string
	// Required marks checks whose failure must stop the daemon.
	Required bool
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		required(CheckDirectoryAccess("Schedule directory", filepath.Dir(cfg.Paths.ScheduleFile))),
		required(CheckDirectoryAccess("Log directory", cfg.Paths.LogDir)),
	}

	// History directory only when it differs from the schedule directory.
	if cfg.History.Enabled && filepath.Dir(cfg.History.Path) != filepath.Dir(cfg.Paths.ScheduleFile) {
		results = append(results, CheckDirectoryAccess("History directory", filepath.Dir(cfg.History.Path)))
	}

	if cfg.Notifications.NtfyTopic != "" {
		results = append(results, CheckNtfy(ctx, cfg.Notifications.NtfyTopic))
	}

	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

func required(r Result) Result {
	r.Required = true
	return r
}
