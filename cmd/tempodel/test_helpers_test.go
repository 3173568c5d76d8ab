package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"tempodel/internal/checker"
	"tempodel/internal/config"
	"tempodel/internal/daemon"
	"tempodel/internal/daemonrun"
	"tempodel/internal/logging"
	"tempodel/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
	daemon     *daemon.Daemon
}

// setupCLITestEnv writes a config file into a temp dir. With withDaemon the
// config points api.bind at an in-process daemon; otherwise the API is off.
func setupCLITestEnv(t *testing.T, withDaemon bool) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	cfg.API.Bind = ""
	env := &cliTestEnv{
		cfg:     cfg,
		baseDir: testsupport.BaseDir(cfg),
	}
	env.configPath = filepath.Join(env.baseDir, "config.toml")

	if withDaemon {
		cfg.API.Bind = "127.0.0.1:0"
		components, err := daemonrun.Wire(cfg, logging.NewNop(), "daemon", nil,
			checker.WithIntervals(time.Hour, time.Hour))
		if err != nil {
			t.Fatalf("Wire: %v", err)
		}
		d, err := daemon.New(cfg, components.Checker, logging.NewNop(), daemon.WithJournal(components.Journal))
		if err != nil {
			t.Fatalf("daemon.New: %v", err)
		}
		if err := d.Start(context.Background()); err != nil {
			t.Fatalf("daemon start: %v", err)
		}
		t.Cleanup(func() { _ = d.Close() })
		env.daemon = d
		cfg.API.Bind = d.APIAddress()
	}

	writeTestConfig(t, env.configPath, cfg)
	return env
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func requireNotContains(t *testing.T, output, substr string) {
	t.Helper()
	if strings.Contains(output, substr) {
		t.Fatalf("expected %q not to contain %q", output, substr)
	}
}
