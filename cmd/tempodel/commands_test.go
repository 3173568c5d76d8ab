package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"tempodel/internal/api"
	"tempodel/internal/logging"
	"tempodel/internal/testsupport"
)

func TestAddListRemoveLocal(t *testing.T) {
	env := setupCLITestEnv(t, false)
	target := filepath.Join(env.baseDir, "data", "report.csv")
	testsupport.WriteFile(t, target, 16)
	cacheDir := filepath.Join(env.baseDir, "cache")
	testsupport.WriteTree(t, cacheDir, "a.tmp", "nested/")

	out, _, err := runCLI(t, []string{"add", target, "--in", "1h"}, env.configPath)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	requireContains(t, out, "Scheduled "+target+" (file)")

	out, _, err = runCLI(t, []string{"add", cacheDir, "--in", "1d", "--periodic"}, env.configPath)
	if err != nil {
		t.Fatalf("add periodic: %v", err)
	}
	requireContains(t, out, "(dir)")
	requireContains(t, out, "every 24h0m0s")

	out, _, err = runCLI(t, []string{"list"}, env.configPath)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	requireContains(t, out, target)
	requireContains(t, out, cacheDir)

	out, _, err = runCLI(t, []string{"list", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("list --json: %v", err)
	}
	var listed api.ScheduleListResponse
	if err := json.Unmarshal([]byte(out), &listed); err != nil {
		t.Fatalf("decode list output: %v", err)
	}
	if len(listed.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(listed.Entries))
	}
	if !listed.Entries[1].Periodic || listed.Entries[1].RecurrenceSeconds != 86400 {
		t.Fatalf("unexpected periodic entry: %+v", listed.Entries[1])
	}

	out, _, err = runCLI(t, []string{"remove", target}, env.configPath)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	requireContains(t, out, "Unscheduled "+target)
	if !testsupport.Exists(t, target) {
		t.Fatal("remove must not delete the target")
	}

	if _, _, err := runCLI(t, []string{"remove", target}, env.configPath); err == nil {
		t.Fatal("expected error removing an unscheduled path")
	}
}

func TestAddRequiresExactlyOneWhen(t *testing.T) {
	env := setupCLITestEnv(t, false)
	target := filepath.Join(env.baseDir, "x.txt")

	if _, _, err := runCLI(t, []string{"add", target}, env.configPath); err == nil {
		t.Fatal("expected error without --in or --at")
	}
	if _, _, err := runCLI(t, []string{"add", target, "--in", "1h", "--at", time.Now().Format(time.RFC3339)}, env.configPath); err == nil {
		t.Fatal("expected error with both --in and --at")
	}
	if _, _, err := runCLI(t, []string{"add", target, "--in", "soon"}, env.configPath); err == nil {
		t.Fatal("expected error for an unparseable duration")
	}
}

func TestCheckDeletesDueTargetsLocally(t *testing.T) {
	env := setupCLITestEnv(t, false)
	due := filepath.Join(env.baseDir, "old.log")
	later := filepath.Join(env.baseDir, "new.log")
	testsupport.WriteFile(t, due, 8)
	testsupport.WriteFile(t, later, 8)

	past := time.Now().Add(-time.Minute).Format(time.RFC3339)
	if _, _, err := runCLI(t, []string{"add", due, "--at", past}, env.configPath); err != nil {
		t.Fatalf("add due: %v", err)
	}
	if _, _, err := runCLI(t, []string{"add", later, "--in", "1h"}, env.configPath); err != nil {
		t.Fatalf("add later: %v", err)
	}

	out, _, err := runCLI(t, []string{"check"}, env.configPath)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	requireContains(t, out, "deleted")
	requireContains(t, out, due)
	requireContains(t, out, "1 scheduled")
	if testsupport.Exists(t, due) {
		t.Fatal("expected due target to be deleted")
	}
	if !testsupport.Exists(t, later) {
		t.Fatal("expected future target to survive")
	}

	out, _, err = runCLI(t, []string{"check"}, env.configPath)
	if err != nil {
		t.Fatalf("second check: %v", err)
	}
	requireContains(t, out, "Nothing due")

	out, _, err = runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, due)
	requireContains(t, out, "manual")
}

func TestStatusWithoutDaemon(t *testing.T) {
	env := setupCLITestEnv(t, false)
	target := filepath.Join(env.baseDir, "soon.txt")
	if _, _, err := runCLI(t, []string{"add", target, "--in", "10m"}, env.configPath); err != nil {
		t.Fatalf("add: %v", err)
	}

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "api disabled")
	requireContains(t, out, "Entries:")
	requireContains(t, out, target)
	requireContains(t, out, "Schedule directory:")
	requireNotContains(t, out, "[ERROR]")
	requireNotContains(t, out, "\x1b[")
}

func TestRemoteCommandsUseDaemon(t *testing.T) {
	env := setupCLITestEnv(t, true)
	kept := filepath.Join(env.baseDir, "kept.bin")
	due := filepath.Join(env.baseDir, "due.bin")
	testsupport.WriteFile(t, kept, 4)
	testsupport.WriteFile(t, due, 4)

	out, _, err := runCLI(t, []string{"add", "--remote", kept, "--in", "1h"}, env.configPath)
	if err != nil {
		t.Fatalf("remote add: %v", err)
	}
	requireContains(t, out, "Scheduled "+kept)

	out, _, err = runCLI(t, []string{"list", "--remote"}, env.configPath)
	if err != nil {
		t.Fatalf("remote list: %v", err)
	}
	requireContains(t, out, kept)

	out, _, err = runCLI(t, []string{"remove", "--remote", kept}, env.configPath)
	if err != nil {
		t.Fatalf("remote remove: %v", err)
	}
	requireContains(t, out, "Unscheduled "+kept)

	// A local edit does not wake the daemon, so the due entry waits for the
	// explicit remote pass.
	past := time.Now().Add(-time.Minute).Format(time.RFC3339)
	if _, _, err := runCLI(t, []string{"add", due, "--at", past}, env.configPath); err != nil {
		t.Fatalf("local add: %v", err)
	}
	out, _, err = runCLI(t, []string{"check", "--remote"}, env.configPath)
	if err != nil {
		t.Fatalf("remote check: %v", err)
	}
	requireContains(t, out, due)
	if testsupport.Exists(t, due) {
		t.Fatal("expected daemon pass to delete the target")
	}
	if !testsupport.Exists(t, kept) {
		t.Fatal("unscheduled target must survive")
	}

	out, _, err = runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "running (pid")
}

func TestRemoteWithoutAPIFails(t *testing.T) {
	env := setupCLITestEnv(t, false)
	_, _, err := runCLI(t, []string{"check", "--remote"}, env.configPath)
	if err == nil {
		t.Fatal("expected error when the api is disabled")
	}
	requireContains(t, err.Error(), "api.bind")
}

func TestLogsPrintsDaemonLog(t *testing.T) {
	env := setupCLITestEnv(t, false)
	logPath := filepath.Join(env.cfg.Paths.LogDir, logging.LogFileName)
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(logPath, []byte("one\ntwo\nthree\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out, _, err := runCLI(t, []string{"logs", "-n", "2"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if out != "two\nthree\n" {
		t.Fatalf("unexpected logs output %q", out)
	}
}
