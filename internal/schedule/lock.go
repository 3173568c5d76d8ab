package schedule

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"tempodel/internal/logging"
)

// marker is the advisory sentinel next to the schedule file. Its presence is
// the lock; its content only identifies the creator.
type marker struct {
	fs         afero.Fs
	path       string
	retries    int
	delay      time.Duration
	staleAfter time.Duration
	logger     *slog.Logger
	now        func() time.Time
	alive      func(pid int) bool
}

// acquire polls for the marker's absence and creates it. When the budget is
// exhausted the caller proceeds without the marker; release is always safe to
// call and only removes a marker this call created.
func (m *marker) acquire(ctx context.Context, role, op string) (release func(), acquired bool) {
	for attempt := 0; attempt < m.retries; attempt++ {
		present, err := m.exists()
		if err != nil || !present {
			break
		}
		if m.removeIfStale() {
			continue
		}
		if !sleepContext(ctx, m.delay) {
			break
		}
	}

	token := fmt.Sprintf("%s_%s_%d %s", role, op, os.Getpid(), uuid.NewString())
	file, err := m.fs.OpenFile(m.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		logging.WarnWithContext(m.logger, "schedule marker busy; proceeding without it", "schedule_lock_bypassed",
			logging.String(logging.FieldPath, m.path),
			logging.String("op", op),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the marker if no tempodel process is running"),
			logging.String(logging.FieldImpact, "concurrent writers rely on atomic replace only"),
		)
		return func() {}, false
	}
	_, writeErr := file.WriteString(token)
	closeErr := file.Close()
	if writeErr != nil || closeErr != nil {
		m.logger.Debug("schedule marker content not written", logging.Error(errors.Join(writeErr, closeErr)))
	}

	return func() { m.release(token) }, true
}

func (m *marker) release(token string) {
	data, err := afero.ReadFile(m.fs, m.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logging.WarnWithContext(m.logger, "schedule marker unreadable on release", "schedule_lock_release_failed",
				logging.String(logging.FieldPath, m.path),
				logging.Error(err),
			)
		}
		return
	}
	if len(data) > 0 && string(data) != token {
		// Replaced after being judged stale by another process.
		m.logger.Debug("schedule marker owned by another process; leaving it", logging.String("owner", string(data)))
		return
	}
	if err := m.fs.Remove(m.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.WarnWithContext(m.logger, "schedule marker could not be removed", "schedule_lock_release_failed",
			logging.String(logging.FieldPath, m.path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions on the schedule directory"),
			logging.String(logging.FieldImpact, "other processes wait out their retry budget"),
		)
	}
}

func (m *marker) exists() (bool, error) {
	_, err := m.fs.Stat(m.path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// removeIfStale deletes a marker whose owner process is gone or whose age
// exceeds staleAfter.
func (m *marker) removeIfStale() bool {
	info, err := m.fs.Stat(m.path)
	if err != nil {
		return false
	}
	reason := ""
	if m.staleAfter > 0 && m.now().Sub(info.ModTime()) > m.staleAfter {
		reason = "expired"
	} else if data, err := afero.ReadFile(m.fs, m.path); err == nil {
		if pid, ok := markerPID(string(data)); ok && pid != os.Getpid() && !m.alive(pid) {
			reason = "owner_exited"
		}
	}
	if reason == "" {
		return false
	}
	if err := m.fs.Remove(m.path); err != nil {
		return false
	}
	logging.WarnWithContext(m.logger, "removed stale schedule marker", "schedule_lock_stale",
		logging.String(logging.FieldPath, m.path),
		logging.String("reason", reason),
		logging.String(logging.FieldImpact, "previous holder exited without releasing"),
	)
	return true
}

// markerPID extracts the pid from "<role>_<op>_<pid> <token>". Markers written
// by older tools carry only "<role>_<op>_<pid>".
func markerPID(content string) (int, bool) {
	head, _, _ := strings.Cut(strings.TrimSpace(content), " ")
	idx := strings.LastIndex(head, "_")
	if idx < 0 {
		return 0, false
	}
	pid, err := strconv.Atoi(head[idx+1:])
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
