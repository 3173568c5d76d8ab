package schedule

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/text/unicode/norm"

	"tempodel/internal/config"
	"tempodel/internal/logging"
)

const tempSuffix = ".tmp"

// Options configures a Store.
type Options struct {
	Path       string
	Fs         afero.Fs
	Retries    int
	RetryDelay time.Duration
	StaleAfter time.Duration
	// Role is recorded in the marker content, e.g. "cli" or "daemon".
	Role   string
	Logger *slog.Logger
}

// Store persists the schedule as one JSON array guarded by an advisory marker.
// Load and Save never fail outward; problems are logged and degrade to an empty
// schedule or a skipped write.
type Store struct {
	path   string
	fs     afero.Fs
	role   string
	logger *slog.Logger
	marker *marker

	// mu serializes load-modify-save cycles within this process.
	mu sync.Mutex
}

// NewStore constructs a Store. A nil Fs selects the OS filesystem.
func NewStore(opts Options) *Store {
	logger := logging.NewComponentLogger(opts.Logger, "schedule")
	fsys := opts.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	role := opts.Role
	if role == "" {
		role = "tempodel"
	}
	return &Store{
		path:   opts.Path,
		fs:     fsys,
		role:   role,
		logger: logger,
		marker: &marker{
			fs:         fsys,
			path:       opts.Path + config.LockSuffix,
			retries:    opts.Retries,
			delay:      opts.RetryDelay,
			staleAfter: opts.StaleAfter,
			logger:     logger,
			now:        time.Now,
			alive:      processAlive,
		},
	}
}

// NewStoreFromConfig wires a Store using the configured schedule file and lock budget.
func NewStoreFromConfig(cfg *config.Config, fsys afero.Fs, role string, logger *slog.Logger) *Store {
	return NewStore(Options{
		Path:       cfg.Paths.ScheduleFile,
		Fs:         fsys,
		Retries:    cfg.Lock.Retries,
		RetryDelay: cfg.LockRetryDelay(),
		StaleAfter: cfg.LockStaleAfter(),
		Role:       role,
		Logger:     logger,
	})
}

// Path returns the schedule file location.
func (s *Store) Path() string { return s.path }

// Fs returns the filesystem the store and its entries live on.
func (s *Store) Fs() afero.Fs { return s.fs }

// Load reads the schedule. A missing file yields an empty schedule; an
// unreadable or non-array file yields an empty schedule and is rewritten as [].
// Malformed records and later duplicates of a path are dropped.
func (s *Store) Load(ctx context.Context) []Entry {
	entries, corrupt := s.load(ctx)
	if corrupt {
		s.Save(ctx, nil)
	}
	return entries
}

func (s *Store) load(ctx context.Context) ([]Entry, bool) {
	release, _ := s.marker.acquire(ctx, s.role, "load")
	defer release()

	logger := logging.WithContext(ctx, s.logger)

	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Entry{}, false
		}
		logging.ErrorWithContext(logger, "schedule unreadable; using empty schedule", "schedule_read_failed",
			logging.String(logging.FieldPath, s.path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions on the schedule file"),
		)
		return []Entry{}, true
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		if err == nil {
			err = errors.New("schedule is not a JSON array")
		}
		logging.ErrorWithContext(logger, "schedule malformed; resetting to empty", "schedule_parse_failed",
			logging.String(logging.FieldPath, s.path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "restore the schedule from backup if entries were lost"),
		)
		return []Entry{}, true
	}

	entries := make([]Entry, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	malformed, duplicates := 0, 0
	for _, item := range raw {
		var entry Entry
		if err := json.Unmarshal(item, &entry); err != nil {
			malformed++
			continue
		}
		entry.Path = norm.NFC.String(filepath.Clean(entry.Path))
		if _, dup := seen[entry.Path]; dup {
			duplicates++
			continue
		}
		seen[entry.Path] = struct{}{}
		entries = append(entries, entry)
	}
	if malformed > 0 || duplicates > 0 {
		logging.WarnWithContext(logger, "dropped invalid schedule records", "schedule_records_dropped",
			logging.Int("malformed", malformed),
			logging.Int("duplicates", duplicates),
			logging.Int("kept", len(entries)),
			logging.String(logging.FieldImpact, "dropped records are removed at the next save"),
		)
	}
	return entries, false
}

// Save writes entries atomically. Failures are logged, never returned.
func (s *Store) Save(ctx context.Context, entries []Entry) {
	if err := s.SaveStrict(ctx, entries); err != nil {
		logging.ErrorWithContext(logging.WithContext(ctx, s.logger), "schedule save failed", "schedule_save_failed",
			logging.String(logging.FieldPath, s.path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check free space and permissions on the schedule directory"),
		)
	}
}

// SaveStrict writes entries atomically and returns the failure, for
// interactive callers that must surface it.
func (s *Store) SaveStrict(ctx context.Context, entries []Entry) error {
	valid := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if !e.Malformed() {
			valid = append(valid, e)
		}
	}
	payload, err := encode(valid)
	if err != nil {
		return fmt.Errorf("encode schedule: %w", err)
	}

	release, _ := s.marker.acquire(ctx, s.role, "save")
	defer release()

	if dir := filepath.Dir(s.path); dir != "" {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create schedule directory: %w", err)
		}
	}

	tmp := s.path + tempSuffix
	if err := afero.WriteFile(s.fs, tmp, payload, 0o644); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("write temp schedule: %w", err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("replace schedule: %w", err)
	}
	return nil
}

func encode(entries []Entry) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(entries); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// UpdateFunc receives the loaded schedule and returns the next one plus
// whether it differs.
type UpdateFunc func(entries []Entry) (next []Entry, changed bool, err error)

// Update runs one load-modify-save cycle under the in-process mutex. The
// advisory marker is held only during the load and the save, never while fn
// runs. The schedule is written only when fn reports a change.
func (s *Store) Update(ctx context.Context, fn UpdateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.Load(ctx)
	next, changed, err := fn(entries)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	return s.SaveStrict(ctx, next)
}

// List returns the schedule ordered by due time.
func (s *Store) List(ctx context.Context) []Entry {
	s.mu.Lock()
	entries := s.Load(ctx)
	s.mu.Unlock()

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].DeleteAt < entries[j].DeleteAt
	})
	return entries
}
