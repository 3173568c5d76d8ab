package schedule

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/text/unicode/norm"

	"tempodel/internal/config"
	"tempodel/internal/logging"
)

// Normalize canonicalizes a user-supplied path: tilde expansion, absolute,
// cleaned separators and NFC so that equivalent spellings compare equal.
func Normalize(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", ErrEmptyPath
	}
	expanded, err := config.ExpandPath(trimmed)
	if err != nil {
		return "", fmt.Errorf("normalize %q: %w", trimmed, err)
	}
	return norm.NFC.String(expanded), nil
}

// Request describes an add-or-update mutation.
type Request struct {
	Path     string
	DeleteAt float64
	Periodic bool
	// Recurrence in seconds; ignored unless Periodic is set.
	Recurrence float64
	Kind       Kind
}

// NewEntry validates req and builds the entry that will be persisted. An
// unusable recurrence downgrades the entry to non-periodic with a warning.
func NewEntry(fsys afero.Fs, req Request, logger *slog.Logger) (Entry, error) {
	path, err := Normalize(req.Path)
	if err != nil {
		return Entry{}, err
	}
	if math.IsNaN(req.DeleteAt) || math.IsInf(req.DeleteAt, 0) {
		return Entry{}, ErrInvalidDeleteAt
	}

	entry := Entry{
		Path:     path,
		DeleteAt: req.DeleteAt,
		Kind:     req.Kind,
		IsDir:    detectDir(fsys, path, req.Kind),
	}

	if req.Periodic {
		if ValidRecurrence(req.Recurrence) {
			entry.Periodic = true
			entry.RecurrenceSeconds = Float(req.Recurrence)
		} else {
			logging.WarnWithContext(logger, "periodic entry without valid recurrence; scheduling once", "recurrence_invalid",
				logging.String(logging.FieldPath, path),
				logging.Float64("recurrence_seconds", req.Recurrence),
				logging.String(logging.FieldErrorHint, "pass a positive interval such as 1h or 7d"),
				logging.String(logging.FieldImpact, "entry will be deleted once and not rescheduled"),
			)
		}
	}
	return entry, nil
}

func detectDir(fsys afero.Fs, path string, kind Kind) bool {
	switch kind {
	case KindDir:
		return true
	case KindFile:
		return false
	}
	info, err := fsys.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// Exists reports whether path is present on fsys. Errors other than
// not-exist are treated as present so the caller attempts the action and
// reports the real failure.
func Exists(fsys afero.Fs, path string) (fs.FileInfo, bool) {
	info, err := fsys.Stat(path)
	if err == nil {
		return info, true
	}
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false
	}
	return nil, true
}

var unitSeconds = map[string]float64{
	"s": 1,
	"m": 60,
	"h": 3600,
	"d": 86400,
	"w": 604800,
}

// MaxRecurrenceSeconds bounds user-supplied intervals to roughly a century so
// due times stay representable as time.Time.
const MaxRecurrenceSeconds = 100 * 365.25 * 86400

// ParseRecurrence turns user text such as "90", "45s", "30m", "1.5h", "7d"
// or "1h30m" into a positive number of seconds.
func ParseRecurrence(value string) (float64, error) {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	if trimmed == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidRecurrence)
	}

	seconds, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		unit := trimmed[len(trimmed)-1:]
		factor, known := unitSeconds[unit]
		if n, perr := strconv.ParseFloat(trimmed[:len(trimmed)-1], 64); known && perr == nil {
			seconds = n * factor
		} else {
			d, derr := time.ParseDuration(trimmed)
			if derr != nil {
				return 0, fmt.Errorf("%w: %q: %v", ErrInvalidRecurrence, value, derr)
			}
			seconds = d.Seconds()
		}
	}
	if !ValidRecurrence(seconds) {
		return 0, fmt.Errorf("%w: %q must be a positive duration", ErrInvalidRecurrence, value)
	}
	if seconds > MaxRecurrenceSeconds {
		return 0, fmt.Errorf("%w: %q exceeds 100 years", ErrInvalidRecurrence, value)
	}
	return seconds, nil
}
