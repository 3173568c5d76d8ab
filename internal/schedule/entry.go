package schedule

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrEmptyPath reports a request without a usable target path.
	ErrEmptyPath = errors.New("schedule: path is empty")
	// ErrNotFound reports that no entry exists for the requested path.
	ErrNotFound = errors.New("schedule: entry not found")
	// ErrInvalidDeleteAt reports a non-finite due time.
	ErrInvalidDeleteAt = errors.New("schedule: delete_at must be a finite number")
	// ErrPersist wraps failures to write the schedule file.
	ErrPersist = errors.New("schedule: persist failed")
	// ErrUnknownKind reports an unrecognised kind hint.
	ErrUnknownKind = errors.New("schedule: unknown kind")
	// ErrInvalidRecurrence reports an interval that cannot be parsed or is out of range.
	ErrInvalidRecurrence = errors.New("schedule: invalid recurrence")
)

// Kind is a caller-declared hint about the target type.
type Kind string

const (
	KindAuto Kind = ""
	KindFile Kind = "file"
	KindDir  Kind = "dir"
)

// ParseKind accepts the user-facing spellings of a kind hint.
func ParseKind(value string) (Kind, error) {
	switch value {
	case "", "auto":
		return KindAuto, nil
	case "file", "f":
		return KindFile, nil
	case "dir", "directory", "d":
		return KindDir, nil
	default:
		return KindAuto, fmt.Errorf("%w %q (want file or dir)", ErrUnknownKind, value)
	}
}

// Entry is one filesystem target under deletion management.
type Entry struct {
	Path     string
	IsDir    bool
	DeleteAt float64
	Periodic bool
	// RecurrenceSeconds is only meaningful when Periodic is set.
	RecurrenceSeconds *float64
	Kind              Kind
}

// ValidRecurrence reports whether v can drive a periodic reschedule.
func ValidRecurrence(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// Recurrence returns the recurrence interval when the entry is effectively periodic.
func (e Entry) Recurrence() (float64, bool) {
	if !e.Periodic || e.RecurrenceSeconds == nil || !ValidRecurrence(*e.RecurrenceSeconds) {
		return 0, false
	}
	return *e.RecurrenceSeconds, true
}

// EffectivelyPeriodic is false for periodic entries with an unusable recurrence.
func (e Entry) EffectivelyPeriodic() bool {
	_, ok := e.Recurrence()
	return ok
}

// Due reports whether now has reached the entry's delete time.
func (e Entry) Due(now float64) bool {
	return now >= e.DeleteAt
}

// Malformed reports entries that cannot be reconciled.
func (e Entry) Malformed() bool {
	return e.Path == "" || math.IsNaN(e.DeleteAt) || math.IsInf(e.DeleteAt, 0)
}

// DueTime converts DeleteAt to a wall-clock time.
func (e Entry) DueTime() time.Time {
	return FromEpoch(e.DeleteAt)
}

// maxEpochSeconds is the largest magnitude FromEpoch passes to time.Unix.
const maxEpochSeconds = float64(1 << 62)

// Epoch converts t to fractional seconds since the Unix epoch.
func Epoch(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// FromEpoch converts fractional epoch seconds to a time. Values outside the
// int64 second range are clamped.
func FromEpoch(seconds float64) time.Time {
	switch {
	case math.IsNaN(seconds):
		seconds = 0
	case seconds > maxEpochSeconds:
		seconds = maxEpochSeconds
	case seconds < -maxEpochSeconds:
		seconds = -maxEpochSeconds
	}
	whole, frac := math.Modf(seconds)
	return time.Unix(int64(whole), int64(frac*float64(time.Second)))
}

// Float returns a pointer to v, for RecurrenceSeconds literals.
func Float(v float64) *float64 {
	return &v
}

type entryRecord struct {
	Path                    string   `json:"path"`
	DeleteAt                float64  `json:"delete_at"`
	IsDir                   bool     `json:"is_dir"`
	Periodic                bool     `json:"periodic"`
	OriginalDurationSeconds *float64 `json:"original_duration_seconds,omitempty"`
	Kind                    Kind     `json:"kind,omitempty"`
}

// MarshalJSON writes the persisted record shape. Recurrence is written only for
// periodic entries with a valid interval.
func (e Entry) MarshalJSON() ([]byte, error) {
	rec := entryRecord{
		Path:     e.Path,
		DeleteAt: e.DeleteAt,
		IsDir:    e.IsDir,
		Periodic: e.Periodic,
		Kind:     e.Kind,
	}
	if r, ok := e.Recurrence(); ok {
		rec.OriginalDurationSeconds = &r
	}
	return json.Marshal(rec)
}

// UnmarshalJSON decodes a persisted record, rejecting records that lack a
// non-empty string path, a numeric delete_at or a boolean is_dir.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("entry is not an object: %w", err)
	}
	if fields == nil {
		return errors.New("entry is null")
	}

	var out Entry
	if err := decodeRequired(fields, "path", &out.Path); err != nil {
		return err
	}
	if out.Path == "" {
		return ErrEmptyPath
	}
	if err := decodeRequired(fields, "delete_at", &out.DeleteAt); err != nil {
		return err
	}
	if err := decodeRequired(fields, "is_dir", &out.IsDir); err != nil {
		return err
	}

	// Optional fields degrade to their zero values when mistyped.
	if raw, ok := fields["periodic"]; ok {
		_ = json.Unmarshal(raw, &out.Periodic)
	}
	if raw, ok := fields["original_duration_seconds"]; ok {
		var r float64
		if err := json.Unmarshal(raw, &r); err == nil {
			out.RecurrenceSeconds = &r
		}
	}
	if raw, ok := fields["kind"]; ok {
		var k string
		if err := json.Unmarshal(raw, &k); err == nil {
			if parsed, err := ParseKind(k); err == nil {
				out.Kind = parsed
			}
		}
	}

	*e = out
	return nil
}

func decodeRequired(fields map[string]json.RawMessage, key string, dst any) error {
	raw, ok := fields[key]
	if !ok || string(raw) == "null" {
		return fmt.Errorf("entry missing %s", key)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("entry field %s: %w", key, err)
	}
	return nil
}
