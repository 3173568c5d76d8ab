package schedule

import (
	"context"
	"fmt"

	"tempodel/internal/logging"
)

// AddOrUpdate normalizes req into an entry and replaces any entry with the
// same path, or appends it. Switching an entry to non-periodic clears its
// recurrence.
func (s *Store) AddOrUpdate(ctx context.Context, req Request) (Entry, error) {
	entry, err := NewEntry(s.fs, req, logging.WithContext(ctx, s.logger))
	if err != nil {
		return Entry{}, err
	}

	updated := false
	err = s.Update(ctx, func(entries []Entry) ([]Entry, bool, error) {
		for i := range entries {
			if entries[i].Path == entry.Path {
				entries[i] = entry
				updated = true
				return entries, true, nil
			}
		}
		return append(entries, entry), true, nil
	})
	if err != nil {
		return Entry{}, fmt.Errorf("%w: entry %s: %w", ErrPersist, entry.Path, err)
	}

	verb := "scheduled"
	if updated {
		verb = "rescheduled"
	}
	s.logger.Info("entry "+verb,
		logging.String(logging.FieldPath, entry.Path),
		logging.String(logging.FieldEventType, "entry_"+verb),
		logging.Bool("periodic", entry.Periodic),
		logging.String("delete_at", entry.DueTime().Format("2006-01-02 15:04:05")),
	)
	return entry, nil
}

// Remove drops the entry for path. It reports false without error when no
// such entry exists and writes the schedule only when something was removed.
func (s *Store) Remove(ctx context.Context, path string) (bool, error) {
	normalized, err := Normalize(path)
	if err != nil {
		return false, err
	}

	removed := false
	err = s.Update(ctx, func(entries []Entry) ([]Entry, bool, error) {
		kept := entries[:0]
		for _, e := range entries {
			if e.Path == normalized {
				removed = true
				continue
			}
			kept = append(kept, e)
		}
		return kept, removed, nil
	})
	if err != nil {
		return false, fmt.Errorf("%w: removal of %s: %w", ErrPersist, normalized, err)
	}
	if removed {
		s.logger.Info("entry unscheduled",
			logging.String(logging.FieldPath, normalized),
			logging.String(logging.FieldEventType, "entry_removed"),
		)
	}
	return removed, nil
}

// Get returns the entry for path or ErrNotFound.
func (s *Store) Get(ctx context.Context, path string) (Entry, error) {
	normalized, err := Normalize(path)
	if err != nil {
		return Entry{}, err
	}
	for _, e := range s.List(ctx) {
		if e.Path == normalized {
			return e, nil
		}
	}
	return Entry{}, fmt.Errorf("%s: %w", normalized, ErrNotFound)
}
