package checker

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"tempodel/internal/logging"
)

const watchOps = fsnotify.Create | fsnotify.Write | fsnotify.Rename

// watch nudges the run loop whenever the schedule file is written or
// replaced. The parent directory is watched because saves rename a temp file
// over the schedule.
func (c *Checker) watch(ctx context.Context) (func(), error) {
	target := filepath.Clean(c.store.Path())
	dir := filepath.Dir(target)
	if err := c.store.Fs().MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create schedule directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target || !event.Has(watchOps) {
					continue
				}
				c.logger.Debug("schedule changed on disk",
					logging.String(logging.FieldPath, event.Name),
					logging.String("op", event.Op.String()),
				)
				c.Wake()
			case werr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				c.logger.Debug("schedule watch error", logging.Error(werr))
			}
		}
	}()

	return func() {
		_ = watcher.Close()
		<-done
	}, nil
}
