package checker

import (
	"context"
	"errors"
	"time"

	"tempodel/internal/logging"
)

// Run drives passes until ctx is cancelled or Stop is called. A failed or
// crashed pass is logged and followed by the error backoff instead of the
// regular interval.
func (c *Checker) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.state.Running {
		c.mu.Unlock()
		return errors.New("checker already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.state.Running = true
	c.state.StartedAt = c.now()
	c.wg.Add(1)
	c.mu.Unlock()

	defer func() {
		cancel()
		c.mu.Lock()
		c.state.Running = false
		c.cancel = nil
		c.mu.Unlock()
		c.wg.Done()
	}()

	c.logger.Info("checker started",
		logging.String(logging.FieldEventType, "checker_started"),
		logging.String(logging.FieldPath, c.store.Path()),
		logging.Duration("interval", c.interval),
		logging.Duration("error_backoff", c.backoff),
		logging.Bool("startup_cleanup", c.startupCleanup),
		logging.Bool("watch_schedule", c.watchSchedule),
	)

	if c.startupCleanup {
		if _, err := c.StartupCleanup(runCtx); err != nil && runCtx.Err() == nil {
			c.handleTickError(runCtx, err)
		}
	}

	if c.watchSchedule {
		stop, err := c.watch(runCtx)
		if err != nil {
			logging.WarnWithContext(c.logger, "schedule watch unavailable; relying on interval", "schedule_watch_failed",
				logging.Error(err),
				logging.String(logging.FieldPath, c.store.Path()),
				logging.String(logging.FieldErrorHint, "check inotify limits or disable checker.watch_schedule"),
				logging.String(logging.FieldImpact, "schedule edits take effect at the next tick"),
			)
		} else {
			defer stop()
		}
	}

	trigger := TriggerTick
	for runCtx.Err() == nil {
		wait := c.interval
		if _, err := c.RunOnce(runCtx, trigger); err != nil && runCtx.Err() == nil {
			c.handleTickError(runCtx, err)
			wait = c.backoff
		}

		timer := time.NewTimer(wait)
		select {
		case <-runCtx.Done():
		case <-timer.C:
			trigger = TriggerTick
		case <-c.wake:
			trigger = TriggerWatch
		}
		timer.Stop()
	}

	c.logger.Info("checker stopped", logging.String(logging.FieldEventType, "checker_stopped"))
	return nil
}

// Stop cancels Run and waits for the in-flight pass to finish.
func (c *Checker) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	c.wg.Wait()
}

func (c *Checker) handleTickError(ctx context.Context, err error) {
	c.metrics.RecordTickError()
	logging.WarnWithContext(c.logger, "reconciliation pass failed; backing off", "tick_failed",
		logging.Error(err),
		logging.Duration("backoff", c.backoff),
		logging.String(logging.FieldImpact, "due deletions are delayed until the backoff elapses"),
	)
	if notifyErr := c.notifier.NotifyTickError(ctx, err); notifyErr != nil {
		c.logger.Debug("tick error notification failed", logging.Error(notifyErr))
	}
}
