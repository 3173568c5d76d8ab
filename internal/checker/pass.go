package checker

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"tempodel/internal/logging"
	"tempodel/internal/reconcile"
	"tempodel/internal/schedule"
)

// RunOnce performs one reconciliation pass. Concurrent callers join the pass
// already in flight and receive its result. The pass itself is detached from
// ctx cancellation so deletions and the save run to completion.
func (c *Checker) RunOnce(ctx context.Context, trigger string) (reconcile.Result, error) {
	return c.do(ctx, trigger, func(passCtx context.Context, entries []schedule.Entry) reconcile.Result {
		return c.reconciler.Reconcile(passCtx, entries, schedule.Epoch(c.now()))
	})
}

// StartupCleanup drops non-periodic entries whose targets are already gone.
func (c *Checker) StartupCleanup(ctx context.Context) (reconcile.Result, error) {
	return c.do(ctx, TriggerStartup, func(passCtx context.Context, entries []schedule.Entry) reconcile.Result {
		return c.reconciler.Prune(passCtx, entries)
	})
}

type passFunc func(ctx context.Context, entries []schedule.Entry) reconcile.Result

func (c *Checker) do(ctx context.Context, trigger string, fn passFunc) (reconcile.Result, error) {
	ch := c.group.DoChan(passKey, func() (any, error) {
		return c.runPass(context.WithoutCancel(ctx), trigger, fn)
	})
	select {
	case res := <-ch:
		result, _ := res.Val.(reconcile.Result)
		return result, res.Err
	case <-ctx.Done():
		return reconcile.Result{}, ctx.Err()
	}
}

func (c *Checker) runPass(ctx context.Context, trigger string, fn passFunc) (result reconcile.Result, err error) {
	passID := uuid.NewString()
	ctx = logging.WithPassID(ctx, passID)
	ctx = reconcile.WithTrigger(ctx, trigger)
	logger := logging.WithContext(ctx, c.logger)
	start := c.now()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reconciliation pass panicked: %v", r)
			logging.ErrorWithContext(logger, "reconciliation pass crashed", "pass_panic",
				logging.Any("panic", r),
				logging.String("stack", string(debug.Stack())),
				logging.String("trigger", trigger),
				logging.String(logging.FieldErrorHint, "report this crash with the stack trace"),
			)
		}
		c.recordPass(passID, trigger, start, result, err)
	}()

	logger.Debug("reconciliation pass started", logging.String("trigger", trigger))
	err = c.store.Update(ctx, func(entries []schedule.Entry) ([]schedule.Entry, bool, error) {
		result = fn(ctx, entries)
		return result.Kept, result.Changed, nil
	})
	if err != nil {
		err = fmt.Errorf("save schedule: %w", err)
		logging.ErrorWithContext(logger, "reconciliation pass could not save schedule", "pass_save_failed",
			logging.Error(err),
			logging.String(logging.FieldPath, c.store.Path()),
			logging.String(logging.FieldErrorHint, "check free space and permissions on the schedule directory"),
		)
		return result, err
	}

	logger.Debug("reconciliation pass finished",
		logging.String("trigger", trigger),
		logging.Int("entries", len(result.Kept)),
		logging.Bool("changed", result.Changed),
		logging.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}
