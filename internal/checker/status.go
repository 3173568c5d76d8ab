package checker

import (
	"time"

	"tempodel/internal/reconcile"
)

// Status is a snapshot of checker activity.
type Status struct {
	Running     bool
	StartedAt   time.Time
	LastPassAt  time.Time
	LastPassID  string
	LastTrigger string
	LastError   string
	Passes      int
	Failures    int
	// Entries is the schedule size after the last pass.
	Entries int
	// Totals accumulates outcome counts across passes.
	Totals map[reconcile.Action]int
}

// Status returns the latest checker information.
func (c *Checker) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snapshot := c.state
	snapshot.Totals = make(map[reconcile.Action]int, len(c.state.Totals))
	for k, v := range c.state.Totals {
		snapshot.Totals[k] = v
	}
	return snapshot
}

func (c *Checker) recordPass(id, trigger string, at time.Time, result reconcile.Result, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.LastPassAt = at
	c.state.LastPassID = id
	c.state.LastTrigger = trigger
	c.state.Passes++
	if err != nil {
		c.state.Failures++
		c.state.LastError = err.Error()
		return
	}
	c.state.LastError = ""
	c.state.Entries = len(result.Kept)
	if c.state.Totals == nil {
		c.state.Totals = make(map[reconcile.Action]int)
	}
	for action, n := range result.Counts() {
		c.state.Totals[action] += n
	}
}
