package scheduler

import (
	"context"
	"sync/atomic"
	"time"
)

// Coalescer collapses bursts of triggers into single runs. Triggers that
// arrive while a run is in progress schedule exactly one more run, which
// sees the latest state: latest wins.
type Coalescer struct {
	pending chan struct{}
	run     func(ctx context.Context)

	triggers atomic.Int64
	runs     atomic.Int64
}

// NewCoalescer creates a coalescer around run.
func NewCoalescer(run func(ctx context.Context)) *Coalescer {
	return &Coalescer{
		pending: make(chan struct{}, 1),
		run:     run,
	}
}

// Trigger requests a run. Never blocks.
func (c *Coalescer) Trigger() {
	c.triggers.Add(1)
	select {
	case c.pending <- struct{}{}:
	default: // a run is already pending
	}
}

// Run processes triggers until ctx is cancelled. Call in a goroutine.
func (c *Coalescer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.pending:
			c.runs.Add(1)
			c.run(ctx)
		}
	}
}

// Stats returns (triggers, runs).
func (c *Coalescer) Stats() (int64, int64) {
	return c.triggers.Load(), c.runs.Load()
}

// Every calls fn immediately and then on every interval tick until ctx ends.
func Every(ctx context.Context, interval time.Duration, fn func(ctx context.Context)) {
	fn(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}
