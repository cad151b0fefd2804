// Package shutdown coordinates graceful termination: stop admitting work,
// drain in-flight translations, then release resources.
package shutdown

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Phase is the coordinator lifecycle state.
type Phase string

const (
	PhaseRunning  Phase = "running"
	PhaseStopping Phase = "stopping"
	PhaseStopped  Phase = "stopped"
)

// drainPollInterval is how often the pending count is re-read while
// draining.
const drainPollInterval = 500 * time.Millisecond

// Coordinator tracks the shutdown phase and runs the drain. It is safe for
// concurrent use.
type Coordinator struct {
	timeout time.Duration
	pending func() int

	mu        sync.Mutex
	phase     Phase
	callbacks []func(ctx context.Context)
}

// New creates a Coordinator. pending reports in-flight plus queued work;
// the drain waits for it to reach zero, up to timeout.
func New(timeout time.Duration, pending func() int) *Coordinator {
	return &Coordinator{
		timeout: timeout,
		pending: pending,
		phase:   PhaseRunning,
	}
}

// OnStopped registers fn to run after the drain completes or times out.
// Callbacks run in registration order.
func (c *Coordinator) OnStopped(fn func(ctx context.Context)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callbacks = append(c.callbacks, fn)
}

// Phase returns the current lifecycle phase.
func (c *Coordinator) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Stopping reports whether shutdown has begun. Readiness flips on this so
// load balancers stop routing new work during the drain.
func (c *Coordinator) Stopping() bool {
	return c.Phase() != PhaseRunning
}

// Shutdown drains pending work and then runs the registered callbacks.
// It returns once the drain finished or the timeout elapsed; a second call
// is a no-op.
func (c *Coordinator) Shutdown(ctx context.Context) {
	c.mu.Lock()
	if c.phase != PhaseRunning {
		c.mu.Unlock()
		return
	}
	c.phase = PhaseStopping
	callbacks := make([]func(context.Context), len(c.callbacks))
	copy(callbacks, c.callbacks)
	c.mu.Unlock()

	slog.Info("shutdown started", "pending", c.pending(), "timeout", c.timeout)
	c.drain(ctx)

	for _, fn := range callbacks {
		fn(ctx)
	}

	c.mu.Lock()
	c.phase = PhaseStopped
	c.mu.Unlock()
	slog.Info("shutdown complete")
}

// drain polls the pending count until it reaches zero or the timeout
// elapses.
func (c *Coordinator) drain(ctx context.Context) {
	deadline := time.NewTimer(c.timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()

	for {
		n := c.pending()
		if n == 0 {
			return
		}
		select {
		case <-ctx.Done():
			slog.Warn("drain aborted", "pending", n, "reason", ctx.Err())
			return
		case <-deadline.C:
			slog.Warn("drain timed out", "pending", n)
			return
		case <-ticker.C:
		}
	}
}
