package shutdown

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestShutdownDrainsPendingWork(t *testing.T) {
	var pending atomic.Int64
	pending.Store(2)
	c := New(5*time.Second, func() int { return int(pending.Load()) })

	var unloaded atomic.Bool
	c.OnStopped(func(ctx context.Context) { unloaded.Store(true) })

	go func() {
		time.Sleep(600 * time.Millisecond)
		pending.Store(0)
	}()

	start := time.Now()
	c.Shutdown(context.Background())

	if !unloaded.Load() {
		t.Error("callback did not run")
	}
	if c.Phase() != PhaseStopped {
		t.Errorf("phase = %s, want stopped", c.Phase())
	}
	if time.Since(start) > 3*time.Second {
		t.Error("drain took longer than the work needed")
	}
}

func TestShutdownTimesOut(t *testing.T) {
	c := New(200*time.Millisecond, func() int { return 1 })
	var ran atomic.Bool
	c.OnStopped(func(ctx context.Context) { ran.Store(true) })

	c.Shutdown(context.Background())

	if !ran.Load() {
		t.Error("callbacks must run even when the drain times out")
	}
	if c.Phase() != PhaseStopped {
		t.Errorf("phase = %s, want stopped", c.Phase())
	}
}

func TestShutdownIdempotent(t *testing.T) {
	c := New(time.Second, func() int { return 0 })
	var runs atomic.Int64
	c.OnStopped(func(ctx context.Context) { runs.Add(1) })

	c.Shutdown(context.Background())
	c.Shutdown(context.Background())

	if runs.Load() != 1 {
		t.Errorf("callbacks ran %d times, want 1", runs.Load())
	}
}

func TestStoppingFlipsImmediately(t *testing.T) {
	release := make(chan struct{})
	c := New(5*time.Second, func() int {
		select {
		case <-release:
			return 0
		default:
			return 1
		}
	})

	if c.Stopping() {
		t.Error("Stopping = true before shutdown")
	}
	done := make(chan struct{})
	go func() {
		c.Shutdown(context.Background())
		close(done)
	}()

	for !c.Stopping() {
		time.Sleep(time.Millisecond)
	}
	close(release)
	<-done
}
