package queue

import (
	"errors"
	"testing"
	"time"

	"github.com/lexigate/lexigate/internal/errcode"
)

func TestAcquireStraightToProcessing(t *testing.T) {
	q := New(2, 2)
	tk, err := q.Acquire("a")
	if err != nil {
		t.Fatalf("Acquire error: %v", err)
	}
	if tk.Status != StatusProcessing {
		t.Errorf("Status = %s, want processing", tk.Status)
	}
	if tk.Position != 0 {
		t.Errorf("Position = %d, want 0", tk.Position)
	}
}

func TestAcquireQueuesWithPositionAndEstimate(t *testing.T) {
	q := New(1, 3)
	if _, err := q.Acquire("running"); err != nil {
		t.Fatal(err)
	}
	first, err := q.Acquire("w1")
	if err != nil {
		t.Fatal(err)
	}
	second, err := q.Acquire("w2")
	if err != nil {
		t.Fatal(err)
	}
	if first.Status != StatusQueued || first.Position != 1 {
		t.Errorf("first = %s/%d, want queued/1", first.Status, first.Position)
	}
	if second.Position != 2 {
		t.Errorf("second.Position = %d, want 2", second.Position)
	}
	if want := 6 * time.Second; second.EstimatedWait != want {
		t.Errorf("second.EstimatedWait = %v, want %v", second.EstimatedWait, want)
	}
}

func TestAcquireRejectsWhenFull(t *testing.T) {
	q := New(1, 1)
	if _, err := q.Acquire("a"); err != nil {
		t.Fatal(err)
	}
	if _, err := q.Acquire("b"); err != nil {
		t.Fatal(err)
	}
	_, err := q.Acquire("c")
	var ce *errcode.Error
	if !errors.As(err, &ce) || ce.Code != errcode.QueueFull {
		t.Fatalf("third Acquire = %v, want QUEUE_FULL", err)
	}
}

func TestReleasePromotesHeadAndRenumbers(t *testing.T) {
	q := New(1, 3)
	q.Acquire("running")
	w1, _ := q.Acquire("w1")
	q.Acquire("w2")
	q.Acquire("w3")

	q.Release("running")

	snap, ok := q.Lookup("w1")
	if !ok || snap.Status != StatusProcessing {
		t.Errorf("w1 snapshot = %+v, want processing", snap)
	}
	if w1.Status != StatusProcessing || w1.Position != 0 {
		t.Errorf("promoted ticket = %s/%d, want processing/0", w1.Status, w1.Position)
	}
	if snap.StartedAt.IsZero() {
		t.Error("promoted request has zero StartedAt")
	}
	// Remaining queue renumbered from 1.
	if snap, _ := q.Lookup("w2"); snap.Position != 1 {
		t.Errorf("w2 position = %d, want 1", snap.Position)
	}
	if snap, _ := q.Lookup("w3"); snap.Position != 2 {
		t.Errorf("w3 position = %d, want 2", snap.Position)
	}
}

func TestCancelRemovesQueuedOnly(t *testing.T) {
	q := New(1, 3)
	q.Acquire("running")
	q.Acquire("w1")
	q.Acquire("w2")

	q.Cancel("w1")
	if _, ok := q.Lookup("w1"); ok {
		t.Error("cancelled request still visible")
	}
	if snap, _ := q.Lookup("w2"); snap.Position != 1 {
		t.Errorf("w2 position = %d after cancel, want 1", snap.Position)
	}

	// Cancelling a processing request is a no-op.
	q.Cancel("running")
	if _, ok := q.Lookup("running"); !ok {
		t.Error("processing request removed by Cancel")
	}
}

func TestClearDropsAllWaiting(t *testing.T) {
	q := New(1, 2)
	q.Acquire("running")
	q.Acquire("w1")
	q.Acquire("w2")

	q.Clear()

	for _, id := range []string{"w1", "w2"} {
		if _, ok := q.Lookup(id); ok {
			t.Errorf("%s still visible after Clear", id)
		}
	}
	if q.Pending() != 1 {
		t.Errorf("Pending = %d after Clear, want 1 (the running request)", q.Pending())
	}
}

func TestAcquireNeverBlocks(t *testing.T) {
	q := New(1, 1)
	q.Acquire("running")

	done := make(chan *Ticket, 1)
	go func() {
		tk, err := q.Acquire("queued")
		if err != nil {
			t.Error(err)
		}
		done <- tk
	}()
	select {
	case tk := <-done:
		if tk.Status != StatusQueued || tk.Position != 1 {
			t.Errorf("ticket = %s/%d, want queued/1", tk.Status, tk.Position)
		}
	case <-time.After(time.Second):
		t.Fatal("Acquire blocked with the slot occupied")
	}
}

func TestInvariantBoundsUnderChurn(t *testing.T) {
	q := New(2, 2)
	ids := []string{"a", "b", "c", "d", "e", "f"}
	admitted := 0
	for _, id := range ids {
		if _, err := q.Acquire(id); err == nil {
			admitted++
		}
	}
	if admitted != 4 {
		t.Fatalf("admitted = %d, want 4", admitted)
	}
	active, waiting := q.Counts()
	if active != 2 || waiting != 2 {
		t.Errorf("counts = %d/%d, want 2/2", active, waiting)
	}
	q.Release("a")
	q.Release("b")
	active, waiting = q.Counts()
	if active != 2 || waiting != 0 {
		t.Errorf("counts after releases = %d/%d, want 2/0", active, waiting)
	}
}
