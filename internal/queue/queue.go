// Package queue implements bounded admission control for translation
// requests: a fixed number of requests run concurrently, a fixed number may
// wait, and everything beyond that is rejected immediately.
package queue

import (
	"sync"
	"time"

	"github.com/lexigate/lexigate/internal/errcode"
)

// Status of an admitted request.
type Status string

const (
	// StatusProcessing means the request holds an active slot.
	StatusProcessing Status = "processing"

	// StatusQueued means the request is waiting for a slot.
	StatusQueued Status = "queued"
)

// perSlotEstimate is the assumed processing time used for the client-facing
// wait estimate.
const perSlotEstimate = 3 * time.Second

// Ticket represents one admitted request. Tickets are handed out by
// [Queue.Acquire]; processing tickets must be released exactly once via
// [Queue.Release].
type Ticket struct {
	// ID is the request identifier.
	ID string

	// Status is the admission outcome at acquire time.
	Status Status

	// Position is the 1-based queue position at acquire time. Zero for
	// requests admitted straight to processing.
	Position int

	// EstimatedWait is the projected wait for queued requests.
	EstimatedWait time.Duration
}

// Snapshot is a point-in-time public view of one request, served by the
// status endpoint.
type Snapshot struct {
	ID        string
	Status    Status
	Position  int
	StartedAt time.Time
}

// Queue is the admission controller. All methods are safe for concurrent
// use.
type Queue struct {
	mu            sync.Mutex
	maxConcurrent int
	maxQueueSize  int
	active        map[string]*entry
	waiting       []*entry
}

type entry struct {
	ticket    *Ticket
	startedAt time.Time
}

// New creates a Queue admitting up to maxConcurrent running requests with
// up to maxQueueSize more waiting.
func New(maxConcurrent, maxQueueSize int) *Queue {
	return &Queue{
		maxConcurrent: maxConcurrent,
		maxQueueSize:  maxQueueSize,
		active:        make(map[string]*entry),
	}
}

// Acquire admits the request id. It returns a processing ticket when a slot
// is free, a queued ticket when the wait list has room, and a QUEUE_FULL
// error otherwise. Acquire never blocks; queued callers answer with a
// pending response and poll via [Queue.Lookup].
func (q *Queue) Acquire(id string) (*Ticket, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	t := &Ticket{ID: id}
	e := &entry{ticket: t}

	if len(q.active) < q.maxConcurrent {
		t.Status = StatusProcessing
		e.startedAt = time.Now().UTC()
		q.active[id] = e
		return t, nil
	}
	if len(q.waiting) < q.maxQueueSize {
		t.Status = StatusQueued
		t.Position = len(q.waiting) + 1
		t.EstimatedWait = time.Duration(t.Position) * perSlotEstimate
		q.waiting = append(q.waiting, e)
		return t, nil
	}
	return nil, errcode.New(errcode.QueueFull)
}

// Release frees the slot held by id and promotes the head of the wait list,
// renumbering the remaining queued requests from 1.
func (q *Queue) Release(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.active, id)
	q.promoteLocked()
}

func (q *Queue) promoteLocked() {
	for len(q.waiting) > 0 && len(q.active) < q.maxConcurrent {
		head := q.waiting[0]
		q.waiting = q.waiting[1:]
		head.startedAt = time.Now().UTC()
		head.ticket.Status = StatusProcessing
		head.ticket.Position = 0
		q.active[head.ticket.ID] = head
	}
	q.renumberLocked()
}

func (q *Queue) renumberLocked() {
	for i, e := range q.waiting {
		e.ticket.Position = i + 1
	}
}

// Cancel removes a still-queued request from the wait list. Cancelling a
// processing or unknown request is a no-op.
func (q *Queue) Cancel(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, e := range q.waiting {
		if e.ticket.ID == id {
			q.waiting = append(q.waiting[:i], q.waiting[i+1:]...)
			q.renumberLocked()
			return
		}
	}
}

// Clear drops every waiting request. Used during shutdown.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.waiting = nil
}

// Lookup returns the public snapshot for id.
func (q *Queue) Lookup(id string) (Snapshot, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if e, ok := q.active[id]; ok {
		return Snapshot{ID: id, Status: StatusProcessing, StartedAt: e.startedAt}, true
	}
	for i, e := range q.waiting {
		if e.ticket.ID == id {
			return Snapshot{ID: id, Status: StatusQueued, Position: i + 1}, true
		}
	}
	return Snapshot{}, false
}

// Counts returns the number of active and waiting requests.
func (q *Queue) Counts() (active, waiting int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.active), len(q.waiting)
}

// Pending returns the total number of requests not yet finished. The
// shutdown drain polls this.
func (q *Queue) Pending() int {
	a, w := q.Counts()
	return a + w
}
