package core

import (
	"context"
	"sync"
)

// Queue is a session's external event queue.
//
// Any number of goroutines can Put; Put never blocks.  A single
// consumer Takes, blocking until an event arrives, the queue is
// closed, or the context is done.
type Queue struct {
	sync.Mutex
	events []*Event
	closed bool
	signal chan struct{}
}

// NewQueue makes an empty Queue.
func NewQueue() *Queue {
	return &Queue{
		events: make([]*Event, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Put enqueues the event.  Returns false if the queue is closed.
func (q *Queue) Put(ev *Event) bool {
	q.Lock()
	if q.closed {
		q.Unlock()
		return false
	}
	q.events = append(q.events, ev)
	q.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// Take dequeues the next event.
//
// Returns ErrTerminated when the queue is closed and empty, and the
// context's error when the context is done.
func (q *Queue) Take(ctx context.Context) (*Event, error) {
	for {
		q.Lock()
		if 0 < len(q.events) {
			ev := q.events[0]
			q.events[0] = nil
			q.events = q.events[1:]
			q.Unlock()
			return ev, nil
		}
		closed := q.closed
		q.Unlock()

		if closed {
			return nil, ErrTerminated
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.signal:
		}
	}
}

// Close closes the queue.  Pending events are kept for Take.
func (q *Queue) Close() {
	q.Lock()
	q.closed = true
	q.Unlock()
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Len returns the number of pending events.
func (q *Queue) Len() int {
	q.Lock()
	defer q.Unlock()
	return len(q.events)
}
