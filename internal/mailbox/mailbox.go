// Package mailbox provides an unbounded multi-producer FIFO with a channel
// face for select loops. Producers never block; Close drains remaining items
// to the consumer before Out is closed.
package mailbox

import (
	"errors"
	"sync"
)

var ErrClosed = errors.New("mailbox: closed")

type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	wake   chan struct{}
	out    chan T
	done   chan struct{}
	stop   sync.Once
}

func New[T any]() *Queue[T] {
	q := &Queue[T]{
		wake: make(chan struct{}, 1),
		out:  make(chan T),
		done: make(chan struct{}),
	}
	go q.pump()
	return q
}

// Push enqueues v. It fails only after Close.
func (q *Queue[T]) Push(v T) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.items = append(q.items, v)
	q.mu.Unlock()
	q.signal()
	return nil
}

// Close stops accepting items. Already queued items are still delivered.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

// Discard closes the queue and drops anything not yet delivered.
func (q *Queue[T]) Discard() {
	q.mu.Lock()
	q.closed = true
	q.items = nil
	q.mu.Unlock()
	q.signal()
	q.stop.Do(func() { close(q.done) })
}

// Out yields items in push order and is closed once the queue is closed and drained.
func (q *Queue[T]) Out() <-chan T {
	return q.out
}

func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *Queue[T]) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue[T]) pump() {
	defer close(q.out)
	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			closed := q.closed
			q.mu.Unlock()
			if closed {
				return
			}
			select {
			case <-q.wake:
			case <-q.done:
				return
			}
			continue
		}
		next := q.items[0]
		q.mu.Unlock()

		select {
		case q.out <- next:
			q.mu.Lock()
			if len(q.items) > 0 {
				var zero T
				q.items[0] = zero
				q.items = q.items[1:]
			}
			q.mu.Unlock()
		case <-q.done:
			return
		}
	}
}
