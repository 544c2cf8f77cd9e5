// Package queue provides a thread-safe FIFO with a blocking wait.
package queue

import (
	"context"
	"errors"
	"sync"
)

// OverflowPolicy tells a bounded Queue what to do with a PushBack when full.
type OverflowPolicy int

const (
	// Unbounded queues never overflow.
	Unbounded OverflowPolicy = iota
	// DropNewest rejects the value being pushed.
	DropNewest
	// DropOldest evicts the front of the queue to make room.
	DropOldest
)

// ErrFull is returned by PushBack on a full DropNewest queue.
var ErrFull = errors.New("queue full")

// Queue is a FIFO safe for concurrent use. The zero value is not usable, use
// New or NewBounded.
type Queue[T any] struct {
	mu       sync.Mutex
	items    []T
	capacity int
	policy   OverflowPolicy
	dropped  uint64

	// notify holds at most one wake-up token. Waiters never block while
	// holding mu.
	notify chan struct{}
}

// New returns an unbounded queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{
		notify: make(chan struct{}, 1),
	}
}

// NewBounded returns a queue holding at most capacity values pushed with
// PushBack. A capacity <= 0 or the Unbounded policy yields an unbounded queue.
func NewBounded[T any](capacity int, policy OverflowPolicy) *Queue[T] {
	q := New[T]()
	if capacity > 0 && policy != Unbounded {
		q.capacity = capacity
		q.policy = policy
	}
	return q
}

func (q *Queue[T]) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// PushBack appends v and wakes one waiter.
func (q *Queue[T]) PushBack(v T) error {
	q.mu.Lock()
	if q.capacity > 0 && len(q.items) >= q.capacity {
		switch q.policy {
		case DropNewest:
			q.dropped++
			q.mu.Unlock()
			return ErrFull
		case DropOldest:
			var zero T
			q.items[0] = zero
			q.items = q.items[1:]
			q.dropped++
		}
	}
	q.items = append(q.items, v)
	q.mu.Unlock()

	q.signal()
	return nil
}

// PushFront prepends v and wakes one waiter. It ignores the capacity bound so
// that control values can always jump the line.
func (q *Queue[T]) PushFront(v T) {
	q.mu.Lock()
	q.items = append(q.items, v)
	copy(q.items[1:], q.items)
	q.items[0] = v
	q.mu.Unlock()

	q.signal()
}

// PopFront removes and returns the first value. ok is false if the queue is
// empty.
func (q *Queue[T]) PopFront() (v T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return v, false
	}
	var zero T
	v = q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	return v, true
}

// PopBack removes and returns the last value. ok is false if the queue is
// empty.
func (q *Queue[T]) PopBack() (v T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.items)
	if n == 0 {
		return v, false
	}
	var zero T
	v = q.items[n-1]
	q.items[n-1] = zero
	q.items = q.items[:n-1]
	return v, true
}

// Front returns the first value without removing it.
func (q *Queue[T]) Front() (v T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return v, false
	}
	return q.items[0], true
}

// Back returns the last value without removing it.
func (q *Queue[T]) Back() (v T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return v, false
	}
	return q.items[len(q.items)-1], true
}

// Empty reports whether the queue holds no values.
func (q *Queue[T]) Empty() bool {
	return q.Len() == 0
}

// Len returns the number of queued values.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dropped returns how many values were discarded by the overflow policy.
func (q *Queue[T]) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Clear removes every value.
func (q *Queue[T]) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
}

// Wait blocks until the queue is non-empty.
func (q *Queue[T]) Wait() {
	q.WaitContext(context.Background())
}

// WaitContext blocks until the queue is non-empty or ctx is done, in which
// case it returns ctx.Err().
func (q *Queue[T]) WaitContext(ctx context.Context) error {
	for {
		if !q.Empty() {
			// Pass the token on, another waiter may have missed a push
			// that was coalesced with ours.
			q.signal()
			return nil
		}
		select {
		case <-q.notify:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
