// Package queue provides the thread-safe hand-off queue between the capture
// side and the processing loop.
package queue

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrFull is returned by Put when the queue has no room.
	ErrFull = errors.New("queue full")
	// ErrEmpty is returned by Get when there is nothing to take.
	ErrEmpty = errors.New("queue empty")
)

// BoundedQueue is a FIFO queue with a fixed capacity, safe for concurrent
// producers and consumers. A capacity of 0 means unbounded.
type BoundedQueue[T any] struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	items    []T
	head     int
	capacity int
}

// New creates a queue holding at most capacity items.
func New[T any](capacity int) *BoundedQueue[T] {
	if capacity < 0 {
		capacity = 0
	}
	q := &BoundedQueue[T]{capacity: capacity}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q
}

// Put enqueues item. With block=false it fails immediately with ErrFull when
// there is no room; with block=true it waits up to timeout (forever when
// timeout <= 0) before failing with ErrFull.
func (q *BoundedQueue[T]) Put(item T, block bool, timeout time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.full() {
		if !block {
			return ErrFull
		}
		if !q.wait(q.notFull, timeout, func() bool { return !q.full() }) {
			return ErrFull
		}
	}

	q.items = append(q.items, item)
	q.notEmpty.Signal()
	return nil
}

// Get dequeues the oldest item. With block=false it fails immediately with
// ErrEmpty; with block=true it waits up to timeout (forever when timeout <= 0).
func (q *BoundedQueue[T]) Get(block bool, timeout time.Duration) (T, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if q.len() == 0 {
		if !block {
			return zero, ErrEmpty
		}
		if !q.wait(q.notEmpty, timeout, func() bool { return q.len() > 0 }) {
			return zero, ErrEmpty
		}
	}

	item := q.items[q.head]
	q.items[q.head] = zero
	q.head++
	q.compact()
	q.notFull.Signal()
	return item, nil
}

// Size returns the number of queued items. The value may be stale by the time
// the caller acts on it.
func (q *BoundedQueue[T]) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.len()
}

// IsEmpty reports whether the queue was empty at the time of the call.
func (q *BoundedQueue[T]) IsEmpty() bool {
	return q.Size() == 0
}

// Capacity returns the configured capacity; 0 means unbounded.
func (q *BoundedQueue[T]) Capacity() int {
	return q.capacity
}

func (q *BoundedQueue[T]) len() int {
	return len(q.items) - q.head
}

func (q *BoundedQueue[T]) full() bool {
	return q.capacity > 0 && q.len() >= q.capacity
}

// compact releases the consumed prefix once it dominates the backing slice.
func (q *BoundedQueue[T]) compact() {
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
		return
	}
	if q.head > 64 && q.head*2 >= len(q.items) {
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
}

// wait blocks on cond until ready returns true or the timeout elapses.
// It must be called with q.mu held and reports whether ready became true.
func (q *BoundedQueue[T]) wait(cond *sync.Cond, timeout time.Duration, ready func() bool) bool {
	if timeout <= 0 {
		for !ready() {
			cond.Wait()
		}
		return true
	}

	deadline := time.Now().Add(timeout)
	timer := time.AfterFunc(timeout, func() {
		q.mu.Lock()
		cond.Broadcast()
		q.mu.Unlock()
	})
	defer timer.Stop()

	for !ready() {
		if !time.Now().Before(deadline) {
			return false
		}
		cond.Wait()
	}
	return true
}
