package app

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// DefaultQueueSize bounds the command queue.
const DefaultQueueSize = 100

var (
	// ErrQueueFull is returned by TrySubmit when the queue is at capacity.
	ErrQueueFull = errors.New("command queue full")
	// ErrQueueClosed is returned by TrySubmit after Close.
	ErrQueueClosed = errors.New("command queue closed")
)

// Queue is a bounded FIFO of intents with many producers and one consumer.
type Queue struct {
	mu     sync.RWMutex
	ch     chan Intent
	closed bool
}

// NewQueue returns a queue holding at most size intents.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{ch: make(chan Intent, size)}
}

// TrySubmit enqueues in without blocking.
func (q *Queue) TrySubmit(in Intent) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.ch <- in:
		return nil
	default:
		return ErrQueueFull
	}
}

// Next blocks until an intent is available. ok is false once the queue has
// been closed and drained, or when ctx is done.
func (q *Queue) Next(ctx context.Context) (in Intent, ok bool) {
	select {
	case in, ok = <-q.ch:
		return in, ok
	case <-ctx.Done():
		return Intent{}, false
	}
}

// Close stops accepting intents. Already queued intents can still be read.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}

// Len returns the number of queued intents.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Cap returns the queue capacity.
func (q *Queue) Cap() int {
	return cap(q.ch)
}
