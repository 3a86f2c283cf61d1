package recorder

import (
	"context"
	"errors"
	"sync"

	"github.com/iqtlabs/gamutrf/internal/domain"
)

// ErrQueueClosed is returned by Push after Close, and by Pop once a closed queue is drained.
var ErrQueueClosed = errors.New("queue closed")

// Queue is an unbounded FIFO of jobs with many producers and one consumer.
// Push never blocks.
type Queue struct {
	mu     sync.Mutex
	items  []domain.Job
	closed bool

	ready     chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Push appends job to the tail of the queue.
func (q *Queue) Push(job domain.Job) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.items = append(q.items, job)
	q.mu.Unlock()

	q.signal()
	return nil
}

// Pop removes the head of the queue, blocking until one is available,
// ctx is done, or the queue is closed and empty.
func (q *Queue) Pop(ctx context.Context) (domain.Job, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			job := q.items[0]
			q.items[0] = domain.Job{}
			q.items = q.items[1:]
			remaining := len(q.items)
			q.mu.Unlock()

			if remaining > 0 {
				q.signal()
			}
			return job, nil
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return domain.Job{}, ErrQueueClosed
		}

		select {
		case <-ctx.Done():
			return domain.Job{}, ctx.Err()
		case <-q.ready:
		case <-q.done:
		}
	}
}

// Len returns the number of queued jobs.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Pending returns a snapshot of the queued jobs, head first.
func (q *Queue) Pending() []domain.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]domain.Job, len(q.items))
	copy(out, q.items)
	return out
}

// Close stops accepting new jobs. Jobs already queued can still be popped.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		q.mu.Unlock()
		close(q.done)
	})
}

func (q *Queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
