// Package async hands job ids from the dispatcher to a bounded worker pool.
package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrQueueClosed is returned once a queue has been closed.
var ErrQueueClosed = errors.New("queue closed")

// Queue is the dispatcher-to-worker handoff. Only the job id travels; the
// worker re-reads everything else from the store.
type Queue interface {
	Enqueue(ctx context.Context, jobID uuid.UUID) error
	// Dequeue waits up to timeout for an id. ok is false when nothing
	// arrived in time.
	Dequeue(ctx context.Context, timeout time.Duration) (jobID uuid.UUID, ok bool, err error)
	Close() error
}

// MemoryQueue is an in-process bounded queue.
type MemoryQueue struct {
	ch     chan uuid.UUID
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger
}

func NewMemoryQueue(size int, logger *slog.Logger) *MemoryQueue {
	if size <= 0 {
		size = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryQueue{ch: make(chan uuid.UUID, size), done: make(chan struct{}), logger: logger}
}

// Enqueue blocks while the queue is full, applying backpressure to the
// submitter until ctx ends.
func (q *MemoryQueue) Enqueue(ctx context.Context, jobID uuid.UUID) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}
	select {
	case q.ch <- jobID:
		q.logger.Debug("queue.enqueued", "job_id", jobID)
		return nil
	default:
		q.logger.Warn("queue.full", "job_id", jobID, "capacity", cap(q.ch))
	}
	select {
	case q.ch <- jobID:
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context, timeout time.Duration) (uuid.UUID, bool, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case id := <-q.ch:
		return id, true, nil
	case <-q.done:
		return uuid.Nil, false, ErrQueueClosed
	case <-ctx.Done():
		return uuid.Nil, false, ctx.Err()
	case <-timer.C:
		return uuid.Nil, false, nil
	}
}

// Len reports how many ids are waiting.
func (q *MemoryQueue) Len() int { return len(q.ch) }

// Close stops the queue. Ids still buffered are dropped.
func (q *MemoryQueue) Close() error {
	q.once.Do(func() { close(q.done) })
	return nil
}
