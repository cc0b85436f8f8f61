// Package queue defines the contract for enqueuing and consuming batch
// prediction jobs.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/okian/diarisk/internal/domain/prediction"
	"github.com/okian/diarisk/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 1024
)

// Rejection reasons reported by Enqueue.
const (
	ReasonClosed    = "closed"
	ReasonFull      = "queue_full"
	ReasonCancelled = "context_cancelled"
)

// Outcome is what a worker sends back for one job.
type Outcome struct {
	Index  int
	Result prediction.Result
	Err    error
}

// Job is one record of a batch. Reply must be buffered so a worker never
// blocks on a caller that has gone away.
type Job struct {
	BatchID    string
	Index      int
	Record     map[string]any
	EnqueuedAt time.Time
	Reply      chan<- Outcome
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a job to the queue.
	// Returns false if the queue is full or closed and the job was not enqueued.
	Enqueue(ctx context.Context, j Job) bool

	// Dequeue returns a channel that will receive jobs as they become available.
	// The channel is closed when the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan Job

	// Len returns the current number of queued jobs.
	Len(ctx context.Context) int

	// Close stops accepting jobs. Already queued jobs remain readable.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	jobs     chan Job
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultQueueCapacity,
	}

	for _, opt := range opts {
		opt(q)
	}

	q.jobs = make(chan Job, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0, q.capacity)

	return q
}

// Capacity returns the maximum number of queued jobs.
func (q *InMemoryQueue) Capacity() int { return q.capacity }

// Enqueue adds a job to the queue without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, j Job) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.reject(ReasonClosed)
		return false
	}
	if ctx.Err() != nil {
		q.reject(ReasonCancelled)
		return false
	}
	if j.EnqueuedAt.IsZero() {
		j.EnqueuedAt = time.Now()
	}

	select {
	case q.jobs <- j:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(len(q.jobs), q.capacity)
		return true
	default:
		q.reject(ReasonFull)
		return false
	}
}

func (q *InMemoryQueue) reject(reason string) {
	metrics.RecordQueueRejected(reason)
	metrics.RecordErrorByComponent("queue", reason)
}

// Dequeue returns the job channel. Consumers record dequeue metrics through MarkDequeued.
func (q *InMemoryQueue) Dequeue(_ context.Context) <-chan Job {
	return q.jobs
}

// MarkDequeued updates queue metrics after a consumer takes j.
func (q *InMemoryQueue) MarkDequeued(j Job) {
	metrics.RecordQueueDequeue()
	metrics.RecordQueueWaitLatency(float64(time.Since(j.EnqueuedAt).Microseconds()) / 1000)
	metrics.UpdateQueueSize(len(q.jobs), q.capacity)
}

// Len returns the current number of queued jobs.
func (q *InMemoryQueue) Len(_ context.Context) int {
	size := len(q.jobs)
	metrics.UpdateQueueSize(size, q.capacity)
	return size
}

// Close stops accepting jobs.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.jobs)
	q.closed = true

	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
