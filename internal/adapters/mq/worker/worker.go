// Package worker runs batch prediction jobs pulled from a queue.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/okian/diarisk/internal/adapters/mq/queue"
	"github.com/okian/diarisk/internal/domain/prediction"
	"github.com/okian/diarisk/pkg/logger"
	"github.com/okian/diarisk/pkg/metrics"
)

// Predictor scores one raw record.
type Predictor interface {
	Predict(ctx context.Context, raw map[string]any) (prediction.Result, error)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// dequeueMarker is implemented by queues that track dequeue metrics.
type dequeueMarker interface {
	MarkDequeued(j queue.Job)
}

// Worker processes jobs until its queue is drained.
type Worker interface {
	// Run starts the worker loop until the queue closes or ctx is canceled.
	Run(ctx context.Context)

	// Shutdown waits for the worker loop to exit.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue     Queue
	predictor Predictor
	name      string

	done chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, p Predictor, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		predictor: p,
		name:      "worker",
		done:      make(chan struct{}),
		logger:    logger.Discard(),
	}

	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)

	return w
}

// Run starts the worker loop. Closing the queue lets the worker drain
// remaining jobs and return; cancelling ctx stops it immediately.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			if m, ok := w.queue.(dequeueMarker); ok {
				m.MarkDequeued(j)
			}
			w.process(ctx, j)
		}
	}
}

// Shutdown waits for the worker loop to exit.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process always delivers exactly one Outcome for j.
func (w *InMemoryWorker) process(ctx context.Context, j queue.Job) {
	start := time.Now()
	metrics.AddWorkerBusy(1)
	defer func() {
		metrics.AddWorkerBusy(-1)
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	out := w.predict(ctx, j)
	if out.Err != nil {
		metrics.RecordBatchJob(metrics.ResultFailure)
		w.logger.Debug(ctx, "batch job rejected",
			logger.String("batch_id", j.BatchID),
			logger.Int("index", j.Index),
			logger.Error(out.Err),
		)
	} else {
		metrics.RecordBatchJob(metrics.ResultSuccess)
	}

	if j.Reply != nil {
		j.Reply <- out
	}
}

func (w *InMemoryWorker) predict(ctx context.Context, j queue.Job) (out queue.Outcome) {
	out.Index = j.Index
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordErrorByComponent("worker", "panic")
			w.logger.Error(ctx, "prediction panicked", logger.Any("panic", r), logger.String("batch_id", j.BatchID))
			out.Err = fmt.Errorf("prediction panicked: %v", r)
		}
	}()
	out.Result, out.Err = w.predictor.Predict(ctx, j.Record)
	return out
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	logger  logger.Logger
}

// NewPool creates a pool of workerCount workers. A non-positive count
// defaults to runtime.NumCPU().
func NewPool(workerCount int, q Queue, p Predictor, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		logger:  logger.Discard(),
	}
	// Options are applied once here to pick up the shared logger.
	base := &InMemoryWorker{logger: pool.logger}
	for _, opt := range opts {
		opt(base)
	}
	pool.logger = base.logger.Named("worker-pool")

	for i := 0; i < workerCount; i++ {
		workerOpts := append(append([]Option(nil), opts...), WithName("worker-"+strconv.Itoa(i)))
		pool.workers[i] = NewInMemoryWorker(q, p, workerOpts...)
	}

	metrics.UpdateWorkerCount(workerCount)

	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	p.logger.Info(ctx, "worker pool started", logger.Int("workers", len(p.workers)))
}

// Stop waits for every worker to exit. The owner closes the queue first so
// workers can drain it.
func (p *Pool) Stop(ctx context.Context) error {
	var firstErr error
	for i, w := range p.workers {
		if err := w.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("worker %d: %w", i, err)
		}
	}
	return firstErr
}
