// Package worker drains merge jobs from the queue and executes their pairs.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/okian/ridermerge/internal/domain/merge"
	"github.com/okian/ridermerge/internal/domain/model"
	"github.com/okian/ridermerge/pkg/logger"
	"github.com/okian/ridermerge/pkg/metrics"
)

const defaultWorkerCount = 2

// Job abstracts what workers read off the queue.
type Job = model.MergeJob

// Executor merges one pair.
type Executor interface {
	Execute(ctx context.Context, runID string, strategy model.Strategy, pair model.Pair) merge.Outcome
}

// Sink receives every pair outcome. It must be safe for concurrent use.
type Sink func(merge.Outcome)

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// Worker processes merge jobs.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue is drained.
	Run(ctx context.Context)

	// Shutdown stops the worker after its current pair.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker. A job is owned by one worker, so pairs
// sharing a canonical rider never run concurrently.
type InMemoryWorker struct {
	queue    Queue
	executor Executor
	sink     Sink
	runID    string
	name     string

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, executor Executor, sink Sink, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    queue,
		executor: executor,
		sink:     sink,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With(logger.String("worker", w.name))
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			w.processJob(ctx, job)
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// processJob merges every duplicate of job in order. Cancellation is observed
// between pairs only; a started pair runs to commit or rollback.
func (w *InMemoryWorker) processJob(ctx context.Context, job Job) { //nolint:gocritic // hugeParam: Job is passed by value for channel semantics
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	failed := false
	for _, pair := range job.Pairs() {
		if ctx.Err() != nil {
			w.logger.Info(ctx, "stopping between pairs",
				logger.Int("component", job.Component),
				logger.Int64("next_duplicate", pair.Duplicate),
			)
			return
		}
		select {
		case <-w.shutdown:
			return
		default:
		}
		out := w.executor.Execute(ctx, w.runID, job.Strategy, pair)
		if out.State == merge.StateRolledBack {
			failed = true
		}
		w.sink(out)
	}
	if failed {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "pair_rolled_back")
	}
}

// Pool manages multiple workers over one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	wg      sync.WaitGroup
	logger  logger.Logger
}

// NewPool creates a pool of workerCount workers.
func NewPool(workerCount int, queue Queue, executor Executor, sink Sink, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = defaultWorkerCount
	}
	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   queue,
		logger:  logger.Nop(),
	}
	for i := range workerCount {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		pool.workers[i] = NewInMemoryWorker(queue, executor, sink, wopts...)
	}
	pool.logger = pool.workers[0].logger
	metrics.UpdateWorkerActiveCount(0)
	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	metrics.UpdateWorkerActiveCount(len(p.workers))
	for _, w := range p.workers {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			w.Run(ctx)
		}()
	}
}

// Wait blocks until every worker has returned.
func (p *Pool) Wait() {
	p.wg.Wait()
	metrics.UpdateWorkerActiveCount(0)
}

// Shutdown closes the queue and stops every worker after its current pair.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}
	var firstErr error
	for i, w := range p.workers {
		if err := w.Shutdown(ctx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	metrics.UpdateWorkerActiveCount(0)
	return firstErr
}
