package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"

	"github.com/okian/airscore/internal/adapters/mq/queue"
	"github.com/okian/airscore/internal/domain/ingest"
	"github.com/okian/airscore/internal/domain/model"
	"github.com/okian/airscore/pkg/logger"
	"github.com/okian/airscore/pkg/metrics"
)

// Batch is what workers read off the queue.
type Batch = queue.Batch

// ErrNoRecords reports a batch where every row was dropped.
var ErrNoRecords = errors.New("batch produced no records")

// Appender stores converted measurement records.
type Appender interface {
	Append(ctx context.Context, records []model.MeasurementRecord) error
}

// Queue defines how workers receive batches.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Batch
}

// Outcome summarizes one processed batch.
type Outcome struct {
	Accepted int
	Dropped  []ingest.Rejection
}

// InMemoryWorker validates and converts batches and appends the records.
type InMemoryWorker struct {
	queue    Queue
	appender Appender
	name     string
	onReject func(Batch)

	shutdown chan struct{}
	done     chan struct{}
	once     sync.Once

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, appender Appender, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		appender: appender,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run processes batches until the queue is closed and drained, ctx is
// cancelled or Shutdown is called.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	batches := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case b, ok := <-batches:
			if !ok {
				return
			}
			if _, err := w.Process(ctx, b); err != nil && !errors.Is(err, ErrNoRecords) {
				w.logger.Error(ctx, "error processing batch",
					logger.String("batch", b.Key()),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown stops the worker without draining the queue.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.once.Do(func() { close(w.shutdown) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Process filters, converts and appends one batch. Dropped rows are logged
// and counted; they never fail the batch.
func (w *InMemoryWorker) Process(ctx context.Context, b Batch) (Outcome, error) { //nolint:gocritic // batches travel by value
	key := b.Key()
	src, err := b.Source()
	if err != nil {
		metrics.RecordBatchRejected()
		w.reject(b)
		return Outcome{}, err
	}

	records, dropped := ingest.ConvertAll(b.Rows, src)
	for _, r := range dropped {
		metrics.RecordRowDropped(r.Reason)
		w.logger.Warn(ctx, "row dropped",
			logger.String("batch", key),
			logger.Int64("provider_id", b.ProviderID),
			logger.Int("row", r.Index),
			logger.String("field", string(r.Field)),
			logger.String("reason", r.Reason),
		)
	}
	out := Outcome{Accepted: len(records), Dropped: dropped}

	if len(records) == 0 {
		metrics.RecordBatchRejected()
		w.logger.Warn(ctx, "batch rejected",
			logger.String("batch", key),
			logger.Int("rows", len(b.Rows)),
		)
		w.reject(b)
		return out, fmt.Errorf("%w: %s", ErrNoRecords, key)
	}

	if err := w.appender.Append(ctx, records); err != nil {
		w.reject(b)
		return Outcome{Dropped: dropped}, fmt.Errorf("append batch %s: %w", key, err)
	}

	metrics.RecordRowsAccepted(len(records))
	metrics.RecordBatchIngested()
	w.logger.Debug(ctx, "batch ingested",
		logger.String("batch", key),
		logger.Int("accepted", len(records)),
		logger.Int("dropped", len(dropped)),
	)
	return out, nil
}

func (w *InMemoryWorker) reject(b Batch) { //nolint:gocritic // batches travel by value
	if w.onReject != nil {
		w.onReject(b)
	}
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates a pool of workerCount workers. A count below 1 means one
// worker per CPU.
func NewPool(workerCount int, q Queue, appender Appender, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range workerCount {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		p.workers[i] = NewInMemoryWorker(q, appender, wopts...)
	}
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	metrics.UpdateWorkerCount(len(p.workers))
}

// Shutdown closes the queue and waits for the workers to drain it.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-ctx.Done():
			timedOut = true
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	metrics.UpdateWorkerCount(0)
	if timedOut {
		return fmt.Errorf("worker pool shutdown: %w", ctx.Err())
	}
	return nil
}
