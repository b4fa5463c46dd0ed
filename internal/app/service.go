// Package service wires ingestion, scoring and the ranking store together
// and implements the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/airscore/internal/adapters/mq/queue"
	"github.com/okian/airscore/internal/adapters/mq/worker"
	"github.com/okian/airscore/internal/adapters/repository"
	"github.com/okian/airscore/internal/adapters/sqlite"
	"github.com/okian/airscore/internal/domain/dedupe"
	"github.com/okian/airscore/internal/domain/ingest"
	"github.com/okian/airscore/internal/domain/model"
	"github.com/okian/airscore/internal/domain/scoring"
	"github.com/okian/airscore/internal/domain/types"
	"github.com/okian/airscore/pkg/logger"
	"github.com/okian/airscore/pkg/metrics"
)

var (
	// ErrNotStarted is returned by Stop on a service that is not running.
	ErrNotStarted = errors.New("service not started")
	// ErrStopped is returned by Start on a service that was stopped.
	ErrStopped = errors.New("service stopped")
)

// Source loads the upstream records and provider directory.
type Source interface {
	Load(ctx context.Context, since time.Time) (sqlite.Snapshot, error)
	Close() error
}

// Service implements the API dependencies for the ranking system.
type Service struct {
	mu sync.RWMutex

	// Core components
	store   repository.Store
	deduper dedupe.Deduper
	queue   *queue.InMemoryQueue
	pool    *worker.Pool
	engine  *scoring.Engine
	source  Source
	records *recordLog

	// Configuration
	workerCount     int
	queueSize       int
	dedupeSize      int
	window          time.Duration
	refreshInterval time.Duration
	now             func() time.Time

	// Serializes scoring runs.
	runMu sync.Mutex

	// State
	started bool
	stopped bool
	stopCh  chan struct{}
	loopWG  sync.WaitGroup

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of ingest workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the batch queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the batch id cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithEngine sets the scoring engine.
func WithEngine(e *scoring.Engine) Option {
	return func(s *Service) {
		if e != nil {
			s.engine = e
		}
	}
}

// WithSource sets the upstream database every run reloads from.
func WithSource(src Source) Option {
	return func(s *Service) {
		s.source = src
	}
}

// WithWindow limits scoring to records observed within d of now.
// Zero disables the window.
func WithWindow(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.window = d
		}
	}
}

// WithRefreshInterval sets how often the ranking is recomputed.
// Zero disables periodic runs.
func WithRefreshInterval(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.refreshInterval = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a new Service. Batches can be accepted and rescoring run
// immediately; Start launches the workers and the refresh loop.
func New(opts ...Option) (*Service, error) {
	s := &Service{
		workerCount:     runtime.NumCPU(),
		queueSize:       10_000,
		dedupeSize:      100_000,
		window:          30 * 24 * time.Hour,
		refreshInterval: time.Minute,
		now:             time.Now,
		stopCh:          make(chan struct{}),
		records:         newRecordLog(),
		store:           repository.NewSnapshotStore(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.engine == nil {
		e, err := scoring.New()
		if err != nil {
			return nil, fmt.Errorf("default engine: %w", err)
		}
		s.engine = e
	}
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.queue, s.records,
		worker.WithRejectHook(func(b worker.Batch) {
			// A rejected batch may be resubmitted once fixed.
			s.deduper.Unrecord(context.Background(), b.Key())
		}),
	)
	return s, nil
}

// Start starts the workers, publishes a first ranking and begins periodic
// rescoring.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	s.started = true
	s.mu.Unlock()

	s.logger.Info(ctx, "starting ranking service",
		logger.String("mode", string(s.engine.Mode())),
		logger.String("unscored_policy", string(s.engine.Policy())),
		logger.Int("workers", s.pool.Size()),
		logger.Int("queue_size", s.queueSize),
		logger.Duration("window", s.window),
		logger.Bool("database", s.source != nil),
	)

	s.pool.Start(ctx)

	if _, err := s.Rescore(ctx); err != nil {
		s.logger.Error(ctx, "initial scoring run failed", logger.Error(err))
	}

	if s.refreshInterval > 0 {
		s.loopWG.Add(1)
		go s.refreshLoop(ctx)
	}
	return nil
}

func (s *Service) refreshLoop(ctx context.Context) {
	defer s.loopWG.Done()
	ticker := time.NewTicker(s.refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			if _, err := s.Rescore(ctx); err != nil {
				s.logger.Error(ctx, "scheduled scoring run failed", logger.Error(err))
			}
		}
	}
}

// Stop drains the queue, stops the refresh loop and closes the source.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.started = false
	s.stopped = true
	close(s.stopCh)
	s.mu.Unlock()

	s.logger.Info(ctx, "stopping ranking service...")
	s.loopWG.Wait()

	var errs []error
	if err := s.pool.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if s.source != nil {
		if err := s.source.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close source: %w", err))
		}
	}
	s.logger.Info(ctx, "ranking service stopped")
	return errors.Join(errs...)
}

// SeenAndRecord reports whether a batch id was already accepted and records
// it when it was not.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	return s.deduper.SeenAndRecord(ctx, id)
}

// Unrecord forgets a batch id so the batch can be retried.
func (s *Service) Unrecord(ctx context.Context, id string) {
	s.deduper.Unrecord(ctx, id)
}

// Size returns the number of remembered batch ids.
func (s *Service) Size() int64 {
	return s.deduper.Size()
}

// Enqueue hands a batch to the workers. It fails fast with queue.ErrFull
// when the queue is at capacity.
func (s *Service) Enqueue(ctx context.Context, b ingest.Batch) error { //nolint:gocritic // batches travel by value
	if err := s.queue.Enqueue(ctx, b); err != nil {
		return err
	}
	metrics.UpdateQueueSize(s.queue.Len(ctx))
	s.logger.Debug(ctx, "batch queued",
		logger.String("batch", b.Key()),
		logger.Int64("provider_id", b.ProviderID),
		logger.Int("rows", len(b.Rows)),
	)
	return nil
}

// Ranking returns the first limit providers of the latest run; 0 means all.
func (s *Service) Ranking(ctx context.Context, limit int) ([]model.ProviderRanking, error) {
	if limit == 0 {
		limit = max(1, s.store.Count(ctx))
	}
	return s.store.TopN(ctx, limit)
}

// Provider returns one provider's ranking entry and its 1-based rank.
func (s *Service) Provider(ctx context.Context, id int64) (model.ProviderRanking, int, error) {
	return s.store.Provider(ctx, id)
}

// Rescore reloads the upstream records, runs the engine over the record
// window and publishes the result.
func (s *Service) Rescore(ctx context.Context) (types.RunSummary, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	start := time.Now()
	now := s.now()
	var since time.Time
	if s.window > 0 {
		since = now.Add(-s.window)
	}

	if s.source != nil {
		snap, err := s.source.Load(ctx, since)
		if err != nil {
			metrics.RecordScoringError()
			return types.RunSummary{}, fmt.Errorf("load records: %w", err)
		}
		s.records.reseed(snap.Records, snap.Directory)
	}
	if dropped := s.records.prune(since); dropped > 0 {
		s.logger.Debug(ctx, "pruned records outside the window", logger.Int("dropped", dropped))
	}

	res := s.engine.Run(scoring.Batch{
		Records:   s.records.window(since),
		Directory: s.records.providers(),
		Now:       now,
	})

	runID := uuid.NewString()
	s.store.Publish(ctx, runID, now, res)

	took := float64(time.Since(start).Microseconds()) / 1000
	metrics.RecordScoringRun(string(res.Mode), took)

	s.logger.Info(ctx, "scoring run published",
		logger.String("run_id", runID),
		logger.String("mode", string(res.Mode)),
		logger.Int("providers", len(res.Rankings)),
		logger.Int("nodes", len(res.Nodes)),
		logger.Int("valid_records", res.ValidRecords),
		logger.Int("dropped_records", res.DroppedRecords),
		logger.Float64("duration_ms", took),
	)

	return types.RunSummary{
		RunID:          runID,
		Mode:           string(res.Mode),
		ComputedAt:     now,
		DurationMS:     took,
		Providers:      len(res.Rankings),
		Nodes:          len(res.Nodes),
		ValidRecords:   res.ValidRecords,
		DroppedRecords: res.DroppedRecords,
	}, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()

	ctx := context.Background()
	queueLen := s.queue.Len(ctx)
	metrics.UpdateQueueSize(queueLen)

	stats := map[string]any{
		"started":         started,
		"mode":            string(s.engine.Mode()),
		"unscoredPolicy":  string(s.engine.Policy()),
		"workerCount":     s.pool.Size(),
		"queueSize":       s.queueSize,
		"queueLength":     queueLen,
		"dedupeSize":      s.dedupeSize,
		"seenBatches":     s.deduper.Size(),
		"records":         s.records.size(),
		"rankedProviders": s.store.Count(ctx),
		"windowDays":      int(s.window / (24 * time.Hour)),
	}
	if snap, err := s.store.Latest(ctx); err == nil {
		stats["lastRunId"] = snap.RunID
		stats["lastRunAt"] = snap.ComputedAt
	}
	return stats
}
