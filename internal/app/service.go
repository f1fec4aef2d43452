// Package service drives rider merge batches: blocking, conflict detection,
// canonical selection and merge execution, aggregated into one report.
package service

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/okian/ridermerge/internal/adapters/repository"
	"github.com/okian/ridermerge/internal/domain/model"
	"github.com/okian/ridermerge/internal/domain/normalize"
	"github.com/okian/ridermerge/pkg/logger"
	"github.com/okian/ridermerge/pkg/metrics"
)

// Default service configuration constants.
const (
	defaultWorkerCount  = 2
	defaultQueueSize    = 1024
	defaultMergeTimeout = 5 * time.Second
)

// Overrides are operator decisions applied to a batch.
type Overrides struct {
	// NameAliases maps a name token to its canonical spelling.
	NameAliases map[string]string
	// KeepApart lists rider id sets that must never be merged together.
	KeepApart [][]int64
}

// merged returns o extended by extra. Aliases in extra win.
func (o Overrides) merged(extra Overrides) Overrides {
	out := Overrides{NameAliases: make(map[string]string, len(o.NameAliases)+len(extra.NameAliases))}
	maps.Copy(out.NameAliases, o.NameAliases)
	maps.Copy(out.NameAliases, extra.NameAliases)
	out.KeepApart = append(slices.Clone(o.KeepApart), extra.KeepApart...)
	return out
}

// BatchOptions controls one RunBatch call.
type BatchOptions struct {
	// DryRun computes the plan without writing anything.
	DryRun bool
	// Overrides extend the service wide overrides for this batch only.
	Overrides Overrides
}

// Service runs merge batches against a store.
type Service struct {
	mu sync.RWMutex

	store repository.Store

	// Configuration
	workerCount       int
	queueSize         int
	strongIDMinLength int
	mergeTimeout      time.Duration
	autoMerge         []model.Strategy
	overrides         Overrides
	lockPath          string

	// State
	started    bool
	running    bool
	cancelRun  context.CancelFunc
	runDone    chan struct{}
	lastReport *model.Report

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of merge workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize bounds the merge job queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithStrongIDMinLength sets the strong id threshold shared by every strategy.
func WithStrongIDMinLength(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.strongIDMinLength = n
		}
	}
}

// WithMergeTimeout bounds each pair transaction.
func WithMergeTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.mergeTimeout = d
		}
	}
}

// WithAutoMergeStrategies selects the strategies whose confirmed groups are
// merged. Unknown names are dropped.
func WithAutoMergeStrategies(strategies ...model.Strategy) Option {
	return func(s *Service) {
		valid := make([]model.Strategy, 0, len(strategies))
		for _, st := range strategies {
			if st.Valid() && !slices.Contains(valid, st) {
				valid = append(valid, st)
			}
		}
		s.autoMerge = valid
	}
}

// WithOverrides sets the service wide overrides.
func WithOverrides(o Overrides) Option {
	return func(s *Service) {
		s.overrides = Overrides{}.merged(o)
	}
}

// WithLockPath guards batches with a file lock so two processes never merge
// against the same database at once.
func WithLockPath(path string) Option {
	return func(s *Service) {
		s.lockPath = path
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a Service over store.
func New(store repository.Store, opts ...Option) *Service {
	s := &Service{
		store:             store,
		workerCount:       defaultWorkerCount,
		queueSize:         defaultQueueSize,
		strongIDMinLength: normalize.DefaultStrongIDMinLength,
		mergeTimeout:      defaultMergeTimeout,
		autoMerge:         []model.Strategy{model.StrategyStrongID, model.StrategyExactName},
		overrides:         Overrides{NameAliases: map[string]string{}},
		logger:            logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start marks the service ready and publishes the rider gauge.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	n, err := s.store.Count(ctx)
	if err != nil {
		return err
	}
	metrics.UpdateRidersTotal(n)
	s.started = true
	s.logger.Info(ctx, "merge service started",
		logger.Int("riders", n),
		logger.Int("workers", s.workerCount),
		logger.Any("auto_merge", s.autoMerge),
	)
	return nil
}

// Stop cancels a running batch, waits for its in-flight pairs and closes the store.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	cancel, done := s.cancelRun, s.runDone
	s.started = false
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		select {
		case <-done:
		case <-ctx.Done():
			s.logger.Warn(ctx, "batch did not stop in time")
		}
	}
	s.logger.Info(ctx, "merge service stopped")
	return s.store.Close()
}

// LastReport returns the report of the most recent batch.
func (s *Service) LastReport() (*model.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastReport == nil {
		return nil, ErrNoReport
	}
	return s.lastReport, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":              s.started,
		"running":              s.running,
		"worker_count":         s.workerCount,
		"queue_size":           s.queueSize,
		"strong_id_min_length": s.strongIDMinLength,
		"merge_timeout_ms":     s.mergeTimeout.Milliseconds(),
		"auto_merge":           s.autoMerge,
	}
	if n, err := s.store.Count(ctx); err == nil {
		stats["riders"] = n
		metrics.UpdateRidersTotal(n)
	}
	if r := s.lastReport; r != nil {
		stats["last_run_id"] = r.RunID
		stats["last_run_finished_at"] = r.FinishedAt
		stats["last_run_merged"] = r.MergedCount
	}
	return stats
}
