package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/ridermerge/internal/domain/model"
	"github.com/okian/ridermerge/pkg/logger"
)

// Writer is the store surface used for seeding.
type Writer interface {
	InsertRider(ctx context.Context, r model.Rider) (int64, error)
	InsertResult(ctx context.Context, res model.Result) (int64, error)
}

// raceEpoch anchors generated race dates.
var raceEpoch = time.Date(2020, time.April, 1, 0, 0, 0, 0, time.UTC)

// Option configures Run.
type Option func(*runner)

type runner struct {
	log logger.Logger
}

// WithLogger sets the logger used for progress output.
func WithLogger(l logger.Logger) Option {
	return func(r *runner) {
		if l != nil {
			r.log = l
		}
	}
}

// Run generates a population for cfg and writes it to w.
func Run(ctx context.Context, w Writer, cfg Config, opts ...Option) (*Stats, error) {
	rn := &runner{log: logger.Nop()}
	for _, opt := range opts {
		opt(rn)
	}
	stats := &Stats{ByKind: make(map[Kind]int), StartTime: time.Now()}

	entries, err := Generate(cfg)
	if err != nil {
		return nil, err
	}
	rn.log.Info(ctx, "seeding riders",
		logger.Int("entries", len(entries)),
		logger.Float64("duplicate_rate", cfg.DuplicateRate),
		logger.Int64("seed", int64(cfg.Seed)),
	)

	for i, e := range entries {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		id, err := w.InsertRider(ctx, e.Rider)
		if err != nil {
			return stats, fmt.Errorf("insert rider %d: %w", i, err)
		}
		for n := range e.Results {
			res := model.Result{
				RiderID:  id,
				EventID:  fmt.Sprintf("race-%03d", (i+n)%250),
				Position: 1 + (i*7+n)%40,
				RaceDate: raceEpoch.AddDate(0, 0, (i+n*13)%1500),
			}
			if _, err := w.InsertResult(ctx, res); err != nil {
				return stats, fmt.Errorf("insert result for rider %d: %w", id, err)
			}
			stats.Results++
		}
		stats.Riders++
		stats.ByKind[e.Kind]++
	}

	stats.Duration = time.Since(stats.StartTime)
	rn.log.Info(ctx, "seeding finished",
		logger.Int("riders", stats.Riders),
		logger.Int("results", stats.Results),
		logger.Any("by_kind", stats.ByKind),
		logger.Duration("took", stats.Duration),
	)
	return stats, nil
}
