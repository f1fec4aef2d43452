package blocking

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/ridermerge/internal/adapters/repository"
	"github.com/okian/ridermerge/internal/domain/model"
	"github.com/okian/ridermerge/internal/domain/normalize"
	"github.com/okian/ridermerge/pkg/logger"
	"github.com/okian/ridermerge/pkg/metrics"
)

// Pipeline runs a fixed list of finders concurrently.
type Pipeline struct {
	finders     []CandidateGroupFinder
	log         logger.Logger
	concurrency int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithFinders replaces the default finders. Output order follows the argument order.
func WithFinders(finders ...CandidateGroupFinder) Option {
	return func(p *Pipeline) {
		if len(finders) > 0 {
			p.finders = finders
		}
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(log logger.Logger) Option {
	return func(p *Pipeline) {
		if log != nil {
			p.log = log
		}
	}
}

// WithConcurrency caps the number of finders running at once. Zero means no cap.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n >= 0 {
			p.concurrency = n
		}
	}
}

// DefaultFinders returns the four strategies in pipeline order.
func DefaultFinders(nz *normalize.Normalizer) []CandidateGroupFinder {
	return []CandidateGroupFinder{
		NewStrongIDFinder(nz),
		NewExactNameFinder(nz),
		NewMiddleNameFinder(nz),
		NewPhoneticFinder(nz),
	}
}

// NewPipeline builds a pipeline over the default finders for nz.
func NewPipeline(nz *normalize.Normalizer, opts ...Option) *Pipeline {
	p := &Pipeline{
		finders: DefaultFinders(nz),
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes every finder against src. Results are returned in finder order
// regardless of completion order. The first finder error cancels the rest.
func (p *Pipeline) Run(ctx context.Context, src repository.RiderSource) ([]Result, error) {
	if len(p.finders) == 0 {
		return nil, ErrNoFinders
	}
	results := make([]Result, len(p.finders))
	g, gctx := errgroup.WithContext(ctx)
	if p.concurrency > 0 {
		g.SetLimit(p.concurrency)
	}
	for i, f := range p.finders {
		g.Go(func() error {
			start := time.Now()
			groups, issues, err := f.Find(gctx, src)
			if err != nil {
				return err
			}
			results[i] = Result{Strategy: f.Strategy(), Groups: groups, Issues: issues}
			metrics.RecordGroupsFound(string(f.Strategy()), len(groups))
			for range issues {
				metrics.RecordRecordSkipped(string(f.Strategy()))
			}
			p.log.Debug(gctx, "strategy finished",
				logger.String("strategy", string(f.Strategy())),
				logger.Int("groups", len(groups)),
				logger.Int("skipped", len(issues)),
				logger.Duration("took", time.Since(start)),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("blocking: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// GroupsByStrategy flattens results into a strategy keyed map.
func GroupsByStrategy(results []Result) map[model.Strategy][]model.Group {
	out := make(map[model.Strategy][]model.Group, len(results))
	for _, r := range results {
		out[r.Strategy] = append(out[r.Strategy], r.Groups...)
	}
	return out
}
