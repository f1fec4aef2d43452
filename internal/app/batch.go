package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/okian/ridermerge/internal/adapters/mq/queue"
	"github.com/okian/ridermerge/internal/adapters/mq/worker"
	"github.com/okian/ridermerge/internal/domain/blocking"
	"github.com/okian/ridermerge/internal/domain/canonical"
	"github.com/okian/ridermerge/internal/domain/conflict"
	"github.com/okian/ridermerge/internal/domain/dedupe"
	"github.com/okian/ridermerge/internal/domain/merge"
	"github.com/okian/ridermerge/internal/domain/model"
	"github.com/okian/ridermerge/internal/domain/normalize"
	"github.com/okian/ridermerge/pkg/logger"
	"github.com/okian/ridermerge/pkg/metrics"
)

const (
	enqueueRetryDelay = 5 * time.Millisecond
	shutdownGrace     = time.Second
)

// RunBatch runs one full identity resolution batch and returns its report.
// Read failures before merging abort with an error; once merging starts every
// failure is recorded per pair. A cancelled ctx stops the batch between pairs
// and the report is marked cancelled.
func (s *Service) RunBatch(ctx context.Context, opts BatchOptions) (*model.Report, error) {
	runCtx, release, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()
	report := model.NewReport(uuid.NewString(), start.UTC(), opts.DryRun)
	log := s.logger.With(logger.String("run_id", report.RunID))
	log.Info(runCtx, "batch started", logger.Bool("dry_run", opts.DryRun))

	err = s.runBatch(runCtx, log, opts, report)
	report.FinishedAt = time.Now().UTC()

	outcome := "completed"
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		report.Cancelled = true
		outcome = "cancelled"
		err = nil
	case err != nil:
		metrics.RecordBatchRun("failed", time.Since(start))
		metrics.RecordErrorByComponent("batch", "read_failed")
		log.Error(runCtx, "batch failed", logger.Error(err))
		return nil, err
	case report.Cancelled:
		outcome = "cancelled"
	}
	metrics.RecordBatchRun(outcome, time.Since(start))
	if n, cerr := s.store.Count(context.WithoutCancel(ctx)); cerr == nil {
		metrics.UpdateRidersTotal(n)
	}

	s.mu.Lock()
	s.lastReport = report
	s.mu.Unlock()

	log.Info(runCtx, "batch finished",
		logger.String("outcome", outcome),
		logger.Int("merged", report.MergedCount),
		logger.Int64("references_moved", report.ReferencesMovedCount),
		logger.Int("conflicts", len(report.RejectedConflicts)),
		logger.Int("review_candidates", len(report.ReviewCandidates)),
		logger.Int("errors", len(report.Errors)),
		logger.Int("pending_pairs", report.PendingPairs),
		logger.Duration("took", time.Since(start)),
	)
	return report, nil
}

// begin claims the single batch slot, in process and across processes.
func (s *Service) begin(ctx context.Context) (context.Context, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil, nil, ErrNotStarted
	}
	if s.running {
		return nil, nil, ErrBatchRunning
	}

	var lock *flock.Flock
	if s.lockPath != "" {
		if err := os.MkdirAll(filepath.Dir(s.lockPath), 0o755); err != nil {
			return nil, nil, fmt.Errorf("batch lock: %w", err)
		}
		lock = flock.New(s.lockPath)
		ok, err := lock.TryLock()
		if err != nil {
			return nil, nil, fmt.Errorf("batch lock: %w", err)
		}
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s is held by another process", ErrBatchRunning, s.lockPath)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.running, s.cancelRun, s.runDone = true, cancel, done

	return runCtx, func() {
		cancel()
		if lock != nil {
			if err := lock.Unlock(); err != nil {
				s.logger.Warn(ctx, "release batch lock", logger.Error(err))
			}
		}
		s.mu.Lock()
		s.running, s.cancelRun, s.runDone = false, nil, nil
		s.mu.Unlock()
		close(done)
	}, nil
}

func (s *Service) runBatch(ctx context.Context, log logger.Logger, opts BatchOptions, report *model.Report) error {
	overrides := s.overrides.merged(opts.Overrides)
	nz := normalize.New(
		normalize.WithStrongIDMinLength(s.strongIDMinLength),
		normalize.WithNameAliases(overrides.NameAliases),
	)
	det := conflict.New(nz, conflict.WithKeepApart(overrides.KeepApart))
	sel := canonical.New(nz)

	results, err := blocking.NewPipeline(nz, blocking.WithLogger(log.Named("blocking"))).Run(ctx, s.store)
	if err != nil {
		return err
	}

	autoGroups := make([]model.Group, 0)
	for _, res := range results {
		report.GroupsFoundByStrategy[res.Strategy] = len(res.Groups)
		report.SkippedRecords = append(report.SkippedRecords, res.Issues...)
		for _, issue := range res.Issues {
			log.Debug(ctx, "record skipped",
				logger.Int64("rider_id", issue.RiderID),
				logger.String("strategy", string(issue.Strategy)),
				logger.String("reason", issue.Reason),
			)
		}

		confirmed, rejected := det.Partition(res.Groups)
		report.RejectedConflicts = append(report.RejectedConflicts, rejected...)
		if slices.Contains(s.autoMerge, res.Strategy) {
			autoGroups = append(autoGroups, confirmed...)
			continue
		}
		report.ReviewCandidates = append(report.ReviewCandidates, confirmed...)
	}

	p := buildPlan(autoGroups, det, sel)
	report.RejectedConflicts = append(report.RejectedConflicts, p.conflicts...)
	for _, c := range report.RejectedConflicts {
		metrics.RecordConflictRejected(string(c.Strategy), c.Reason)
	}
	for _, g := range report.ReviewCandidates {
		metrics.RecordReviewCandidate(string(g.Strategy))
	}

	if opts.DryRun {
		for _, job := range p.jobs {
			for _, pair := range job.Pairs() {
				report.PlannedMerges = append(report.PlannedMerges, model.PlannedMerge{
					Pair:     pair,
					Strategy: job.Strategy,
					Score:    p.scores[pair.Canonical],
				})
			}
		}
		return nil
	}
	s.execute(ctx, log, nz, report.RunID, p.jobs, report)
	return nil
}

// execute feeds jobs to a worker pool and folds every outcome into report.
func (s *Service) execute(ctx context.Context, log logger.Logger, nz *normalize.Normalizer, runID string, jobs []model.MergeJob, report *model.Report) {
	total := 0
	for _, j := range jobs {
		total += len(j.Duplicates)
	}
	if total == 0 {
		return
	}

	var mu sync.Mutex
	finished := 0
	merged := make(map[int64]int64, total)
	record := func(out merge.Outcome) {
		finished++
		switch out.State {
		case merge.StateCommitted:
			report.MergedCount++
			report.ReferencesMovedCount += out.Moved
			merged[out.Pair.Duplicate] = out.Pair.Canonical
		case merge.StateAlreadyMerged:
			report.AlreadyMergedCount++
		default:
			if out.Err != nil {
				report.Errors = append(report.Errors, out.Err.PairError())
			}
		}
	}
	sink := func(out merge.Outcome) {
		mu.Lock()
		defer mu.Unlock()
		record(out)
	}

	exec := merge.NewExecutor(s.store, nz,
		merge.WithPairTimeout(s.mergeTimeout),
		merge.WithLogger(log.Named("merge")),
	)
	q := queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	pool := worker.NewPool(s.workerCount, q, exec, sink,
		worker.WithRunID(runID),
		worker.WithLogger(log.Named("worker")),
	)
	pool.Start(ctx)

	// Jobs must be rider disjoint: two workers touching the same rider could
	// reassign results to a row the other one deletes.
	claims := dedupe.NewTracker(dedupe.WithCapacityHint(total + len(jobs)))
	canonicals := make(map[int64]model.Rider, len(jobs))
	for _, job := range jobs {
		if !claimJob(ctx, claims, job) {
			log.Error(ctx, "merge job overlaps an earlier job",
				logger.Int64("canonical_id", job.Canonical.ID),
				logger.Int("pairs", len(job.Duplicates)),
			)
			metrics.RecordErrorByComponent("batch", merge.KindOverlap)
			mu.Lock()
			for _, pair := range job.Pairs() {
				record(merge.Outcome{Pair: pair, Strategy: job.Strategy, State: merge.StatePending, Err: merge.OverlapError(pair)})
			}
			mu.Unlock()
			continue
		}
		canonicals[job.Canonical.ID] = job.Canonical
		if !s.enqueue(ctx, q, job) {
			releaseJob(ctx, claims, job)
			break
		}
	}
	log.Debug(ctx, "merge jobs queued", logger.Int64("riders_claimed", claims.Size()))

	if ctx.Err() != nil {
		log.Warn(ctx, "batch cancelled, stopping workers", logger.Int("jobs_abandoned", q.Len(ctx)))
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.mergeTimeout+shutdownGrace)
		if err := pool.Shutdown(sctx); err != nil {
			log.Warn(ctx, "worker shutdown", logger.Error(err))
		}
		cancel()
	} else {
		_ = q.Close()
	}
	pool.Wait()

	mu.Lock()
	report.PendingPairs = total - finished
	if len(merged) > 0 {
		report.MergedInto = merged
	}
	mu.Unlock()
	if ctx.Err() != nil {
		report.Cancelled = true
	}
	slices.SortFunc(report.Errors, func(a, b model.PairError) int {
		if c := cmpID(a.Pair.Canonical, b.Pair.Canonical); c != 0 {
			return c
		}
		return cmpID(a.Pair.Duplicate, b.Pair.Duplicate)
	})
	resolveMerged(report, canonicals)
}

// claimJob claims every rider of job. It claims nothing and returns false when
// any of them is already held by another job.
func claimJob(ctx context.Context, claims dedupe.Claimer, job model.MergeJob) bool {
	ids := jobRiderIDs(job)
	for i, id := range ids {
		if claims.Claim(ctx, id) {
			for _, held := range ids[:i] {
				claims.Release(ctx, held)
			}
			return false
		}
	}
	return true
}

func releaseJob(ctx context.Context, claims dedupe.Claimer, job model.MergeJob) {
	for _, id := range jobRiderIDs(job) {
		claims.Release(ctx, id)
	}
}

func jobRiderIDs(job model.MergeJob) []int64 {
	ids := make([]int64, 0, len(job.Duplicates)+1)
	ids = append(ids, job.Canonical.ID)
	for _, d := range job.Duplicates {
		ids = append(ids, d.ID)
	}
	return ids
}

// enqueue retries while the queue is full. It gives up when ctx is done or
// the queue is closed.
func (s *Service) enqueue(ctx context.Context, q queue.Queue, job model.MergeJob) bool {
	for {
		if q.Enqueue(ctx, job) {
			return true
		}
		if q.IsClosed() {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(enqueueRetryDelay):
		}
	}
}
