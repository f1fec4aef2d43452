// Package merge folds a duplicate rider into its canonical rider, one pair
// per transaction.
package merge

import (
	"context"
	"errors"
	"time"

	"github.com/okian/ridermerge/internal/adapters/repository"
	"github.com/okian/ridermerge/internal/domain/model"
	"github.com/okian/ridermerge/internal/domain/normalize"
	"github.com/okian/ridermerge/pkg/logger"
	"github.com/okian/ridermerge/pkg/metrics"
)

const defaultPairTimeout = 5 * time.Second

// State is the lifecycle position of one pair.
type State string

const (
	StatePending       State = "pending"
	StateInTransaction State = "in_transaction"
	StateCommitted     State = "committed"
	StateRolledBack    State = "rolled_back"
	// StateAlreadyMerged is a committed no-op: the duplicate was gone.
	StateAlreadyMerged State = "already_merged"
)

// Outcome is the result of executing one pair.
type Outcome struct {
	Pair     model.Pair
	Strategy model.Strategy
	State    State
	Moved    int64
	Err      *TransactionError
	Took     time.Duration
}

// Option applies a configuration option to the Executor.
type Option func(*Executor)

// WithPairTimeout bounds each pair transaction.
func WithPairTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.pairTimeout = d
		}
	}
}

// WithLogger sets the executor logger.
func WithLogger(log logger.Logger) Option {
	return func(e *Executor) {
		if log != nil {
			e.log = log
		}
	}
}

// WithClock overrides time.Now for audit timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		if now != nil {
			e.now = now
		}
	}
}

// Executor runs merge pairs against a store.
type Executor struct {
	store       repository.Store
	nz          *normalize.Normalizer
	log         logger.Logger
	pairTimeout time.Duration
	now         func() time.Time
}

// NewExecutor creates an executor for store.
func NewExecutor(store repository.Store, nz *normalize.Normalizer, opts ...Option) *Executor {
	e := &Executor{
		store:       store,
		nz:          nz,
		log:         logger.Nop(),
		pairTimeout: defaultPairTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute merges pair.Duplicate into pair.Canonical in one transaction. The
// transaction ignores cancellation of ctx so a started pair always finishes;
// only the pair timeout aborts it. Failures roll back this pair only.
func (e *Executor) Execute(ctx context.Context, runID string, strategy model.Strategy, pair model.Pair) Outcome {
	start := time.Now()
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.pairTimeout)
	defer cancel()

	var moved int64
	err := e.store.WithinTx(pctx, func(tx repository.Tx) error {
		var err error
		moved, err = e.mergePair(pctx, tx, runID, strategy, pair)
		return err
	})

	out := Outcome{Pair: pair, Strategy: strategy, Took: time.Since(start)}
	metrics.RecordPairMergeLatency(float64(out.Took.Milliseconds()))

	var txErr *TransactionError
	switch {
	case err == nil:
		out.State = StateCommitted
		out.Moved = moved
		metrics.RecordMergeCommitted(moved)
		e.log.Info(ctx, "merged rider",
			logger.Int64("canonical_id", pair.Canonical),
			logger.Int64("duplicate_id", pair.Duplicate),
			logger.Int64("moved", moved),
			logger.String("strategy", string(strategy)),
		)
	case errors.Is(err, ErrAlreadyMerged):
		out.State = StateAlreadyMerged
		metrics.RecordMergeNoop()
		e.log.Debug(ctx, "duplicate already merged", logger.Int64("duplicate_id", pair.Duplicate))
	default:
		if !errors.As(err, &txErr) {
			txErr = txError(pair, KindCommit, err)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			txErr.Kind = KindTimeout
		}
		out.State = StateRolledBack
		out.Err = txErr
		metrics.RecordMergeError(txErr.Kind)
		e.log.Warn(ctx, "merge rolled back",
			logger.Int64("canonical_id", pair.Canonical),
			logger.Int64("duplicate_id", pair.Duplicate),
			logger.String("kind", txErr.Kind),
			logger.Error(txErr.Err),
		)
	}
	return out
}

func (e *Executor) mergePair(ctx context.Context, tx repository.Tx, runID string, strategy model.Strategy, pair model.Pair) (int64, error) {
	if pair.Canonical == pair.Duplicate {
		return 0, txError(pair, KindSelfMerge, errors.New("canonical and duplicate are the same rider"))
	}
	dup, err := tx.GetRider(ctx, pair.Duplicate)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return 0, ErrAlreadyMerged
	case err != nil:
		return 0, txError(pair, KindRead, err)
	}
	canon, err := tx.GetRider(ctx, pair.Canonical)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return 0, txError(pair, KindCanonicalMissing, err)
	case err != nil:
		return 0, txError(pair, KindRead, err)
	}

	moved, err := tx.ReassignOwnership(ctx, dup.ID, canon.ID)
	if err != nil {
		return 0, txError(pair, KindReassign, err)
	}
	if fields := Backfill(e.nz, canon, dup); !fields.IsEmpty() {
		if err := tx.UpdateRiderFields(ctx, canon.ID, fields); err != nil {
			return 0, txError(pair, KindBackfill, err)
		}
	}
	if err := tx.DeleteRider(ctx, dup.ID); err != nil {
		return 0, txError(pair, KindDelete, err)
	}
	entry := model.MergeLogEntry{
		RunID:       runID,
		CanonicalID: canon.ID,
		DuplicateID: dup.ID,
		Strategy:    strategy,
		Moved:       moved,
		MergedAt:    e.now().UTC(),
	}
	if err := tx.RecordMerge(ctx, entry); err != nil {
		return 0, txError(pair, KindAudit, err)
	}
	return moved, nil
}
