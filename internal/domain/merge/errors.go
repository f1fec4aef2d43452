package merge

import (
	"errors"
	"fmt"

	"github.com/okian/ridermerge/internal/domain/model"
)

// ErrAlreadyMerged marks a pair whose duplicate no longer exists. It is a
// successful no-op and never reaches the report as an error.
var ErrAlreadyMerged = errors.New("duplicate already merged")

// ErrOverlap marks a pair left unexecuted because one of its riders already
// belongs to another job of the same batch.
var ErrOverlap = errors.New("rider already claimed by another merge job")

// Failure kinds carried by TransactionError.
const (
	KindCanonicalMissing = "canonical_missing"
	KindSelfMerge        = "self_merge"
	KindRead             = "read"
	KindReassign         = "reassign"
	KindBackfill         = "backfill"
	KindDelete           = "delete"
	KindAudit            = "audit"
	KindTimeout          = "timeout"
	KindCommit           = "commit"
	KindOverlap          = "overlap"
)

// TransactionError reports a pair whose transaction was rolled back.
type TransactionError struct {
	Pair model.Pair
	Kind string
	Err  error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("merge %d into %d: %s: %v", e.Pair.Duplicate, e.Pair.Canonical, e.Kind, e.Err)
}

func (e *TransactionError) Unwrap() error { return e.Err }

// PairError converts e for the batch report.
func (e *TransactionError) PairError() model.PairError {
	return model.PairError{Pair: e.Pair, Kind: e.Kind, Reason: e.Err.Error()}
}

// OverlapError reports pair as skipped because its job overlaps another.
func OverlapError(pair model.Pair) *TransactionError {
	return txError(pair, KindOverlap, ErrOverlap)
}

func txError(pair model.Pair, kind string, err error) *TransactionError {
	return &TransactionError{Pair: pair, Kind: kind, Err: err}
}
