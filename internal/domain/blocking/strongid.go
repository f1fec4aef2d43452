package blocking

import (
	"context"
	"fmt"

	"github.com/okian/ridermerge/internal/adapters/repository"
	"github.com/okian/ridermerge/internal/domain/model"
	"github.com/okian/ridermerge/internal/domain/normalize"
)

// StrongIDFinder groups riders sharing a strong normalized national id. Weak ids
// never form a group.
type StrongIDFinder struct {
	nz *normalize.Normalizer
}

// NewStrongIDFinder returns the strong_id strategy.
func NewStrongIDFinder(nz *normalize.Normalizer) *StrongIDFinder {
	return &StrongIDFinder{nz: nz}
}

func (f *StrongIDFinder) Strategy() model.Strategy { return model.StrategyStrongID }

func (f *StrongIDFinder) Find(ctx context.Context, src repository.RiderSource) ([]model.Group, []model.ValidationIssue, error) {
	riders, err := src.ListRidersByStrongID(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %w", ErrSourceFailed, f.Strategy(), err)
	}
	b := newBucketer(f.Strategy())
	issues := make([]model.ValidationIssue, 0)
	for _, r := range riders {
		if err := f.nz.ValidateID(r.NationalID); err != nil {
			issues = append(issues, issue(r, f.Strategy(), err))
			continue
		}
		if id := f.nz.StrongID(r.NationalID); id != "" {
			b.add(id, r)
		}
	}
	return b.groups(nil), issues, nil
}
