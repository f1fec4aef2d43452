package blocking

import (
	"context"
	"fmt"

	"github.com/okian/ridermerge/internal/adapters/repository"
	"github.com/okian/ridermerge/internal/domain/model"
	"github.com/okian/ridermerge/internal/domain/normalize"
)

// ExactNameFinder groups riders whose normalized first and last names are equal.
type ExactNameFinder struct {
	nz *normalize.Normalizer
}

// NewExactNameFinder returns the exact_name strategy.
func NewExactNameFinder(nz *normalize.Normalizer) *ExactNameFinder {
	return &ExactNameFinder{nz: nz}
}

func (f *ExactNameFinder) Strategy() model.Strategy { return model.StrategyExactName }

func (f *ExactNameFinder) Find(ctx context.Context, src repository.RiderSource) ([]model.Group, []model.ValidationIssue, error) {
	riders, err := src.ListRidersByName(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %w", ErrSourceFailed, f.Strategy(), err)
	}
	b := newBucketer(f.Strategy())
	issues := make([]model.ValidationIssue, 0)
	for _, r := range riders {
		first, last, err := fullName(f.nz, r)
		if err != nil {
			issues = append(issues, issue(r, f.Strategy(), err))
			continue
		}
		b.add(first+"|"+last, r)
	}
	return b.groups(nil), issues, nil
}
