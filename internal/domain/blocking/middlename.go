package blocking

import (
	"context"
	"fmt"

	"github.com/okian/ridermerge/internal/adapters/repository"
	"github.com/okian/ridermerge/internal/domain/model"
	"github.com/okian/ridermerge/internal/domain/normalize"
)

// MiddleNameFinder groups riders on the first token of the first name plus the
// last name. A group is kept only when its members disagree on the full first
// name; otherwise exact_name already covers it.
type MiddleNameFinder struct {
	nz *normalize.Normalizer
}

// NewMiddleNameFinder returns the middle_name strategy.
func NewMiddleNameFinder(nz *normalize.Normalizer) *MiddleNameFinder {
	return &MiddleNameFinder{nz: nz}
}

func (f *MiddleNameFinder) Strategy() model.Strategy { return model.StrategyMiddleName }

func (f *MiddleNameFinder) Find(ctx context.Context, src repository.RiderSource) ([]model.Group, []model.ValidationIssue, error) {
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
		b.add(normalize.FirstToken(first)+"|"+last, r)
	}
	groups := b.groups(func(members []model.Rider) bool {
		return distinct(members, func(r model.Rider) string { return f.nz.Name(r.FirstName) })
	})
	return groups, issues, nil
}
