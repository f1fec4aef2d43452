package blocking

import (
	"context"
	"fmt"
	"strings"

	"github.com/okian/ridermerge/internal/adapters/repository"
	"github.com/okian/ridermerge/internal/domain/model"
	"github.com/okian/ridermerge/internal/domain/normalize"
)

// PhoneticFinder groups riders whose names sound alike. A group is kept only
// when its members disagree on the full normalized name.
type PhoneticFinder struct {
	nz *normalize.Normalizer
}

// NewPhoneticFinder returns the phonetic strategy.
func NewPhoneticFinder(nz *normalize.Normalizer) *PhoneticFinder {
	return &PhoneticFinder{nz: nz}
}

func (f *PhoneticFinder) Strategy() model.Strategy { return model.StrategyPhonetic }

func (f *PhoneticFinder) Find(ctx context.Context, src repository.RiderSource) ([]model.Group, []model.ValidationIssue, error) {
	riders, err := src.ListAllRidersForPhoneticScan(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %w", ErrSourceFailed, f.Strategy(), err)
	}
	b := newBucketer(f.Strategy())
	issues := make([]model.ValidationIssue, 0)
	for _, r := range riders {
		if _, _, err := fullName(f.nz, r); err != nil {
			issues = append(issues, issue(r, f.Strategy(), err))
			continue
		}
		key := f.nz.PhoneticKey(r.FirstName, r.LastName)
		if strings.HasPrefix(key, "|") || strings.HasSuffix(key, "|") {
			issues = append(issues, issue(r, f.Strategy(), &normalize.ValidationError{
				Field: "name", Value: r.FullName(), Err: ErrIncompleteName,
			}))
			continue
		}
		b.add(key, r)
	}
	groups := b.groups(func(members []model.Rider) bool {
		return distinct(members, func(r model.Rider) string {
			return f.nz.Name(r.FirstName) + "|" + f.nz.Name(r.LastName)
		})
	})
	return groups, issues, nil
}
