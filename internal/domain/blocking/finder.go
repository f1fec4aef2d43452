// Package blocking partitions riders into candidate duplicate groups. Each
// strategy is an independent CandidateGroupFinder; the Pipeline runs them
// concurrently and returns their output in a fixed order.
package blocking

import (
	"context"
	"slices"
	"sort"

	"github.com/okian/ridermerge/internal/adapters/repository"
	"github.com/okian/ridermerge/internal/domain/model"
	"github.com/okian/ridermerge/internal/domain/normalize"
)

// CandidateGroupFinder produces candidate groups for one strategy. Groups have
// at least two members, members are ordered by id and groups by smallest member id.
type CandidateGroupFinder interface {
	Strategy() model.Strategy
	Find(ctx context.Context, src repository.RiderSource) ([]model.Group, []model.ValidationIssue, error)
}

// Result is the output of one finder.
type Result struct {
	Strategy model.Strategy
	Groups   []model.Group
	Issues   []model.ValidationIssue
}

// bucketer accumulates riders under a grouping key.
type bucketer struct {
	strategy model.Strategy
	buckets  map[string][]model.Rider
}

func newBucketer(strategy model.Strategy) *bucketer {
	return &bucketer{strategy: strategy, buckets: make(map[string][]model.Rider)}
}

func (b *bucketer) add(key string, r model.Rider) {
	b.buckets[key] = append(b.buckets[key], r)
}

// groups returns every bucket with two or more riders that passes keep.
func (b *bucketer) groups(keep func([]model.Rider) bool) []model.Group {
	out := make([]model.Group, 0)
	for key, riders := range b.buckets {
		if len(riders) < 2 {
			continue
		}
		if keep != nil && !keep(riders) {
			continue
		}
		members := slices.Clone(riders)
		sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
		out = append(out, model.Group{Strategy: b.strategy, Key: key, Riders: members})
	}
	sortGroups(out)
	return out
}

func sortGroups(groups []model.Group) {
	sort.Slice(groups, func(i, j int) bool {
		a, b := groups[i].MinID(), groups[j].MinID()
		if a != b {
			return a < b
		}
		return groups[i].Key < groups[j].Key
	})
}

// distinct reports whether fn yields more than one value across riders.
func distinct(riders []model.Rider, fn func(model.Rider) string) bool {
	first := fn(riders[0])
	for _, r := range riders[1:] {
		if fn(r) != first {
			return true
		}
	}
	return false
}

// fullName normalizes both name parts. Riders lacking either part are not
// eligible for name based grouping.
func fullName(nz *normalize.Normalizer, r model.Rider) (first, last string, err error) {
	if err := nz.ValidateName(r.FirstName, r.LastName); err != nil {
		return "", "", err
	}
	first, last = nz.Name(r.FirstName), nz.Name(r.LastName)
	if first == "" || last == "" {
		return "", "", &normalize.ValidationError{Field: "name", Value: r.FullName(), Err: ErrIncompleteName}
	}
	return first, last, nil
}

func issue(r model.Rider, strategy model.Strategy, err error) model.ValidationIssue {
	return model.ValidationIssue{RiderID: r.ID, Strategy: strategy, Reason: err.Error()}
}
