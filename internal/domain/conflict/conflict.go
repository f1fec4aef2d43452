// Package conflict decides whether a candidate group may describe one rider.
package conflict

import (
	"slices"

	"github.com/okian/ridermerge/internal/domain/model"
	"github.com/okian/ridermerge/internal/domain/normalize"
)

// Rejection reasons.
const (
	ReasonMultipleStrongIDs = "multiple_strong_ids"
	ReasonKeepApart         = "keep_apart"
)

// Detector rejects groups whose members carry more than one distinct strong
// national id, and groups that contain a keep-apart pair.
type Detector struct {
	nz        *normalize.Normalizer
	keepApart [][]int64
}

// Option configures a Detector.
type Option func(*Detector)

// WithKeepApart registers rider id sets that must never end up in one group.
// Sets with fewer than two ids are ignored.
func WithKeepApart(sets [][]int64) Option {
	return func(d *Detector) {
		for _, set := range sets {
			if len(set) >= 2 {
				d.keepApart = append(d.keepApart, slices.Clone(set))
			}
		}
	}
}

// New builds a detector that classifies ids with nz.
func New(nz *normalize.Normalizer, opts ...Option) *Detector {
	d := &Detector{nz: nz}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Check confirms g or returns the conflict that rejects it.
func (d *Detector) Check(g model.Group) (model.Conflict, bool) {
	if strong := d.strongIDs(g.Riders); len(strong) > 1 {
		return model.Conflict{
			Strategy:  g.Strategy,
			Key:       g.Key,
			RiderIDs:  g.IDs(),
			StrongIDs: strong,
			Reason:    ReasonMultipleStrongIDs,
		}, false
	}
	if pair, ok := d.keptApart(g.IDs()); ok {
		return model.Conflict{
			Strategy: g.Strategy,
			Key:      g.Key,
			RiderIDs: pair,
			Reason:   ReasonKeepApart,
		}, false
	}
	return model.Conflict{}, true
}

// Partition splits groups into confirmed groups and rejected conflicts,
// preserving input order in both.
func (d *Detector) Partition(groups []model.Group) ([]model.Group, []model.Conflict) {
	confirmed := make([]model.Group, 0, len(groups))
	rejected := make([]model.Conflict, 0)
	for _, g := range groups {
		if c, ok := d.Check(g); !ok {
			rejected = append(rejected, c)
			continue
		}
		confirmed = append(confirmed, g)
	}
	return confirmed, rejected
}

// strongIDs returns the sorted distinct strong ids of riders.
func (d *Detector) strongIDs(riders []model.Rider) []string {
	seen := make(map[string]struct{}, len(riders))
	out := make([]string, 0, 2)
	for _, r := range riders {
		id := d.nz.StrongID(r.NationalID)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// keptApart returns the first keep-apart ids found together in ids.
func (d *Detector) keptApart(ids []int64) ([]int64, bool) {
	for _, set := range d.keepApart {
		hits := make([]int64, 0, len(set))
		for _, id := range set {
			if slices.Contains(ids, id) {
				hits = append(hits, id)
			}
		}
		if len(hits) >= 2 {
			slices.Sort(hits)
			return hits, true
		}
	}
	return nil, false
}
