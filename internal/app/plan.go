package service

import (
	"maps"
	"slices"
	"strings"

	"github.com/okian/ridermerge/internal/domain/canonical"
	"github.com/okian/ridermerge/internal/domain/conflict"
	"github.com/okian/ridermerge/internal/domain/model"
)

// disjointSet is a union-find over rider ids.
type disjointSet struct {
	parent map[int64]int64
}

func newDisjointSet() *disjointSet {
	return &disjointSet{parent: make(map[int64]int64)}
}

func (d *disjointSet) find(id int64) int64 {
	if _, ok := d.parent[id]; !ok {
		d.parent[id] = id
		return id
	}
	root := id
	for d.parent[root] != root {
		root = d.parent[root]
	}
	for d.parent[id] != root {
		next := d.parent[id]
		d.parent[id] = root
		id = next
	}
	return root
}

// union keeps the smaller id as root so roots are stable across runs.
func (d *disjointSet) union(a, b int64) {
	ra, rb := d.find(a), d.find(b)
	switch {
	case ra == rb:
	case ra < rb:
		d.parent[rb] = ra
	default:
		d.parent[ra] = rb
	}
}

// component is a set of riders connected by confirmed auto-merge groups.
type component struct {
	strategy model.Strategy
	keys     []string
	riders   map[int64]model.Rider
	groups   []model.Group
}

func (c *component) group() model.Group {
	members := make([]model.Rider, 0, len(c.riders))
	for _, r := range c.riders {
		members = append(members, r)
	}
	slices.SortFunc(members, func(a, b model.Rider) int { return cmpID(a.ID, b.ID) })
	return model.Group{Strategy: c.strategy, Key: strings.Join(c.keys, "+"), Riders: members}
}

// components unions groups that share a rider. groups must be in strategy
// order; a component takes the strategy of its first group. Components come
// back ordered by smallest rider id.
func components(groups []model.Group) []*component {
	ds := newDisjointSet()
	for _, g := range groups {
		for _, r := range g.Riders[1:] {
			ds.union(g.Riders[0].ID, r.ID)
		}
	}
	byRoot := make(map[int64]*component)
	for _, g := range groups {
		root := ds.find(g.Riders[0].ID)
		c, ok := byRoot[root]
		if !ok {
			c = &component{strategy: g.Strategy, riders: make(map[int64]model.Rider)}
			byRoot[root] = c
		}
		c.keys = append(c.keys, string(g.Strategy)+":"+g.Key)
		c.groups = append(c.groups, g)
		for _, r := range g.Riders {
			c.riders[r.ID] = r
		}
	}
	roots := slices.Sorted(maps.Keys(byRoot))
	out := make([]*component, 0, len(roots))
	for _, root := range roots {
		out = append(out, byRoot[root])
	}
	return out
}

func cmpID(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// plan is the merge work derived from one batch's confirmed groups.
type plan struct {
	jobs      []model.MergeJob
	scores    map[int64]int
	conflicts []model.Conflict
}

// buildPlan turns confirmed auto-merge groups into disjoint merge jobs. Each
// component is re-checked as a whole; a rejected component falls back to its
// strong_id groups, which cannot conflict on ids by construction.
func buildPlan(groups []model.Group, det *conflict.Detector, sel *canonical.Selector) plan {
	p := plan{scores: make(map[int64]int)}
	for _, c := range components(groups) {
		whole := c.group()
		candidates := []model.Group{whole}
		if rejected, ok := det.Check(whole); !ok {
			p.conflicts = append(p.conflicts, rejected)
			candidates = candidates[:0]
			for _, g := range c.groups {
				if g.Strategy != model.StrategyStrongID {
					continue
				}
				if rej, ok := det.Check(g); !ok {
					p.conflicts = append(p.conflicts, rej)
					continue
				}
				candidates = append(candidates, g)
			}
		}
		for _, g := range candidates {
			canon, dups, err := sel.Select(g.Riders)
			if err != nil || len(dups) == 0 {
				continue
			}
			p.scores[canon.ID] = sel.Score(canon)
			p.jobs = append(p.jobs, model.MergeJob{
				Component:  len(p.jobs),
				Strategy:   g.Strategy,
				Canonical:  canon,
				Duplicates: dups,
			})
		}
	}
	return p
}
