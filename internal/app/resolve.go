package service

import (
	"slices"

	"github.com/okian/ridermerge/internal/domain/model"
)

// resolveMerged rewrites review candidates and rejected conflicts so they only
// name riders that still exist after the batch. A merged duplicate is replaced
// by its canonical; a group or conflict left with fewer than two riders is
// dropped since nothing is left to review.
func resolveMerged(report *model.Report, canonicals map[int64]model.Rider) {
	if len(report.MergedInto) == 0 {
		return
	}
	live := func(id int64) int64 {
		if to, ok := report.MergedInto[id]; ok {
			return to
		}
		return id
	}

	groups := report.ReviewCandidates[:0]
	for _, g := range report.ReviewCandidates {
		riders := make([]model.Rider, 0, len(g.Riders))
		for _, r := range g.Riders {
			if to := live(r.ID); to != r.ID {
				r = canonicals[to]
			}
			riders = append(riders, r)
		}
		slices.SortFunc(riders, func(a, b model.Rider) int { return cmpID(a.ID, b.ID) })
		riders = slices.CompactFunc(riders, func(a, b model.Rider) bool { return a.ID == b.ID })
		if len(riders) < 2 {
			continue
		}
		g.Riders = riders
		groups = append(groups, g)
	}
	report.ReviewCandidates = groups

	conflicts := report.RejectedConflicts[:0]
	for _, c := range report.RejectedConflicts {
		ids := make([]int64, len(c.RiderIDs))
		for i, id := range c.RiderIDs {
			ids[i] = live(id)
		}
		slices.Sort(ids)
		ids = slices.Compact(ids)
		if len(ids) < 2 {
			continue
		}
		c.RiderIDs = ids
		conflicts = append(conflicts, c)
	}
	report.RejectedConflicts = conflicts
}
