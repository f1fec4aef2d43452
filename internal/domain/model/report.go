package model

import "time"

// Conflict is a candidate group rejected because its members cannot be one person.
// It is a designed outcome for operator review, not an error.
type Conflict struct {
	Strategy  Strategy `json:"strategy"`
	Key       string   `json:"key"`
	RiderIDs  []int64  `json:"rider_ids"`
	StrongIDs []string `json:"strong_ids,omitempty"`
	Reason    string   `json:"reason"`
}

// ValidationIssue records a rider skipped by a strategy because its input was unusable.
type ValidationIssue struct {
	RiderID  int64    `json:"rider_id"`
	Strategy Strategy `json:"strategy"`
	Reason   string   `json:"reason"`
}

// PairError is a hard failure of one merge unit.
type PairError struct {
	Pair   Pair   `json:"pair"`
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

// PlannedMerge is a merge a dry run would have performed.
type PlannedMerge struct {
	Pair     Pair     `json:"pair"`
	Strategy Strategy `json:"strategy"`
	Score    int      `json:"canonical_score"`
}

// Report is the structured outcome of one batch run.
type Report struct {
	RunID                 string            `json:"run_id"`
	StartedAt             time.Time         `json:"started_at"`
	FinishedAt            time.Time         `json:"finished_at"`
	DryRun                bool              `json:"dry_run"`
	Cancelled             bool              `json:"cancelled"`
	GroupsFoundByStrategy map[Strategy]int  `json:"groups_found_by_strategy"`
	MergedCount           int               `json:"merged_count"`
	ReferencesMovedCount  int64             `json:"references_moved_count"`
	AlreadyMergedCount    int               `json:"already_merged_count"`
	PendingPairs          int               `json:"pending_pairs"`
	MergedInto            map[int64]int64   `json:"merged_into,omitempty"`
	RejectedConflicts     []Conflict        `json:"rejected_conflicts"`
	ReviewCandidates      []Group           `json:"review_candidates"`
	PlannedMerges         []PlannedMerge    `json:"planned_merges,omitempty"`
	SkippedRecords        []ValidationIssue `json:"skipped_records,omitempty"`
	Errors                []PairError       `json:"errors"`
}

// NewReport returns a report with every collection initialised so it encodes as
// empty arrays rather than null.
func NewReport(runID string, startedAt time.Time, dryRun bool) *Report {
	groups := make(map[Strategy]int, len(Strategies()))
	for _, s := range Strategies() {
		groups[s] = 0
	}
	return &Report{
		RunID:                 runID,
		StartedAt:             startedAt,
		DryRun:                dryRun,
		GroupsFoundByStrategy: groups,
		RejectedConflicts:     []Conflict{},
		ReviewCandidates:      []Group{},
		Errors:                []PairError{},
	}
}
