package model

import "slices"

// Strategy names a blocking strategy.
type Strategy string

// Blocking strategies, in pipeline order.
const (
	StrategyStrongID   Strategy = "strong_id"
	StrategyExactName  Strategy = "exact_name"
	StrategyMiddleName Strategy = "middle_name"
	StrategyPhonetic   Strategy = "phonetic"
)

// Strategies returns every known strategy in pipeline order.
func Strategies() []Strategy {
	return []Strategy{StrategyStrongID, StrategyExactName, StrategyMiddleName, StrategyPhonetic}
}

// Valid reports whether s is a known strategy.
func (s Strategy) Valid() bool {
	return slices.Contains(Strategies(), s)
}

// Group is a candidate-duplicate group produced by one strategy.
type Group struct {
	Strategy Strategy `json:"strategy"`
	Key      string   `json:"key"`
	Riders   []Rider  `json:"riders"`
}

// IDs returns the member ids in group order.
func (g Group) IDs() []int64 {
	ids := make([]int64, len(g.Riders))
	for i, r := range g.Riders {
		ids[i] = r.ID
	}
	return ids
}

// MinID returns the smallest member id, or 0 for an empty group.
func (g Group) MinID() int64 {
	if len(g.Riders) == 0 {
		return 0
	}
	return slices.Min(g.IDs())
}

// MergeJob is one disjoint unit of merge work: every duplicate is merged into Canonical,
// one pair at a time, by a single worker.
type MergeJob struct {
	Component  int      `json:"component"`
	Strategy   Strategy `json:"strategy"`
	Canonical  Rider    `json:"canonical"`
	Duplicates []Rider  `json:"duplicates"`
}

// Pairs expands the job into its merge pairs, in duplicate order.
func (j MergeJob) Pairs() []Pair {
	pairs := make([]Pair, len(j.Duplicates))
	for i, d := range j.Duplicates {
		pairs[i] = Pair{Canonical: j.Canonical.ID, Duplicate: d.ID}
	}
	return pairs
}
