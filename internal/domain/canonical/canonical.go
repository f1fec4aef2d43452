// Package canonical picks the surviving rider of a duplicate group.
package canonical

import (
	"errors"
	"slices"

	"github.com/okian/ridermerge/internal/domain/model"
	"github.com/okian/ridermerge/internal/domain/normalize"
)

// ErrEmptyGroup is returned when Select receives no riders.
var ErrEmptyGroup = errors.New("canonical: empty group")

// Weights are the points awarded per completeness signal.
type Weights struct {
	PerResult int
	StrongID  int
	BirthYear int
	Email     int
	Club      int
}

// DefaultWeights favour riders with history, then a strong id, then contact details.
func DefaultWeights() Weights {
	return Weights{PerResult: 10, StrongID: 100, BirthYear: 5, Email: 5, Club: 5}
}

// Option applies a configuration option to the Selector.
type Option func(*Selector)

// WithWeights replaces the default weights. Negative values are ignored.
func WithWeights(w Weights) Option {
	return func(s *Selector) {
		if w.PerResult >= 0 && w.StrongID >= 0 && w.BirthYear >= 0 && w.Email >= 0 && w.Club >= 0 {
			s.weights = w
		}
	}
}

// Selector scores riders for completeness.
type Selector struct {
	nz      *normalize.Normalizer
	weights Weights
}

// New creates a selector that judges id strength with nz.
func New(nz *normalize.Normalizer, opts ...Option) *Selector {
	s := &Selector{nz: nz, weights: DefaultWeights()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score returns the completeness score of r.
func (s *Selector) Score(r model.Rider) int {
	score := s.weights.PerResult * r.ResultCount
	if s.nz.StrongID(r.NationalID) != "" {
		score += s.weights.StrongID
	}
	if r.BirthYear != 0 {
		score += s.weights.BirthYear
	}
	if r.Email != "" {
		score += s.weights.Email
	}
	if r.ClubID != 0 {
		score += s.weights.Club
	}
	return score
}

// Select returns the highest scoring rider and the others ordered by id.
// Ties go to the lowest id.
func (s *Selector) Select(riders []model.Rider) (model.Rider, []model.Rider, error) {
	if len(riders) == 0 {
		return model.Rider{}, nil, ErrEmptyGroup
	}
	best, bestScore := riders[0], s.Score(riders[0])
	for _, r := range riders[1:] {
		score := s.Score(r)
		if score > bestScore || (score == bestScore && r.ID < best.ID) {
			best, bestScore = r, score
		}
	}
	duplicates := make([]model.Rider, 0, len(riders)-1)
	for _, r := range riders {
		if r.ID != best.ID {
			duplicates = append(duplicates, r)
		}
	}
	slices.SortFunc(duplicates, func(a, b model.Rider) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return best, duplicates, nil
}
