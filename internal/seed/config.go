// Package seed generates synthetic rider populations that contain every kind
// of duplicate the merge engine looks for.
package seed

import (
	"errors"
	"fmt"
	"time"
)

// Default generator settings.
const (
	DefaultRiders        = 1000
	DefaultDuplicateRate = 0.2
	DefaultMaxResults    = 5
	DefaultSeed          = 1
)

// ErrInvalidConfig is returned for out of range generator settings.
var ErrInvalidConfig = errors.New("invalid seed config")

// Kind labels how a generated rider relates to its base rider.
type Kind string

// Generated rider kinds.
const (
	KindBase       Kind = "base"
	KindExact      Kind = "exact"
	KindIDFormat   Kind = "id_format"
	KindMiddleName Kind = "middle_name"
	KindPhonetic   Kind = "phonetic"
	KindConflict   Kind = "conflict"
)

// Kinds returns the duplicate kinds in generation order.
func Kinds() []Kind {
	return []Kind{KindExact, KindIDFormat, KindMiddleName, KindPhonetic, KindConflict}
}

// Config holds generator settings.
type Config struct {
	Riders        int     // Number of distinct base riders
	DuplicateRate float64 // Share of base riders that get one duplicate
	MaxResults    int     // Upper bound of results per base rider
	Seed          uint64  // Random seed; equal seeds give equal populations
}

// DefaultConfig returns the default generator settings.
func DefaultConfig() Config {
	return Config{
		Riders:        DefaultRiders,
		DuplicateRate: DefaultDuplicateRate,
		MaxResults:    DefaultMaxResults,
		Seed:          DefaultSeed,
	}
}

// Validate checks ranges.
func (c Config) Validate() error {
	switch {
	case c.Riders <= 0:
		return fmt.Errorf("%w: riders must be positive, got %d", ErrInvalidConfig, c.Riders)
	case c.DuplicateRate < 0 || c.DuplicateRate > 1:
		return fmt.Errorf("%w: duplicate rate must be within [0,1], got %v", ErrInvalidConfig, c.DuplicateRate)
	case c.MaxResults < 0:
		return fmt.Errorf("%w: max results must not be negative, got %d", ErrInvalidConfig, c.MaxResults)
	}
	return nil
}

// Stats summarises one seeding run.
type Stats struct {
	Riders    int
	Results   int
	ByKind    map[Kind]int
	StartTime time.Time
	Duration  time.Duration
}
