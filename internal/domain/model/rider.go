// Package model contains domain models passed between layers.
package model

import "time"

// Rider is the identity entity representing one competitor.
// Optional scalar fields use their zero value for "absent".
type Rider struct {
	ID          int64  `json:"id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	NationalID  string `json:"national_id,omitempty"`
	BirthYear   int    `json:"birth_year,omitempty"`
	Email       string `json:"email,omitempty"`
	ClubID      int64  `json:"club_id,omitempty"`
	Gender      string `json:"gender,omitempty"`
	ResultCount int    `json:"result_count"`
}

// FullName returns "first last" as stored.
func (r Rider) FullName() string {
	switch {
	case r.FirstName == "":
		return r.LastName
	case r.LastName == "":
		return r.FirstName
	}
	return r.FirstName + " " + r.LastName
}

// RiderFields is a sparse update of a rider's optional fields. Nil means "leave as is".
type RiderFields struct {
	NationalID *string
	BirthYear  *int
	Email      *string
	ClubID     *int64
	Gender     *string
}

// IsEmpty reports whether the update would change nothing.
func (f RiderFields) IsEmpty() bool {
	return f.NationalID == nil && f.BirthYear == nil && f.Email == nil && f.ClubID == nil && f.Gender == nil
}

// Apply returns r with every non-nil field of f written over it.
func (f RiderFields) Apply(r Rider) Rider {
	if f.NationalID != nil {
		r.NationalID = *f.NationalID
	}
	if f.BirthYear != nil {
		r.BirthYear = *f.BirthYear
	}
	if f.Email != nil {
		r.Email = *f.Email
	}
	if f.ClubID != nil {
		r.ClubID = *f.ClubID
	}
	if f.Gender != nil {
		r.Gender = *f.Gender
	}
	return r
}

// Result is a competition result owned by exactly one rider.
type Result struct {
	ID       int64     `json:"id"`
	RiderID  int64     `json:"rider_id"`
	EventID  string    `json:"event_id"`
	Position int       `json:"position"`
	RaceDate time.Time `json:"race_date"`
}

// Pair identifies one merge unit: Duplicate is merged into Canonical.
type Pair struct {
	Canonical int64 `json:"canonical"`
	Duplicate int64 `json:"duplicate"`
}

// MergeLogEntry is the audit row written for every committed merge.
type MergeLogEntry struct {
	RunID       string    `json:"run_id"`
	CanonicalID int64     `json:"canonical_id"`
	DuplicateID int64     `json:"duplicate_id"`
	Strategy    Strategy  `json:"strategy"`
	Moved       int64     `json:"moved"`
	MergedAt    time.Time `json:"merged_at"`
}
