package blocking

import "errors"

// Sentinel kinds for blocking errors.
var (
	ErrIncompleteName = errors.New("first or last name is missing")
	ErrNoFinders      = errors.New("no finders configured")
	ErrSourceFailed   = errors.New("rider source failed")
)
