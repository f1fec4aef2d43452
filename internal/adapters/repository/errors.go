package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrNotFound        = errors.New("rider not found")
	ErrStillReferenced = errors.New("rider still owns dependent records")
	ErrUnknownDriver   = errors.New("unknown database driver")
	ErrSchemaMismatch  = errors.New("schema version mismatch")
	ErrClosed          = errors.New("store closed")
)
