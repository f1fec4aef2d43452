package normalize

import (
	"errors"
	"fmt"
)

// Sentinel kinds for normalization errors.
var (
	ErrEmptyName  = errors.New("name normalizes to empty")
	ErrUnusableID = errors.New("identifier has no identifier characters")
)

// ValidationError reports input that a strategy cannot use. The record is skipped
// for that strategy only.
type ValidationError struct {
	Field string
	Value string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ValidateName checks that at least one name part survives normalization.
func (nz *Normalizer) ValidateName(firstName, lastName string) error {
	if nz.Name(firstName) == "" && nz.Name(lastName) == "" {
		return &ValidationError{Field: "name", Value: firstName + " " + lastName, Err: ErrEmptyName}
	}
	return nil
}

// ValidateID checks that a non-blank identifier keeps at least one character.
func (nz *Normalizer) ValidateID(raw string) error {
	if value, _ := nz.ID(raw); value == "" && len(raw) > 0 && !isBlank(raw) {
		return &ValidationError{Field: "national_id", Value: raw, Err: ErrUnusableID}
	}
	return nil
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}
