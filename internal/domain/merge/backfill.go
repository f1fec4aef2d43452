package merge

import (
	"github.com/okian/ridermerge/internal/domain/model"
	"github.com/okian/ridermerge/internal/domain/normalize"
)

// Backfill returns the optional fields of canonical that are empty and that
// duplicate can fill. Non-empty canonical fields are never touched, except that
// a weak canonical national id gives way to a strong duplicate id. A national
// id is only carried over when it is strong.
func Backfill(nz *normalize.Normalizer, canonical, duplicate model.Rider) model.RiderFields {
	var f model.RiderFields
	if nz.StrongID(canonical.NationalID) == "" && nz.StrongID(duplicate.NationalID) != "" {
		f.NationalID = &duplicate.NationalID
	}
	if canonical.BirthYear == 0 && duplicate.BirthYear != 0 {
		f.BirthYear = &duplicate.BirthYear
	}
	if canonical.Email == "" && duplicate.Email != "" {
		f.Email = &duplicate.Email
	}
	if canonical.ClubID == 0 && duplicate.ClubID != 0 {
		f.ClubID = &duplicate.ClubID
	}
	if canonical.Gender == "" && duplicate.Gender != "" {
		f.Gender = &duplicate.Gender
	}
	return f
}
