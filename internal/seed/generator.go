package seed

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/okian/ridermerge/internal/domain/model"
)

var (
	firstNames  = []string{"Erik", "Anna", "Lars", "Karin", "Nils", "Sara", "Johan", "Maria", "Per", "Eva", "Olof", "Lena", "Mats", "Ulla", "Sven", "Ingrid"}
	middleNames = []string{"Johan", "Marie", "Nyberg", "Lovisa", "Gustav", "Elin"}
	lastNames   = []string{"Svensson", "Johanson", "Lindqvist", "Berg", "Nyström", "Ek", "Holm", "Larsson", "Karlsson", "Sandberg", "Åkesson", "Lundgren"}
)

// Entry is one generated rider with the number of results it owns.
type Entry struct {
	Rider   model.Rider
	Results int
	Kind    Kind
	// Base is the index of the base entry a duplicate was derived from, or -1.
	Base int
}

// Generate builds a deterministic population for cfg. Base riders come first,
// followed by their duplicates.
func Generate(cfg Config) ([]Entry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))

	entries := make([]Entry, 0, cfg.Riders+int(float64(cfg.Riders)*cfg.DuplicateRate)+1)
	for i := range cfg.Riders {
		r := model.Rider{
			FirstName: pick(rng, firstNames),
			LastName:  pick(rng, lastNames),
		}
		// Four in five base riders carry a strong id.
		if rng.IntN(5) > 0 {
			r.NationalID = fmt.Sprintf("SE%010d", i+1)
		}
		if rng.IntN(2) == 0 {
			r.BirthYear = 1960 + rng.IntN(50)
		}
		if rng.IntN(3) == 0 {
			r.Email = strings.ToLower(fmt.Sprintf("%s.%s%d@example.se", r.FirstName, r.LastName, i))
		}
		entries = append(entries, Entry{Rider: r, Results: rng.IntN(cfg.MaxResults + 1), Kind: KindBase, Base: -1})
	}

	kinds := Kinds()
	for i := range cfg.Riders {
		if rng.Float64() >= cfg.DuplicateRate {
			continue
		}
		kind := kinds[rng.IntN(len(kinds))]
		base := entries[i].Rider
		dup, ok := duplicate(rng, kind, base, i)
		if !ok {
			continue
		}
		entries = append(entries, Entry{Rider: dup, Results: rng.IntN(cfg.MaxResults/2 + 1), Kind: kind, Base: i})
	}
	return entries, nil
}

// duplicate derives a rider of kind from base. It reports false when base
// cannot carry that kind, e.g. an id_format copy of a rider without an id.
func duplicate(rng *rand.Rand, kind Kind, base model.Rider, index int) (model.Rider, bool) {
	dup := model.Rider{FirstName: base.FirstName, LastName: base.LastName}
	switch kind {
	case KindExact:
		dup.FirstName = strings.ToUpper(base.FirstName)
		dup.LastName = strings.ToUpper(base.LastName)
		dup.ClubID = int64(1 + rng.IntN(20))
	case KindIDFormat:
		if base.NationalID == "" {
			return model.Rider{}, false
		}
		dup.FirstName = base.FirstName[:1] + "."
		dup.NationalID = formatID(base.NationalID)
	case KindMiddleName:
		dup.FirstName = base.FirstName + " " + pick(rng, middleNames)
	case KindPhonetic:
		variant, ok := doubleConsonant(base.LastName)
		if !ok {
			return model.Rider{}, false
		}
		dup.LastName = variant
	case KindConflict:
		if base.NationalID == "" {
			return model.Rider{}, false
		}
		dup.NationalID = fmt.Sprintf("SE9%09d", index+1)
	default:
		return model.Rider{}, false
	}
	return dup, true
}

// formatID writes a national id the way a form would: lower case with separators.
func formatID(id string) string {
	lower := strings.ToLower(id)
	if len(lower) < 8 {
		return lower
	}
	return lower[:2] + "-" + lower[2:8] + "-" + lower[8:]
}

// doubleConsonant doubles the last single consonant after the first letter.
// The spelling changes while the Soundex code does not.
func doubleConsonant(name string) (string, bool) {
	runes := []rune(name)
	for i := len(runes) - 1; i > 0; i-- {
		c := runes[i]
		if !strings.ContainsRune("bcdfgklmnprstvz", c) {
			continue
		}
		if runes[i-1] == c || (i+1 < len(runes) && runes[i+1] == c) {
			continue
		}
		out := make([]rune, 0, len(runes)+1)
		out = append(out, runes[:i+1]...)
		out = append(out, c)
		out = append(out, runes[i+1:]...)
		return string(out), true
	}
	return "", false
}

func pick(rng *rand.Rand, values []string) string {
	return values[rng.IntN(len(values))]
}
