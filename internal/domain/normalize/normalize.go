// Package normalize canonicalizes rider identifiers and names for comparison.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultStrongIDMinLength is the normalized length from which a national id is strong.
// Every strategy and the conflict detector share this one threshold.
const DefaultStrongIDMinLength = 10

// Strength classifies a normalized identifier.
type Strength int

// Identifier strengths.
const (
	Weak Strength = iota
	Strong
)

func (s Strength) String() string {
	if s == Strong {
		return "strong"
	}
	return "weak"
}

// stripMarks removes combining marks after canonical decomposition (å -> a, é -> e).
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC) //nolint:gochecknoglobals // stateless transformer chain

// foldLetters covers letters that carry no decomposable mark.
var foldLetters = strings.NewReplacer( //nolint:gochecknoglobals // immutable replacer
	"ø", "o", "Ø", "O",
	"æ", "ae", "Æ", "AE",
	"œ", "oe", "Œ", "OE",
	"ß", "ss", "ẞ", "SS",
	"ð", "d", "Ð", "D",
	"þ", "th", "Þ", "TH",
	"ł", "l", "Ł", "L",
	"đ", "d", "Đ", "D",
	"ı", "i",
)

// Option applies a configuration option to the Normalizer.
type Option func(*Normalizer)

// WithStrongIDMinLength sets the strong identifier threshold.
func WithStrongIDMinLength(n int) Option {
	return func(nz *Normalizer) {
		if n > 0 {
			nz.strongIDMinLength = n
		}
	}
}

// WithNameAliases registers name token overrides: a token equal to a key (after
// normalization) is replaced by the normalized value.
func WithNameAliases(aliases map[string]string) Option {
	return func(nz *Normalizer) {
		for from, to := range aliases {
			from, to = foldName(from), foldName(to)
			if from == "" || to == "" || strings.Contains(from, " ") {
				continue
			}
			nz.aliases[from] = to
		}
	}
}

// Normalizer holds the per-batch normalization rules. It is immutable after New
// and safe for concurrent use.
type Normalizer struct {
	strongIDMinLength int
	aliases           map[string]string
}

// New creates a Normalizer with configuration options.
func New(opts ...Option) *Normalizer {
	nz := &Normalizer{
		strongIDMinLength: DefaultStrongIDMinLength,
		aliases:           make(map[string]string),
	}
	for _, opt := range opts {
		opt(nz)
	}
	return nz
}

// StrongIDMinLength returns the configured strong identifier threshold.
func (nz *Normalizer) StrongIDMinLength() int {
	return nz.strongIDMinLength
}

// ID strips everything but letters and digits, uppercases the rest and classifies it.
func (nz *Normalizer) ID(raw string) (string, Strength) {
	folded := fold(raw)
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'a' && r <= 'z':
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	value := b.String()
	if len(value) >= nz.strongIDMinLength {
		return value, Strong
	}
	return value, Weak
}

// StrongID returns the normalized id when it is strong, or "" otherwise.
func (nz *Normalizer) StrongID(raw string) string {
	value, strength := nz.ID(raw)
	if strength != Strong {
		return ""
	}
	return value
}

// Name uppercases, transliterates to ASCII, collapses whitespace and applies aliases.
func (nz *Normalizer) Name(raw string) string {
	value := foldName(raw)
	if len(nz.aliases) == 0 || value == "" {
		return value
	}
	tokens := strings.Split(value, " ")
	for i, tok := range tokens {
		if alias, ok := nz.aliases[tok]; ok {
			tokens[i] = alias
		}
	}
	return strings.Join(tokens, " ")
}

// FirstToken returns the first whitespace-delimited token of a normalized name.
func FirstToken(normalized string) string {
	if i := strings.IndexByte(normalized, ' '); i >= 0 {
		return normalized[:i]
	}
	return normalized
}

// PhoneticKey applies Soundex to every token of each normalized name part. Tokens of
// one part are joined with "-", and the two parts with "|".
func (nz *Normalizer) PhoneticKey(firstName, lastName string) string {
	return phoneticPart(nz.Name(firstName)) + "|" + phoneticPart(nz.Name(lastName))
}

func phoneticPart(normalized string) string {
	tokens := strings.FieldsFunc(normalized, func(r rune) bool { return r == ' ' || r == '-' })
	codes := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if code := Soundex(tok); code != "" {
			codes = append(codes, code)
		}
	}
	return strings.Join(codes, "-")
}

func fold(raw string) string {
	folded, _, err := transform.String(stripMarks, foldLetters.Replace(raw))
	if err != nil {
		return raw
	}
	return folded
}

func foldName(raw string) string {
	return strings.Join(strings.Fields(strings.ToUpper(fold(raw))), " ")
}

// defaultNormalizer backs the package-level helpers.
var defaultNormalizer = New() //nolint:gochecknoglobals // read-only default rules

// NormalizeID normalizes raw with the default threshold.
func NormalizeID(raw string) (string, Strength) { return defaultNormalizer.ID(raw) }

// NormalizeName normalizes raw without aliases.
func NormalizeName(raw string) string { return defaultNormalizer.Name(raw) }

// PhoneticKey computes the phonetic key without aliases.
func PhoneticKey(firstName, lastName string) string {
	return defaultNormalizer.PhoneticKey(firstName, lastName)
}
