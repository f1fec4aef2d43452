package normalize_test

import (
	"errors"
	"testing"

	"github.com/okian/ridermerge/internal/domain/normalize"
	. "github.com/smartystreets/goconvey/convey"
)

func TestNormalizeID(t *testing.T) {
	Convey("Given raw national identifiers", t, func() {
		Convey("When punctuation and whitespace separate the digits", func() {
			value, strength := normalize.NormalizeID(" 123-456-789-01 ")

			Convey("Then only identifier characters are kept", func() {
				So(value, ShouldEqual, "12345678901")
				So(strength, ShouldEqual, normalize.Strong)
			})
		})

		Convey("When the identifier contains lowercase letters", func() {
			value, _ := normalize.NormalizeID("se/19800101-ab.12")

			Convey("Then letters are uppercased", func() {
				So(value, ShouldEqual, "SE19800101AB12")
			})
		})

		Convey("When the cleaned length sits on the threshold", func() {
			_, ten := normalize.NormalizeID("1234567890")
			_, nine := normalize.NormalizeID("123456789")

			Convey("Then ten characters are strong and nine are weak", func() {
				So(ten, ShouldEqual, normalize.Strong)
				So(nine, ShouldEqual, normalize.Weak)
			})
		})

		Convey("When the identifier is empty", func() {
			value, strength := normalize.NormalizeID("")

			Convey("Then it is weak", func() {
				So(value, ShouldBeEmpty)
				So(strength, ShouldEqual, normalize.Weak)
				So(strength.String(), ShouldEqual, "weak")
			})
		})

		Convey("When a custom threshold is configured", func() {
			nz := normalize.New(normalize.WithStrongIDMinLength(8))
			_, strength := nz.ID("1234-5678")

			Convey("Then the threshold applies", func() {
				So(strength, ShouldEqual, normalize.Strong)
				So(nz.StrongIDMinLength(), ShouldEqual, 8)
				So(nz.StrongID("12-34"), ShouldBeEmpty)
				So(nz.StrongID("12345678"), ShouldEqual, "12345678")
			})
		})
	})
}

func TestNormalizeName(t *testing.T) {
	Convey("Given names with diacritics and irregular spacing", t, func() {
		cases := map[string]string{
			"  åsa   Ängström ": "ASA ANGSTROM",
			"Jörg Müller":       "JORG MULLER",
			"José":              "JOSE",
			"Søren Kierkegård":  "SOREN KIERKEGARD",
			"Łukasz\tŻółć":      "LUKASZ ZOLC",
			"erik svensson":     "ERIK SVENSSON",
			"Nyberg-Zetterlund": "NYBERG-ZETTERLUND",
			"   ":               "",
		}

		Convey("Then each is uppercased, transliterated and collapsed", func() {
			for raw, want := range cases {
				So(normalize.NormalizeName(raw), ShouldEqual, want)
			}
		})

		Convey("When name aliases are configured", func() {
			nz := normalize.New(normalize.WithNameAliases(map[string]string{
				"kalle":     "Karl",
				"two words": "ignored",
			}))

			Convey("Then matching tokens are replaced", func() {
				So(nz.Name("kalle andersson"), ShouldEqual, "KARL ANDERSSON")
				So(nz.Name("Anna Kalle"), ShouldEqual, "ANNA KARL")
				So(nz.Name("two words"), ShouldEqual, "TWO WORDS")
			})
		})
	})
}

func TestFirstToken(t *testing.T) {
	Convey("Given normalized first names", t, func() {
		So(normalize.FirstToken("LO NYBERG"), ShouldEqual, "LO")
		So(normalize.FirstToken("LO"), ShouldEqual, "LO")
		So(normalize.FirstToken(""), ShouldEqual, "")
	})
}

func TestSoundex(t *testing.T) {
	Convey("Given reference Soundex codes", t, func() {
		cases := map[string]string{
			"ROBERT":    "R163",
			"RUPERT":    "R163",
			"TYMCZAK":   "T522",
			"PFISTER":   "P236",
			"ASHCRAFT":  "A261",
			"JOHANSON":  "J525",
			"JOHANSSON": "J525",
			"lee":       "L000",
			"123":       "",
			"":          "",
		}

		Convey("Then every token encodes as expected", func() {
			for token, want := range cases {
				So(normalize.Soundex(token), ShouldEqual, want)
			}
		})
	})
}

func TestPhoneticKey(t *testing.T) {
	Convey("Given spelling variants of the same name", t, func() {
		a := normalize.PhoneticKey("Erik", "Johanson")
		b := normalize.PhoneticKey("Erik", "Johansson")

		Convey("Then their keys are equal", func() {
			So(a, ShouldEqual, b)
			So(a, ShouldEqual, "E620|J525")
		})
	})

	Convey("Given multi-token names", t, func() {
		Convey("Then tokens are joined per part and parts are kept apart", func() {
			So(normalize.PhoneticKey("Lo Nyberg", "Zetterlund"), ShouldEqual, "L000-N162|Z364")
			So(normalize.PhoneticKey("Lo", "Nyberg Zetterlund"), ShouldEqual, "L000|N162-Z364")
		})
	})
}

func TestValidation(t *testing.T) {
	Convey("Given a normalizer", t, func() {
		nz := normalize.New()

		Convey("When both name parts are blank", func() {
			err := nz.ValidateName("  ", "")

			Convey("Then a validation error is returned", func() {
				So(err, ShouldNotBeNil)
				So(errors.Is(err, normalize.ErrEmptyName), ShouldBeTrue)
				var verr *normalize.ValidationError
				So(errors.As(err, &verr), ShouldBeTrue)
				So(verr.Field, ShouldEqual, "name")
			})
		})

		Convey("When one name part is present", func() {
			So(nz.ValidateName("", "Svensson"), ShouldBeNil)
		})

		Convey("When an identifier has only punctuation", func() {
			err := nz.ValidateID("--/--")

			Convey("Then it is unusable", func() {
				So(errors.Is(err, normalize.ErrUnusableID), ShouldBeTrue)
			})
		})

		Convey("When an identifier is absent or blank", func() {
			So(nz.ValidateID(""), ShouldBeNil)
			So(nz.ValidateID("   "), ShouldBeNil)
		})
	})
}
