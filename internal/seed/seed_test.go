package seed_test

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/ridermerge/internal/adapters/repository"
	"github.com/okian/ridermerge/internal/domain/normalize"
	"github.com/okian/ridermerge/internal/seed"
)

func TestGenerate(t *testing.T) {
	Convey("Given the default config", t, func() {
		cfg := seed.DefaultConfig()
		cfg.Riders = 400
		cfg.DuplicateRate = 0.5

		Convey("When generating twice with the same seed", func() {
			a, errA := seed.Generate(cfg)
			b, errB := seed.Generate(cfg)

			Convey("Then the populations are equal", func() {
				So(errA, ShouldBeNil)
				So(errB, ShouldBeNil)
				So(a, ShouldResemble, b)
			})
		})

		Convey("When generating", func() {
			entries, err := seed.Generate(cfg)
			So(err, ShouldBeNil)

			Convey("Then every duplicate kind is present", func() {
				kinds := map[seed.Kind]int{}
				for _, e := range entries {
					kinds[e.Kind]++
				}
				So(kinds[seed.KindBase], ShouldEqual, 400)
				for _, k := range seed.Kinds() {
					So(kinds[k], ShouldBeGreaterThan, 0)
				}
			})

			Convey("Then each duplicate matches its base the way its kind says", func() {
				for _, e := range entries {
					if e.Kind == seed.KindBase {
						So(e.Base, ShouldEqual, -1)
						continue
					}
					base := entries[e.Base].Rider
					dup := e.Rider
					switch e.Kind {
					case seed.KindExact:
						So(normalize.NormalizeName(dup.LastName), ShouldEqual, normalize.NormalizeName(base.LastName))
						So(normalize.NormalizeName(dup.FirstName), ShouldEqual, normalize.NormalizeName(base.FirstName))
					case seed.KindIDFormat:
						a, _ := normalize.NormalizeID(dup.NationalID)
						b, _ := normalize.NormalizeID(base.NationalID)
						So(a, ShouldEqual, b)
						So(dup.NationalID, ShouldNotEqual, base.NationalID)
					case seed.KindMiddleName:
						So(dup.FirstName, ShouldStartWith, base.FirstName+" ")
					case seed.KindPhonetic:
						So(dup.LastName, ShouldNotEqual, base.LastName)
						So(normalize.PhoneticKey(dup.FirstName, dup.LastName), ShouldEqual,
							normalize.PhoneticKey(base.FirstName, base.LastName))
					case seed.KindConflict:
						So(dup.NationalID, ShouldNotEqual, base.NationalID)
						So(base.NationalID, ShouldNotBeEmpty)
					}
				}
			})
		})

		Convey("When the config is out of range", func() {
			cfg.DuplicateRate = 2
			_, err := seed.Generate(cfg)

			Convey("Then it is rejected", func() {
				So(errors.Is(err, seed.ErrInvalidConfig), ShouldBeTrue)
			})
		})
	})
}

func TestRun(t *testing.T) {
	Convey("Given a memory store", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		cfg := seed.Config{Riders: 50, DuplicateRate: 0.3, MaxResults: 3, Seed: 7}

		Convey("When seeding", func() {
			stats, err := seed.Run(ctx, store, cfg)

			Convey("Then every entry and result is written", func() {
				So(err, ShouldBeNil)
				entries, _ := seed.Generate(cfg)
				So(stats.Riders, ShouldEqual, len(entries))
				n, _ := store.Count(ctx)
				So(n, ShouldEqual, len(entries))

				results := 0
				for _, e := range entries {
					results += e.Results
				}
				So(stats.Results, ShouldEqual, results)
				So(stats.ByKind[seed.KindBase], ShouldEqual, 50)
			})
		})

		Convey("When the context is cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := seed.Run(cctx, store, cfg)

			Convey("Then seeding stops", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
			})
		})
	})
}
