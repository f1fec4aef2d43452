package repository_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/ridermerge/internal/adapters/repository"
	"github.com/okian/ridermerge/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func openSQLite(t *testing.T) *repository.SQLStore {
	t.Helper()
	store, err := repository.OpenSQL(context.Background(), repository.DriverSQLite, filepath.Join(t.TempDir(), "riders.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLStore_SQLite(t *testing.T) {
	Convey("Given a SQLite store with two riders", t, func() {
		ctx := context.Background()
		store := openSQLite(t)

		a, err := store.InsertRider(ctx, model.Rider{FirstName: "Erik", LastName: "Svensson", NationalID: "123-456-789-01", BirthYear: 1990})
		So(err, ShouldBeNil)
		b, err := store.InsertRider(ctx, model.Rider{FirstName: "Erik", LastName: "Svensson", Email: "erik@example.com", ClubID: 7})
		So(err, ShouldBeNil)
		raceDate := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
		for i := 0; i < 2; i++ {
			_, err := store.InsertResult(ctx, model.Result{RiderID: b, EventID: "spring-cup", Position: i + 1, RaceDate: raceDate})
			So(err, ShouldBeNil)
		}

		Convey("When reading through the blocking read paths", func() {
			withID, err := store.ListRidersByStrongID(ctx)
			So(err, ShouldBeNil)
			all, err := store.ListAllRidersForPhoneticScan(ctx)
			So(err, ShouldBeNil)

			Convey("Then optional fields and result counts round trip", func() {
				So(withID, ShouldHaveLength, 1)
				So(withID[0].NationalID, ShouldEqual, "123-456-789-01")
				So(withID[0].BirthYear, ShouldEqual, 1990)
				So(all, ShouldHaveLength, 2)
				So(all[1].ResultCount, ShouldEqual, 2)
				So(all[1].ClubID, ShouldEqual, 7)
				So(all[1].Email, ShouldEqual, "erik@example.com")
			})
		})

		Convey("When a merge transaction commits", func() {
			email := "erik@example.com"
			club := int64(7)
			err := store.WithinTx(ctx, func(tx repository.Tx) error {
				moved, err := tx.ReassignOwnership(ctx, b, a)
				if err != nil {
					return err
				}
				if err := tx.UpdateRiderFields(ctx, a, model.RiderFields{Email: &email, ClubID: &club}); err != nil {
					return err
				}
				if err := tx.DeleteRider(ctx, b); err != nil {
					return err
				}
				return tx.RecordMerge(ctx, model.MergeLogEntry{
					RunID: "run-1", CanonicalID: a, DuplicateID: b,
					Strategy: model.StrategyExactName, Moved: moved, MergedAt: time.Now(),
				})
			})

			Convey("Then results belong to the canonical rider and the duplicate is gone", func() {
				So(err, ShouldBeNil)
				got, err := store.GetRider(ctx, a)
				So(err, ShouldBeNil)
				So(got.ResultCount, ShouldEqual, 2)
				So(got.Email, ShouldEqual, email)
				So(got.ClubID, ShouldEqual, 7)
				_, err = store.GetRider(ctx, b)
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)

				results, err := store.ResultsByRider(ctx, a)
				So(err, ShouldBeNil)
				So(results, ShouldHaveLength, 2)
				So(results[0].RaceDate.Equal(raceDate), ShouldBeTrue)

				log, err := store.MergeLog(ctx)
				So(err, ShouldBeNil)
				So(log, ShouldHaveLength, 1)
				So(log[0].Moved, ShouldEqual, 2)
				So(log[0].Strategy, ShouldEqual, model.StrategyExactName)
			})
		})

		Convey("When a transaction fails after repointing", func() {
			boom := errors.New("boom")
			err := store.WithinTx(ctx, func(tx repository.Tx) error {
				if _, err := tx.ReassignOwnership(ctx, b, a); err != nil {
					return err
				}
				return boom
			})

			Convey("Then nothing changed", func() {
				So(errors.Is(err, boom), ShouldBeTrue)
				got, err := store.GetRider(ctx, b)
				So(err, ShouldBeNil)
				So(got.ResultCount, ShouldEqual, 2)
			})
		})

		Convey("When deleting a rider that still owns results", func() {
			err := store.WithinTx(ctx, func(tx repository.Tx) error { return tx.DeleteRider(ctx, b) })

			Convey("Then the delete is refused", func() {
				So(errors.Is(err, repository.ErrStillReferenced), ShouldBeTrue)
				n, err := store.Count(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 2)
			})
		})
	})
}

func TestSQLStore_Reopen(t *testing.T) {
	Convey("Given a database file that already holds the schema", t, func() {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "nested", "riders.db")
		first, err := repository.OpenSQL(ctx, repository.DriverSQLite, path)
		So(err, ShouldBeNil)
		_, err = first.InsertRider(ctx, model.Rider{FirstName: "Lo", LastName: "Zetterlund"})
		So(err, ShouldBeNil)
		So(first.Close(), ShouldBeNil)

		Convey("When it is opened again", func() {
			second, err := repository.OpenSQL(ctx, repository.DriverSQLite, path)
			So(err, ShouldBeNil)
			defer second.Close()

			Convey("Then existing riders are kept", func() {
				n, err := second.Count(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
			})
		})
	})
}

func TestOpen(t *testing.T) {
	Convey("Given driver names", t, func() {
		ctx := context.Background()

		Convey("Then memory returns an in-process store", func() {
			store, err := repository.Open(ctx, repository.DriverMemory, "")
			So(err, ShouldBeNil)
			_, ok := store.(*repository.MemoryStore)
			So(ok, ShouldBeTrue)
		})

		Convey("Then an unknown driver is rejected", func() {
			_, err := repository.Open(ctx, "oracle", "")
			So(errors.Is(err, repository.ErrUnknownDriver), ShouldBeTrue)
		})
	})
}
