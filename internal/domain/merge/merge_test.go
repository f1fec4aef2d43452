package merge_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/ridermerge/internal/adapters/repository"
	"github.com/okian/ridermerge/internal/domain/merge"
	"github.com/okian/ridermerge/internal/domain/model"
	"github.com/okian/ridermerge/internal/domain/normalize"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func mustInsert(store repository.Store, r model.Rider, results int) int64 {
	ctx := context.Background()
	id, err := store.InsertRider(ctx, r)
	if err != nil {
		panic(err)
	}
	for i := range results {
		if _, err := store.InsertResult(ctx, model.Result{RiderID: id, EventID: "E", Position: i + 1, RaceDate: fixedNow}); err != nil {
			panic(err)
		}
	}
	return id
}

func newExecutor(store repository.Store, opts ...merge.Option) *merge.Executor {
	opts = append([]merge.Option{merge.WithClock(func() time.Time { return fixedNow })}, opts...)
	return merge.NewExecutor(store, normalize.New(), opts...)
}

func TestBackfill(t *testing.T) {
	Convey("Given a sparse canonical and a richer duplicate", t, func() {
		nz := normalize.New()
		canon := model.Rider{ID: 1, Email: "keep@me.se"}
		dup := model.Rider{ID: 2, NationalID: "SE198503121234", BirthYear: 1985, Email: "other@x.se", ClubID: 7, Gender: "F"}

		fields := merge.Backfill(nz, canon, dup)

		Convey("Then only empty canonical fields are filled", func() {
			merged := fields.Apply(canon)
			So(merged.Email, ShouldEqual, "keep@me.se")
			So(merged.NationalID, ShouldEqual, "SE198503121234")
			So(merged.BirthYear, ShouldEqual, 1985)
			So(merged.ClubID, ShouldEqual, 7)
			So(merged.Gender, ShouldEqual, "F")
		})

		Convey("Then a weak id is not carried over", func() {
			dup.NationalID = "1234"
			So(merge.Backfill(nz, canon, dup).NationalID, ShouldBeNil)
		})

		Convey("Then a weak canonical id gives way to a strong one", func() {
			canon.NationalID = "123"
			got := merge.Backfill(nz, canon, dup).NationalID
			So(got, ShouldNotBeNil)
			So(*got, ShouldEqual, "SE198503121234")
		})

		Convey("Then a strong canonical id is kept", func() {
			canon.NationalID = "NO19028844321"
			So(merge.Backfill(nz, canon, dup).NationalID, ShouldBeNil)
		})

		Convey("Then a complete canonical needs nothing", func() {
			So(merge.Backfill(nz, dup, canon).IsEmpty(), ShouldBeTrue)
		})
	})
}

func TestExecuteWeakCanonicalID(t *testing.T) {
	Convey("Given a canonical with a weak code and a duplicate with a strong id", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		canonID := mustInsert(store, model.Rider{FirstName: "Erik", LastName: "Berg", NationalID: "123"}, 15)
		dupID := mustInsert(store, model.Rider{FirstName: "Erik", LastName: "Berg", NationalID: "19850312123456"}, 0)

		Convey("When the pair is executed", func() {
			out := newExecutor(store).Execute(ctx, "run-1", model.StrategyExactName, model.Pair{Canonical: canonID, Duplicate: dupID})

			Convey("Then the strong id survives on the canonical", func() {
				So(out.State, ShouldEqual, merge.StateCommitted)
				canon, err := store.GetRider(ctx, canonID)
				So(err, ShouldBeNil)
				So(canon.NationalID, ShouldEqual, "19850312123456")
				results, _ := store.ResultsByRider(ctx, canonID)
				So(results, ShouldHaveLength, 15)
			})
		})
	})
}

func TestExecute(t *testing.T) {
	Convey("Given a store with a canonical and a duplicate", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		canonID := mustInsert(store, model.Rider{FirstName: "Erik", LastName: "Lund"}, 2)
		dupID := mustInsert(store, model.Rider{FirstName: "Erik", LastName: "Lund", BirthYear: 1990}, 3)
		pair := model.Pair{Canonical: canonID, Duplicate: dupID}
		e := newExecutor(store)

		Convey("When the pair is executed", func() {
			out := e.Execute(ctx, "run-1", model.StrategyExactName, pair)

			Convey("Then it commits and moves every result", func() {
				So(out.State, ShouldEqual, merge.StateCommitted)
				So(out.Err, ShouldBeNil)
				So(out.Moved, ShouldEqual, 3)

				results, err := store.ResultsByRider(ctx, canonID)
				So(err, ShouldBeNil)
				So(results, ShouldHaveLength, 5)
			})

			Convey("Then the duplicate is gone and its data backfilled", func() {
				_, err := store.GetRider(ctx, dupID)
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
				canon, err := store.GetRider(ctx, canonID)
				So(err, ShouldBeNil)
				So(canon.BirthYear, ShouldEqual, 1990)
			})

			Convey("Then an audit entry is written", func() {
				entries, err := store.MergeLog(ctx)
				So(err, ShouldBeNil)
				So(entries, ShouldResemble, []model.MergeLogEntry{{
					RunID: "run-1", CanonicalID: canonID, DuplicateID: dupID,
					Strategy: model.StrategyExactName, Moved: 3, MergedAt: fixedNow,
				}})
			})

			Convey("And executed again", func() {
				again := e.Execute(ctx, "run-2", model.StrategyExactName, pair)

				Convey("Then it is an already merged no-op", func() {
					So(again.State, ShouldEqual, merge.StateAlreadyMerged)
					So(again.Err, ShouldBeNil)
					n, _ := store.Count(ctx)
					So(n, ShouldEqual, 1)
				})
			})
		})

		Convey("When the canonical has disappeared", func() {
			out := e.Execute(ctx, "run-1", model.StrategyExactName, model.Pair{Canonical: 999, Duplicate: dupID})

			Convey("Then the pair rolls back with canonical_missing", func() {
				So(out.State, ShouldEqual, merge.StateRolledBack)
				So(out.Err.Kind, ShouldEqual, merge.KindCanonicalMissing)
				results, _ := store.ResultsByRider(ctx, dupID)
				So(results, ShouldHaveLength, 3)
			})
		})

		Convey("When canonical and duplicate are the same rider", func() {
			out := e.Execute(ctx, "run-1", model.StrategyExactName, model.Pair{Canonical: canonID, Duplicate: canonID})

			Convey("Then nothing happens", func() {
				So(out.State, ShouldEqual, merge.StateRolledBack)
				So(out.Err.Kind, ShouldEqual, merge.KindSelfMerge)
			})
		})

		Convey("When the batch context is already cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			out := e.Execute(cctx, "run-1", model.StrategyExactName, pair)

			Convey("Then the started pair still commits", func() {
				So(out.State, ShouldEqual, merge.StateCommitted)
			})
		})
	})
}

// failingStore injects a failure into one transaction step.
type failingStore struct {
	repository.Store
	failOn string
}

func (s *failingStore) WithinTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	return s.Store.WithinTx(ctx, func(tx repository.Tx) error {
		return fn(&failingTx{Tx: tx, failOn: s.failOn})
	})
}

type failingTx struct {
	repository.Tx
	failOn string
}

var errInjected = errors.New("injected failure")

func (t *failingTx) DeleteRider(ctx context.Context, id int64) error {
	if t.failOn == "delete" {
		return errInjected
	}
	return t.Tx.DeleteRider(ctx, id)
}

func (t *failingTx) RecordMerge(ctx context.Context, entry model.MergeLogEntry) error {
	if t.failOn == "audit" {
		return errInjected
	}
	if t.failOn == "slow" {
		<-ctx.Done()
		return ctx.Err()
	}
	return t.Tx.RecordMerge(ctx, entry)
}

func TestExecuteRollback(t *testing.T) {
	Convey("Given a store that fails part way through a merge", t, func() {
		ctx := context.Background()
		mem := repository.NewMemoryStore()
		canonID := mustInsert(mem, model.Rider{FirstName: "Ada", LastName: "Ek"}, 1)
		dupID := mustInsert(mem, model.Rider{FirstName: "Ada", LastName: "Ek", Email: "ada@ek.se"}, 2)
		pair := model.Pair{Canonical: canonID, Duplicate: dupID}

		for _, tc := range []struct {
			failOn string
			kind   string
		}{
			{"delete", merge.KindDelete},
			{"audit", merge.KindAudit},
		} {
			Convey("When the "+tc.failOn+" step fails", func() {
				e := newExecutor(&failingStore{Store: mem, failOn: tc.failOn})
				out := e.Execute(ctx, "run-1", model.StrategyExactName, pair)

				Convey("Then the pair rolls back with a typed error", func() {
					So(out.State, ShouldEqual, merge.StateRolledBack)
					So(out.Err.Kind, ShouldEqual, tc.kind)
					So(errors.Is(out.Err, errInjected), ShouldBeTrue)
					var txErr *merge.TransactionError
					So(errors.As(out.Err, &txErr), ShouldBeTrue)
					So(txErr.PairError().Pair, ShouldResemble, pair)
				})

				Convey("Then no partial change is visible", func() {
					dupResults, _ := mem.ResultsByRider(ctx, dupID)
					So(dupResults, ShouldHaveLength, 2)
					canon, _ := mem.GetRider(ctx, canonID)
					So(canon.Email, ShouldEqual, "")
					_, err := mem.GetRider(ctx, dupID)
					So(err, ShouldBeNil)
					entries, _ := mem.MergeLog(ctx)
					So(entries, ShouldBeEmpty)
				})
			})
		}

		Convey("When the transaction outlives the pair timeout", func() {
			e := newExecutor(&failingStore{Store: mem, failOn: "slow"}, merge.WithPairTimeout(20*time.Millisecond))
			out := e.Execute(ctx, "run-1", model.StrategyExactName, pair)

			Convey("Then it rolls back as a timeout", func() {
				So(out.State, ShouldEqual, merge.StateRolledBack)
				So(out.Err.Kind, ShouldEqual, merge.KindTimeout)
				dupResults, _ := mem.ResultsByRider(ctx, dupID)
				So(dupResults, ShouldHaveLength, 2)
			})
		})
	})
}

func TestExecuteSQLite(t *testing.T) {
	Convey("Given a SQLite store", t, func() {
		ctx := context.Background()
		store, err := repository.Open(ctx, repository.DriverSQLite, filepath.Join(t.TempDir(), "riders.db"))
		So(err, ShouldBeNil)
		defer func() { _ = store.Close() }()

		canonID := mustInsert(store, model.Rider{FirstName: "Ola", LastName: "Berg", NationalID: "NO19028844321"}, 1)
		dupID := mustInsert(store, model.Rider{FirstName: "Ola", LastName: "Bergh", NationalID: "NO-190288-44321", ClubID: 3}, 4)

		Convey("When merging the pair", func() {
			out := newExecutor(store).Execute(ctx, "run-sql", model.StrategyStrongID, model.Pair{Canonical: canonID, Duplicate: dupID})

			Convey("Then every result is owned by a live rider", func() {
				So(out.State, ShouldEqual, merge.StateCommitted)
				So(out.Moved, ShouldEqual, 4)
				results, err := store.ResultsByRider(ctx, canonID)
				So(err, ShouldBeNil)
				So(results, ShouldHaveLength, 5)
				canon, err := store.GetRider(ctx, canonID)
				So(err, ShouldBeNil)
				So(canon.ClubID, ShouldEqual, 3)
				So(canon.ResultCount, ShouldEqual, 5)
			})
		})
	})
}
