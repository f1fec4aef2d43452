package service_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/flock"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/ridermerge/internal/adapters/repository"
	service "github.com/okian/ridermerge/internal/app"
	"github.com/okian/ridermerge/internal/domain/model"
)

func TestService_New(t *testing.T) {
	Convey("Given a new service with custom options", t, func() {
		store := repository.NewMemoryStore()
		svc := service.New(store,
			service.WithWorkerCount(4),
			service.WithQueueSize(16),
			service.WithStrongIDMinLength(8),
			service.WithMergeTimeout(time.Second),
			service.WithAutoMergeStrategies(model.StrategyStrongID, "bogus", model.StrategyStrongID),
		)
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		Convey("Then stats reflect the configuration", func() {
			stats := svc.GetStats(ctx)
			So(stats["started"], ShouldEqual, true)
			So(stats["worker_count"], ShouldEqual, 4)
			So(stats["strong_id_min_length"], ShouldEqual, 8)
			So(stats["merge_timeout_ms"], ShouldEqual, int64(1000))
			So(stats["auto_merge"], ShouldResemble, []model.Strategy{model.StrategyStrongID})
			So(stats["riders"], ShouldEqual, 0)
		})

		Convey("Then there is no report before the first batch", func() {
			_, err := svc.LastReport()
			So(errors.Is(err, service.ErrNoReport), ShouldBeTrue)
		})
	})
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a service that was never started", t, func() {
		svc := service.New(repository.NewMemoryStore())
		ctx := context.Background()

		Convey("When running a batch", func() {
			_, err := svc.RunBatch(ctx, service.BatchOptions{})

			Convey("Then it is refused", func() {
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			})
		})

		Convey("When started twice and stopped", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Stop(ctx), ShouldBeNil)

			Convey("Then later batches are refused", func() {
				_, err := svc.RunBatch(ctx, service.BatchOptions{})
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			})
		})
	})
}

func TestService_BatchLock(t *testing.T) {
	Convey("Given another process holding the batch lock", t, func() {
		path := filepath.Join(t.TempDir(), "locks", "ridermerge.lock")
		svc := service.New(repository.NewMemoryStore(), service.WithLockPath(path))
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)

		Convey("When the lock is held", func() {
			// First run creates the lock directory.
			_, err := svc.RunBatch(ctx, service.BatchOptions{})
			So(err, ShouldBeNil)

			other := flock.New(path)
			ok, err := other.TryLock()
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			defer func() { _ = other.Unlock() }()

			_, err = svc.RunBatch(ctx, service.BatchOptions{})

			Convey("Then the batch is refused", func() {
				So(errors.Is(err, service.ErrBatchRunning), ShouldBeTrue)
			})
		})

		Convey("When the lock is free", func() {
			report, err := svc.RunBatch(ctx, service.BatchOptions{})

			Convey("Then the batch runs and is remembered", func() {
				So(err, ShouldBeNil)
				last, err := svc.LastReport()
				So(err, ShouldBeNil)
				So(last.RunID, ShouldEqual, report.RunID)
				So(svc.GetStats(ctx)["last_run_id"], ShouldEqual, report.RunID)
			})
		})
	})
}
