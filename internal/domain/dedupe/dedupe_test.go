package dedupe_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/ridermerge/internal/domain/dedupe"
)

func TestTracker(t *testing.T) {
	Convey("Given a new tracker", t, func() {
		ctx := context.Background()
		c := dedupe.NewTracker(dedupe.WithCapacityHint(8))

		Convey("Then it starts empty", func() {
			So(c.Size(), ShouldEqual, 0)
		})

		Convey("When an id is claimed twice", func() {
			first := c.Claim(ctx, 42)
			second := c.Claim(ctx, 42)

			Convey("Then only the first claim succeeds", func() {
				So(first, ShouldBeFalse)
				So(second, ShouldBeTrue)
				So(c.Size(), ShouldEqual, 1)
			})
		})

		Convey("When a claim is released", func() {
			c.Claim(ctx, 7)
			c.Release(ctx, 7)

			Convey("Then the id can be claimed again", func() {
				So(c.Size(), ShouldEqual, 0)
				So(c.Claim(ctx, 7), ShouldBeFalse)
			})
		})

		Convey("When releasing an unknown id", func() {
			c.Release(ctx, 99)

			Convey("Then nothing changes", func() {
				So(c.Size(), ShouldEqual, 0)
			})
		})
	})
}

func TestTrackerConcurrentClaims(t *testing.T) {
	Convey("Given many goroutines racing for the same ids", t, func() {
		ctx := context.Background()
		c := dedupe.NewTracker()
		var wins atomic.Int64
		var wg sync.WaitGroup

		for range 16 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for id := int64(1); id <= 100; id++ {
					if !c.Claim(ctx, id) {
						wins.Add(1)
					}
				}
			}()
		}
		wg.Wait()

		Convey("Then each id is won exactly once", func() {
			So(wins.Load(), ShouldEqual, 100)
			So(c.Size(), ShouldEqual, 100)
		})
	})
}
