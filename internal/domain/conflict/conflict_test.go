package conflict_test

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/ridermerge/internal/domain/conflict"
	"github.com/okian/ridermerge/internal/domain/model"
	"github.com/okian/ridermerge/internal/domain/normalize"
)

func group(strategy model.Strategy, riders ...model.Rider) model.Group {
	return model.Group{Strategy: strategy, Key: "K", Riders: riders}
}

func TestDetector(t *testing.T) {
	Convey("Given a detector with default rules", t, func() {
		d := conflict.New(normalize.New())

		Convey("When members carry two different strong ids", func() {
			g := group(model.StrategyExactName,
				model.Rider{ID: 1, NationalID: "SE198503121234"},
				model.Rider{ID: 2, NationalID: "NO-190288-44321"},
			)
			c, ok := d.Check(g)

			Convey("Then the group is rejected with both ids", func() {
				So(ok, ShouldBeFalse)
				So(c.Reason, ShouldEqual, conflict.ReasonMultipleStrongIDs)
				So(c.RiderIDs, ShouldResemble, []int64{1, 2})
				So(c.StrongIDs, ShouldResemble, []string{"NO19028844321", "SE198503121234"})
				So(c.Strategy, ShouldEqual, model.StrategyExactName)
			})
		})

		Convey("When members share one strong id in different formats", func() {
			g := group(model.StrategyPhonetic,
				model.Rider{ID: 1, NationalID: "SE 19850312 1234"},
				model.Rider{ID: 2, NationalID: "se198503121234"},
				model.Rider{ID: 3},
			)
			_, ok := d.Check(g)

			Convey("Then the group is confirmed", func() {
				So(ok, ShouldBeTrue)
			})
		})

		Convey("When the differing ids are weak", func() {
			g := group(model.StrategyExactName,
				model.Rider{ID: 1, NationalID: "12345"},
				model.Rider{ID: 2, NationalID: "99999"},
			)
			_, ok := d.Check(g)

			Convey("Then they do not count as a conflict", func() {
				So(ok, ShouldBeTrue)
			})
		})

		Convey("When partitioning a mix", func() {
			good := group(model.StrategyExactName, model.Rider{ID: 5}, model.Rider{ID: 6})
			bad := group(model.StrategyExactName,
				model.Rider{ID: 1, NationalID: "AAAAAAAAAA"},
				model.Rider{ID: 2, NationalID: "BBBBBBBBBB"},
			)
			confirmed, rejected := d.Partition([]model.Group{bad, good})

			Convey("Then each group lands on one side", func() {
				So(confirmed, ShouldHaveLength, 1)
				So(confirmed[0].IDs(), ShouldResemble, []int64{5, 6})
				So(rejected, ShouldHaveLength, 1)
				So(rejected[0].RiderIDs, ShouldResemble, []int64{1, 2})
			})
		})
	})

	Convey("Given keep apart overrides", t, func() {
		d := conflict.New(normalize.New(), conflict.WithKeepApart([][]int64{{9, 3}, {7}}))

		Convey("When a group holds both ids of a set", func() {
			c, ok := d.Check(group(model.StrategyStrongID,
				model.Rider{ID: 3, NationalID: "SE198503121234"},
				model.Rider{ID: 4, NationalID: "SE198503121234"},
				model.Rider{ID: 9, NationalID: "SE198503121234"},
			))

			Convey("Then it is rejected naming the pair", func() {
				So(ok, ShouldBeFalse)
				So(c.Reason, ShouldEqual, conflict.ReasonKeepApart)
				So(c.RiderIDs, ShouldResemble, []int64{3, 9})
			})
		})

		Convey("When a group holds only one id of a set", func() {
			_, ok := d.Check(group(model.StrategyExactName, model.Rider{ID: 3}, model.Rider{ID: 7}))

			Convey("Then it is confirmed", func() {
				So(ok, ShouldBeTrue)
			})
		})
	})
}
