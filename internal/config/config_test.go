package config_test

import (
	"testing"
	"time"

	"github.com/okian/ridermerge/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.DBDriver, convey.ShouldEqual, "sqlite")
			convey.So(cfg.StrongIDMinLength, convey.ShouldEqual, 10)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, 2)
			convey.So(cfg.MergeTimeout(), convey.ShouldEqual, 5*time.Second)
			convey.So(cfg.AutoMergeStrategies, convey.ShouldResemble, []string{"strong_id", "exact_name"})
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Strategies(t *testing.T) {
	convey.Convey("Given strategies written as one comma separated entry", t, func() {
		cfg := config.New()
		cfg.AutoMergeStrategies = []string{" Strong_ID , exact_name,", "phonetic"}

		convey.Convey("Then they are split, trimmed and lowercased", func() {
			convey.So(cfg.Strategies(), convey.ShouldResemble, []string{"strong_id", "exact_name", "phonetic"})
		})
	})
}
