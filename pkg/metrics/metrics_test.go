package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManagerCreation(t *testing.T) {
	Convey("Given a fresh registry", t, func() {
		registry := prometheus.NewRegistry()

		Convey("When creating a manager with custom options", func() {
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("merge"),
				WithMetricPrefix("x_"),
				WithHistogramBuckets([]float64{1, 10, 100}),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then the options are applied", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "test")
				So(manager.subsystem, ShouldEqual, "merge")
				So(manager.histogramBuckets, ShouldResemble, []float64{1, 10, 100})
			})

			Convey("And collectors are registered under the prefixed names", func() {
				manager.mergesCommitted.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(names, ShouldContain, "test_merge_x_merges_committed_total")
			})
		})

		Convey("When empty option values are passed", func() {
			manager := NewManager(
				WithNamespace(""),
				WithSubsystem(""),
				WithHistogramBuckets(nil),
				WithPrometheusRegistry(registry),
			)

			Convey("Then defaults are kept", func() {
				So(manager.namespace, ShouldEqual, "ridermerge")
				So(manager.subsystem, ShouldEqual, "identity")
				So(manager.histogramBuckets, ShouldResemble, prometheus.DefBuckets)
			})
		})
	})
}

func TestIdentityMetrics(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When candidate groups are recorded", func() {
			before := testutil.ToFloat64(globalManager.groupsFound.WithLabelValues("strong_id"))
			RecordGroupsFound("strong_id", 3)

			Convey("Then the strategy counter grows by the group count", func() {
				So(testutil.ToFloat64(globalManager.groupsFound.WithLabelValues("strong_id")), ShouldEqual, before+3)
			})
		})

		Convey("When a merge commits", func() {
			merges := testutil.ToFloat64(globalManager.mergesCommitted)
			moved := testutil.ToFloat64(globalManager.referencesMoved)
			RecordMergeCommitted(7)

			Convey("Then merges and moved references are counted", func() {
				So(testutil.ToFloat64(globalManager.mergesCommitted), ShouldEqual, merges+1)
				So(testutil.ToFloat64(globalManager.referencesMoved), ShouldEqual, moved+7)
			})
		})

		Convey("When the remaining identity metrics are recorded", func() {
			So(func() {
				RecordConflictRejected("exact_name", "multiple_strong_ids")
				RecordReviewCandidate("phonetic")
				RecordRecordSkipped("phonetic")
				RecordMergeNoop()
				RecordMergeError("constraint")
				RecordPairMergeLatency(4.2)
				RecordBatchRun("completed", 1500*time.Millisecond)
				UpdateRidersTotal(120)
			}, ShouldNotPanic)

			Convey("Then gauges hold the last value", func() {
				So(testutil.ToFloat64(globalManager.ridersTotal), ShouldEqual, 120)
			})
		})
	})
}

func TestOperationalMetrics(t *testing.T) {
	Convey("Given operational metrics", t, func() {
		Convey("When queue and worker metrics are updated", func() {
			So(func() {
				UpdateQueueCapacity(64)
				UpdateQueueSize(3)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				UpdateWorkerActiveCount(2)
				RecordWorkerProcessingLatency(12)
				RecordWorkerError()
			}, ShouldNotPanic)

			Convey("Then gauges reflect the updates", func() {
				So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, 3)
				So(testutil.ToFloat64(globalManager.workerActiveCount), ShouldEqual, 2)
			})
		})

		Convey("When HTTP, repository, error and system metrics are recorded", func() {
			So(func() {
				RecordHTTPRequest("/merge/run", "POST", "200")
				RecordHTTPRequestDuration("/merge/run", "POST", "200", 35)
				RecordRepositoryUpdateLatency(1.5)
				RecordRepositoryQueryLatency(0.4)
				RecordErrorByComponent("merge", "timeout")
				RecordErrorByType("timeout", "error")
				RecordErrorByEndpoint("/merge/run", "POST", "conflict")
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(12)
			}, ShouldNotPanic)
		})
	})
}

func TestGetRegistry(t *testing.T) {
	Convey("Given the package registry", t, func() {
		registry := GetRegistry()

		Convey("Then it gathers the service metrics", func() {
			RecordMergeNoop()
			families, err := registry.Gather()
			So(err, ShouldBeNil)
			So(len(families), ShouldBeGreaterThan, 0)
		})
	})
}
