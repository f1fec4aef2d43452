// Package metrics provides Prometheus metrics for the rider merge service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Identity resolution
	groupsFound       *prometheus.CounterVec
	conflictsRejected *prometheus.CounterVec
	reviewCandidates  *prometheus.CounterVec
	recordsSkipped    *prometheus.CounterVec

	// Merge execution
	mergesCommitted  prometheus.Counter
	mergesNoop       prometheus.Counter
	mergeErrors      *prometheus.CounterVec
	referencesMoved  prometheus.Counter
	pairMergeLatency prometheus.Histogram

	// Batch runs
	batchRuns     *prometheus.CounterVec
	batchDuration prometheus.Histogram
	ridersTotal   prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Repository
	repositoryUpdateLatency prometheus.Histogram
	repositoryQueryLatency  prometheus.Histogram

	// Job queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueueRate   prometheus.Counter
	queueDequeueRate   prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Workers
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrorRate         prometheus.Counter

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "ridermerge",
		subsystem:        "identity",
		histogramBuckets: prometheus.DefBuckets,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) name(n string) string {
	return m.metricPrefix + n
}

func (m *Manager) counter(auto promauto.Factory, name, help string) prometheus.Counter {
	return auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) counterVec(auto promauto.Factory, name, help string, labels ...string) *prometheus.CounterVec {
	return auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) gauge(auto promauto.Factory, name, help string) prometheus.Gauge {
	return auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(auto promauto.Factory, name, help string) prometheus.Histogram {
	return auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.customLabels,
		Buckets: m.histogramBuckets,
	})
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.groupsFound = m.counterVec(auto, "candidate_groups_total", "Candidate groups found by blocking strategy", "strategy")
	m.conflictsRejected = m.counterVec(auto, "conflicts_rejected_total", "Candidate groups rejected because members cannot be one rider", "strategy", "reason")
	m.reviewCandidates = m.counterVec(auto, "review_candidates_total", "Confirmed groups left for manual review", "strategy")
	m.recordsSkipped = m.counterVec(auto, "records_skipped_total", "Riders skipped by a strategy because of invalid input", "strategy")

	m.mergesCommitted = m.counter(auto, "merges_committed_total", "Duplicate riders merged into a canonical rider")
	m.mergesNoop = m.counter(auto, "merges_already_applied_total", "Merge pairs whose duplicate no longer existed")
	m.mergeErrors = m.counterVec(auto, "merge_errors_total", "Merge pairs rolled back by error kind", "kind")
	m.referencesMoved = m.counter(auto, "references_moved_total", "Dependent records repointed to a canonical rider")
	m.pairMergeLatency = m.histogram(auto, "pair_merge_latency_milliseconds", "Latency of one merge transaction in milliseconds")

	m.batchRuns = m.counterVec(auto, "batch_runs_total", "Batch runs by outcome", "outcome")
	m.batchDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("batch_duration_seconds"),
		Help:        "Wall time of one batch run in seconds",
		ConstLabels: m.customLabels,
		Buckets:     []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900},
	})
	m.ridersTotal = m.gauge(auto, "riders_total", "Live riders after the last batch")

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("http_requests_total"),
			Help:        "Total number of HTTP requests by endpoint and method",
			ConstLabels: m.customLabels,
		},
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("http_request_duration_milliseconds"),
			Help:        "HTTP request duration in milliseconds",
			ConstLabels: m.customLabels,
			Buckets:     m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.repositoryUpdateLatency = m.histogram(auto, "repository_update_latency_milliseconds", "Repository write latency in milliseconds")
	m.repositoryQueryLatency = m.histogram(auto, "repository_query_latency_milliseconds", "Repository read latency in milliseconds")

	m.queueSize = m.gauge(auto, "queue_size", "Merge jobs waiting in the queue")
	m.queueCapacity = m.gauge(auto, "queue_capacity", "Capacity of the merge job queue")
	m.queueEnqueueRate = m.counter(auto, "queue_enqueue_total", "Merge jobs enqueued")
	m.queueDequeueRate = m.counter(auto, "queue_dequeue_total", "Merge jobs dequeued")
	m.queueEnqueueErrors = m.counter(auto, "queue_enqueue_errors_total", "Merge jobs rejected by the queue")

	m.workerActiveCount = m.gauge(auto, "worker_active_count", "Merge workers running")
	m.workerProcessingLatency = m.histogram(auto, "worker_processing_latency_milliseconds", "Time a worker spends on one merge job")
	m.workerErrorRate = m.counter(auto, "worker_errors_total", "Merge jobs that finished with at least one failed pair")

	m.errorRateByComponent = m.counterVec(auto, "errors_by_component_total", "Total number of errors by component", "component", "error_type")
	m.errorRateByType = m.counterVec(auto, "errors_by_type_total", "Total number of errors by type", "error_type", "severity")
	m.errorRateByEndpoint = m.counterVec(auto, "errors_by_endpoint_total", "Total number of errors by endpoint", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge(auto, "system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge(auto, "system_goroutine_count", "Number of goroutines")
}

// Identity resolution.

// RecordGroupsFound adds n candidate groups for a strategy.
func RecordGroupsFound(strategy string, n int) {
	globalManager.groupsFound.WithLabelValues(strategy).Add(float64(n))
}

// RecordConflictRejected counts one rejected candidate group.
func RecordConflictRejected(strategy, reason string) {
	globalManager.conflictsRejected.WithLabelValues(strategy, reason).Inc()
}

// RecordReviewCandidate counts one group left for manual review.
func RecordReviewCandidate(strategy string) {
	globalManager.reviewCandidates.WithLabelValues(strategy).Inc()
}

// RecordRecordSkipped counts one rider skipped by a strategy.
func RecordRecordSkipped(strategy string) {
	globalManager.recordsSkipped.WithLabelValues(strategy).Inc()
}

// Merge execution.

// RecordMergeCommitted counts one committed merge and the records it moved.
func RecordMergeCommitted(moved int64) {
	globalManager.mergesCommitted.Inc()
	globalManager.referencesMoved.Add(float64(moved))
}

// RecordMergeNoop counts one pair whose duplicate was already gone.
func RecordMergeNoop() {
	globalManager.mergesNoop.Inc()
}

// RecordMergeError counts one rolled back pair.
func RecordMergeError(kind string) {
	globalManager.mergeErrors.WithLabelValues(kind).Inc()
}

// RecordPairMergeLatency records the latency of one merge transaction.
func RecordPairMergeLatency(latencyMs float64) {
	globalManager.pairMergeLatency.Observe(latencyMs)
}

// Batch runs.

// RecordBatchRun counts a finished batch and observes its duration.
func RecordBatchRun(outcome string, duration time.Duration) {
	globalManager.batchRuns.WithLabelValues(outcome).Inc()
	globalManager.batchDuration.Observe(duration.Seconds())
}

// UpdateRidersTotal sets the live rider count.
func UpdateRidersTotal(count int) {
	globalManager.ridersTotal.Set(float64(count))
}

// HTTP.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Repository.

// RecordRepositoryUpdateLatency records repository write latency.
func RecordRepositoryUpdateLatency(latencyMs float64) {
	globalManager.repositoryUpdateLatency.Observe(latencyMs)
}

// RecordRepositoryQueryLatency records repository read latency.
func RecordRepositoryQueryLatency(latencyMs float64) {
	globalManager.repositoryQueryLatency.Observe(latencyMs)
}

// Queue.

// UpdateQueueSize sets the number of queued jobs.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueueRate.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueRate.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// Workers.

// UpdateWorkerActiveCount sets the number of active workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records how long a worker spent on one job.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrorRate.Inc()
}

// Errors.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
