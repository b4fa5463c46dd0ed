// Package metrics provides Prometheus metrics for the airscore service.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns the Prometheus collectors of the service.
type Manager struct {
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Ingestion
	batchesIngested  prometheus.Counter
	batchesDuplicate prometheus.Counter
	batchesRejected  prometheus.Counter
	rowsAccepted     prometheus.Counter
	rowsDropped      *prometheus.CounterVec

	// Scoring
	scoringRuns     *prometheus.CounterVec
	scoringErrors   prometheus.Counter
	scoringDuration prometheus.Histogram
	providersRanked prometheus.Gauge
	nodesScored     prometheus.Gauge
	recordLogSize   prometheus.Gauge

	// Operational
	queueSize   prometheus.Gauge
	workerCount prometheus.Gauge

	// System
	memoryUsage    prometheus.Gauge
	goroutineCount prometheus.Gauge
	gcPauseTime    prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

// Every metric is named airscore_ranking_<name>.
const (
	namespace = "airscore"
	subsystem = "ranking"
)

// DurationBucketsMS spans 0.5ms to about 16s. Both duration histograms
// observe milliseconds.
var DurationBucketsMS = prometheus.ExponentialBuckets(0.5, 2, 16) //nolint:gochecknoglobals // bucket layout

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(
		WithPrometheusRegistry(customRegistry),
		WithHistogramBuckets(DurationBucketsMS),
	)
}

// NewManager creates a metrics manager. Collectors are registered on the
// configured registry (the default Prometheus registerer when none is given).
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		histogramBuckets: DurationBucketsMS,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	})
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.batchesIngested = m.counter("batches_ingested_total", "Batches accepted into the record log")
	m.batchesDuplicate = m.counter("batches_duplicate_total", "Batches ignored because their id was already seen")
	m.batchesRejected = m.counter("batches_rejected_total", "Batches where validation dropped every row")
	m.rowsAccepted = m.counter("rows_accepted_total", "Rows converted into measurement records")
	m.rowsDropped = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "rows_dropped_total",
		Help:      "Rows dropped during validation by reason",
	}, []string{"reason"})

	m.scoringRuns = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "scoring_runs_total",
		Help:      "Completed scoring runs by mode",
	}, []string{"mode"})
	m.scoringErrors = m.counter("scoring_errors_total", "Scoring runs that failed to load their input")
	m.scoringDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "scoring_duration_milliseconds",
		Help:      "Duration of a scoring run in milliseconds",
		Buckets:   m.histogramBuckets,
	})
	m.providersRanked = m.gauge("providers_ranked", "Providers in the latest ranking")
	m.nodesScored = m.gauge("nodes_scored", "Nodes scored in the latest run")
	m.recordLogSize = m.gauge("record_log_size", "Measurement records held in memory")

	m.queueSize = m.gauge("queue_size", "Batches waiting in the ingest queue")
	m.workerCount = m.gauge("worker_count", "Running ingest workers")

	m.memoryUsage = m.gauge("system_memory_usage_bytes", "Heap bytes allocated")
	m.goroutineCount = m.gauge("system_goroutines", "Running goroutines")
	m.gcPauseTime = m.gauge("system_gc_pause_milliseconds", "Average GC pause in milliseconds")

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "http_requests_total",
		Help:      "HTTP requests by endpoint, method and status code",
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})
}

// RecordBatchIngested increments the ingested batches counter.
func RecordBatchIngested() { globalManager.batchesIngested.Inc() }

// RecordBatchDuplicate increments the duplicate batches counter.
func RecordBatchDuplicate() { globalManager.batchesDuplicate.Inc() }

// RecordBatchRejected increments the rejected batches counter.
func RecordBatchRejected() { globalManager.batchesRejected.Inc() }

// RecordRowsAccepted adds n accepted rows.
func RecordRowsAccepted(n int) { globalManager.rowsAccepted.Add(float64(n)) }

// RecordRowDropped counts one dropped row under reason.
func RecordRowDropped(reason string) { globalManager.rowsDropped.WithLabelValues(reason).Inc() }

// RecordScoringRun records a finished run of the given mode and its duration.
func RecordScoringRun(mode string, durationMs float64) {
	globalManager.scoringRuns.WithLabelValues(mode).Inc()
	globalManager.scoringDuration.Observe(durationMs)
}

// RecordScoringError increments the scoring errors counter.
func RecordScoringError() { globalManager.scoringErrors.Inc() }

// UpdateProvidersRanked sets the number of ranked providers.
func UpdateProvidersRanked(n int) { globalManager.providersRanked.Set(float64(n)) }

// UpdateNodesScored sets the number of scored nodes.
func UpdateNodesScored(n int) { globalManager.nodesScored.Set(float64(n)) }

// UpdateRecordLogSize sets the number of records held in memory.
func UpdateRecordLogSize(n int) { globalManager.recordLogSize.Set(float64(n)) }

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// UpdateSystemMemoryUsage sets the allocated heap size.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.memoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(n int) { globalManager.goroutineCount.Set(float64(n)) }

// RecordSystemGCPauseTime sets the average GC pause.
func RecordSystemGCPauseTime(ms float64) { globalManager.gcPauseTime.Set(ms) }

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Families returns the names of the metric families currently gathered
// from the custom registry.
func Families() ([]string, error) {
	mfs, err := customRegistry.Gather()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGatherFailed, err)
	}
	names := make([]string, 0, len(mfs))
	for _, mf := range mfs {
		names = append(names, mf.GetName())
	}
	return names, nil
}
