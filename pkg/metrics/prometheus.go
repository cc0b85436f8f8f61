// Package metrics provides Prometheus metrics for the diarisk inference service.
package metrics

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values shared by callers.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Manager manages all Prometheus metrics for the diarisk service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Inference
	predictions       *prometheus.CounterVec
	predictionErrors  *prometheus.CounterVec
	predictionLatency prometheus.Histogram

	// Artifact lifecycle
	modelLoads           *prometheus.CounterVec
	modelInfo            *prometheus.GaugeVec
	modelLoadedTimestamp prometheus.Gauge

	// Batch queue
	queueCapacity    prometheus.Gauge
	queueSize        prometheus.Gauge
	queueUtilization prometheus.Gauge
	queueEnqueued    prometheus.Counter
	queueDequeued    prometheus.Counter
	queueRejected    *prometheus.CounterVec
	queueWaitLatency prometheus.Histogram

	// Batch workers
	workerCount             prometheus.Gauge
	workerBusy              prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	batchJobs               *prometheus.CounterVec
	batchSize               prometheus.Histogram

	// History repository
	historyWrites  *prometheus.CounterVec
	historyRecords prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// defaultLatencyBuckets are in milliseconds; a single prediction is sub-millisecond.
var defaultLatencyBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 1000}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "diarisk",
		subsystem:        "inference",
		histogramBuckets: defaultLatencyBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets, ConstLabels: m.constLabels}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.predictions = auto.NewCounterVec(m.counterOpts("predictions_total",
		"Total number of successful predictions by risk level"), []string{"risk_level"})
	m.predictionErrors = auto.NewCounterVec(m.counterOpts("prediction_errors_total",
		"Total number of rejected predictions by error kind"), []string{"kind"})
	m.predictionLatency = auto.NewHistogram(m.histogramOpts("prediction_latency_milliseconds",
		"Histogram of single prediction latency in milliseconds", m.histogramBuckets))

	m.modelLoads = auto.NewCounterVec(m.counterOpts("model_loads_total",
		"Total number of artifact load attempts by result"), []string{"result"})
	m.modelInfo = auto.NewGaugeVec(m.gaugeOpts("model_info",
		"Set to 1 for the model type currently serving"), []string{"model_type"})
	m.modelLoadedTimestamp = auto.NewGauge(m.gaugeOpts("model_loaded_timestamp_seconds",
		"Unix time the serving artifact was loaded"))

	m.queueCapacity = auto.NewGauge(m.gaugeOpts("batch_queue_capacity", "Maximum batch queue capacity"))
	m.queueSize = auto.NewGauge(m.gaugeOpts("batch_queue_size", "Current number of queued batch jobs"))
	m.queueUtilization = auto.NewGauge(m.gaugeOpts("batch_queue_utilization_ratio", "Batch queue size divided by capacity"))
	m.queueEnqueued = auto.NewCounter(m.counterOpts("batch_queue_enqueued_total", "Total number of jobs enqueued"))
	m.queueDequeued = auto.NewCounter(m.counterOpts("batch_queue_dequeued_total", "Total number of jobs dequeued"))
	m.queueRejected = auto.NewCounterVec(m.counterOpts("batch_queue_rejected_total",
		"Total number of jobs rejected by the queue by reason"), []string{"reason"})
	m.queueWaitLatency = auto.NewHistogram(m.histogramOpts("batch_queue_wait_milliseconds",
		"Time a job spent queued before a worker picked it up", m.histogramBuckets))

	m.workerCount = auto.NewGauge(m.gaugeOpts("batch_workers", "Number of batch workers"))
	m.workerBusy = auto.NewGauge(m.gaugeOpts("batch_workers_busy", "Number of batch workers currently processing a job"))
	m.workerProcessingLatency = auto.NewHistogram(m.histogramOpts("batch_job_latency_milliseconds",
		"Worker processing latency per job in milliseconds", m.histogramBuckets))
	m.batchJobs = auto.NewCounterVec(m.counterOpts("batch_jobs_total",
		"Total number of batch jobs processed by result"), []string{"result"})
	m.batchSize = auto.NewHistogram(m.histogramOpts("batch_size_records",
		"Number of records per batch request", prometheus.ExponentialBuckets(1, 2, 12)))

	m.historyWrites = auto.NewCounterVec(m.counterOpts("history_writes_total",
		"Total number of prediction history writes by result"), []string{"result"})
	m.historyRecords = auto.NewGauge(m.gaugeOpts("history_records", "Number of stored prediction history records"))

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total",
		"Total number of HTTP requests"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", m.histogramBuckets), []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = auto.NewCounterVec(m.counterOpts("errors_total",
		"Total number of errors by component and type"), []string{"component", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_bytes", "Heap memory in use in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutines", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts("system_gc_pause_milliseconds",
		"Most recent GC pause time in milliseconds", m.histogramBuckets))
}

// RecordPrediction increments the prediction counter for a risk level.
func RecordPrediction(riskLevel string) {
	globalManager.predictions.WithLabelValues(riskLevel).Inc()
}

// RecordPredictionError increments the rejected prediction counter for an error kind.
func RecordPredictionError(kind string) {
	globalManager.predictionErrors.WithLabelValues(kind).Inc()
}

// RecordPredictionLatency records single prediction latency in milliseconds.
func RecordPredictionLatency(latencyMs float64) {
	globalManager.predictionLatency.Observe(latencyMs)
}

// RecordModelLoad counts an artifact load attempt.
func RecordModelLoad(result string) {
	globalManager.modelLoads.WithLabelValues(result).Inc()
}

// UpdateModelInfo marks modelType as the serving model.
func UpdateModelInfo(modelType string, loadedAt time.Time) {
	globalManager.modelInfo.Reset()
	globalManager.modelInfo.WithLabelValues(modelType).Set(1)
	globalManager.modelLoadedTimestamp.Set(float64(loadedAt.Unix()))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueSize sets the current queue size and utilization.
func UpdateQueueSize(size, capacity int) {
	globalManager.queueSize.Set(float64(size))
	if capacity > 0 {
		globalManager.queueUtilization.Set(float64(size) / float64(capacity))
	}
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueRejected counts a job the queue refused.
func RecordQueueRejected(reason string) {
	globalManager.queueRejected.WithLabelValues(reason).Inc()
}

// RecordQueueWaitLatency records how long a job waited in the queue.
func RecordQueueWaitLatency(latencyMs float64) {
	globalManager.queueWaitLatency.Observe(latencyMs)
}

// UpdateWorkerCount sets the number of batch workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// AddWorkerBusy adjusts the busy worker gauge by delta.
func AddWorkerBusy(delta int) {
	globalManager.workerBusy.Add(float64(delta))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordBatchJob counts a processed batch job.
func RecordBatchJob(result string) {
	globalManager.batchJobs.WithLabelValues(result).Inc()
}

// RecordBatchSize records the number of records in a batch request.
func RecordBatchSize(n int) {
	globalManager.batchSize.Observe(float64(n))
}

// RecordHistoryWrite counts a history write.
func RecordHistoryWrite(result string) {
	globalManager.historyWrites.WithLabelValues(result).Inc()
}

// UpdateHistoryRecords sets the stored history record count.
func UpdateHistoryRecords(count int) {
	globalManager.historyRecords.Set(float64(count))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// CollectSystemMetrics samples the runtime and updates the system gauges.
func CollectSystemMetrics() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	UpdateSystemMemoryUsage(ms.HeapAlloc)
	UpdateSystemGoroutineCount(runtime.NumGoroutine())
	if ms.NumGC > 0 {
		last := ms.PauseNs[(ms.NumGC+255)%256]
		RecordSystemGCPauseTime(float64(last) / float64(time.Millisecond))
	}
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
