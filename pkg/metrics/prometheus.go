// Package metrics provides Prometheus metrics for the shotlab analysis service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// defaultLatencyBuckets are in milliseconds; vision calls routinely take seconds.
var defaultLatencyBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000} //nolint:gochecknoglobals // constant bucket layout

// defaultProviderBuckets cover remote model calls, up to two provider timeouts.
var defaultProviderBuckets = []float64{100, 250, 500, 1000, 2500, 5000, 10000, 20000, 30000, 45000, 60000} //nolint:gochecknoglobals // constant bucket layout

// Manager manages all Prometheus metrics for the shotlab service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	providerBuckets  []float64
	registry         prometheus.Registerer

	// Pipeline
	analysesProcessed    prometheus.Counter
	analysesFailed       *prometheus.CounterVec
	analysisLatency      prometheus.Histogram
	angleMeasurements    *prometheus.CounterVec
	phaseClassifications *prometheus.CounterVec
	similarityMatches    prometheus.Histogram
	batchSize            prometheus.Histogram

	// Vision providers
	visionCalls     *prometheus.CounterVec
	visionLatency   *prometheus.HistogramVec
	visionFallbacks prometheus.Counter
	visionExhausted prometheus.Counter

	// Keypoint provider
	keypointRequests *prometheus.CounterVec
	keypointLatency  prometheus.Histogram

	// Queue
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueueTotal      prometheus.Counter
	queueDequeueTotal      prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Workers
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerIdleCount         prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

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

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "shotlab",
		subsystem:        "analysis",
		histogramBuckets: defaultLatencyBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		providerBuckets:  defaultProviderBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// RefreshInterval is how often gauge-style system metrics should be sampled.
func (m *Manager) RefreshInterval() time.Duration { return m.refreshInterval }

// Enabled reports whether recording is active.
func (m *Manager) Enabled() bool { return m.enabled }

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
		Buckets:   m.histogramBuckets,
	}
}

func (m *Manager) providerHistogramOpts(name, help string) prometheus.HistogramOpts {
	opts := m.histogramOpts(name, help)
	opts.Buckets = m.providerBuckets
	return opts
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.analysesProcessed = auto.NewCounter(m.counterOpts(
		"analyses_processed_total", "Total number of shot analyses that produced a report"))
	m.analysesFailed = auto.NewCounterVec(m.counterOpts(
		"analyses_failed_total", "Total number of shot analyses rejected or failed, by reason"),
		[]string{"reason"})
	m.analysisLatency = auto.NewHistogram(m.histogramOpts(
		"analysis_latency_milliseconds", "End-to-end analysis latency in milliseconds"))
	m.angleMeasurements = auto.NewCounterVec(m.counterOpts(
		"angle_measurements_total", "Angle measurements by angle name and status"),
		[]string{"angle", "status"})
	m.phaseClassifications = auto.NewCounterVec(m.counterOpts(
		"phase_classifications_total", "Shot phase classifications by phase"),
		[]string{"phase"})
	m.similarityMatches = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "similarity_matches",
		Help:      "Number of professional matches returned per analysis",
		Buckets:   prometheus.LinearBuckets(0, 1, 11),
	})
	m.batchSize = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "batch_size",
		Help:      "Number of jobs per batch request",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
	})

	m.visionCalls = auto.NewCounterVec(m.counterOpts(
		"vision_calls_total", "Vision provider calls by provider and outcome"),
		[]string{"provider", "outcome"})
	m.visionLatency = auto.NewHistogramVec(m.providerHistogramOpts(
		"vision_latency_milliseconds", "Vision provider call latency in milliseconds"),
		[]string{"provider"})
	m.visionFallbacks = auto.NewCounter(m.counterOpts(
		"vision_fallbacks_total", "Number of analyses answered by the fallback provider"))
	m.visionExhausted = auto.NewCounter(m.counterOpts(
		"vision_exhausted_total", "Number of analyses where every vision provider failed"))

	m.keypointRequests = auto.NewCounterVec(m.counterOpts(
		"keypoint_requests_total", "Keypoint provider requests by outcome"),
		[]string{"outcome"})
	m.keypointLatency = auto.NewHistogram(m.providerHistogramOpts(
		"keypoint_latency_milliseconds", "Keypoint provider latency in milliseconds"))

	m.queueSize = auto.NewGauge(m.gaugeOpts(
		"queue_size", "Current number of queued analysis jobs"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts(
		"queue_capacity", "Maximum queue capacity"))
	m.queueUtilization = auto.NewGauge(m.gaugeOpts(
		"queue_utilization_ratio", "Queue utilization ratio (current size / capacity)"))
	m.queueEnqueueTotal = auto.NewCounter(m.counterOpts(
		"queue_enqueue_total", "Total number of jobs enqueued"))
	m.queueDequeueTotal = auto.NewCounter(m.counterOpts(
		"queue_dequeue_total", "Total number of jobs dequeued"))
	m.queueEnqueueErrors = auto.NewCounter(m.counterOpts(
		"queue_enqueue_errors_total", "Total number of rejected enqueue attempts"))
	m.queueProcessingLatency = auto.NewHistogram(m.histogramOpts(
		"queue_processing_latency_milliseconds", "Time a job spent waiting in the queue in milliseconds"))

	m.workerCount = auto.NewGauge(m.gaugeOpts(
		"worker_count", "Configured number of workers"))
	m.workerActiveCount = auto.NewGauge(m.gaugeOpts(
		"worker_active_count", "Workers currently running a job"))
	m.workerIdleCount = auto.NewGauge(m.gaugeOpts(
		"worker_idle_count", "Workers currently waiting for a job"))
	m.workerProcessingLatency = auto.NewHistogram(m.histogramOpts(
		"worker_processing_latency_milliseconds", "Per-job worker processing latency in milliseconds"))
	m.workerErrors = auto.NewCounter(m.counterOpts(
		"worker_errors_total", "Total number of jobs that finished with an error"))

	m.httpRequests = auto.NewCounterVec(m.counterOpts(
		"http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts(
		"http_request_duration_milliseconds", "HTTP request duration in milliseconds"),
		[]string{"endpoint", "method", "status_code"})

	m.errorsByComponent = auto.NewCounterVec(m.counterOpts(
		"errors_total", "Errors by component and type"),
		[]string{"component", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts(
		"system_memory_bytes", "Heap memory in use in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts(
		"system_goroutines", "Current number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_gc_pause_milliseconds",
		Help:      "Most recent GC pause in milliseconds",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 50},
	})
}

// Pipeline metrics.

// RecordAnalysisProcessed counts a completed analysis and its latency.
func (m *Manager) RecordAnalysisProcessed(latencyMs float64) {
	if !m.enabled {
		return
	}
	m.analysesProcessed.Inc()
	m.analysisLatency.Observe(latencyMs)
}

// RecordAnalysisFailed counts a rejected or failed analysis.
func (m *Manager) RecordAnalysisFailed(reason string) {
	if !m.enabled {
		return
	}
	m.analysesFailed.WithLabelValues(reason).Inc()
}

// RecordAngleMeasurement counts one angle result.
func (m *Manager) RecordAngleMeasurement(angle, status string) {
	if !m.enabled {
		return
	}
	m.angleMeasurements.WithLabelValues(angle, status).Inc()
}

// RecordPhase counts one phase classification.
func (m *Manager) RecordPhase(phase string) {
	if !m.enabled {
		return
	}
	m.phaseClassifications.WithLabelValues(phase).Inc()
}

// RecordSimilarityMatches observes how many matches an analysis returned.
func (m *Manager) RecordSimilarityMatches(n int) {
	if !m.enabled {
		return
	}
	m.similarityMatches.Observe(float64(n))
}

// RecordBatchSize observes the size of a batch request.
func (m *Manager) RecordBatchSize(n int) {
	if !m.enabled {
		return
	}
	m.batchSize.Observe(float64(n))
}

// RecordVisionCall counts a provider call with its outcome and latency.
func (m *Manager) RecordVisionCall(provider, outcome string, latencyMs float64) {
	if !m.enabled {
		return
	}
	m.visionCalls.WithLabelValues(provider, outcome).Inc()
	m.visionLatency.WithLabelValues(provider).Observe(latencyMs)
}

// RecordVisionFallback counts an analysis served by the fallback provider.
func (m *Manager) RecordVisionFallback() {
	if m.enabled {
		m.visionFallbacks.Inc()
	}
}

// RecordVisionExhausted counts an analysis where no provider succeeded.
func (m *Manager) RecordVisionExhausted() {
	if m.enabled {
		m.visionExhausted.Inc()
	}
}

// RecordKeypointRequest counts a keypoint provider call.
func (m *Manager) RecordKeypointRequest(outcome string, latencyMs float64) {
	if !m.enabled {
		return
	}
	m.keypointRequests.WithLabelValues(outcome).Inc()
	m.keypointLatency.Observe(latencyMs)
}

// Package-level helpers delegate to the global manager.

// RecordAnalysisProcessed counts a completed analysis on the global manager.
func RecordAnalysisProcessed(latencyMs float64) { globalManager.RecordAnalysisProcessed(latencyMs) }

// RecordAnalysisFailed counts a failed analysis on the global manager.
func RecordAnalysisFailed(reason string) { globalManager.RecordAnalysisFailed(reason) }

// RecordAngleMeasurement counts one angle result on the global manager.
func RecordAngleMeasurement(angle, status string) {
	globalManager.RecordAngleMeasurement(angle, status)
}

// RecordPhase counts one phase classification on the global manager.
func RecordPhase(phase string) { globalManager.RecordPhase(phase) }

// RecordSimilarityMatches observes a match count on the global manager.
func RecordSimilarityMatches(n int) { globalManager.RecordSimilarityMatches(n) }

// RecordBatchSize observes a batch size on the global manager.
func RecordBatchSize(n int) { globalManager.RecordBatchSize(n) }

// RecordVisionCall counts a provider call on the global manager.
func RecordVisionCall(provider, outcome string, latencyMs float64) {
	globalManager.RecordVisionCall(provider, outcome, latencyMs)
}

// RecordVisionFallback counts a fallback on the global manager.
func RecordVisionFallback() { globalManager.RecordVisionFallback() }

// RecordVisionExhausted counts an exhaustion on the global manager.
func RecordVisionExhausted() { globalManager.RecordVisionExhausted() }

// RecordKeypointRequest counts a keypoint call on the global manager.
func RecordKeypointRequest(outcome string, latencyMs float64) {
	globalManager.RecordKeypointRequest(outcome, latencyMs)
}

// Queue Metrics Functions.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueueTotal.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueTotal.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordQueueProcessingLatency records how long a job waited in the queue.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// Worker Metrics Functions.

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerActiveCount sets the number of active workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// UpdateWorkerIdleCount sets the number of idle workers.
func UpdateWorkerIdleCount(count int) {
	globalManager.workerIdleCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// HTTP Metrics Functions.

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

// System Performance Metrics Functions.

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

// RefreshInterval returns the global manager's sampling interval.
func RefreshInterval() time.Duration { return globalManager.RefreshInterval() }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
