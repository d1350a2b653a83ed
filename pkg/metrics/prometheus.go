// Package metrics provides Prometheus metrics for the datacheck service.
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

// Manager manages all Prometheus metrics for the datacheck service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Ingestion metrics
	datasetsLoaded     prometheus.Counter
	datasetsDuplicate  prometheus.Counter
	datasetLoadLatency prometheus.Histogram
	datasetLoadErrors  prometheus.Counter

	// Assessment metrics
	assessmentsRun    prometheus.Counter
	assessmentLatency prometheus.Histogram
	analyzerLatency   *prometheus.HistogramVec
	analyzerErrors    *prometheus.CounterVec
	lastOverallScore  prometheus.Gauge

	// Anomaly metrics
	anomalyRuns         prometheus.Counter
	anomalyRunLatency   prometheus.Histogram
	anomalyInsufficient prometheus.Counter
	detectorLatency     *prometheus.HistogramVec
	lastAnomalyRate     prometheus.Gauge

	// Recommendation / LLM metrics
	recommendationJobs      prometheus.Counter
	recommendationFallbacks prometheus.Counter
	llmRequestLatency       prometheus.Histogram
	llmErrors               prometheus.Counter

	// Store metrics
	storeDatasets    prometheus.Gauge
	storeEvictions   prometheus.Counter
	storeExpirations prometheus.Counter
	storeHits        prometheus.Counter
	storeMisses      prometheus.Counter

	// Queue metrics
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueues      prometheus.Counter
	queueDequeues      prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Worker metrics
	workerCount             prometheus.Gauge
	workerActive            prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpErrors          *prometheus.CounterVec

	// System metrics
	systemMemoryBytes prometheus.Gauge
	systemGoroutines  prometheus.Gauge
	systemGCPause     prometheus.Histogram
}

// customRegistry holds all service metrics, kept separate from the default
// registry so default Go collectors never collide with ours.
var customRegistry = prometheus.NewRegistry()

var globalManager *Manager

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "datacheck",
		subsystem:        "quality",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // metric declarations are uniform and long
	auto := promauto.With(m.registry)

	// Ingestion
	m.datasetsLoaded = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "datasets_loaded_total",
		Help:      "Total number of datasets successfully loaded",
	})
	m.datasetsDuplicate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "datasets_duplicate_total",
		Help:      "Total number of uploads answered from the checksum index",
	})
	m.datasetLoadLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "dataset_load_latency_milliseconds",
		Help:      "Histogram of dataset parse/load latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})
	m.datasetLoadErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "dataset_load_errors_total",
		Help:      "Total number of malformed or rejected dataset uploads",
	})

	// Assessment
	m.assessmentsRun = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "assessments_total",
		Help:      "Total number of quality assessments executed",
	})
	m.assessmentLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "assessment_latency_milliseconds",
		Help:      "Histogram of full quality assessment latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})
	m.analyzerLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "analyzer_latency_milliseconds",
		Help:      "Histogram of per-analyzer latency in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"analyzer"})
	m.analyzerErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "analyzer_errors_total",
		Help:      "Total number of analyzer failures",
	}, []string{"analyzer"})
	m.lastOverallScore = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "last_overall_score",
		Help:      "Overall quality score of the most recent assessment",
	})

	// Anomaly
	m.anomalyRuns = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "anomaly_runs_total",
		Help:      "Total number of anomaly ensemble runs",
	})
	m.anomalyRunLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "anomaly_run_latency_milliseconds",
		Help:      "Histogram of full ensemble latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})
	m.anomalyInsufficient = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "anomaly_insufficient_total",
		Help:      "Total number of ensemble runs skipped for insufficient data",
	})
	m.detectorLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "detector_latency_milliseconds",
		Help:      "Histogram of per-detector fit-predict latency in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"detector"})
	m.lastAnomalyRate = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "last_anomaly_rate",
		Help:      "Consensus anomaly rate of the most recent ensemble run",
	})

	// Recommendations / LLM
	m.recommendationJobs = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "recommendation_jobs_total",
		Help:      "Total number of recommendation jobs processed",
	})
	m.recommendationFallbacks = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "recommendation_fallbacks_total",
		Help:      "Total number of jobs answered by the rule-based fallback",
	})
	m.llmRequestLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "llm_request_latency_milliseconds",
		Help:      "Histogram of LLM generate-call latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})
	m.llmErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "llm_errors_total",
		Help:      "Total number of failed LLM calls",
	})

	// Store
	m.storeDatasets = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_datasets",
		Help:      "Current number of datasets held in the store",
	})
	m.storeEvictions = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_evictions_total",
		Help:      "Total number of capacity evictions from the store",
	})
	m.storeExpirations = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_expirations_total",
		Help:      "Total number of TTL expirations swept from the store",
	})
	m.storeHits = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_hits_total",
		Help:      "Total number of store lookups that found a live record",
	})
	m.storeMisses = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_misses_total",
		Help:      "Total number of store lookups that missed",
	})

	// Queue
	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_size",
		Help:      "Current size of the recommendation job queue",
	})
	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_capacity",
		Help:      "Configured capacity of the recommendation job queue",
	})
	m.queueUtilization = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_utilization",
		Help:      "Queue fill ratio between 0 and 1",
	})
	m.queueEnqueues = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_enqueues_total",
		Help:      "Total number of jobs enqueued",
	})
	m.queueDequeues = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_dequeues_total",
		Help:      "Total number of jobs dequeued",
	})
	m.queueEnqueueErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_enqueue_errors_total",
		Help:      "Total number of enqueue attempts rejected by backpressure",
	})

	// Workers
	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_count",
		Help:      "Configured number of recommendation workers",
	})
	m.workerActive = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_active",
		Help:      "Number of workers currently processing a job",
	})
	m.workerProcessingLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_processing_latency_milliseconds",
		Help:      "Histogram of end-to-end job processing latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})
	m.workerErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_errors_total",
		Help:      "Total number of job processing failures",
	})

	// HTTP
	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests by endpoint, method and status",
	}, []string{"endpoint", "method", "status"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "Histogram of HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status"})
	m.httpErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_errors_total",
		Help:      "Total number of HTTP error responses by endpoint and type",
	}, []string{"endpoint", "method", "error_type"})

	// System
	m.systemMemoryBytes = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_memory_bytes",
		Help:      "Current heap allocation in bytes",
	})
	m.systemGoroutines = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_goroutines",
		Help:      "Current number of goroutines",
	})
	m.systemGCPause = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_gc_pause_milliseconds",
		Help:      "Histogram of garbage collection pause times in milliseconds",
		Buckets:   m.histogramBuckets,
	})
}

// Ingestion helpers.

func RecordDatasetLoaded() {
	if globalManager != nil && globalManager.enabled {
		globalManager.datasetsLoaded.Inc()
	}
}

func RecordDatasetDuplicate() {
	if globalManager != nil && globalManager.enabled {
		globalManager.datasetsDuplicate.Inc()
	}
}

func RecordDatasetLoadLatency(latencyMs float64) {
	if globalManager != nil && globalManager.enabled {
		globalManager.datasetLoadLatency.Observe(latencyMs)
	}
}

func RecordDatasetLoadError() {
	if globalManager != nil && globalManager.enabled {
		globalManager.datasetLoadErrors.Inc()
	}
}

// Assessment helpers.

func RecordAssessment() {
	if globalManager != nil && globalManager.enabled {
		globalManager.assessmentsRun.Inc()
	}
}

func RecordAssessmentLatency(latencyMs float64) {
	if globalManager != nil && globalManager.enabled {
		globalManager.assessmentLatency.Observe(latencyMs)
	}
}

func RecordAnalyzerLatency(analyzer string, latencyMs float64) {
	if globalManager != nil && globalManager.enabled {
		globalManager.analyzerLatency.WithLabelValues(analyzer).Observe(latencyMs)
	}
}

func RecordAnalyzerError(analyzer string) {
	if globalManager != nil && globalManager.enabled {
		globalManager.analyzerErrors.WithLabelValues(analyzer).Inc()
	}
}

func UpdateLastOverallScore(score float64) {
	if globalManager != nil && globalManager.enabled {
		globalManager.lastOverallScore.Set(score)
	}
}

// Anomaly helpers.

func RecordAnomalyRun() {
	if globalManager != nil && globalManager.enabled {
		globalManager.anomalyRuns.Inc()
	}
}

func RecordAnomalyRunLatency(latencyMs float64) {
	if globalManager != nil && globalManager.enabled {
		globalManager.anomalyRunLatency.Observe(latencyMs)
	}
}

func RecordAnomalyInsufficient() {
	if globalManager != nil && globalManager.enabled {
		globalManager.anomalyInsufficient.Inc()
	}
}

func RecordDetectorLatency(detector string, latencyMs float64) {
	if globalManager != nil && globalManager.enabled {
		globalManager.detectorLatency.WithLabelValues(detector).Observe(latencyMs)
	}
}

func UpdateLastAnomalyRate(rate float64) {
	if globalManager != nil && globalManager.enabled {
		globalManager.lastAnomalyRate.Set(rate)
	}
}

// Recommendation / LLM helpers.

func RecordRecommendationJob() {
	if globalManager != nil && globalManager.enabled {
		globalManager.recommendationJobs.Inc()
	}
}

func RecordRecommendationFallback() {
	if globalManager != nil && globalManager.enabled {
		globalManager.recommendationFallbacks.Inc()
	}
}

func RecordLLMRequestLatency(latencyMs float64) {
	if globalManager != nil && globalManager.enabled {
		globalManager.llmRequestLatency.Observe(latencyMs)
	}
}

func RecordLLMError() {
	if globalManager != nil && globalManager.enabled {
		globalManager.llmErrors.Inc()
	}
}

// Store helpers.

func UpdateStoreDatasets(count int) {
	if globalManager != nil && globalManager.enabled {
		globalManager.storeDatasets.Set(float64(count))
	}
}

func RecordStoreEviction() {
	if globalManager != nil && globalManager.enabled {
		globalManager.storeEvictions.Inc()
	}
}

func RecordStoreExpiration() {
	if globalManager != nil && globalManager.enabled {
		globalManager.storeExpirations.Inc()
	}
}

func RecordStoreHit() {
	if globalManager != nil && globalManager.enabled {
		globalManager.storeHits.Inc()
	}
}

func RecordStoreMiss() {
	if globalManager != nil && globalManager.enabled {
		globalManager.storeMisses.Inc()
	}
}

// Queue helpers.

func UpdateQueueSize(size int) {
	if globalManager != nil && globalManager.enabled {
		globalManager.queueSize.Set(float64(size))
	}
}

func UpdateQueueCapacity(capacity int) {
	if globalManager != nil && globalManager.enabled {
		globalManager.queueCapacity.Set(float64(capacity))
	}
}

func UpdateQueueUtilization(utilization float64) {
	if globalManager != nil && globalManager.enabled {
		globalManager.queueUtilization.Set(utilization)
	}
}

func RecordQueueEnqueue() {
	if globalManager != nil && globalManager.enabled {
		globalManager.queueEnqueues.Inc()
	}
}

func RecordQueueDequeue() {
	if globalManager != nil && globalManager.enabled {
		globalManager.queueDequeues.Inc()
	}
}

func RecordQueueEnqueueError() {
	if globalManager != nil && globalManager.enabled {
		globalManager.queueEnqueueErrors.Inc()
	}
}

// Worker helpers.

func UpdateWorkerCount(count int) {
	if globalManager != nil && globalManager.enabled {
		globalManager.workerCount.Set(float64(count))
	}
}

func UpdateWorkerActiveCount(count int) {
	if globalManager != nil && globalManager.enabled {
		globalManager.workerActive.Set(float64(count))
	}
}

func RecordWorkerProcessingLatency(latencyMs float64) {
	if globalManager != nil && globalManager.enabled {
		globalManager.workerProcessingLatency.Observe(latencyMs)
	}
}

func RecordWorkerError() {
	if globalManager != nil && globalManager.enabled {
		globalManager.workerErrors.Inc()
	}
}

// HTTP helpers.

func RecordHTTPRequest(endpoint, method, statusCode string) {
	if globalManager != nil && globalManager.enabled {
		globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	}
}

func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	if globalManager != nil && globalManager.enabled {
		globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
	}
}

func RecordHTTPError(endpoint, method, errorType string) {
	if globalManager != nil && globalManager.enabled {
		globalManager.httpErrors.WithLabelValues(endpoint, method, errorType).Inc()
	}
}

// System helpers.

func UpdateSystemMemoryUsage(bytes uint64) {
	if globalManager != nil && globalManager.enabled {
		globalManager.systemMemoryBytes.Set(float64(bytes))
	}
}

func UpdateSystemGoroutineCount(count int) {
	if globalManager != nil && globalManager.enabled {
		globalManager.systemGoroutines.Set(float64(count))
	}
}

func RecordSystemGCPauseTime(pauseMs float64) {
	if globalManager != nil && globalManager.enabled {
		globalManager.systemGCPause.Observe(pauseMs)
	}
}

// GetRegistry returns the registry holding all service metrics, for serving
// via promhttp.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
