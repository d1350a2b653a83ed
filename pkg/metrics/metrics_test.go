package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewManagerDefaults(t *testing.T) {
	m := NewManager(WithPrometheusRegistry(prometheus.NewRegistry()))
	if m == nil {
		t.Fatal("manager is nil")
	}
	if m.namespace != "datacheck" {
		t.Errorf("unexpected namespace: %s", m.namespace)
	}
	if m.subsystem != "quality" {
		t.Errorf("unexpected subsystem: %s", m.subsystem)
	}
	if !m.enabled {
		t.Error("metrics should be enabled by default")
	}
}

func TestManagerOptions(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewManager(
		WithPrometheusRegistry(reg),
		WithNamespace("custom"),
		WithSubsystem("sub"),
		WithMetricsEnabled(false),
	)
	if m.namespace != "custom" {
		t.Errorf("namespace option not applied: %s", m.namespace)
	}
	if m.subsystem != "sub" {
		t.Errorf("subsystem option not applied: %s", m.subsystem)
	}
	if m.enabled {
		t.Error("enabled option not applied")
	}
}

// The package-level helpers must be safe to call at any point regardless of
// collection state.
func TestRecordHelpersDoNotPanic(t *testing.T) {
	RecordDatasetLoaded()
	RecordDatasetDuplicate()
	RecordDatasetLoadLatency(1.5)
	RecordDatasetLoadError()

	RecordAssessment()
	RecordAssessmentLatency(10)
	RecordAnalyzerLatency("completeness", 2)
	RecordAnalyzerError("accuracy")
	UpdateLastOverallScore(92.5)

	RecordAnomalyRun()
	RecordAnomalyRunLatency(25)
	RecordAnomalyInsufficient()
	RecordDetectorLatency("isolation_forest", 12)
	UpdateLastAnomalyRate(0.1)

	RecordRecommendationJob()
	RecordRecommendationFallback()
	RecordLLMRequestLatency(300)
	RecordLLMError()

	UpdateStoreDatasets(3)
	RecordStoreEviction()
	RecordStoreExpiration()
	RecordStoreHit()
	RecordStoreMiss()

	UpdateQueueSize(1)
	UpdateQueueCapacity(100)
	UpdateQueueUtilization(0.01)
	RecordQueueEnqueue()
	RecordQueueDequeue()
	RecordQueueEnqueueError()

	UpdateWorkerCount(4)
	UpdateWorkerActiveCount(2)
	RecordWorkerProcessingLatency(5)
	RecordWorkerError()

	RecordHTTPRequest("datasets", "POST", "201")
	RecordHTTPRequestDuration("datasets", "POST", "201", 3.2)
	RecordHTTPError("datasets", "POST", "client_error")

	UpdateSystemMemoryUsage(1 << 20)
	UpdateSystemGoroutineCount(10)
	RecordSystemGCPauseTime(0.2)
}

func TestGetRegistry(t *testing.T) {
	reg := GetRegistry()
	if reg == nil {
		t.Fatal("registry is nil")
	}
	if _, err := reg.Gather(); err != nil {
		t.Fatalf("gather failed: %v", err)
	}
}
