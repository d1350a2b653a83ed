// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(...) to build a Config with defaults; Load layers file/env.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"runtime"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// MaxUploadBytes bounds the accepted upload body size.
	MaxUploadBytes int64 `koanf:"max_upload_bytes"`

	// MaxRows bounds the number of data rows parsed from an upload; 0 means
	// unlimited.
	MaxRows int `koanf:"max_rows"`

	// StoreTTLSeconds bounds how long a dataset and its reports are retained.
	StoreTTLSeconds int `koanf:"store_ttl_seconds"`

	// StoreCapacity caps the number of datasets held at once; the oldest is
	// evicted beyond it.
	StoreCapacity int `koanf:"store_capacity"`

	// StoreSweepSeconds sets the TTL janitor sweep interval.
	StoreSweepSeconds int `koanf:"store_sweep_seconds"`

	// QualityWeights maps quality dimensions to aggregation weights. The
	// weights must sum to 1.
	QualityWeights map[string]float64 `koanf:"quality_weights"`

	// AccuracyIQRMultiplier widens the inferred per-column range fences.
	AccuracyIQRMultiplier float64 `koanf:"accuracy_iqr_multiplier"`

	// Contamination is the assumed anomalous row fraction each detector is
	// configured with.
	Contamination float64 `koanf:"contamination"`

	// AnomalyQuorum is the number of detectors that must agree to flag a row.
	AnomalyQuorum int `koanf:"anomaly_quorum"`

	// AnomalyMinRows is the minimum viable row count for the ensemble.
	AnomalyMinRows int `koanf:"anomaly_min_rows"`

	// DetectorSeed fixes detector randomness for reproducible runs.
	DetectorSeed int64 `koanf:"detector_seed"`

	// RecommendationQueueSize bounds the in-memory job queue.
	RecommendationQueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of recommendation workers.
	WorkerCount int `koanf:"worker_count"`

	// LLMHost is the base URL of the Ollama endpoint.
	LLMHost string `koanf:"llm_host"`

	// LLMModel names the model used for recommendations.
	LLMModel string `koanf:"llm_model"`

	// LLMTimeoutSeconds bounds each generate call.
	LLMTimeoutSeconds int `koanf:"llm_timeout_seconds"`

	// LLMTemperature and LLMMaxTokens tune generation.
	LLMTemperature float64 `koanf:"llm_temperature"`
	LLMMaxTokens   int     `koanf:"llm_max_tokens"`

	// LLMRetryMax bounds retries on transient network errors.
	LLMRetryMax int `koanf:"llm_retry_max"`
}

// Quality dimension keys used in QualityWeights.
const (
	WeightCompleteness = "completeness"
	WeightConsistency  = "consistency"
	WeightAccuracy     = "accuracy"
	WeightUniqueness   = "uniqueness"
)

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		Addr:              ":9080",
		MaxUploadBytes:    64 << 20,
		MaxRows:           1_000_000,
		StoreTTLSeconds:   1800,
		StoreCapacity:     256,
		StoreSweepSeconds: 60,
		QualityWeights: map[string]float64{
			WeightCompleteness: 0.3,
			WeightConsistency:  0.3,
			WeightAccuracy:     0.2,
			WeightUniqueness:   0.2,
		},
		AccuracyIQRMultiplier:   3.0,
		Contamination:           0.1,
		AnomalyQuorum:           2,
		AnomalyMinRows:          10,
		DetectorSeed:            42,
		RecommendationQueueSize: 1024,
		WorkerCount:             runtime.NumCPU(),
		LLMHost:                 "http://127.0.0.1:11434",
		LLMModel:                "gemma2:2b",
		LLMTimeoutSeconds:       120,
		LLMTemperature:          0.3,
		LLMMaxTokens:            3000,
		LLMRetryMax:             2,
	}
}
