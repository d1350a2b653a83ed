// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	jobqueue "github.com/okian/datacheck/internal/adapters/mq/queue"
	workerpool "github.com/okian/datacheck/internal/adapters/mq/worker"
	"github.com/okian/datacheck/internal/adapters/repository"
	"github.com/okian/datacheck/internal/domain/anomaly"
	"github.com/okian/datacheck/internal/domain/dataset"
	"github.com/okian/datacheck/internal/domain/model"
	"github.com/okian/datacheck/internal/domain/quality"
	"github.com/okian/datacheck/internal/domain/recommend"
	"github.com/okian/datacheck/pkg/logger"
	"github.com/okian/datacheck/pkg/metrics"
)

// Service wires the dataset store, analysis pipeline and recommendation
// workers behind the API dependency surface.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	jobQueue   jobqueue.Queue
	workerPool *workerpool.Pool
	aggregator *quality.Aggregator
	ensemble   *anomaly.Ensemble
	formatter  *recommend.Formatter
	generator  recommend.Generator

	// Configuration
	workerCount    int
	queueSize      int
	maxRows        int
	maxUploadBytes int64
	storeTTL       time.Duration
	storeCapacity  int
	storeSweep     time.Duration
	weights        map[string]float64
	iqrMultiplier  float64
	contamination  float64
	quorum         int
	minRows        int
	seed           int64
	llmTimeout     time.Duration

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of recommendation workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the recommendation job queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithUploadLimits caps accepted dataset size.
func WithUploadLimits(maxRows int, maxBytes int64) Option {
	return func(s *Service) {
		if maxRows > 0 {
			s.maxRows = maxRows
		}
		if maxBytes > 0 {
			s.maxUploadBytes = maxBytes
		}
	}
}

// WithStoreTTL sets how long uploaded datasets live.
func WithStoreTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.storeTTL = ttl
		}
	}
}

// WithStoreCapacity caps the number of stored datasets.
func WithStoreCapacity(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.storeCapacity = n
		}
	}
}

// WithStoreSweepInterval sets the store janitor interval.
func WithStoreSweepInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.storeSweep = d
		}
	}
}

// WithQualityWeights sets the dimension weights for the overall score.
func WithQualityWeights(weights map[string]float64) Option {
	return func(s *Service) {
		if len(weights) > 0 {
			s.weights = weights
		}
	}
}

// WithIQRMultiplier tunes the accuracy analyzer's inferred range fences.
func WithIQRMultiplier(m float64) Option {
	return func(s *Service) {
		if m > 0 {
			s.iqrMultiplier = m
		}
	}
}

// WithAnomalyTuning sets the ensemble's contamination, quorum, minimum
// row count and seed.
func WithAnomalyTuning(contamination float64, quorum, minRows int, seed int64) Option {
	return func(s *Service) {
		if contamination > 0 && contamination < 0.5 {
			s.contamination = contamination
		}
		if quorum >= 1 {
			s.quorum = quorum
		}
		if minRows >= 1 {
			s.minRows = minRows
		}
		s.seed = seed
	}
}

// WithGenerator sets the text generator used for recommendations. Without
// one the rule-based fallback produces every set.
func WithGenerator(g recommend.Generator) Option {
	return func(s *Service) {
		s.generator = g
	}
}

// WithLLMTimeout bounds a single recommendation generation call.
func WithLLMTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.llmTimeout = d
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:    runtime.NumCPU(),
		queueSize:      1024,
		maxRows:        1_000_000,
		maxUploadBytes: 64 << 20,
		storeTTL:       30 * time.Minute,
		storeCapacity:  256,
		storeSweep:     time.Minute,
		iqrMultiplier:  3.0,
		contamination:  0.1,
		quorum:         2,
		minRows:        10,
		seed:           42,
		llmTimeout:     2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting datacheck service...")

	s.store = repository.NewMemStore(
		repository.WithTTL(s.storeTTL),
		repository.WithCapacity(s.storeCapacity),
		repository.WithSweepInterval(s.storeSweep),
	)

	aggOpts := []quality.AggregatorOption{
		quality.WithAnalyzer(quality.NewAccuracy(quality.WithIQRMultiplier(s.iqrMultiplier))),
	}
	if s.weights != nil {
		aggOpts = append(aggOpts, quality.WithWeights(s.weights))
	}
	agg, err := quality.NewAggregator(aggOpts...)
	if err != nil {
		return fmt.Errorf("build aggregator: %w", err)
	}
	s.aggregator = agg

	s.ensemble = anomaly.NewEnsemble(
		anomaly.WithContamination(s.contamination),
		anomaly.WithQuorum(s.quorum),
		anomaly.WithMinRows(s.minRows),
		anomaly.WithSeed(s.seed),
	)

	recOpts := []recommend.Option{recommend.WithTimeout(s.llmTimeout)}
	if s.generator != nil {
		recOpts = append(recOpts, recommend.WithGenerator(s.generator))
	}
	s.formatter = recommend.New(recOpts...)

	s.jobQueue = jobqueue.NewInMemoryQueue(jobqueue.WithCapacity(s.queueSize))
	s.workerPool = workerpool.NewPool(
		s.workerCount, s.jobQueue, s.store,
		assessorFunc(s.assess), detectorFunc(s.detect), s.formatter,
	)
	s.workerPool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "datacheck service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Duration("storeTTL", s.storeTTL),
	)
	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping datacheck service...")

	if s.workerPool != nil {
		_ = s.workerPool.Shutdown(ctx)
	}
	if s.store != nil {
		s.store.Close()
	}

	s.started = false
	s.logger.Info(ctx, "datacheck service stopped")
}

// Upload parses and stores a dataset.
func (s *Service) Upload(ctx context.Context, name string, r io.Reader) (model.DatasetSummary, bool, error) {
	start := time.Now()
	ds, err := dataset.Load(name, r,
		dataset.WithMaxRows(s.maxRows),
		dataset.WithMaxBytes(s.maxUploadBytes),
	)
	if err != nil {
		metrics.RecordDatasetLoadError()
		return model.DatasetSummary{}, false, fmt.Errorf("load dataset: %w", err)
	}
	metrics.RecordDatasetLoadLatency(float64(time.Since(start).Milliseconds()))

	id, existing, err := s.store.Put(ctx, ds)
	if err != nil {
		return model.DatasetSummary{}, false, fmt.Errorf("store dataset: %w", err)
	}
	if !existing {
		metrics.RecordDatasetLoaded()
	}

	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return model.DatasetSummary{}, false, err
	}
	return summarize(rec), existing, nil
}

// Dataset returns the summary for a stored dataset.
func (s *Service) Dataset(ctx context.Context, id string) (model.DatasetSummary, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return model.DatasetSummary{}, err
	}
	return summarize(rec), nil
}

// Quality returns the quality report for a dataset, computing and caching
// it on first access.
func (s *Service) Quality(ctx context.Context, id string) (*model.QualityReport, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Quality != nil {
		return rec.Quality, nil
	}
	report, err := s.assess(ctx, rec.Dataset)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetQuality(ctx, id, report); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	return report, nil
}

// Anomalies returns the anomaly report for a dataset, computing and
// caching it on first access.
func (s *Service) Anomalies(ctx context.Context, id string) (*model.AnomalyReport, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Anomaly != nil {
		return rec.Anomaly, nil
	}
	report, err := s.detect(ctx, rec.Dataset)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetAnomaly(ctx, id, report); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	return report, nil
}

// RequestRecommendations queues recommendation generation for a dataset.
// Returns false when the job queue is full.
func (s *Service) RequestRecommendations(ctx context.Context, id string) (bool, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if rec.Recommendations != nil && rec.Recommendations.Status == model.RecommendationPending {
		// A job is already in flight.
		return true, nil
	}

	if !s.jobQueue.Enqueue(ctx, jobqueue.Job{DatasetID: id, EnqueuedAt: time.Now()}) {
		return false, nil
	}
	if err := s.store.SetRecommendations(ctx, id, &model.RecommendationSet{
		Status:      model.RecommendationPending,
		GeneratedAt: time.Now().UTC(),
	}); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return false, err
	}
	return true, nil
}

// Recommendations returns the current recommendation set for a dataset.
func (s *Service) Recommendations(ctx context.Context, id string) (*model.RecommendationSet, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Recommendations == nil {
		return nil, fmt.Errorf("recommendations not found for dataset %s; request generation first", id)
	}
	return rec.Recommendations, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
	}
	if s.started {
		ctx := context.Background()
		stats["datasets"] = s.store.Count(ctx)
		stats["queueLength"] = s.jobQueue.Len(ctx)
		stats["qualityWeights"] = s.aggregator.Weights()
		stats["contamination"] = s.contamination
		stats["quorum"] = s.quorum
		stats["storeTTLSeconds"] = int(s.storeTTL.Seconds())
	}
	return stats
}

// assess runs the quality pipeline for one dataset.
func (s *Service) assess(ctx context.Context, ds *dataset.Dataset) (*model.QualityReport, error) {
	return s.aggregator.Assess(ctx, ds)
}

// detect runs the anomaly ensemble for one dataset.
func (s *Service) detect(ctx context.Context, ds *dataset.Dataset) (*model.AnomalyReport, error) {
	return s.ensemble.Detect(ctx, ds)
}

// assessorFunc adapts a function to the worker Assessor interface.
type assessorFunc func(ctx context.Context, ds *dataset.Dataset) (*model.QualityReport, error)

func (f assessorFunc) Assess(ctx context.Context, ds *dataset.Dataset) (*model.QualityReport, error) {
	return f(ctx, ds)
}

// detectorFunc adapts a function to the worker Detector interface.
type detectorFunc func(ctx context.Context, ds *dataset.Dataset) (*model.AnomalyReport, error)

func (f detectorFunc) Detect(ctx context.Context, ds *dataset.Dataset) (*model.AnomalyReport, error) {
	return f(ctx, ds)
}

// summarize builds the read shape for one stored record.
func summarize(rec *repository.Record) model.DatasetSummary {
	cols := make([]model.ColumnSummary, 0, rec.Dataset.Cols())
	for _, c := range rec.Dataset.Columns() {
		cols = append(cols, model.ColumnSummary{Name: c.Name, Type: c.Kind.String()})
	}
	return model.DatasetSummary{
		ID:                 rec.ID,
		Name:               rec.Dataset.Name(),
		Rows:               rec.Dataset.Rows(),
		Columns:            cols,
		HasQuality:         rec.Quality != nil,
		HasAnomaly:         rec.Anomaly != nil,
		HasRecommendations: rec.Recommendations != nil,
		CreatedAt:          rec.CreatedAt,
		ExpiresAt:          rec.ExpiresAt,
	}
}
