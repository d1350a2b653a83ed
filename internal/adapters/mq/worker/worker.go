// Package worker processes queued recommendation jobs off the request
// path.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/okian/datacheck/internal/adapters/repository"
	"github.com/okian/datacheck/internal/domain/dataset"
	"github.com/okian/datacheck/internal/domain/model"
	"github.com/okian/datacheck/pkg/logger"
	"github.com/okian/datacheck/pkg/metrics"
)

// Worker configuration constants.
const (
	workerShutdownTimeout = 5 * time.Second
	poolShutdownTimeout   = 30 * time.Second
)

// Job abstracts what workers read off the queue.
type Job = model.RecommendationJob

// Assessor computes a quality report for a dataset.
type Assessor interface {
	Assess(ctx context.Context, ds *dataset.Dataset) (*model.QualityReport, error)
}

// Detector computes an anomaly report for a dataset.
type Detector interface {
	Detect(ctx context.Context, ds *dataset.Dataset) (*model.AnomalyReport, error)
}

// Builder turns findings into a recommendation set. It must always return
// a set; degradation is signaled on the set itself, not by an error.
type Builder interface {
	Build(ctx context.Context, name string, quality *model.QualityReport, anomalies *model.AnomalyReport) *model.RecommendationSet
}

// Repo is the slice of the store workers need.
type Repo interface {
	Get(ctx context.Context, id string) (*repository.Record, error)
	SetQuality(ctx context.Context, id string, report *model.QualityReport) error
	SetAnomaly(ctx context.Context, id string, report *model.AnomalyReport) error
	SetRecommendations(ctx context.Context, id string, set *model.RecommendationSet) error
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// Worker processes recommendation jobs until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue    Queue
	repo     Repo
	assessor Assessor
	detector Detector
	builder  Builder
	name     string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker with configuration options.
func NewInMemoryWorker(q Queue, repo Repo, assessor Assessor, detector Detector, builder Builder, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		repo:     repo,
		assessor: assessor,
		detector: detector,
		builder:  builder,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.processJob(ctx, job); err != nil {
				w.logger.Error(ctx, "error processing job",
					logger.String("dataset_id", job.DatasetID),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// processJob produces and stores the recommendation set for one dataset.
// Reports the set depends on are computed here if the request path has not
// done so yet.
func (w *InMemoryWorker) processJob(ctx context.Context, job Job) error {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	rec, err := w.repo.Get(ctx, job.DatasetID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Dataset expired between enqueue and processing.
			w.logger.Warn(ctx, "dataset gone before recommendations ran",
				logger.String("dataset_id", job.DatasetID))
			return nil
		}
		metrics.RecordWorkerError()
		return fmt.Errorf("load dataset %s: %w", job.DatasetID, err)
	}

	quality := rec.Quality
	if quality == nil && w.assessor != nil {
		quality, err = w.assessor.Assess(ctx, rec.Dataset)
		if err != nil {
			metrics.RecordWorkerError()
			return fmt.Errorf("assess dataset %s: %w", job.DatasetID, err)
		}
		if err := w.repo.SetQuality(ctx, job.DatasetID, quality); err != nil && !errors.Is(err, repository.ErrNotFound) {
			metrics.RecordWorkerError()
			return fmt.Errorf("store quality report: %w", err)
		}
	}

	anomalies := rec.Anomaly
	if anomalies == nil && w.detector != nil {
		anomalies, err = w.detector.Detect(ctx, rec.Dataset)
		if err != nil {
			metrics.RecordWorkerError()
			return fmt.Errorf("detect anomalies in dataset %s: %w", job.DatasetID, err)
		}
		if err := w.repo.SetAnomaly(ctx, job.DatasetID, anomalies); err != nil && !errors.Is(err, repository.ErrNotFound) {
			metrics.RecordWorkerError()
			return fmt.Errorf("store anomaly report: %w", err)
		}
	}

	set := w.builder.Build(ctx, rec.Dataset.Name(), quality, anomalies)
	if err := w.repo.SetRecommendations(ctx, job.DatasetID, set); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		metrics.RecordWorkerError()
		return fmt.Errorf("store recommendations: %w", err)
	}
	return nil
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	logger logger.Logger
}

// NewPool creates a worker pool. A non-positive count defaults to the
// number of CPUs.
func NewPool(workerCount int, q Queue, repo Repo, assessor Assessor, detector Detector, builder Builder) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewInMemoryWorker(
			q, repo, assessor, detector, builder,
			WithName("worker-"+strconv.Itoa(i)),
		)
	}

	metrics.UpdateWorkerCount(workerCount)
	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	metrics.UpdateWorkerActiveCount(len(p.workers))
}

// Stop stops all workers without draining the queue.
func (p *Pool) Stop() {
	for _, w := range p.workers {
		close(w.shutdown)
	}
	for _, w := range p.workers {
		select {
		case <-w.done:
		case <-time.After(workerShutdownTimeout):
		}
	}
	metrics.UpdateWorkerActiveCount(0)
}

// Shutdown closes the queue and waits for workers to drain it.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	metrics.UpdateWorkerActiveCount(0)
	return nil
}
