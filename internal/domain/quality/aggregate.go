package quality

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/okian/datacheck/internal/domain/dataset"
	"github.com/okian/datacheck/internal/domain/model"
	"github.com/okian/datacheck/pkg/metrics"
)

// Default aggregation weights. The overall score is a fixed convex
// combination of the four dimension scores.
const (
	defaultCompletenessWeight = 0.3
	defaultConsistencyWeight  = 0.3
	defaultAccuracyWeight     = 0.2
	defaultUniquenessWeight   = 0.2
)

// weightSumTolerance bounds floating-point drift when validating weights.
const weightSumTolerance = 1e-9

// AggregatorOption applies a configuration option to the Aggregator.
type AggregatorOption func(*Aggregator)

// WithWeights replaces the aggregation weights. Keys must match analyzer
// names; validation happens in NewAggregator.
func WithWeights(weights map[string]float64) AggregatorOption {
	return func(a *Aggregator) {
		if len(weights) > 0 {
			a.weights = weights
		}
	}
}

// WithAnalyzer replaces or adds an analyzer, keyed by its Name(). Used by
// tests to substitute fakes.
func WithAnalyzer(an Analyzer) AggregatorOption {
	return func(a *Aggregator) {
		if an != nil {
			a.analyzers[an.Name()] = an
		}
	}
}

// Aggregator runs the registered analyzers concurrently and combines their
// scores into one QualityReport. The analyzers are independent and read-only
// over the dataset, so the fan-out is a pure latency optimization; results
// are deterministic regardless of scheduling.
type Aggregator struct {
	weights   map[string]float64
	analyzers map[string]Analyzer
}

// NewAggregator creates an aggregator over the four standard analyzers,
// with options applied on top. It fails when the weights do not form a
// convex combination or name a dimension with no analyzer.
func NewAggregator(opts ...AggregatorOption) (*Aggregator, error) {
	a := &Aggregator{
		weights: map[string]float64{
			NameCompleteness: defaultCompletenessWeight,
			NameConsistency:  defaultConsistencyWeight,
			NameAccuracy:     defaultAccuracyWeight,
			NameUniqueness:   defaultUniquenessWeight,
		},
		analyzers: map[string]Analyzer{
			NameCompleteness: NewCompleteness(),
			NameConsistency:  NewConsistency(),
			NameAccuracy:     NewAccuracy(),
			NameUniqueness:   NewUniqueness(),
		},
	}
	for _, opt := range opts {
		opt(a)
	}

	var sum float64
	for dim, w := range a.weights {
		if w < 0 {
			return nil, fmt.Errorf("%w: %s is negative", ErrInvalidWeights, dim)
		}
		if _, ok := a.analyzers[dim]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingAnalyzer, dim)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > weightSumTolerance {
		return nil, fmt.Errorf("%w: sum is %v", ErrInvalidWeights, sum)
	}
	return a, nil
}

// Assess runs all analyzers and combines their scores. An analyzer error is
// propagated unmasked, wrapped with the analyzer's name.
func (a *Aggregator) Assess(ctx context.Context, ds *dataset.Dataset) (*model.QualityReport, error) {
	start := time.Now()

	type outcome struct {
		name   string
		result Result
		err    error
	}

	results := make([]outcome, 0, len(a.analyzers))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for name, an := range a.analyzers {
		wg.Add(1)
		go func(name string, an Analyzer) {
			defer wg.Done()
			t := time.Now()
			res, err := an.Analyze(ctx, ds)
			metrics.RecordAnalyzerLatency(name, float64(time.Since(t).Milliseconds()))
			mu.Lock()
			results = append(results, outcome{name: name, result: res, err: err})
			mu.Unlock()
		}(name, an)
	}
	wg.Wait()

	scores := make(map[string]float64, len(results))
	details := make(map[string]map[string]any, len(results))
	for _, out := range results {
		if out.err != nil {
			metrics.RecordAnalyzerError(out.name)
			return nil, fmt.Errorf("%s: %w", out.name, out.err)
		}
		scores[out.name] = out.result.Score
		details[out.name] = out.result.Detail
	}

	var overall float64
	for dim, w := range a.weights {
		overall += w * scores[dim]
	}

	report := &model.QualityReport{
		OverallScore:      overall,
		CompletenessScore: scores[NameCompleteness],
		ConsistencyScore:  scores[NameConsistency],
		AccuracyScore:     scores[NameAccuracy],
		UniquenessScore:   scores[NameUniqueness],
		Details:           details,
		GeneratedAt:       time.Now().UTC(),
	}

	metrics.RecordAssessment()
	metrics.RecordAssessmentLatency(float64(time.Since(start).Milliseconds()))
	metrics.UpdateLastOverallScore(report.OverallScore)

	return report, nil
}

// Weights exposes the configured weights, primarily for the /stats endpoint.
func (a *Aggregator) Weights() map[string]float64 {
	out := make(map[string]float64, len(a.weights))
	for k, v := range a.weights {
		out[k] = v
	}
	return out
}
