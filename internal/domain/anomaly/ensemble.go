package anomaly

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/okian/datacheck/internal/domain/dataset"
	"github.com/okian/datacheck/internal/domain/model"
	"github.com/okian/datacheck/pkg/metrics"
)

// Ensemble defaults.
const (
	defaultContamination = 0.1
	defaultQuorum        = 2
	defaultMinRows       = 10
	defaultSeed          = 42
)

// Not-applicable reasons surfaced in reports.
const (
	reasonTooFewRows = "table has fewer rows than the detectors need"
	reasonNoFeatures = "table has no columns encodable as features"
)

// EnsembleOption applies a configuration option to the Ensemble.
type EnsembleOption func(*Ensemble)

// WithContamination sets the expected anomaly fraction each detector flags.
func WithContamination(c float64) EnsembleOption {
	return func(e *Ensemble) {
		if c > 0 && c < 0.5 {
			e.contamination = c
		}
	}
}

// WithQuorum sets how many detectors must agree before a row is anomalous.
func WithQuorum(q int) EnsembleOption {
	return func(e *Ensemble) {
		if q >= 1 {
			e.quorum = q
		}
	}
}

// WithMinRows sets the row count below which detection is not applicable.
func WithMinRows(n int) EnsembleOption {
	return func(e *Ensemble) {
		if n >= 1 {
			e.minRows = n
		}
	}
}

// WithSeed fixes the randomness source so runs are reproducible.
func WithSeed(seed int64) EnsembleOption {
	return func(e *Ensemble) {
		e.seed = seed
	}
}

// WithDetectors replaces the default detector set.
func WithDetectors(ds ...Detector) EnsembleOption {
	return func(e *Ensemble) {
		e.detectors = ds
	}
}

// Ensemble runs several detectors over the same feature matrix and flags a
// row anomalous only when a quorum of them agrees. Disagreement between
// algorithms with different failure modes is what keeps the false positive
// rate down.
type Ensemble struct {
	contamination float64
	quorum        int
	minRows       int
	seed          int64
	detectors     []Detector
}

// NewEnsemble creates an ensemble with the default detector set: an
// isolation forest, a local outlier factor and a Gaussian envelope.
func NewEnsemble(opts ...EnsembleOption) *Ensemble {
	e := &Ensemble{
		contamination: defaultContamination,
		quorum:        defaultQuorum,
		minRows:       defaultMinRows,
		seed:          defaultSeed,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.detectors == nil {
		e.detectors = []Detector{
			NewIsolationForest(e.contamination, e.seed),
			NewLOF(e.contamination),
			NewMahalanobis(e.contamination),
		}
	}
	return e
}

// Detect preprocesses the table, runs every detector and votes. A table
// that is too small or has no usable features yields a not-applicable
// report rather than an error.
func (e *Ensemble) Detect(ctx context.Context, ds *dataset.Dataset) (*model.AnomalyReport, error) {
	start := time.Now()
	metrics.RecordAnomalyRun()

	if ds.Rows() < e.minRows {
		metrics.RecordAnomalyInsufficient()
		return notApplicable(reasonTooFewRows), nil
	}
	features := Preprocess(ds)
	if len(features.Columns) == 0 || features.Rows() < e.minRows {
		metrics.RecordAnomalyInsufficient()
		if len(features.Columns) == 0 {
			return notApplicable(reasonNoFeatures), nil
		}
		return notApplicable(reasonTooFewRows), nil
	}

	type outcome struct {
		name  string
		flags []bool
		err   error
	}
	outcomes := make([]outcome, len(e.detectors))
	var wg sync.WaitGroup
	for i, d := range e.detectors {
		wg.Add(1)
		go func(i int, d Detector) {
			defer wg.Done()
			detStart := time.Now()
			flags, _, err := d.FitPredict(ctx, features.Scaled)
			metrics.RecordDetectorLatency(d.Name(), float64(time.Since(detStart).Milliseconds()))
			outcomes[i] = outcome{name: d.Name(), flags: flags, err: err}
		}(i, d)
	}
	wg.Wait()

	votes := make([]int, features.Rows())
	modelResults := make(map[string]model.DetectorResult, len(e.detectors))
	for _, out := range outcomes {
		if out.err != nil {
			if errors.Is(out.err, ErrInsufficientData) {
				metrics.RecordAnomalyInsufficient()
				return notApplicable(reasonTooFewRows), nil
			}
			return nil, fmt.Errorf("%s: %w", out.name, out.err)
		}
		var indices []int
		for i, flagged := range out.flags {
			if flagged {
				votes[i]++
				indices = append(indices, features.RowIndex[i])
			}
		}
		modelResults[out.name] = model.DetectorResult{
			AnomalyCount:   len(indices),
			AnomalyIndices: indices,
		}
	}

	consensus := make([]bool, features.Rows())
	var anomalyIndices []int
	for i, v := range votes {
		if v >= e.quorum {
			consensus[i] = true
			anomalyIndices = append(anomalyIndices, features.RowIndex[i])
		}
	}
	sort.Ints(anomalyIndices)

	rate := float64(len(anomalyIndices)) / float64(ds.Rows())
	report := &model.AnomalyReport{
		Applicable:        true,
		AnomalyCount:      len(anomalyIndices),
		AnomalyPercentage: math.Round(rate*100*100) / 100,
		AnomalyIndices:    anomalyIndices,
		FeatureImportance: explain(features, consensus),
		ModelResults:      modelResults,
		GeneratedAt:       time.Now().UTC(),
	}

	metrics.RecordAnomalyRunLatency(float64(time.Since(start).Milliseconds()))
	metrics.UpdateLastAnomalyRate(rate)
	return report, nil
}

func notApplicable(reason string) *model.AnomalyReport {
	return &model.AnomalyReport{
		Applicable:  false,
		Reason:      reason,
		GeneratedAt: time.Now().UTC(),
	}
}

// explain attributes the consensus to features by comparing each feature's
// mean over anomalous rows with its mean over normal rows, on imputed but
// unscaled values. The absolute differences are normalized to sum to one.
func explain(f *Features, consensus []bool) map[string]float64 {
	anomalies, normals := 0, 0
	for _, c := range consensus {
		if c {
			anomalies++
		} else {
			normals++
		}
	}
	if anomalies == 0 || normals == 0 {
		return map[string]float64{}
	}

	cols := len(f.Columns)
	anomalyMean := make([]float64, cols)
	normalMean := make([]float64, cols)
	for r, row := range f.Raw {
		for c, v := range row {
			if consensus[r] {
				anomalyMean[c] += v
			} else {
				normalMean[c] += v
			}
		}
	}

	diffs := make([]float64, cols)
	total := 0.0
	for c := 0; c < cols; c++ {
		diffs[c] = math.Abs(anomalyMean[c]/float64(anomalies) - normalMean[c]/float64(normals))
		total += diffs[c]
	}

	importance := make(map[string]float64, cols)
	for c, name := range f.Columns {
		if total > 0 {
			importance[name] = math.Round(diffs[c]/total*10000) / 10000
		} else {
			importance[name] = 0
		}
	}
	return importance
}
