package quality

import (
	"context"
	"math"

	"github.com/montanaflynn/stats"

	"github.com/okian/datacheck/internal/domain/dataset"
)

// zScoreThreshold marks values more than this many standard deviations from
// the column mean as statistical outliers (reported in detail only).
const zScoreThreshold = 3.0

// defaultIQRMultiplier widens the inferred fences around the interquartile
// range. 3x IQR flags only extreme values, not ordinary spread.
const defaultIQRMultiplier = 3.0

// Range is an explicit domain constraint for one column.
type Range struct {
	Min float64
	Max float64
}

// AccuracyOption applies a configuration option to the Accuracy analyzer.
type AccuracyOption func(*Accuracy)

// WithConstraints supplies explicit per-column ranges. Columns without an
// entry fall back to inferred fences.
func WithConstraints(constraints map[string]Range) AccuracyOption {
	return func(a *Accuracy) {
		a.constraints = make(map[string]Range, len(constraints))
		for name, r := range constraints {
			a.constraints[name] = r
		}
	}
}

// WithIQRMultiplier tunes the inferred fence width.
func WithIQRMultiplier(m float64) AccuracyOption {
	return func(a *Accuracy) {
		if m > 0 {
			a.iqrMultiplier = m
		}
	}
}

// Accuracy scores numeric columns against range constraints. When no
// explicit constraint is configured for a column, fences are inferred as
// [Q1 - m*IQR, Q3 + m*IQR] with m defaulting to 3; quartiles use the
// inclusive-median interpolation of the stats package. The rule is fixed so
// repeated runs on the same data produce the same score.
type Accuracy struct {
	constraints   map[string]Range
	iqrMultiplier float64
}

// NewAccuracy creates an accuracy analyzer with configuration options.
func NewAccuracy(opts ...AccuracyOption) *Accuracy {
	a := &Accuracy{
		iqrMultiplier: defaultIQRMultiplier,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name implements Analyzer.
func (a *Accuracy) Name() string { return NameAccuracy }

// Analyze implements Analyzer.
func (a *Accuracy) Analyze(ctx context.Context, ds *dataset.Dataset) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	var totalValues, totalViolations int
	violations := make(map[string]any)
	outliers := make(map[string]any)

	for col, column := range ds.Columns() {
		if column.Kind != dataset.KindNumeric {
			continue
		}
		values := make([]float64, 0, ds.Rows())
		for r := 0; r < ds.Rows(); r++ {
			if v, ok := ds.Float(r, col); ok {
				values = append(values, v)
			}
		}
		if len(values) == 0 {
			continue
		}
		totalValues += len(values)

		lower, upper, inferred := a.bounds(column.Name, values)
		below, above := 0, 0
		minV, maxV := values[0], values[0]
		for _, v := range values {
			if v < minV {
				minV = v
			}
			if v > maxV {
				maxV = v
			}
			switch {
			case v < lower:
				below++
			case v > upper:
				above++
			}
		}
		if below+above > 0 {
			totalViolations += below + above
			violations[column.Name] = map[string]any{
				"below_range_count": below,
				"above_range_count": above,
				"lower_bound":       lower,
				"upper_bound":       upper,
				"min_value":         minV,
				"max_value":         maxV,
				"inferred_bounds":   inferred,
			}
		}

		if n := zScoreOutliers(values); n > 0 {
			outliers[column.Name] = map[string]any{
				"count":      n,
				"percentage": roundScore(float64(n) / float64(len(values)) * 100),
			}
		}
	}

	detail := map[string]any{}
	if len(violations) > 0 {
		detail["range_violations"] = violations
	}
	if len(outliers) > 0 {
		detail["statistical_outliers"] = outliers
	}

	score := 100.0
	if totalValues > 0 {
		score = 100 * (1 - float64(totalViolations)/float64(totalValues))
	}
	return Result{Score: roundScore(clampScore(score)), Detail: detail}, nil
}

// bounds returns the allowed range for a column: the explicit constraint if
// configured, otherwise inferred IQR fences. The boolean reports whether the
// bounds were inferred.
func (a *Accuracy) bounds(column string, values []float64) (float64, float64, bool) {
	if r, ok := a.constraints[column]; ok {
		return r.Min, r.Max, false
	}
	q, err := stats.Quartile(values)
	if err != nil {
		return math.Inf(-1), math.Inf(1), true
	}
	iqr := q.Q3 - q.Q1
	return q.Q1 - a.iqrMultiplier*iqr, q.Q3 + a.iqrMultiplier*iqr, true
}

// zScoreOutliers counts values more than zScoreThreshold standard deviations
// from the mean. A zero-variance column has no outliers.
func zScoreOutliers(values []float64) int {
	mean, err := stats.Mean(values)
	if err != nil {
		return 0
	}
	std, err := stats.StandardDeviation(values)
	if err != nil || std == 0 {
		return 0
	}
	n := 0
	for _, v := range values {
		if math.Abs((v-mean)/std) > zScoreThreshold {
			n++
		}
	}
	return n
}
