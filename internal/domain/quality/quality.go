// Package quality contains the analyzers that score one dimension of
// dataset health each, and the aggregator that combines them.
package quality

import (
	"context"
	"math"

	"github.com/okian/datacheck/internal/domain/dataset"
)

// Analyzer names, also used as aggregation weight keys.
const (
	NameCompleteness = "completeness"
	NameConsistency  = "consistency"
	NameAccuracy     = "accuracy"
	NameUniqueness   = "uniqueness"
)

// Result is one analyzer's output: a 0-100 score and supporting detail.
type Result struct {
	Score  float64
	Detail map[string]any
}

// Analyzer scores one quality dimension of a dataset. Implementations are
// deterministic and read-only over the dataset, so they are safe to run
// concurrently against the same table.
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, ds *dataset.Dataset) (Result, error)
}

// clampScore bounds a score to the [0, 100] range.
func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}

// roundScore trims scores to two decimals for stable report output.
func roundScore(s float64) float64 {
	return math.Round(s*100) / 100
}
