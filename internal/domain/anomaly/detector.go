package anomaly

import (
	"context"
	"math"
	"sort"
)

// Detector names used in reports and metric labels.
const (
	NameIsolationForest = "isolation_forest"
	NameLOF             = "local_outlier_factor"
	NameMahalanobis     = "elliptic_envelope"
)

// Detector fits on a feature matrix and flags outlying rows. Scores are
// detector-specific; higher means more anomalous. Implementations must be
// deterministic for a fixed seed and input.
type Detector interface {
	Name() string
	FitPredict(ctx context.Context, m [][]float64) (flags []bool, scores []float64, err error)
}

// flagTop marks the contamination fraction of rows with the highest scores,
// at least one row. Ties break on the lower row index so repeated runs
// agree.
func flagTop(scores []float64, contamination float64) []bool {
	n := len(scores)
	flags := make([]bool, n)
	if n == 0 {
		return flags
	}
	k := int(math.Floor(contamination * float64(n)))
	if k < 1 {
		k = 1
	}
	if k > n {
		k = n
	}
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})
	for _, i := range order[:k] {
		flags[i] = true
	}
	return flags
}
