package anomaly

import (
	"context"
	"math"
	"sort"
)

const (
	defaultLOFNeighbors = 20

	// lofEpsilon keeps local densities finite when a point's neighbors
	// coincide with it exactly.
	lofEpsilon = 1e-10
)

// LOF flags rows whose local density is low relative to their neighbors'.
// Distances are Euclidean and neighbors are found by brute force, which is
// fine at the row counts a single upload carries.
type LOF struct {
	contamination float64
	neighbors     int
}

// NewLOF creates a local outlier factor detector.
func NewLOF(contamination float64) *LOF {
	return &LOF{contamination: contamination, neighbors: defaultLOFNeighbors}
}

// Name implements Detector.
func (l *LOF) Name() string { return NameLOF }

// FitPredict implements Detector.
func (l *LOF) FitPredict(ctx context.Context, m [][]float64) ([]bool, []float64, error) {
	n := len(m)
	if n < 2 {
		return nil, nil, ErrInsufficientData
	}
	k := l.neighbors
	if k > n-1 {
		k = n - 1
	}

	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		for j := i + 1; j < n; j++ {
			d := euclidean(m[i], m[j])
			dist[i][j] = d
			dist[j][i] = d
		}
	}

	// k nearest neighbors per point, ties broken on index.
	knn := make([][]int, n)
	kdist := make([]float64, n)
	for i := 0; i < n; i++ {
		order := make([]int, 0, n-1)
		for j := 0; j < n; j++ {
			if j != i {
				order = append(order, j)
			}
		}
		sort.SliceStable(order, func(a, b int) bool {
			return dist[i][order[a]] < dist[i][order[b]]
		})
		knn[i] = order[:k]
		kdist[i] = dist[i][order[k-1]]
	}

	lrd := make([]float64, n)
	for i := 0; i < n; i++ {
		sum := 0.0
		for _, j := range knn[i] {
			sum += math.Max(kdist[j], dist[i][j])
		}
		lrd[i] = float64(k) / math.Max(sum, lofEpsilon)
	}

	scores := make([]float64, n)
	for i := 0; i < n; i++ {
		sum := 0.0
		for _, j := range knn[i] {
			sum += lrd[j]
		}
		scores[i] = sum / (float64(k) * lrd[i])
	}
	return flagTop(scores, l.contamination), scores, nil
}

func euclidean(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
