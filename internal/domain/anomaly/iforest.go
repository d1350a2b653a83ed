package anomaly

import (
	"context"
	"math"
	"math/rand"
)

const (
	forestTrees     = 100
	forestSubsample = 256
)

// IsolationForest isolates rows with random axis-aligned splits. Rows that
// separate from the rest in few splits get short average path lengths and
// high anomaly scores. All randomness comes from the configured seed.
type IsolationForest struct {
	contamination float64
	seed          int64
}

// NewIsolationForest creates a seeded isolation forest detector.
func NewIsolationForest(contamination float64, seed int64) *IsolationForest {
	return &IsolationForest{contamination: contamination, seed: seed}
}

// Name implements Detector.
func (f *IsolationForest) Name() string { return NameIsolationForest }

// FitPredict implements Detector.
func (f *IsolationForest) FitPredict(ctx context.Context, m [][]float64) ([]bool, []float64, error) {
	n := len(m)
	if n < 2 {
		return nil, nil, ErrInsufficientData
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	sample := forestSubsample
	if sample > n {
		sample = n
	}
	maxDepth := int(math.Ceil(math.Log2(float64(sample))))
	rng := rand.New(rand.NewSource(f.seed))

	pathSums := make([]float64, n)
	idx := make([]int, n)
	for t := 0; t < forestTrees; t++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		for i := range idx {
			idx[i] = i
		}
		rng.Shuffle(n, func(a, b int) { idx[a], idx[b] = idx[b], idx[a] })
		root := buildITree(m, idx[:sample], 0, maxDepth, rng)
		for i := 0; i < n; i++ {
			pathSums[i] += pathLength(root, m[i], 0)
		}
	}

	norm := avgPathLength(sample)
	scores := make([]float64, n)
	for i := 0; i < n; i++ {
		avg := pathSums[i] / forestTrees
		scores[i] = math.Pow(2, -avg/norm)
	}
	return flagTop(scores, f.contamination), scores, nil
}

type iTreeNode struct {
	feature int
	split   float64
	left    *iTreeNode
	right   *iTreeNode
	size    int
	leaf    bool
}

func buildITree(m [][]float64, idx []int, depth, maxDepth int, rng *rand.Rand) *iTreeNode {
	if depth >= maxDepth || len(idx) <= 1 {
		return &iTreeNode{leaf: true, size: len(idx)}
	}
	cols := len(m[0])

	// Pick a feature that still varies within this node; if none does,
	// the points are indistinguishable and the node terminates.
	feature, lo, hi := -1, 0.0, 0.0
	for _, c := range rng.Perm(cols) {
		minV, maxV := m[idx[0]][c], m[idx[0]][c]
		for _, i := range idx[1:] {
			if m[i][c] < minV {
				minV = m[i][c]
			}
			if m[i][c] > maxV {
				maxV = m[i][c]
			}
		}
		if maxV > minV {
			feature, lo, hi = c, minV, maxV
			break
		}
	}
	if feature < 0 {
		return &iTreeNode{leaf: true, size: len(idx)}
	}

	split := lo + rng.Float64()*(hi-lo)
	var left, right []int
	for _, i := range idx {
		if m[i][feature] < split {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return &iTreeNode{
		feature: feature,
		split:   split,
		left:    buildITree(m, left, depth+1, maxDepth, rng),
		right:   buildITree(m, right, depth+1, maxDepth, rng),
	}
}

func pathLength(node *iTreeNode, row []float64, depth float64) float64 {
	if node.leaf {
		return depth + avgPathLength(node.size)
	}
	if row[node.feature] < node.split {
		return pathLength(node.left, row, depth+1)
	}
	return pathLength(node.right, row, depth+1)
}

// avgPathLength is the expected path length of an unsuccessful BST search
// over n points, the standard normalization term for isolation forests.
func avgPathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	h := math.Log(float64(n-1)) + 0.5772156649
	return 2*h - 2*float64(n-1)/float64(n)
}
