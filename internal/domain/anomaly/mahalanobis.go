package anomaly

import (
	"context"
	"errors"
	"math"
)

// covarianceRidge is added to the covariance diagonal so near-singular
// matrices from collinear or constant features stay invertible.
const covarianceRidge = 1e-6

var errSingularCovariance = errors.New("covariance matrix is singular")

// Mahalanobis fits a single Gaussian envelope to the data and scores rows
// by their Mahalanobis distance from the center. It catches global outliers
// that sit far from the bulk in any linear combination of features.
type Mahalanobis struct {
	contamination float64
}

// NewMahalanobis creates a Gaussian envelope detector.
func NewMahalanobis(contamination float64) *Mahalanobis {
	return &Mahalanobis{contamination: contamination}
}

// Name implements Detector.
func (d *Mahalanobis) Name() string { return NameMahalanobis }

// FitPredict implements Detector.
func (d *Mahalanobis) FitPredict(ctx context.Context, m [][]float64) ([]bool, []float64, error) {
	n := len(m)
	if n < 2 {
		return nil, nil, ErrInsufficientData
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	p := len(m[0])

	mean := make([]float64, p)
	for _, row := range m {
		for c, v := range row {
			mean[c] += v
		}
	}
	for c := range mean {
		mean[c] /= float64(n)
	}

	cov := make([][]float64, p)
	for i := range cov {
		cov[i] = make([]float64, p)
	}
	for _, row := range m {
		for i := 0; i < p; i++ {
			di := row[i] - mean[i]
			for j := i; j < p; j++ {
				cov[i][j] += di * (row[j] - mean[j])
			}
		}
	}
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			cov[i][j] /= float64(n - 1)
			cov[j][i] = cov[i][j]
		}
		cov[i][i] += covarianceRidge
	}

	inv, err := invertMatrix(cov)
	if err != nil {
		return nil, nil, err
	}

	scores := make([]float64, n)
	diff := make([]float64, p)
	for r, row := range m {
		for c := range row {
			diff[c] = row[c] - mean[c]
		}
		d2 := 0.0
		for i := 0; i < p; i++ {
			s := 0.0
			for j := 0; j < p; j++ {
				s += inv[i][j] * diff[j]
			}
			d2 += diff[i] * s
		}
		scores[r] = math.Sqrt(math.Max(d2, 0))
	}
	return flagTop(scores, d.contamination), scores, nil
}

// invertMatrix inverts a square matrix by Gauss-Jordan elimination with
// partial pivoting. The input is not modified.
func invertMatrix(m [][]float64) ([][]float64, error) {
	p := len(m)
	a := make([][]float64, p)
	inv := make([][]float64, p)
	for i := 0; i < p; i++ {
		a[i] = append([]float64(nil), m[i]...)
		inv[i] = make([]float64, p)
		inv[i][i] = 1
	}

	for col := 0; col < p; col++ {
		pivot := col
		for r := col + 1; r < p; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot][col]) < 1e-12 {
			return nil, errSingularCovariance
		}
		a[col], a[pivot] = a[pivot], a[col]
		inv[col], inv[pivot] = inv[pivot], inv[col]

		scale := a[col][col]
		for j := 0; j < p; j++ {
			a[col][j] /= scale
			inv[col][j] /= scale
		}
		for r := 0; r < p; r++ {
			if r == col || a[r][col] == 0 {
				continue
			}
			factor := a[r][col]
			for j := 0; j < p; j++ {
				a[r][j] -= factor * a[col][j]
				inv[r][j] -= factor * inv[col][j]
			}
		}
	}
	return inv, nil
}
