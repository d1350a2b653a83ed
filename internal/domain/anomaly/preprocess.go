package anomaly

import (
	"math"
	"sort"

	"github.com/okian/datacheck/internal/domain/dataset"
)

// categoricalCardinalityRatio caps which text columns become features. A
// text column where more than half the non-missing values are distinct is
// identifier-like and only adds noise to distance-based detectors.
const categoricalCardinalityRatio = 0.5

// Features is the numeric view of a dataset the detectors fit on.
//
// Raw holds imputed but unscaled values and is what Explain compares means
// on, so importances stay in the columns' own units. Scaled is the
// z-standardized copy the detectors see. RowIndex maps a feature row back
// to its row in the original table; rows whose feature cells were all
// missing are dropped.
type Features struct {
	Columns  []string
	Raw      [][]float64
	Scaled   [][]float64
	RowIndex []int
}

// Rows returns the number of usable feature rows.
func (f *Features) Rows() int { return len(f.Raw) }

// Preprocess turns a table into a feature matrix. Numeric columns pass
// through, booleans map to 0/1, datetimes to epoch seconds, and
// low-cardinality text columns are label-encoded over their sorted distinct
// values. Missing cells are imputed with the column mean.
func Preprocess(ds *dataset.Dataset) *Features {
	type colEnc struct {
		index  int
		name   string
		labels map[string]float64
	}

	var selected []colEnc
	for col, column := range ds.Columns() {
		switch column.Kind {
		case dataset.KindNumeric, dataset.KindBoolean, dataset.KindDatetime:
			selected = append(selected, colEnc{index: col, name: column.Name})
		case dataset.KindText:
			if labels, ok := labelEncode(ds, col); ok {
				selected = append(selected, colEnc{index: col, name: column.Name, labels: labels})
			}
		}
	}
	if len(selected) == 0 {
		return &Features{}
	}

	f := &Features{
		Columns: make([]string, len(selected)),
	}
	for i, c := range selected {
		f.Columns[i] = c.name
	}

	for r := 0; r < ds.Rows(); r++ {
		row := make([]float64, len(selected))
		present := false
		for i, c := range selected {
			v, ok := cellValue(ds, r, c.index, c.labels)
			if ok {
				present = true
				row[i] = v
			} else {
				row[i] = math.NaN()
			}
		}
		if !present {
			continue
		}
		f.Raw = append(f.Raw, row)
		f.RowIndex = append(f.RowIndex, r)
	}
	if len(f.Raw) == 0 {
		return &Features{Columns: f.Columns}
	}

	imputeMeans(f.Raw)
	f.Scaled = standardize(f.Raw)
	return f
}

// cellValue extracts one cell as a float. The labels map is non-nil only
// for label-encoded text columns.
func cellValue(ds *dataset.Dataset, row, col int, labels map[string]float64) (float64, bool) {
	if ds.IsMissing(row, col) {
		return 0, false
	}
	if labels != nil {
		v, ok := labels[ds.Value(row, col)]
		return v, ok
	}
	switch ds.Columns()[col].Kind {
	case dataset.KindNumeric:
		return ds.Float(row, col)
	case dataset.KindBoolean:
		b, ok := ds.Bool(row, col)
		if !ok {
			return 0, false
		}
		if b {
			return 1, true
		}
		return 0, true
	case dataset.KindDatetime:
		t, ok := ds.Time(row, col)
		if !ok {
			return 0, false
		}
		return float64(t.Unix()), true
	}
	return 0, false
}

// labelEncode maps a text column's distinct values to indices over their
// sorted order so the encoding does not depend on row order. Columns whose
// cardinality marks them identifier-like are rejected.
func labelEncode(ds *dataset.Dataset, col int) (map[string]float64, bool) {
	distinct := make(map[string]struct{})
	nonMissing := 0
	for r := 0; r < ds.Rows(); r++ {
		if ds.IsMissing(r, col) {
			continue
		}
		nonMissing++
		distinct[ds.Value(r, col)] = struct{}{}
	}
	if nonMissing == 0 || float64(len(distinct)) > categoricalCardinalityRatio*float64(nonMissing) {
		return nil, false
	}
	values := make([]string, 0, len(distinct))
	for v := range distinct {
		values = append(values, v)
	}
	sort.Strings(values)
	labels := make(map[string]float64, len(values))
	for i, v := range values {
		labels[v] = float64(i)
	}
	return labels, true
}

// imputeMeans replaces NaN cells with the column mean in place. A column
// with no observed values becomes all zeros.
func imputeMeans(m [][]float64) {
	if len(m) == 0 {
		return
	}
	cols := len(m[0])
	for c := 0; c < cols; c++ {
		sum, n := 0.0, 0
		for r := range m {
			if !math.IsNaN(m[r][c]) {
				sum += m[r][c]
				n++
			}
		}
		mean := 0.0
		if n > 0 {
			mean = sum / float64(n)
		}
		for r := range m {
			if math.IsNaN(m[r][c]) {
				m[r][c] = mean
			}
		}
	}
}

// standardize returns a z-scored copy of m. Zero-variance columns map to
// zero instead of dividing by zero.
func standardize(m [][]float64) [][]float64 {
	rows := len(m)
	if rows == 0 {
		return nil
	}
	cols := len(m[0])
	means := make([]float64, cols)
	stds := make([]float64, cols)
	for c := 0; c < cols; c++ {
		for r := 0; r < rows; r++ {
			means[c] += m[r][c]
		}
		means[c] /= float64(rows)
		for r := 0; r < rows; r++ {
			d := m[r][c] - means[c]
			stds[c] += d * d
		}
		stds[c] = math.Sqrt(stds[c] / float64(rows))
	}
	out := make([][]float64, rows)
	for r := 0; r < rows; r++ {
		out[r] = make([]float64, cols)
		for c := 0; c < cols; c++ {
			if stds[c] > 0 {
				out[r][c] = (m[r][c] - means[c]) / stds[c]
			}
		}
	}
	return out
}
