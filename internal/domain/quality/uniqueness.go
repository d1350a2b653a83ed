package quality

import (
	"context"

	"github.com/okian/datacheck/internal/domain/dataset"
)

// UniquenessOption applies a configuration option to the Uniqueness scorer.
type UniquenessOption func(*Uniqueness)

// WithKeyColumn designates an identifier column whose duplicate fraction is
// reported alongside the row-level score.
func WithKeyColumn(name string) UniquenessOption {
	return func(u *Uniqueness) {
		u.keyColumn = name
	}
}

// Uniqueness scores the absence of exact duplicate rows: 100*(1-dup/rows).
// A row counts as a duplicate when an identical row appeared earlier, so a
// table of N identical rows has N-1 duplicates. An empty table scores 100.
type Uniqueness struct {
	keyColumn string
}

// NewUniqueness creates a uniqueness scorer with configuration options.
func NewUniqueness(opts ...UniquenessOption) *Uniqueness {
	u := &Uniqueness{}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Name implements Analyzer.
func (u *Uniqueness) Name() string { return NameUniqueness }

// Analyze implements Analyzer.
func (u *Uniqueness) Analyze(ctx context.Context, ds *dataset.Dataset) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	rows := ds.Rows()
	if rows == 0 {
		return Result{Score: 100, Detail: map[string]any{}}, nil
	}

	seen := make(map[uint64]struct{}, rows)
	duplicates := 0
	for r := 0; r < rows; r++ {
		key := ds.RowKey(r)
		if _, ok := seen[key]; ok {
			duplicates++
			continue
		}
		seen[key] = struct{}{}
	}

	detail := map[string]any{
		"total_rows":           rows,
		"duplicate_count":      duplicates,
		"unique_count":         rows - duplicates,
		"duplicate_percentage": roundScore(float64(duplicates) / float64(rows) * 100),
	}

	if u.keyColumn != "" {
		if keyDup, ok := u.keyDuplicates(ds); ok {
			detail["key_column"] = u.keyColumn
			detail["key_duplicate_count"] = keyDup
			detail["key_duplicate_percentage"] = roundScore(float64(keyDup) / float64(rows) * 100)
		}
	}

	score := 100 * (1 - float64(duplicates)/float64(rows))
	return Result{Score: roundScore(score), Detail: detail}, nil
}

// keyDuplicates counts repeated non-missing values in the designated key
// column. The second return is false when the column does not exist.
func (u *Uniqueness) keyDuplicates(ds *dataset.Dataset) (int, bool) {
	col := -1
	for i, c := range ds.Columns() {
		if c.Name == u.keyColumn {
			col = i
			break
		}
	}
	if col < 0 {
		return 0, false
	}
	seen := make(map[string]struct{}, ds.Rows())
	duplicates := 0
	for r := 0; r < ds.Rows(); r++ {
		if ds.IsMissing(r, col) {
			continue
		}
		v := ds.Value(r, col)
		if _, ok := seen[v]; ok {
			duplicates++
			continue
		}
		seen[v] = struct{}{}
	}
	return duplicates, true
}
