package quality

import (
	"context"

	"github.com/okian/datacheck/internal/domain/dataset"
)

// correlatedMissingThreshold is the Jaccard similarity above which two
// columns' missing masks are reported as a correlated pattern.
const correlatedMissingThreshold = 0.5

// Completeness scores how much of the table is populated. Column score is
// 100*(1-missing/rows); the overall score is the unweighted mean of column
// scores. An empty table scores 100 with empty detail.
type Completeness struct{}

// NewCompleteness creates a completeness analyzer.
func NewCompleteness() *Completeness {
	return &Completeness{}
}

// Name implements Analyzer.
func (c *Completeness) Name() string { return NameCompleteness }

// Analyze implements Analyzer.
func (c *Completeness) Analyze(ctx context.Context, ds *dataset.Dataset) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	rows, cols := ds.Rows(), ds.Cols()
	if rows == 0 || cols == 0 {
		return Result{Score: 100, Detail: map[string]any{}}, nil
	}

	missing := make([]int, cols)
	columnDetail := make(map[string]any, cols)
	var scoreSum float64
	for col, c := range ds.Columns() {
		missing[col] = ds.MissingCount(col)
		missingPct := float64(missing[col]) / float64(rows) * 100
		colScore := roundScore(100 - missingPct)
		scoreSum += colScore
		columnDetail[c.Name] = map[string]any{
			"missing_count":      missing[col],
			"missing_percentage": roundScore(missingPct),
			"completeness_score": colScore,
			"data_type":          c.Kind.String(),
		}
	}

	detail := map[string]any{
		"column_completeness": columnDetail,
	}
	if patterns := c.correlatedMissing(ds, missing); len(patterns) > 0 {
		detail["missing_patterns"] = patterns
	}

	return Result{
		Score:  roundScore(scoreSum / float64(cols)),
		Detail: detail,
	}, nil
}

// correlatedMissing reports column pairs whose missing masks overlap with a
// Jaccard similarity above the threshold.
func (c *Completeness) correlatedMissing(ds *dataset.Dataset, missing []int) []map[string]any {
	var patterns []map[string]any
	cols := ds.Columns()
	for i := 0; i < len(cols); i++ {
		if missing[i] == 0 {
			continue
		}
		for j := i + 1; j < len(cols); j++ {
			if missing[j] == 0 {
				continue
			}
			overlap := 0
			for r := 0; r < ds.Rows(); r++ {
				if ds.IsMissing(r, i) && ds.IsMissing(r, j) {
					overlap++
				}
			}
			if overlap == 0 {
				continue
			}
			union := missing[i] + missing[j] - overlap
			jaccard := float64(overlap) / float64(union)
			if jaccard > correlatedMissingThreshold {
				patterns = append(patterns, map[string]any{
					"columns":          []string{cols[i].Name, cols[j].Name},
					"overlap_count":    overlap,
					"similarity_score": roundScore(jaccard),
				})
			}
		}
	}
	return patterns
}
