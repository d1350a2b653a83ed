package quality

import (
	"context"
	"strings"

	"github.com/okian/datacheck/internal/domain/dataset"
)

// Consistency penalty weights. More inconsistent values or duplicate rows
// strictly lower the score; a clean table scores 100.
const (
	typePenaltyWeight = 0.6
	dupPenaltyWeight  = 0.4
)

// Consistency scores how uniformly values are represented: stray tokens in
// typed columns, full-row duplicates, diverging string formats and
// case/whitespace near-duplicates.
type Consistency struct{}

// NewConsistency creates a consistency analyzer.
func NewConsistency() *Consistency {
	return &Consistency{}
}

// Name implements Analyzer.
func (c *Consistency) Name() string { return NameConsistency }

// Analyze implements Analyzer.
func (c *Consistency) Analyze(ctx context.Context, ds *dataset.Dataset) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	rows := ds.Rows()
	if rows == 0 || ds.Cols() == 0 {
		return Result{Score: 100, Detail: map[string]any{}}, nil
	}

	// Type conformance over non-missing cells.
	var checked, inconsistent int
	typeIssues := make(map[string]any)
	for col, column := range ds.Columns() {
		colBad := 0
		for r := 0; r < rows; r++ {
			if ds.IsMissing(r, col) {
				continue
			}
			checked++
			if !ds.ConformsToKind(r, col) {
				inconsistent++
				colBad++
			}
		}
		if colBad > 0 {
			typeIssues[column.Name] = map[string]any{
				"inconsistent_count": colBad,
				"expected_type":      column.Kind.String(),
			}
		}
	}
	inconsistentFrac := 0.0
	if checked > 0 {
		inconsistentFrac = float64(inconsistent) / float64(checked)
	}

	// Full-row duplicates.
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
	dupFrac := float64(duplicates) / float64(rows)

	penalty := 100 * (typePenaltyWeight*inconsistentFrac + dupPenaltyWeight*dupFrac)

	detail := map[string]any{
		"duplicate_rows":     duplicates,
		"inconsistent_cells": inconsistent,
	}
	if len(typeIssues) > 0 {
		detail["type_consistency"] = typeIssues
	}
	if formats := c.formatClusters(ds); len(formats) > 0 {
		detail["format_consistency"] = formats
	}
	if values := c.valueVariants(ds); len(values) > 0 {
		detail["value_consistency"] = values
	}

	return Result{
		Score:  roundScore(clampScore(100 - penalty)),
		Detail: detail,
	}, nil
}

// formatClusters groups each text column's values by shape (digits become N,
// letters become A) and reports columns with more than one shape.
func (c *Consistency) formatClusters(ds *dataset.Dataset) map[string]any {
	out := make(map[string]any)
	for col, column := range ds.Columns() {
		if column.Kind != dataset.KindText {
			continue
		}
		patterns := make(map[string]int)
		for r := 0; r < ds.Rows(); r++ {
			if ds.IsMissing(r, col) {
				continue
			}
			patterns[shapeOf(ds.Value(r, col))]++
		}
		if len(patterns) > 1 {
			dominant := 0
			total := 0
			for _, n := range patterns {
				total += n
				if n > dominant {
					dominant = n
				}
			}
			out[column.Name] = map[string]any{
				"pattern_count":     len(patterns),
				"consistency_score": roundScore(float64(dominant) / float64(total) * 100),
			}
		}
	}
	return out
}

// valueVariants reports text values that collide once trimmed and lowered,
// e.g. "USA" vs " usa".
func (c *Consistency) valueVariants(ds *dataset.Dataset) map[string]any {
	out := make(map[string]any)
	for col, column := range ds.Columns() {
		if column.Kind != dataset.KindText {
			continue
		}
		normalized := make(map[string]string)
		var collisions [][]string
		for r := 0; r < ds.Rows(); r++ {
			if ds.IsMissing(r, col) {
				continue
			}
			v := ds.Value(r, col)
			norm := strings.ToLower(strings.TrimSpace(v))
			if prev, ok := normalized[norm]; ok {
				if prev != v {
					collisions = append(collisions, []string{prev, v})
				}
				continue
			}
			normalized[norm] = v
		}
		if len(collisions) > 0 {
			out[column.Name] = map[string]any{
				"variant_pairs": collisions,
			}
		}
	}
	return out
}

// shapeOf abstracts a value to its character-class pattern.
func shapeOf(v string) string {
	var b strings.Builder
	b.Grow(len(v))
	for _, r := range v {
		switch {
		case r >= '0' && r <= '9':
			b.WriteByte('N')
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			b.WriteByte('A')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
