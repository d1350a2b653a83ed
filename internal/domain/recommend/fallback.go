package recommend

import (
	"fmt"

	"github.com/okian/datacheck/internal/domain/model"
)

// Score thresholds for the rule-based fallback. A dimension under the low
// threshold produces a high-priority item, under the mid threshold a
// medium one.
const (
	fallbackLowScore = 70.0
	fallbackMidScore = 90.0
)

// Fallback derives recommendations from the reports alone, with no model
// in the loop. It always returns at least one item so a degraded set is
// never empty.
func Fallback(quality *model.QualityReport, anomalies *model.AnomalyReport) []model.Recommendation {
	var items []model.Recommendation

	if quality != nil {
		if r, ok := scoreRule(quality.CompletenessScore, "completeness",
			"columns contain missing values",
			"impute or drop rows with missing values; for numeric columns consider mean or median imputation",
			"df = df.dropna()  # or df.fillna(df.mean(numeric_only=True))",
			"restores usable rows for downstream analysis"); ok {
			items = append(items, r)
		}
		if r, ok := scoreRule(quality.ConsistencyScore, "consistency",
			"values are represented inconsistently or rows are duplicated",
			"normalize casing and formats, coerce stray tokens in typed columns, and drop exact duplicate rows",
			"df = df.drop_duplicates()",
			"prevents the same record from being counted twice"); ok {
			items = append(items, r)
		}
		if r, ok := scoreRule(quality.AccuracyScore, "accuracy",
			"numeric values fall outside their expected ranges",
			"inspect out-of-range values and either correct, cap or remove them",
			"df = df[(df[col] >= lower) & (df[col] <= upper)]",
			"keeps aggregates from being skewed by bad readings"); ok {
			items = append(items, r)
		}
		if r, ok := scoreRule(quality.UniquenessScore, "uniqueness",
			"the table contains duplicate rows",
			"deduplicate on the full row or on a chosen key column",
			"df = df.drop_duplicates()",
			"restores one row per real-world record"); ok {
			items = append(items, r)
		}
	}

	if anomalies != nil && anomalies.Applicable && anomalies.AnomalyCount > 0 {
		priority := model.PriorityMedium
		if anomalies.AnomalyPercentage > 10 {
			priority = model.PriorityHigh
		}
		items = append(items, model.Recommendation{
			Priority: priority,
			Category: "anomalies",
			Issue: fmt.Sprintf("%d rows (%.1f%%) were flagged anomalous by detector consensus",
				anomalies.AnomalyCount, anomalies.AnomalyPercentage),
			Recommendation: "review the flagged rows before modeling; verify whether they are data entry errors or genuine rare events",
			CodeExample:    "suspect = df.iloc[anomaly_indices]",
			Impact:         "anomalous rows can dominate statistics and model fits",
		})
	}

	if len(items) == 0 {
		items = append(items, model.Recommendation{
			Priority:       model.PriorityLow,
			Category:       "maintenance",
			Issue:          "no significant quality issues detected",
			Recommendation: "keep validating new data against the same checks as it arrives",
			Impact:         "catches regressions before they spread downstream",
		})
	}
	return items
}

func scoreRule(score float64, category, issue, action, code, impact string) (model.Recommendation, bool) {
	if score >= fallbackMidScore {
		return model.Recommendation{}, false
	}
	priority := model.PriorityMedium
	if score < fallbackLowScore {
		priority = model.PriorityHigh
	}
	return model.Recommendation{
		Priority:       priority,
		Category:       category,
		Issue:          fmt.Sprintf("%s (score %.1f)", issue, score),
		Recommendation: action,
		CodeExample:    code,
		Impact:         impact,
	}, true
}
