package recommend

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/okian/datacheck/internal/domain/model"
)

const systemPrompt = `You are a data quality engineer. Given quality and anomaly findings for a tabular dataset, respond with ONLY a JSON array of recommendation objects, no prose before or after. Each object has exactly these keys: "priority" (one of "high", "medium", "low"), "category", "issue", "recommendation", "code_example" (may be empty), "impact". Order does not matter. Suggest concrete, minimal cleaning steps.`

// buildPrompt summarizes the findings compactly enough for a small local
// model.
func buildPrompt(name string, quality *model.QualityReport, anomalies *model.AnomalyReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dataset: %s\n\n", name)

	if quality != nil {
		b.WriteString("Quality scores (0-100):\n")
		fmt.Fprintf(&b, "- overall: %.2f\n", quality.OverallScore)
		fmt.Fprintf(&b, "- completeness: %.2f\n", quality.CompletenessScore)
		fmt.Fprintf(&b, "- consistency: %.2f\n", quality.ConsistencyScore)
		fmt.Fprintf(&b, "- accuracy: %.2f\n", quality.AccuracyScore)
		fmt.Fprintf(&b, "- uniqueness: %.2f\n", quality.UniquenessScore)
		writeDetailSummary(&b, quality.Details)
	}

	if anomalies != nil && anomalies.Applicable {
		fmt.Fprintf(&b, "\nAnomalies: %d rows (%.2f%%) flagged by detector consensus.\n",
			anomalies.AnomalyCount, anomalies.AnomalyPercentage)
		if len(anomalies.FeatureImportance) > 0 {
			b.WriteString("Feature importance:\n")
			for _, name := range sortedKeys(anomalies.FeatureImportance) {
				fmt.Fprintf(&b, "- %s: %.4f\n", name, anomalies.FeatureImportance[name])
			}
		}
	}

	b.WriteString("\nRespond with the JSON array now.")
	return b.String()
}

// writeDetailSummary flattens the analyzer details to one JSON line each so
// the prompt stays bounded.
func writeDetailSummary(b *strings.Builder, details map[string]map[string]any) {
	if len(details) == 0 {
		return
	}
	b.WriteString("\nFindings:\n")
	for _, analyzer := range sortedDetailKeys(details) {
		encoded, err := json.Marshal(details[analyzer])
		if err != nil {
			continue
		}
		const maxDetailLine = 2000
		line := string(encoded)
		if len(line) > maxDetailLine {
			line = line[:maxDetailLine] + "..."
		}
		fmt.Fprintf(b, "- %s: %s\n", analyzer, line)
	}
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedDetailKeys(m map[string]map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// parseRecommendations extracts structured recommendations from model
// output. Models often wrap the JSON in prose or code fences, so after a
// direct unmarshal fails the first balanced bracket span is tried. Output
// with no parseable JSON at all is kept as a single free-form
// recommendation rather than discarded.
func parseRecommendations(text string) []model.Recommendation {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	if items, ok := unmarshalItems(trimmed); ok {
		return items
	}
	if span := bracketSpan(trimmed); span != "" {
		if items, ok := unmarshalItems(span); ok {
			return items
		}
	}

	return []model.Recommendation{{
		Priority:       model.PriorityLow,
		Category:       "general",
		Issue:          "model output was not structured",
		Recommendation: trimmed,
		Impact:         "review manually",
	}}
}

func unmarshalItems(s string) ([]model.Recommendation, bool) {
	var items []model.Recommendation
	if err := json.Unmarshal([]byte(s), &items); err != nil {
		return nil, false
	}
	out := items[:0]
	for _, it := range items {
		if it.Recommendation == "" && it.Issue == "" {
			continue
		}
		it.Priority = normalizePriority(it.Priority)
		out = append(out, it)
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

// bracketSpan returns the first balanced top-level JSON array in s, or "".
// Brackets inside JSON strings are skipped.
func bracketSpan(s string) string {
	start := strings.IndexByte(s, '[')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// normalizePriority lowercases the model's priority and maps anything
// unrecognized to low.
func normalizePriority(p model.Priority) model.Priority {
	switch model.Priority(strings.ToLower(strings.TrimSpace(string(p)))) {
	case model.PriorityHigh:
		return model.PriorityHigh
	case model.PriorityMedium:
		return model.PriorityMedium
	default:
		return model.PriorityLow
	}
}
