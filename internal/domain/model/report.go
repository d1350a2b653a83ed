// Package model contains domain models passed between layers.
package model

import "time"

// QualityReport is the immutable result of one quality assessment run.
// OverallScore is a fixed convex combination of the four sub-scores.
type QualityReport struct {
	OverallScore      float64                   `json:"overall_score"`
	CompletenessScore float64                   `json:"completeness_score"`
	ConsistencyScore  float64                   `json:"consistency_score"`
	AccuracyScore     float64                   `json:"accuracy_score"`
	UniquenessScore   float64                   `json:"uniqueness_score"`
	Details           map[string]map[string]any `json:"details"`
	GeneratedAt       time.Time                 `json:"generated_at"`
}

// DetectorResult is one detector's view of the table.
type DetectorResult struct {
	AnomalyCount   int   `json:"anomaly_count"`
	AnomalyIndices []int `json:"anomaly_indices"`
}

// AnomalyReport is the consensus output of the anomaly ensemble. When the
// table is too small or has no encodable features, Applicable is false and
// Reason explains why; all other fields are zero.
type AnomalyReport struct {
	Applicable        bool                      `json:"applicable"`
	Reason            string                    `json:"reason,omitempty"`
	AnomalyCount      int                       `json:"anomaly_count"`
	AnomalyPercentage float64                   `json:"anomaly_percentage"`
	AnomalyIndices    []int                     `json:"anomaly_indices"`
	FeatureImportance map[string]float64        `json:"feature_importance"`
	ModelResults      map[string]DetectorResult `json:"model_results"`
	GeneratedAt       time.Time                 `json:"generated_at"`
}

// Priority orders recommendations by severity.
type Priority string

// Recommendation priorities.
const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Rank maps priorities to a sortable severity; higher is more severe.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	default:
		return 0
	}
}

// Recommendation is one structured cleaning suggestion.
type Recommendation struct {
	Priority       Priority `json:"priority"`
	Category       string   `json:"category"`
	Issue          string   `json:"issue"`
	Recommendation string   `json:"recommendation"`
	CodeExample    string   `json:"code_example,omitempty"`
	Impact         string   `json:"impact"`
}

// RecommendationStatus tracks the async delivery of a recommendation set.
type RecommendationStatus string

// Recommendation set states. Degraded means the LLM was unavailable and the
// set was produced by the rule-based fallback.
const (
	RecommendationPending  RecommendationStatus = "pending"
	RecommendationReady    RecommendationStatus = "ready"
	RecommendationDegraded RecommendationStatus = "degraded"
)

// RecommendationSet is the ordered list of recommendations for a dataset.
type RecommendationSet struct {
	Status      RecommendationStatus `json:"status"`
	Items       []Recommendation     `json:"items"`
	GeneratedAt time.Time            `json:"generated_at"`
}

// RecommendationJob is the payload flowing through the job queue.
type RecommendationJob struct {
	DatasetID  string
	EnqueuedAt time.Time
}
