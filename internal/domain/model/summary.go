package model

import "time"

// ColumnSummary describes one column of a stored dataset.
type ColumnSummary struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// DatasetSummary is the read shape returned by dataset queries.
type DatasetSummary struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	Rows               int             `json:"rows"`
	Columns            []ColumnSummary `json:"columns"`
	HasQuality         bool            `json:"has_quality_report"`
	HasAnomaly         bool            `json:"has_anomaly_report"`
	HasRecommendations bool            `json:"has_recommendations"`
	CreatedAt          time.Time       `json:"created_at"`
	ExpiresAt          time.Time       `json:"expires_at"`
}
