// Package repository defines the dataset store interface and errors.
package repository

import (
	"context"
	"time"

	"github.com/okian/datacheck/internal/domain/dataset"
	"github.com/okian/datacheck/internal/domain/model"
)

// Record bundles a stored dataset with the reports derived from it.
// Reports are nil until the corresponding stage has run.
type Record struct {
	ID              string
	Dataset         *dataset.Dataset
	Quality         *model.QualityReport
	Anomaly         *model.AnomalyReport
	Recommendations *model.RecommendationSet
	CreatedAt       time.Time
	ExpiresAt       time.Time
}

// Store provides access to uploaded datasets and their reports. Records
// expire after a TTL; reads of expired records behave as not found.
type Store interface {
	// Put stores a dataset and returns its id. Re-uploading content with
	// the same checksum returns the existing id with existing set.
	Put(ctx context.Context, ds *dataset.Dataset) (id string, existing bool, err error)

	// Get returns a snapshot of the record for id, or ErrNotFound. The
	// snapshot is safe to read while the setters run concurrently.
	Get(ctx context.Context, id string) (*Record, error)

	// SetQuality attaches a quality report to the record.
	SetQuality(ctx context.Context, id string, report *model.QualityReport) error

	// SetAnomaly attaches an anomaly report to the record.
	SetAnomaly(ctx context.Context, id string, report *model.AnomalyReport) error

	// SetRecommendations attaches a recommendation set to the record.
	SetRecommendations(ctx context.Context, id string, set *model.RecommendationSet) error

	// Count returns the number of live records.
	Count(ctx context.Context) int

	// Close stops background maintenance.
	Close()
}
