// Package recommend turns quality and anomaly findings into an ordered
// list of cleaning recommendations, asking a language model first and
// falling back to fixed rules when it is unavailable.
package recommend

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/okian/datacheck/internal/domain/model"
	"github.com/okian/datacheck/pkg/logger"
	"github.com/okian/datacheck/pkg/metrics"
)

// Generator produces free-form text from a system prompt and a user
// prompt. The llm adapter satisfies it.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// Option applies a configuration option to the Formatter.
type Option func(*Formatter)

// WithGenerator sets the text generator consulted before the fallback.
func WithGenerator(g Generator) Option {
	return func(f *Formatter) {
		f.generator = g
	}
}

// WithTimeout bounds the generator call. The fallback has no timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *Formatter) {
		if d > 0 {
			f.timeout = d
		}
	}
}

const defaultGenerateTimeout = 2 * time.Minute

// Formatter builds recommendation sets. With no generator configured it
// goes straight to the rule-based fallback.
type Formatter struct {
	generator Generator
	timeout   time.Duration
	log       logger.Logger
}

// New creates a formatter with configuration options.
func New(opts ...Option) *Formatter {
	f := &Formatter{
		timeout: defaultGenerateTimeout,
		log:     logger.Named("recommend"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Build produces a recommendation set for the given findings. It never
// returns an empty set when the reports show issues: if the generator
// fails, times out or returns unusable text, the rule-based fallback fills
// in and the set is marked degraded.
func (f *Formatter) Build(ctx context.Context, name string, quality *model.QualityReport, anomalies *model.AnomalyReport) *model.RecommendationSet {
	metrics.RecordRecommendationJob()

	if f.generator != nil {
		gctx, cancel := context.WithTimeout(ctx, f.timeout)
		defer cancel()
		text, err := f.generator.Generate(gctx, systemPrompt, buildPrompt(name, quality, anomalies))
		if err == nil {
			if items := parseRecommendations(text); len(items) > 0 {
				sortByPriority(items)
				return &model.RecommendationSet{
					Status:      model.RecommendationReady,
					Items:       items,
					GeneratedAt: time.Now().UTC(),
				}
			}
			err = fmt.Errorf("no recommendations parsed from %d bytes of output", len(text))
		}
		f.log.Warn(ctx, "falling back to rule-based recommendations",
			logger.String("dataset", name),
			logger.Error(err))
	}

	metrics.RecordRecommendationFallback()
	items := Fallback(quality, anomalies)
	sortByPriority(items)
	return &model.RecommendationSet{
		Status:      model.RecommendationDegraded,
		Items:       items,
		GeneratedAt: time.Now().UTC(),
	}
}

// sortByPriority orders high before medium before low, keeping the
// original order within a priority.
func sortByPriority(items []model.Recommendation) {
	sort.SliceStable(items, func(a, b int) bool {
		return items[a].Priority.Rank() > items[b].Priority.Rank()
	})
}
