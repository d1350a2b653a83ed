package config

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// weightSumTolerance bounds floating-point drift when validating that the
// quality weights form a convex combination.
const weightSumTolerance = 1e-9

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if DATACHECK_CONFIG is set
//  3. env (prefix DATACHECK_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("DATACHECK_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: DATACHECK_ADDR, DATACHECK_QUEUE_SIZE, ...
	// Map env keys like DATACHECK_QUEUE_SIZE -> queue_size (flat keys).
	envProvider := env.Provider("DATACHECK_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "datacheck_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations that cannot produce well-defined results.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if c.Contamination <= 0 || c.Contamination >= 0.5 {
		return fmt.Errorf("%w: contamination must be in (0, 0.5)", ErrInvalidConfig)
	}
	if c.AnomalyQuorum < 1 {
		return fmt.Errorf("%w: anomaly_quorum must be at least 1", ErrInvalidConfig)
	}
	if c.AnomalyMinRows < 1 {
		return fmt.Errorf("%w: anomaly_min_rows must be at least 1", ErrInvalidConfig)
	}
	var sum float64
	for dim, w := range c.QualityWeights {
		if w < 0 {
			return fmt.Errorf("%w: quality weight %q is negative", ErrInvalidConfig, dim)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > weightSumTolerance {
		return fmt.Errorf("%w: quality weights sum to %v, want 1", ErrInvalidConfig, sum)
	}
	return nil
}
