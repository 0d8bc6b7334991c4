package config

import (
	"fmt"

	"threadlens/internal/types"
)

// SamplingConfig controls deterministic post and comment sampling.
// Seed zero means "derive from (subject, time window)".
type SamplingConfig struct {
	Strategies       []types.SortStrategy `yaml:"strategies"`
	PostsPerStrategy int                  `yaml:"posts_per_strategy"`
	CommentsPerPost  int                  `yaml:"comments_per_post"`
	MaxDepth         int                  `yaml:"max_depth"`
	Seed             int64                `yaml:"seed"`
}

// DefaultSamplingConfig returns the stock sampling parameters.
func DefaultSamplingConfig() SamplingConfig {
	return SamplingConfig{
		Strategies:       []types.SortStrategy{types.SortTop, types.SortNew},
		PostsPerStrategy: 25,
		CommentsPerPost:  50,
		MaxDepth:         3,
	}
}

// ValidateSamplingConfig returns human-readable range violations. An
// empty slice means the config is valid. It never returns an error: the
// caller checks the list before any I/O happens.
func ValidateSamplingConfig(cfg SamplingConfig) []string {
	var violations []string

	if len(cfg.Strategies) == 0 {
		violations = append(violations, "strategies must not be empty")
	}
	for _, s := range cfg.Strategies {
		if !s.Valid() {
			violations = append(violations, fmt.Sprintf("unknown strategy %q (want top, new, or controversial)", s))
		}
	}
	if cfg.PostsPerStrategy < 1 || cfg.PostsPerStrategy > 100 {
		violations = append(violations, fmt.Sprintf("posts_per_strategy must be in [1,100], got %d", cfg.PostsPerStrategy))
	}
	if cfg.CommentsPerPost < 1 || cfg.CommentsPerPost > 500 {
		violations = append(violations, fmt.Sprintf("comments_per_post must be in [1,500], got %d", cfg.CommentsPerPost))
	}
	if cfg.MaxDepth < 0 || cfg.MaxDepth > 10 {
		violations = append(violations, fmt.Sprintf("max_depth must be in [0,10], got %d", cfg.MaxDepth))
	}

	return violations
}
