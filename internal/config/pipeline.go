package config

import "threadlens/internal/types"

// PipelineConfig controls the run-level caps and the optional target
// group analysis phase.
type PipelineConfig struct {
	// MaxCommentsTotal truncates the sampled comment set before any
	// classification begins. Zero means no cap.
	MaxCommentsTotal int `yaml:"max_comments_total"`

	EnableTargetGroupAnalysis bool `yaml:"enable_target_group_analysis"`

	// Frameworks and TargetGroups form the (framework, group) pairs each
	// run analyzes when target group analysis is enabled.
	Frameworks   []types.Framework `yaml:"frameworks"`
	TargetGroups []string          `yaml:"target_groups"`

	// FetchRetries bounds retry attempts for upstream content errors.
	FetchRetries int `yaml:"fetch_retries"`
}

// DefaultPipelineConfig returns the stock pipeline parameters.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		MaxCommentsTotal: 1000,
		Frameworks:       []types.Framework{types.FrameworkIHRA},
		FetchRetries:     3,
	}
}
