package config

import "fmt"

// ModelRate is the per-1000-token USD price pair for one model.
type ModelRate struct {
	InputPer1K  float64 `yaml:"input_per_1k"`
	OutputPer1K float64 `yaml:"output_per_1k"`
}

// BudgetConfig sets the hard ceilings for one pipeline run. Soft warning
// thresholds (80% of cost, 90% of tokens and call counts) are fixed
// design constants in the budget package, not configurable here.
type BudgetConfig struct {
	// MaxLLMCallsPerTask caps remote calls per task type ("sentiment",
	// "hostility").
	MaxLLMCallsPerTask map[string]int `yaml:"max_llm_calls_per_task"`

	// MaxCommentsPerDepth caps processed comments per tree depth.
	MaxCommentsPerDepth map[int]int `yaml:"max_comments_per_depth"`

	MaxTotalTokens  int     `yaml:"max_total_tokens"`
	MaxTotalCostUSD float64 `yaml:"max_total_cost_usd"`

	// ModelRates maps model name to its price pair; unknown models fall
	// back to FallbackRate.
	ModelRates   map[string]ModelRate `yaml:"model_rates"`
	FallbackRate ModelRate            `yaml:"fallback_rate"`
}

// DefaultBudgetConfig returns conservative stock ceilings.
func DefaultBudgetConfig() BudgetConfig {
	return BudgetConfig{
		MaxLLMCallsPerTask: map[string]int{
			"sentiment": 100,
			"hostility": 200,
		},
		MaxCommentsPerDepth: map[int]int{
			0: 500,
			1: 400,
			2: 300,
			3: 200,
		},
		MaxTotalTokens:  500_000,
		MaxTotalCostUSD: 5.00,
		ModelRates: map[string]ModelRate{
			"gpt-4o-mini":      {InputPer1K: 0.00015, OutputPer1K: 0.0006},
			"gpt-4o":           {InputPer1K: 0.0025, OutputPer1K: 0.01},
			"gemini-2.0-flash": {InputPer1K: 0.0001, OutputPer1K: 0.0004},
		},
		FallbackRate: ModelRate{InputPer1K: 0.001, OutputPer1K: 0.002},
	}
}

// Validate checks ceiling sanity.
func (b BudgetConfig) Validate() error {
	if b.MaxTotalTokens < 0 {
		return fmt.Errorf("budget.max_total_tokens must be >= 0")
	}
	if b.MaxTotalCostUSD < 0 {
		return fmt.Errorf("budget.max_total_cost_usd must be >= 0")
	}
	for task, n := range b.MaxLLMCallsPerTask {
		if n < 0 {
			return fmt.Errorf("budget.max_llm_calls_per_task[%s] must be >= 0", task)
		}
	}
	return nil
}

// RateFor returns the price pair for a model, falling back for unknowns.
func (b BudgetConfig) RateFor(model string) ModelRate {
	if rate, ok := b.ModelRates[model]; ok {
		return rate
	}
	return b.FallbackRate
}
