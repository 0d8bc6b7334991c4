package config

import (
	"fmt"
	"time"
)

// LLMConfig configures the remote classifier client and Stage B batching.
type LLMConfig struct {
	Provider string `yaml:"provider"` // openai, gemini
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"` // duration string, e.g. "60s"

	// Batch bounds: a batch closes before adding an item that would
	// breach either, unless the batch is empty.
	MaxBatchItems  int `yaml:"max_batch_items"`
	MaxBatchTokens int `yaml:"max_batch_tokens"`

	// MaxConcurrentBatches caps simultaneous Stage B calls per task.
	MaxConcurrentBatches int `yaml:"max_concurrent_batches"`

	// Prompt versions participate in cache-key identity.
	SentimentPromptVersion string `yaml:"sentiment_prompt_version"`
	HostilityPromptVersion string `yaml:"hostility_prompt_version"`
}

// DefaultLLMConfig returns sensible defaults.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider:               "openai",
		Model:                  "gpt-4o-mini",
		BaseURL:                "https://api.openai.com/v1",
		Timeout:                "60s",
		MaxBatchItems:          20,
		MaxBatchTokens:         6000,
		MaxConcurrentBatches:   4,
		SentimentPromptVersion: "sentiment-v2",
		HostilityPromptVersion: "hostility-v3",
	}
}

// TimeoutDuration returns the per-call timeout, defaulting to 60s when
// unset or unparsable.
func (l LLMConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(l.Timeout)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}

// Validate checks provider and bounds.
func (l LLMConfig) Validate() error {
	switch l.Provider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("llm.provider must be openai or gemini, got %q", l.Provider)
	}
	if l.MaxBatchItems < 1 {
		return fmt.Errorf("llm.max_batch_items must be >= 1")
	}
	if l.MaxBatchTokens < 1 {
		return fmt.Errorf("llm.max_batch_tokens must be >= 1")
	}
	if l.MaxConcurrentBatches < 1 {
		return fmt.Errorf("llm.max_concurrent_batches must be >= 1")
	}
	return nil
}
