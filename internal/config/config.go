// Package config holds all threadlens configuration: one file per
// concern, yaml-backed, with env overrides for secrets.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all threadlens configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// DataDir is where logs and sqlite files live.
	DataDir string `yaml:"data_dir"`

	Sampling SamplingConfig `yaml:"sampling"`
	Budget   BudgetConfig   `yaml:"budget"`
	LLM      LLMConfig      `yaml:"llm"`
	Content  ContentConfig  `yaml:"content"`
	Cache    CacheConfig    `yaml:"cache"`
	Store    StoreConfig    `yaml:"store"`
	Logging  LoggingConfig  `yaml:"logging"`
	Pipeline PipelineConfig `yaml:"pipeline"`
}

// LoggingConfig controls the categorized file logger.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"`
}

// CacheConfig selects the classification cache backend.
type CacheConfig struct {
	Backend string `yaml:"backend"` // memory, sqlite
	Path    string `yaml:"path"`
	TTL     string `yaml:"ttl"` // duration string; empty means no expiry
}

// TTLDuration returns the cache TTL, zero (no expiry) when unset or
// unparsable.
func (c CacheConfig) TTLDuration() time.Duration {
	d, err := time.ParseDuration(c.TTL)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// StoreConfig selects the persistent store backend.
type StoreConfig struct {
	Backend string `yaml:"backend"` // memory, sqlite
	Path    string `yaml:"path"`
}

// Default returns a fully-populated default configuration.
func Default() *Config {
	return &Config{
		Name:     "threadlens",
		Version:  "1.0",
		DataDir:  ".threadlens",
		Sampling: DefaultSamplingConfig(),
		Budget:   DefaultBudgetConfig(),
		LLM:      DefaultLLMConfig(),
		Content:  DefaultContentConfig(),
		Cache: CacheConfig{
			Backend: "memory",
			TTL:     "720h",
		},
		Store: StoreConfig{
			Backend: "memory",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Pipeline: DefaultPipelineConfig(),
	}
}

// Load reads a yaml config file, layering it over defaults and applying
// env overrides last.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides pulls secrets and operator overrides from the
// environment. Env always wins over file values.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("THREADLENS_LLM_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if provider := os.Getenv("THREADLENS_LLM_PROVIDER"); provider != "" {
		c.LLM.Provider = provider
	}
	if model := os.Getenv("THREADLENS_LLM_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if ua := os.Getenv("THREADLENS_CONTENT_USER_AGENT"); ua != "" {
		c.Content.UserAgent = ua
	}
}

// Validate checks everything except sampling ranges, which have their own
// violations-list contract (ValidateSamplingConfig).
func (c *Config) Validate() error {
	if err := c.LLM.Validate(); err != nil {
		return err
	}
	if err := c.Budget.Validate(); err != nil {
		return err
	}
	switch c.Cache.Backend {
	case "", "memory", "sqlite":
	default:
		return fmt.Errorf("cache.backend must be memory or sqlite, got %q", c.Cache.Backend)
	}
	switch c.Store.Backend {
	case "", "memory", "sqlite":
	default:
		return fmt.Errorf("store.backend must be memory or sqlite, got %q", c.Store.Backend)
	}
	return nil
}
