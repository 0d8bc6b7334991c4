package config

import "time"

// ContentConfig configures the upstream content API client.
type ContentConfig struct {
	BaseURL   string `yaml:"base_url"`
	UserAgent string `yaml:"user_agent"`
	Timeout   string `yaml:"timeout"` // duration string, e.g. "30s"

	// Token-bucket rate limit shared process-wide.
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
	Burst             int     `yaml:"burst"`
}

// DefaultContentConfig returns sensible defaults.
func DefaultContentConfig() ContentConfig {
	return ContentConfig{
		BaseURL:           "https://www.reddit.com",
		UserAgent:         "threadlens/1.0",
		Timeout:           "30s",
		RequestsPerMinute: 60,
		Burst:             10,
	}
}

// TimeoutDuration returns the HTTP timeout, defaulting to 30s when unset
// or unparsable.
func (c ContentConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}
