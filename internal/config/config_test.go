package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"threadlens/internal/types"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, 20, cfg.LLM.MaxBatchItems)
	assert.Equal(t, 4, cfg.LLM.MaxConcurrentBatches)
}

func TestLoad(t *testing.T) {
	t.Run("missing file yields defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		require.NoError(t, err)
		assert.Equal(t, Default().LLM.Model, cfg.LLM.Model)
	})

	t.Run("file layers over defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := `
llm:
  model: gpt-4o
  timeout: 30s
sampling:
  posts_per_strategy: 7
pipeline:
  enable_target_group_analysis: true
  target_groups: [jewish]
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "gpt-4o", cfg.LLM.Model)
		assert.Equal(t, 30*time.Second, cfg.LLM.TimeoutDuration())
		assert.Equal(t, 7, cfg.Sampling.PostsPerStrategy)
		assert.True(t, cfg.Pipeline.EnableTargetGroupAnalysis)
		assert.Equal(t, []string{"jewish"}, cfg.Pipeline.TargetGroups)
		// Untouched sections keep defaults.
		assert.Equal(t, "openai", cfg.LLM.Provider)
	})

	t.Run("malformed yaml errors", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("llm: ["), 0644))
		_, err := Load(path)
		assert.Error(t, err)
	})
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("THREADLENS_LLM_API_KEY", "sk-test")
	t.Setenv("THREADLENS_LLM_PROVIDER", "gemini")
	t.Setenv("THREADLENS_LLM_MODEL", "gemini-2.0-flash")
	t.Setenv("THREADLENS_CONTENT_USER_AGENT", "threadlens-test/1.0")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, "gemini-2.0-flash", cfg.LLM.Model)
	assert.Equal(t, "threadlens-test/1.0", cfg.Content.UserAgent)
}

func TestValidate(t *testing.T) {
	t.Run("bad provider", func(t *testing.T) {
		cfg := Default()
		cfg.LLM.Provider = "anthropic"
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad cache backend", func(t *testing.T) {
		cfg := Default()
		cfg.Cache.Backend = "redis"
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad store backend", func(t *testing.T) {
		cfg := Default()
		cfg.Store.Backend = "postgres"
		assert.Error(t, cfg.Validate())
	})
}

func TestValidateSamplingConfig(t *testing.T) {
	valid := SamplingConfig{
		Strategies:       []types.SortStrategy{types.SortTop},
		PostsPerStrategy: 5,
		CommentsPerPost:  50,
		MaxDepth:         5,
		Seed:             1,
	}
	assert.Empty(t, ValidateSamplingConfig(valid))

	t.Run("all violations reported at once", func(t *testing.T) {
		bad := SamplingConfig{
			PostsPerStrategy: 0,
			CommentsPerPost:  501,
			MaxDepth:         11,
		}
		violations := ValidateSamplingConfig(bad)
		assert.GreaterOrEqual(t, len(violations), 4)
	})

	t.Run("bounds are inclusive", func(t *testing.T) {
		edge := valid
		edge.PostsPerStrategy = 100
		edge.CommentsPerPost = 500
		edge.MaxDepth = 10
		assert.Empty(t, ValidateSamplingConfig(edge))
	})
}

func TestBudgetRateFor(t *testing.T) {
	cfg := DefaultBudgetConfig()
	known := cfg.RateFor("gpt-4o-mini")
	assert.Equal(t, cfg.ModelRates["gpt-4o-mini"], known)

	unknown := cfg.RateFor("never-heard-of-it")
	assert.Equal(t, cfg.FallbackRate, unknown)
}
