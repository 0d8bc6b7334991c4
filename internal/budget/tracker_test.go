package budget

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"threadlens/internal/config"
	"threadlens/internal/types"
)

func testBudget() config.BudgetConfig {
	return config.BudgetConfig{
		MaxLLMCallsPerTask:  map[string]int{"sentiment": 10, "hostility": 5},
		MaxCommentsPerDepth: map[int]int{0: 100, 1: 50},
		MaxTotalTokens:      10_000,
		MaxTotalCostUSD:     1.00,
		ModelRates: map[string]config.ModelRate{
			"gpt-4o-mini": {InputPer1K: 0.00015, OutputPer1K: 0.0006},
		},
		FallbackRate: config.ModelRate{InputPer1K: 0.001, OutputPer1K: 0.002},
	}
}

func TestCheck(t *testing.T) {
	cfg := testBudget()

	t.Run("zero usage is within budget", func(t *testing.T) {
		result := Check(NewUsage(), cfg)
		assert.True(t, result.WithinBudget)
		assert.Empty(t, result.Violations)
		assert.Equal(t, 10_000, result.Remaining.Tokens)
		assert.Equal(t, 10, result.Remaining.CallsByTask[types.TaskSentiment])
	})

	t.Run("token ceiling breach is a violation", func(t *testing.T) {
		usage := NewUsage()
		usage.TokensUsed = 10_001
		result := Check(usage, cfg)
		assert.False(t, result.WithinBudget)
		require.NotEmpty(t, result.Violations)
		assert.Contains(t, result.Violations[0], "token ceiling")
		assert.Zero(t, result.Remaining.Tokens)
	})

	t.Run("cost ceiling breach is a violation", func(t *testing.T) {
		usage := NewUsage()
		usage.EstimatedCostUSD = 1.5
		result := Check(usage, cfg)
		assert.False(t, result.WithinBudget)
	})

	t.Run("near-ceiling usage warns without blocking", func(t *testing.T) {
		usage := NewUsage()
		usage.TokensUsed = 9_500
		result := Check(usage, cfg)
		assert.True(t, result.WithinBudget)
		assert.NotEmpty(t, result.Warnings)
	})

	t.Run("depth ceiling breach is a violation", func(t *testing.T) {
		usage := NewUsage()
		usage.CommentsProcessedByDepth[1] = 51
		result := Check(usage, cfg)
		assert.False(t, result.WithinBudget)
	})
}

func TestAuthorize(t *testing.T) {
	t.Run("reserves the slot atomically", func(t *testing.T) {
		cfg := testBudget()
		cfg.MaxLLMCallsPerTask = map[string]int{"sentiment": 3}
		tracker := NewTracker(cfg)

		granted := 0
		var mu sync.Mutex
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if ok, _ := tracker.Authorize(types.TaskSentiment); ok {
					mu.Lock()
					granted++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		// The ceiling is "used > ceiling": the check passes until the
		// count exceeds it, so at most ceiling+1 reservations land.
		assert.LessOrEqual(t, granted, 4)
		assert.GreaterOrEqual(t, granted, 3)
	})

	t.Run("denied once over budget", func(t *testing.T) {
		cfg := testBudget()
		cfg.MaxTotalTokens = 100
		tracker := NewTracker(cfg)
		tracker.RecordCallResult("gpt-4o-mini", 200, 0, 0)

		ok, result := tracker.Authorize(types.TaskSentiment)
		assert.False(t, ok)
		assert.NotEmpty(t, result.Violations)
	})
}

func TestRecordCallResult(t *testing.T) {
	t.Run("real token counts preferred", func(t *testing.T) {
		tracker := NewTracker(testBudget())
		tracker.RecordCallResult("gpt-4o-mini", 1000, 700, 300)

		usage := tracker.Snapshot()
		assert.Equal(t, 1000, usage.TokensUsed)
		assert.Equal(t, 700, usage.InputTokens)
		assert.Equal(t, 300, usage.OutputTokens)
		want := (700*0.00015 + 300*0.0006) / 1000
		assert.InDelta(t, want, usage.EstimatedCostUSD, 1e-9)
	})

	t.Run("falls back to 80/20 split", func(t *testing.T) {
		tracker := NewTracker(testBudget())
		tracker.RecordCallResult("gpt-4o-mini", 1000, 0, 0)

		usage := tracker.Snapshot()
		assert.Equal(t, 800, usage.InputTokens)
		assert.Equal(t, 200, usage.OutputTokens)
	})

	t.Run("unknown model uses fallback rate", func(t *testing.T) {
		tracker := NewTracker(testBudget())
		tracker.RecordCallResult("mystery-model", 1000, 800, 200)

		usage := tracker.Snapshot()
		want := (800*0.001 + 200*0.002) / 1000
		assert.InDelta(t, want, usage.EstimatedCostUSD, 1e-9)
	})
}

func TestRecordComments(t *testing.T) {
	tracker := NewTracker(testBudget())
	tracker.RecordComments(0, 30)
	tracker.RecordComments(0, 20)
	tracker.RecordComments(2, 5)

	usage := tracker.Snapshot()
	assert.Equal(t, 50, usage.CommentsProcessedByDepth[0])
	assert.Equal(t, 5, usage.CommentsProcessedByDepth[2])
}

func TestSnapshotIsACopy(t *testing.T) {
	tracker := NewTracker(testBudget())
	tracker.RecordComments(0, 1)

	snap := tracker.Snapshot()
	snap.CommentsProcessedByDepth[0] = 999

	assert.Equal(t, 1, tracker.Snapshot().CommentsProcessedByDepth[0])
}

func TestEstimateCost(t *testing.T) {
	cfg := testBudget()
	got := EstimateCost(1000, "gpt-4o-mini", cfg)
	want := (0.8*1000*0.00015 + 0.2*1000*0.0006) / 1000
	assert.InDelta(t, want, got, 1e-9)
}
