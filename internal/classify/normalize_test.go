package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"threadlens/internal/types"
)

func TestNormalizeSentiment(t *testing.T) {
	cases := map[string]types.Sentiment{
		"positive":    types.SentimentPositive,
		"  Positive ": types.SentimentPositive,
		"POS":         types.SentimentPositive,
		"negative":    types.SentimentNegative,
		"unfavorable": types.SentimentNegative,
		"neutral":     types.SentimentNeutral,
		"mixed":       types.SentimentNeutral,
		"banana":      types.SentimentNeutral,
		"":            types.SentimentNeutral,
	}
	for raw, want := range cases {
		assert.Equal(t, want, NormalizeSentiment(raw), "raw %q", raw)
	}
}

func TestNormalizeHostilityLevel(t *testing.T) {
	cases := map[string]types.HostilityLevel{
		"none":     types.HostilityNone,
		"LOW":      types.HostilityLow,
		"moderate": types.HostilityMedium,
		"severe":   types.HostilityHigh,
		"unknown":  types.HostilityNone,
	}
	for raw, want := range cases {
		assert.Equal(t, want, NormalizeHostilityLevel(raw), "raw %q", raw)
	}
}

func TestNormalizeLabels(t *testing.T) {
	t.Run("synonyms collapse and order is kept", func(t *testing.T) {
		got := NormalizeLabels([]string{"Slurs", "violent", "made-up", "slur", "Stereotyping"})
		assert.Equal(t, []types.HostilityLabel{types.LabelSlur, types.LabelViolence, types.LabelStereotype}, got)
	})

	t.Run("empty input yields none", func(t *testing.T) {
		assert.Nil(t, NormalizeLabels(nil))
		assert.Nil(t, NormalizeLabels([]string{"nonsense"}))
	})
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, Clamp01(-0.5))
	assert.Equal(t, 1.0, Clamp01(1.5))
	assert.Equal(t, 0.42, Clamp01(0.42))
}

func TestBuildBatches(t *testing.T) {
	mkItems := func(n, textLen int) []Item {
		items := make([]Item, n)
		for i := range items {
			items[i] = Item{ID: string(rune('a' + i)), Text: string(make([]byte, textLen))}
		}
		return items
	}

	t.Run("splits on item count", func(t *testing.T) {
		batches := BuildBatches(mkItems(45, 4), 20, 1_000_000)
		assert.Len(t, batches, 3)
		assert.Len(t, batches[0], 20)
		assert.Len(t, batches[2], 5)
	})

	t.Run("splits on token estimate", func(t *testing.T) {
		// 400 chars is 100 estimated tokens each.
		batches := BuildBatches(mkItems(5, 400), 100, 250)
		assert.Len(t, batches, 3)
		assert.Len(t, batches[0], 2)
	})

	t.Run("oversized single item still ships", func(t *testing.T) {
		batches := BuildBatches(mkItems(1, 40_000), 20, 100)
		assert.Len(t, batches, 1)
		assert.Len(t, batches[0], 1)
	})

	t.Run("empty input yields no batches", func(t *testing.T) {
		assert.Nil(t, BuildBatches(nil, 20, 100))
	})
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `[{"id":"a"}]`, stripFences("```json\n[{\"id\":\"a\"}]\n```"))
	assert.Equal(t, `[{"id":"a"}]`, stripFences("```\n[{\"id\":\"a\"}]\n```"))
	assert.Equal(t, `[{"id":"a"}]`, stripFences(`[{"id":"a"}]`))
}
