package cache

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"threadlens/internal/types"
)

func cacheBackends(t *testing.T) map[string]Cache {
	t.Helper()
	sqliteCache, err := NewSQLiteCache(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqliteCache.Close() })
	return map[string]Cache{
		"memory": NewMemoryCache(),
		"sqlite": sqliteCache,
	}
}

func sentimentKey(itemID string) Key {
	return Key{
		ItemID:        itemID,
		TaskType:      types.TaskSentiment,
		Model:         "gpt-4o-mini",
		PromptVersion: "sentiment-v2",
	}
}

func TestKeyString(t *testing.T) {
	t.Run("edit time changes the key", func(t *testing.T) {
		edited := time.Unix(1_700_000_000, 0)
		a := sentimentKey("c1")
		b := sentimentKey("c1")
		b.EditedAt = &edited
		assert.NotEqual(t, a.String(), b.String())
	})

	t.Run("target group changes the key", func(t *testing.T) {
		a := Key{ItemID: "c1", TaskType: types.TaskHostility, Framework: types.FrameworkIHRA, TargetGroup: "g1"}
		b := a
		b.TargetGroup = "g2"
		assert.NotEqual(t, a.String(), b.String())
	})

	t.Run("every identity field participates", func(t *testing.T) {
		base := Key{ItemID: "c1", TaskType: types.TaskSentiment, Model: "m", PromptVersion: "v1"}
		variants := []Key{
			{ItemID: "c2", TaskType: types.TaskSentiment, Model: "m", PromptVersion: "v1"},
			{ItemID: "c1", TaskType: types.TaskHostility, Model: "m", PromptVersion: "v1"},
			{ItemID: "c1", TaskType: types.TaskSentiment, Model: "m2", PromptVersion: "v1"},
			{ItemID: "c1", TaskType: types.TaskSentiment, Model: "m", PromptVersion: "v2"},
		}
		for _, v := range variants {
			assert.NotEqual(t, base.String(), v.String())
		}
	})
}

func TestCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, c := range cacheBackends(t) {
		t.Run(name, func(t *testing.T) {
			key := sentimentKey("c1")
			payload, _ := json.Marshal(types.SentimentClassification{ItemID: "c1", Sentiment: types.SentimentPositive})

			_, ok, err := c.Get(ctx, key)
			require.NoError(t, err)
			assert.False(t, ok, "miss before set")

			require.NoError(t, c.Set(ctx, Entry{Key: key, Result: payload, TokensUsed: 42}))

			entry, ok, err := c.Get(ctx, key)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, 42, entry.TokensUsed)

			var cls types.SentimentClassification
			require.NoError(t, json.Unmarshal(entry.Result, &cls))
			assert.Equal(t, types.SentimentPositive, cls.Sentiment)
		})
	}
}

func TestCacheUpsert(t *testing.T) {
	ctx := context.Background()
	for name, c := range cacheBackends(t) {
		t.Run(name, func(t *testing.T) {
			key := sentimentKey("c1")
			require.NoError(t, c.Set(ctx, Entry{Key: key, Result: json.RawMessage(`{"v":1}`)}))
			require.NoError(t, c.Set(ctx, Entry{Key: key, Result: json.RawMessage(`{"v":2}`)}))

			entry, ok, err := c.Get(ctx, key)
			require.NoError(t, err)
			require.True(t, ok)
			assert.JSONEq(t, `{"v":2}`, string(entry.Result))
		})
	}
}

func TestCacheExpiry(t *testing.T) {
	ctx := context.Background()
	for name, c := range cacheBackends(t) {
		t.Run(name, func(t *testing.T) {
			key := sentimentKey("c1")
			past := time.Now().Add(-time.Minute)
			require.NoError(t, c.Set(ctx, Entry{Key: key, Result: json.RawMessage(`{}`), ExpiresAt: &past}))

			_, ok, err := c.Get(ctx, key)
			require.NoError(t, err)
			assert.False(t, ok, "expired entries read as absent")

			future := time.Now().Add(time.Hour)
			require.NoError(t, c.Set(ctx, Entry{Key: key, Result: json.RawMessage(`{}`), ExpiresAt: &future}))
			_, ok, err = c.Get(ctx, key)
			require.NoError(t, err)
			assert.True(t, ok, "unexpired entries are served")
		})
	}
}

func TestMemoryCacheEvictsExpired(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	past := time.Now().Add(-time.Minute)
	require.NoError(t, c.Set(ctx, Entry{Key: sentimentKey("c1"), Result: json.RawMessage(`{}`), ExpiresAt: &past}))
	require.Equal(t, 1, c.Len())

	_, ok, err := c.Get(ctx, sentimentKey("c1"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, c.Len(), "read of an expired entry evicts it")
}
