package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"threadlens/internal/config"
)

func newTestOpenAIClient(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenAIClient(OpenAIConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Model:   "gpt-4o-mini",
		Timeout: 5 * time.Second,
	})
}

func completionBody(content string, total, prompt, completion int) string {
	resp := map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"content": content}},
		},
		"usage": map[string]int{
			"prompt_tokens":     prompt,
			"completion_tokens": completion,
			"total_tokens":      total,
		},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func TestChatCompletion(t *testing.T) {
	messages := []Message{
		{Role: "system", Content: "you are a classifier"},
		{Role: "user", Content: "classify this"},
	}

	t.Run("success with usage", func(t *testing.T) {
		var seen openAIRequest
		client := newTestOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/chat/completions", r.URL.Path)
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&seen))
			w.Write([]byte(completionBody(`  {"items": []}  `, 100, 80, 20)))
		})

		result, err := client.ChatCompletion(context.Background(), messages, Options{JSONMode: true})
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, `{"items": []}`, result.Data, "content is trimmed")
		assert.Equal(t, 100, result.TokensUsed)
		assert.Equal(t, 80, result.InputTokens)
		assert.Equal(t, 20, result.OutputTokens)

		assert.Equal(t, "gpt-4o-mini", seen.Model)
		require.NotNil(t, seen.ResponseFormat)
		assert.Equal(t, "json_object", seen.ResponseFormat.Type)
	})

	t.Run("options model overrides default", func(t *testing.T) {
		var seen openAIRequest
		client := newTestOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewDecoder(r.Body).Decode(&seen)
			w.Write([]byte(completionBody("ok", 10, 8, 2)))
		})

		_, err := client.ChatCompletion(context.Background(), messages, Options{Model: "gpt-4o"})
		require.NoError(t, err)
		assert.Equal(t, "gpt-4o", seen.Model)
	})

	t.Run("retries rate limit then succeeds", func(t *testing.T) {
		var calls atomic.Int64
		client := newTestOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			w.Write([]byte(completionBody("ok", 10, 8, 2)))
		})

		result, err := client.ChatCompletion(context.Background(), messages, Options{})
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, int64(2), calls.Load())
	})

	t.Run("client error does not retry", func(t *testing.T) {
		var calls atomic.Int64
		client := newTestOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			http.Error(w, `{"error": {"message": "invalid model"}}`, http.StatusBadRequest)
		})

		result, err := client.ChatCompletion(context.Background(), messages, Options{})
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.Contains(t, result.Error, "status 400")
		assert.Equal(t, int64(1), calls.Load())
	})

	t.Run("api error payload fails", func(t *testing.T) {
		client := newTestOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"error": {"message": "quota exhausted", "type": "insufficient_quota"}}`))
		})

		result, err := client.ChatCompletion(context.Background(), messages, Options{})
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.Contains(t, result.Error, "quota exhausted")
	})

	t.Run("empty choices fails", func(t *testing.T) {
		client := newTestOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"choices": []}`))
		})

		result, err := client.ChatCompletion(context.Background(), messages, Options{})
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.Contains(t, result.Error, "no completion")
	})

	t.Run("missing api key fails without a request", func(t *testing.T) {
		var calls atomic.Int64
		client := newTestOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
		})
		client.apiKey = ""

		result, err := client.ChatCompletion(context.Background(), messages, Options{})
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.Equal(t, int64(0), calls.Load())
	})

	t.Run("cancelled context stops retry loop", func(t *testing.T) {
		client := newTestOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		result, err := client.ChatCompletion(ctx, messages, Options{})
		if err != nil {
			assert.ErrorIs(t, err, context.Canceled)
		}
		assert.False(t, result.Success)
	})
}

func TestBackoffDelay(t *testing.T) {
	assert.Equal(t, time.Second, backoffDelay(0, 0))
	assert.Equal(t, 2*time.Second, backoffDelay(1, 0))
	assert.Equal(t, 4*time.Second, backoffDelay(2, 0))
	assert.Equal(t, 30*time.Second, backoffDelay(2, 30*time.Second), "server hint wins")
}

func TestNewClient(t *testing.T) {
	t.Run("openai", func(t *testing.T) {
		cfg := config.DefaultLLMConfig()
		cfg.Provider = "openai"
		cfg.APIKey = "k"
		cfg.Model = "gpt-4o-mini"

		client, err := NewClient(context.Background(), cfg)
		require.NoError(t, err)
		assert.IsType(t, &OpenAIClient{}, client)
		assert.Equal(t, "gpt-4o-mini", client.Model())
	})

	t.Run("unknown provider", func(t *testing.T) {
		cfg := config.DefaultLLMConfig()
		cfg.Provider = "oracle"
		_, err := NewClient(context.Background(), cfg)
		assert.Error(t, err)
	})
}
