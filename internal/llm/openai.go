package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"threadlens/internal/logging"
)

// OpenAIConfig holds configuration for the OpenAI-compatible client.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// DefaultOpenAIConfig returns sensible defaults.
func DefaultOpenAIConfig(apiKey string) OpenAIConfig {
	return OpenAIConfig{
		APIKey:  apiKey,
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-4o-mini",
		Timeout: 60 * time.Second,
	}
}

// OpenAIClient implements Client against any OpenAI-compatible
// chat-completions endpoint.
type OpenAIClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewOpenAIClient creates a client with the given config.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &OpenAIClient{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Model returns the default model name.
func (c *OpenAIClient) Model() string { return c.model }

type openAIRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// ChatCompletion performs one call with bounded retry: 429 and 5xx and
// network failures back off and retry, other 4xx fail immediately.
func (c *OpenAIClient) ChatCompletion(ctx context.Context, messages []Message, opts Options) (Result, error) {
	if c.apiKey == "" {
		return Result{Error: "API key not configured"}, nil
	}

	model := opts.Model
	if model == "" {
		model = c.model
	}

	reqBody := openAIRequest{
		Model:       model,
		Messages:    messages,
		Temperature: 0.1, // low temperature for structured output
	}
	if opts.JSONMode {
		reqBody.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return Result{Error: fmt.Sprintf("failed to marshal request: %v", err)}, nil
	}

	var (
		lastErr  string
		lastHint time.Duration
	)
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return Result{Error: ctx.Err().Error()}, ctx.Err()
			case <-time.After(backoffDelay(attempt-1, lastHint)):
			}
		}

		result, retryable, retryAfter := c.doOnce(ctx, jsonData)
		if result.Success || !retryable {
			return result, nil
		}
		lastErr = result.Error
		lastHint = retryAfter
		logging.ClassifyDebug("llm retry %d/%d: %s", attempt+1, maxRetries, lastErr)
	}

	return Result{Error: "max retries exceeded: " + lastErr}, nil
}

// doOnce performs a single HTTP round trip. The bool reports whether the
// failure is retryable; the duration is the server's retry-after hint.
func (c *OpenAIClient) doOnce(ctx context.Context, body []byte) (Result, bool, time.Duration) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Result{Error: fmt.Sprintf("failed to create request: %v", err)}, false, 0
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{Error: fmt.Sprintf("request failed: %v", err)}, true, 0
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{Error: fmt.Sprintf("failed to read response: %v", err)}, true, 0
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := time.Duration(0)
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			retryAfter = time.Duration(secs) * time.Second
		}
		return Result{Error: "rate limited (429)"}, true, retryAfter
	case resp.StatusCode >= 500:
		return Result{Error: fmt.Sprintf("server error (status %d)", resp.StatusCode)}, true, 0
	case resp.StatusCode != http.StatusOK:
		return Result{Error: fmt.Sprintf("API request failed with status %d: %s", resp.StatusCode, truncate(string(respBody), 200))}, false, 0
	}

	var parsed openAIResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return Result{Error: fmt.Sprintf("failed to parse response: %v", err)}, false, 0
	}
	if parsed.Error != nil {
		return Result{Error: "API error: " + parsed.Error.Message}, false, 0
	}
	if len(parsed.Choices) == 0 {
		return Result{Error: "no completion returned"}, false, 0
	}

	return Result{
		Success:      true,
		Data:         strings.TrimSpace(parsed.Choices[0].Message.Content),
		TokensUsed:   parsed.Usage.TotalTokens,
		InputTokens:  parsed.Usage.PromptTokens,
		OutputTokens: parsed.Usage.CompletionTokens,
	}, false, 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
