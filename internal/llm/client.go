// Package llm is the remote classifier port: a chat-completion interface
// with two providers (OpenAI-compatible HTTP and Gemini). Non-success
// results always carry a string error and zero tokens.
package llm

import (
	"context"
	"time"
)

// Message is one chat message.
type Message struct {
	Role    string `json:"role"` // system, user
	Content string `json:"content"`
}

// Options narrows one completion request.
type Options struct {
	Model    string
	JSONMode bool
}

// Result is the outcome of one completion call. Success=false carries
// Error and no token usage. InputTokens/OutputTokens are the provider's
// real counts when reported, zero otherwise.
type Result struct {
	Success      bool
	Data         string
	Error        string
	TokensUsed   int
	InputTokens  int
	OutputTokens int
}

// Client is the remote classifier port.
type Client interface {
	// ChatCompletion performs one chat call. Transport-level retries
	// (rate limits, 5xx) happen inside the implementation; the returned
	// error is reserved for context cancellation.
	ChatCompletion(ctx context.Context, messages []Message, opts Options) (Result, error)

	// Model returns the default model name used when Options.Model is
	// empty.
	Model() string
}

// Retry policy shared by the HTTP providers: bounded exponential
// backoff, honoring any server-provided retry-after hint.
const (
	maxRetries       = 3
	baseRetryBackoff = time.Second
)

func backoffDelay(attempt int, retryAfter time.Duration) time.Duration {
	if retryAfter > 0 {
		return retryAfter
	}
	// 1s, 2s, 4s
	return baseRetryBackoff * time.Duration(1<<uint(attempt))
}
