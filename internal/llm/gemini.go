package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiClient implements Client using Google's GenAI SDK. The SDK does
// its own transport retries, so no backoff loop here.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient creates a Gemini-backed classifier client.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiClient{client: client, model: model}, nil
}

// Model returns the default model name.
func (c *GeminiClient) Model() string { return c.model }

// ChatCompletion performs one generation call. The system message maps
// to SystemInstruction; user messages concatenate into the content.
func (c *GeminiClient) ChatCompletion(ctx context.Context, messages []Message, opts Options) (Result, error) {
	model := opts.Model
	if model == "" {
		model = c.model
	}

	cfg := &genai.GenerateContentConfig{}
	if opts.JSONMode {
		cfg.ResponseMIMEType = "application/json"
	}

	var userParts []string
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			cfg.SystemInstruction = genai.NewContentFromText(msg.Content, genai.RoleUser)
		default:
			userParts = append(userParts, msg.Content)
		}
	}

	contents := []*genai.Content{
		genai.NewContentFromText(strings.Join(userParts, "\n\n"), genai.RoleUser),
	}

	resp, err := c.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		if ctx.Err() != nil {
			return Result{Error: ctx.Err().Error()}, ctx.Err()
		}
		return Result{Error: fmt.Sprintf("GenAI call failed: %v", err)}, nil
	}

	text := resp.Text()
	if text == "" {
		return Result{Error: "no completion returned"}, nil
	}

	result := Result{Success: true, Data: strings.TrimSpace(text)}
	if resp.UsageMetadata != nil {
		result.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		result.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		result.TokensUsed = int(resp.UsageMetadata.TotalTokenCount)
		if result.TokensUsed == 0 {
			result.TokensUsed = result.InputTokens + result.OutputTokens
		}
	}
	return result, nil
}
