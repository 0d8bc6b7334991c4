// Package budget enforces the combined ceiling on tokens, monetary cost,
// and per-task call counts for one pipeline run. The tracker never
// returns errors: it reports violations and warnings, and the caller
// decides whether to halt.
package budget

import (
	"threadlens/internal/types"
)

// Usage is the monotone accumulator for one pipeline run. Values only
// grow; a new run starts a new Usage.
type Usage struct {
	CommentsProcessedByDepth map[int]int            `json:"comments_processed_by_depth"`
	LLMCallsByTask           map[types.TaskType]int `json:"llm_calls_by_task"`
	TokensUsed               int                    `json:"tokens_used"`
	InputTokens              int                    `json:"input_tokens"`
	OutputTokens             int                    `json:"output_tokens"`
	EstimatedCostUSD         float64                `json:"estimated_cost_usd"`
}

// NewUsage returns a zeroed accumulator.
func NewUsage() Usage {
	return Usage{
		CommentsProcessedByDepth: make(map[int]int),
		LLMCallsByTask:           make(map[types.TaskType]int),
	}
}

// Clone returns a deep copy safe to hand out of the tracker.
func (u Usage) Clone() Usage {
	out := u
	out.CommentsProcessedByDepth = make(map[int]int, len(u.CommentsProcessedByDepth))
	for k, v := range u.CommentsProcessedByDepth {
		out.CommentsProcessedByDepth[k] = v
	}
	out.LLMCallsByTask = make(map[types.TaskType]int, len(u.LLMCallsByTask))
	for k, v := range u.LLMCallsByTask {
		out.LLMCallsByTask[k] = v
	}
	return out
}

// Remaining is the headroom left under each ceiling.
type Remaining struct {
	Tokens      int                    `json:"tokens"`
	CostUSD     float64                `json:"cost_usd"`
	CallsByTask map[types.TaskType]int `json:"calls_by_task"`
}

// CheckResult is the verdict of one budget check. Any violation means
// WithinBudget=false; warnings are soft and non-blocking.
type CheckResult struct {
	WithinBudget bool      `json:"within_budget"`
	Warnings     []string  `json:"warnings,omitempty"`
	Violations   []string  `json:"violations,omitempty"`
	Remaining    Remaining `json:"remaining"`
}
