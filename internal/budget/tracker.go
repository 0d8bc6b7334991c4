package budget

import (
	"fmt"
	"sync"

	"threadlens/internal/config"
	"threadlens/internal/logging"
	"threadlens/internal/types"
)

// Fixed soft-warning thresholds. Design constants, not configuration:
// warn within 10% of a call-count ceiling, within 10% of the token
// ceiling, within 20% of the cost ceiling.
const (
	callWarnFraction  = 0.90
	tokenWarnFraction = 0.90
	costWarnFraction  = 0.80
)

// Assumed input/output split when the provider does not report real
// token counts.
const (
	assumedInputShare  = 0.8
	assumedOutputShare = 0.2
)

// Tracker owns the Usage accumulator for one run. All mutation goes
// through it; check-then-record is atomic under one mutex so concurrent
// batch dispatch cannot silently exceed a hard ceiling.
type Tracker struct {
	mu    sync.Mutex
	usage Usage
	cfg   config.BudgetConfig
}

// NewTracker creates a tracker with zeroed usage.
func NewTracker(cfg config.BudgetConfig) *Tracker {
	return &Tracker{usage: NewUsage(), cfg: cfg}
}

// Snapshot returns a copy of the current usage.
func (t *Tracker) Snapshot() Usage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.usage.Clone()
}

// Check evaluates the current usage against the configured ceilings.
func (t *Tracker) Check() CheckResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Check(t.usage, t.cfg)
}

// Authorize reserves one remote call for the task: it checks the budget
// and, only when within it, increments the task's call count before
// releasing the lock. Two concurrent callers cannot both take the last
// slot. The caller must follow up with RecordCallResult (or accept the
// reserved count on failure - a failed call still consumed a slot).
func (t *Tracker) Authorize(task types.TaskType) (bool, CheckResult) {
	t.mu.Lock()
	defer t.mu.Unlock()

	result := Check(t.usage, t.cfg)
	if !result.WithinBudget {
		logging.BudgetWarn("authorize %s denied: %v", task, result.Violations)
		return false, result
	}
	t.usage.LLMCallsByTask[task]++
	return true, result
}

// RecordCallResult adds the token and cost outcome of one remote call.
// Real input/output counts are used when the provider reported them;
// otherwise the fixed 80/20 split estimates the division.
func (t *Tracker) RecordCallResult(model string, tokensUsed, inputTokens, outputTokens int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if inputTokens <= 0 && outputTokens <= 0 && tokensUsed > 0 {
		inputTokens = int(float64(tokensUsed) * assumedInputShare)
		outputTokens = tokensUsed - inputTokens
	}
	if tokensUsed <= 0 {
		tokensUsed = inputTokens + outputTokens
	}

	rate := t.cfg.RateFor(model)
	cost := (float64(inputTokens)*rate.InputPer1K + float64(outputTokens)*rate.OutputPer1K) / 1000.0

	t.usage.TokensUsed += tokensUsed
	t.usage.InputTokens += inputTokens
	t.usage.OutputTokens += outputTokens
	t.usage.EstimatedCostUSD += cost

	logging.Budget("call recorded: model=%s tokens=%d cost=$%.5f (run total $%.4f)",
		model, tokensUsed, cost, t.usage.EstimatedCostUSD)
}

// RecordComments counts n processed comments at the given depth.
func (t *Tracker) RecordComments(depth, n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.usage.CommentsProcessedByDepth[depth] += n
}

// EstimateCost prices a token count for a model using the fixed 80/20
// input/output split.
func EstimateCost(tokens int, model string, cfg config.BudgetConfig) float64 {
	rate := cfg.RateFor(model)
	return (assumedInputShare*float64(tokens)*rate.InputPer1K +
		assumedOutputShare*float64(tokens)*rate.OutputPer1K) / 1000.0
}

// Check evaluates usage against ceilings. Pure: no tracker state needed.
func Check(usage Usage, cfg config.BudgetConfig) CheckResult {
	result := CheckResult{
		WithinBudget: true,
		Remaining: Remaining{
			CallsByTask: make(map[types.TaskType]int),
		},
	}

	for task, ceiling := range cfg.MaxLLMCallsPerTask {
		used := usage.LLMCallsByTask[types.TaskType(task)]
		remaining := ceiling - used
		if remaining < 0 {
			remaining = 0
		}
		result.Remaining.CallsByTask[types.TaskType(task)] = remaining

		if used > ceiling {
			result.WithinBudget = false
			result.Violations = append(result.Violations,
				fmt.Sprintf("llm call count for task %q exceeded: %d > %d", task, used, ceiling))
		} else if ceiling > 0 && float64(used) >= callWarnFraction*float64(ceiling) {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("llm call count for task %q at %d of %d", task, used, ceiling))
		}
	}

	for depth, ceiling := range cfg.MaxCommentsPerDepth {
		if used := usage.CommentsProcessedByDepth[depth]; used > ceiling {
			result.WithinBudget = false
			result.Violations = append(result.Violations,
				fmt.Sprintf("comment count at depth %d exceeded: %d > %d", depth, used, ceiling))
		}
	}

	if cfg.MaxTotalTokens > 0 {
		result.Remaining.Tokens = cfg.MaxTotalTokens - usage.TokensUsed
		if result.Remaining.Tokens < 0 {
			result.Remaining.Tokens = 0
		}
		if usage.TokensUsed > cfg.MaxTotalTokens {
			result.WithinBudget = false
			result.Violations = append(result.Violations,
				fmt.Sprintf("token ceiling exceeded: %d > %d", usage.TokensUsed, cfg.MaxTotalTokens))
		} else if float64(usage.TokensUsed) >= tokenWarnFraction*float64(cfg.MaxTotalTokens) {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("token usage at %d of %d", usage.TokensUsed, cfg.MaxTotalTokens))
		}
	}

	if cfg.MaxTotalCostUSD > 0 {
		result.Remaining.CostUSD = cfg.MaxTotalCostUSD - usage.EstimatedCostUSD
		if result.Remaining.CostUSD < 0 {
			result.Remaining.CostUSD = 0
		}
		if usage.EstimatedCostUSD > cfg.MaxTotalCostUSD {
			result.WithinBudget = false
			result.Violations = append(result.Violations,
				fmt.Sprintf("cost ceiling exceeded: $%.4f > $%.4f", usage.EstimatedCostUSD, cfg.MaxTotalCostUSD))
		} else if usage.EstimatedCostUSD >= costWarnFraction*cfg.MaxTotalCostUSD {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("cost at $%.4f of $%.4f", usage.EstimatedCostUSD, cfg.MaxTotalCostUSD))
		}
	}

	return result
}
