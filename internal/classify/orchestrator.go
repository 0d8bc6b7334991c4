package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"threadlens/internal/budget"
	"threadlens/internal/cache"
	"threadlens/internal/config"
	"threadlens/internal/llm"
	"threadlens/internal/logging"
	"threadlens/internal/types"
)

// Orchestrator dispatches Stage B: cache lookups, batching, concurrent
// remote calls, normalization, and cache write-back. One orchestrator
// serves one pipeline run.
type Orchestrator struct {
	client   llm.Client
	cache    cache.Cache
	tracker  *budget.Tracker
	cfg      config.LLMConfig
	cacheTTL time.Duration
}

// NewOrchestrator wires the Stage B collaborators.
func NewOrchestrator(client llm.Client, c cache.Cache, tracker *budget.Tracker, cfg config.LLMConfig, cacheTTL time.Duration) *Orchestrator {
	return &Orchestrator{
		client:   client,
		cache:    c,
		tracker:  tracker,
		cfg:      cfg,
		cacheTTL: cacheTTL,
	}
}

// TaskOutcome summarizes one task's Stage B pass. Batch-level failures
// land in Errors and never abort the task; Invalid counts response
// elements dropped by schema validation.
type TaskOutcome struct {
	Errors      []string
	Invalid     int
	CacheHits   int
	RemoteCalls int
}

func (o *Orchestrator) expiry() *time.Time {
	if o.cacheTTL <= 0 {
		return nil
	}
	t := time.Now().Add(o.cacheTTL)
	return &t
}

// ClassifySentiment resolves sentiment for the Stage-A-unresolved items:
// cache read-through first, then batched remote classification for the
// misses.
func (o *Orchestrator) ClassifySentiment(ctx context.Context, items []Item) ([]types.SentimentClassification, TaskOutcome) {
	var (
		outcome  TaskOutcome
		results  []types.SentimentClassification
		uncached []Item
	)

	prompt, version, err := SystemPrompt(types.TaskSentiment, "")
	if err != nil {
		outcome.Errors = append(outcome.Errors, err.Error())
		return nil, outcome
	}
	if v := o.cfg.SentimentPromptVersion; v != "" {
		version = v
	}
	model := o.client.Model()

	for _, item := range items {
		key := cache.Key{
			ItemID:        item.ID,
			EditedAt:      item.EditedAt,
			TaskType:      types.TaskSentiment,
			Model:         model,
			PromptVersion: version,
		}
		entry, ok, err := o.cache.Get(ctx, key)
		if err != nil {
			logging.Get(logging.CategoryCache).Warn("cache get %s: %v", key.String(), err)
		}
		if ok {
			var cls types.SentimentClassification
			if err := json.Unmarshal(entry.Result, &cls); err == nil {
				cls.FromCache = true
				results = append(results, cls)
				outcome.CacheHits++
				continue
			}
		}
		uncached = append(uncached, item)
	}

	batches := BuildBatches(uncached, o.cfg.MaxBatchItems, o.cfg.MaxBatchTokens)
	logging.Classify("sentiment: %d items (%d cached), %d batches", len(items), outcome.CacheHits, len(batches))

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(o.cfg.MaxConcurrentBatches)

	for i, batch := range batches {
		// A cancelled run stops dispatching new batches; in-flight
		// batches run to completion so their spent budget is not wasted.
		if ctx.Err() != nil {
			mu.Lock()
			outcome.Errors = append(outcome.Errors, fmt.Sprintf("sentiment batch %d not dispatched: %v", i, ctx.Err()))
			mu.Unlock()
			break
		}
		if ok, check := o.tracker.Authorize(types.TaskSentiment); !ok {
			mu.Lock()
			outcome.Errors = append(outcome.Errors, fmt.Sprintf("sentiment batch %d skipped: %s", i, joinFirst(check.Violations)))
			mu.Unlock()
			break
		}

		batchIdx, batchItems := i, batch
		g.Go(func() error {
			cls, invalid, err := o.runSentimentBatch(ctx, batchItems, prompt, version, model)
			mu.Lock()
			defer mu.Unlock()
			outcome.RemoteCalls++
			outcome.Invalid += invalid
			if err != nil {
				outcome.Errors = append(outcome.Errors, fmt.Sprintf("sentiment batch %d: %v", batchIdx, err))
				return nil
			}
			results = append(results, cls...)
			return nil
		})
	}
	g.Wait()

	return results, outcome
}

func (o *Orchestrator) runSentimentBatch(ctx context.Context, batch []Item, prompt, version, model string) ([]types.SentimentClassification, int, error) {
	payload, err := UserPayload(batch, "")
	if err != nil {
		return nil, 0, err
	}

	callCtx, cancel := o.callContext(ctx)
	defer cancel()
	result, err := o.client.ChatCompletion(callCtx, []llm.Message{
		{Role: "system", Content: prompt},
		{Role: "user", Content: payload},
	}, llm.Options{Model: model, JSONMode: true})
	if err != nil {
		return nil, 0, err
	}
	if !result.Success {
		return nil, 0, fmt.Errorf("%s", result.Error)
	}
	o.tracker.RecordCallResult(model, result.TokensUsed, result.InputTokens, result.OutputTokens)

	elements, err := decodeArray[rawSentimentElement](result.Data)
	if err != nil {
		return nil, 0, err
	}

	byID := itemsByID(batch)
	tokensPer := perItemTokens(result.TokensUsed, len(elements))

	var (
		out     []types.SentimentClassification
		invalid int
	)
	for _, el := range elements {
		if !el.valid() {
			invalid++
			continue
		}
		item, ok := byID[*el.ID]
		if !ok {
			invalid++
			continue
		}
		cls := types.SentimentClassification{
			ItemID:        item.ID,
			Sentiment:     NormalizeSentiment(*el.Sentiment),
			Subjectivity:  Clamp01(*el.Subjectivity),
			Confidence:    Clamp01(*el.Confidence),
			ModelUsed:     model,
			PromptVersion: version,
		}
		out = append(out, cls)

		o.writeCache(ctx, cache.Key{
			ItemID:        item.ID,
			EditedAt:      item.EditedAt,
			TaskType:      types.TaskSentiment,
			Model:         model,
			PromptVersion: version,
		}, cls, tokensPer)
	}
	return out, invalid, nil
}

// ClassifyHostility resolves hostility for one (framework, target group)
// pair over the Stage-A-unresolved items.
func (o *Orchestrator) ClassifyHostility(ctx context.Context, items []Item, framework types.Framework, targetGroup string) ([]types.HostilityClassification, TaskOutcome) {
	var (
		outcome  TaskOutcome
		results  []types.HostilityClassification
		uncached []Item
	)

	prompt, version, err := SystemPrompt(types.TaskHostility, framework)
	if err != nil {
		outcome.Errors = append(outcome.Errors, err.Error())
		return nil, outcome
	}
	if v := o.cfg.HostilityPromptVersion; v != "" {
		version = v
	}
	model := o.client.Model()

	for _, item := range items {
		key := cache.Key{
			ItemID:        item.ID,
			EditedAt:      item.EditedAt,
			TaskType:      types.TaskHostility,
			Framework:     framework,
			TargetGroup:   targetGroup,
			Model:         model,
			PromptVersion: version,
		}
		entry, ok, err := o.cache.Get(ctx, key)
		if err != nil {
			logging.Get(logging.CategoryCache).Warn("cache get %s: %v", key.String(), err)
		}
		if ok {
			var cls types.HostilityClassification
			if err := json.Unmarshal(entry.Result, &cls); err == nil {
				cls.FromCache = true
				results = append(results, cls)
				outcome.CacheHits++
				continue
			}
		}
		uncached = append(uncached, item)
	}

	batches := BuildBatches(uncached, o.cfg.MaxBatchItems, o.cfg.MaxBatchTokens)
	logging.Classify("hostility %s/%s: %d items (%d cached), %d batches",
		framework, targetGroup, len(items), outcome.CacheHits, len(batches))

	note := fmt.Sprintf("Target group: %s", targetGroup)

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(o.cfg.MaxConcurrentBatches)

	for i, batch := range batches {
		if ctx.Err() != nil {
			mu.Lock()
			outcome.Errors = append(outcome.Errors, fmt.Sprintf("hostility batch %d not dispatched: %v", i, ctx.Err()))
			mu.Unlock()
			break
		}
		if ok, check := o.tracker.Authorize(types.TaskHostility); !ok {
			mu.Lock()
			outcome.Errors = append(outcome.Errors, fmt.Sprintf("hostility batch %d skipped: %s", i, joinFirst(check.Violations)))
			mu.Unlock()
			break
		}

		batchIdx, batchItems := i, batch
		g.Go(func() error {
			cls, invalid, err := o.runHostilityBatch(ctx, batchItems, prompt, version, model, note, framework, targetGroup)
			mu.Lock()
			defer mu.Unlock()
			outcome.RemoteCalls++
			outcome.Invalid += invalid
			if err != nil {
				outcome.Errors = append(outcome.Errors, fmt.Sprintf("hostility batch %d (%s/%s): %v", batchIdx, framework, targetGroup, err))
				return nil
			}
			results = append(results, cls...)
			return nil
		})
	}
	g.Wait()

	return results, outcome
}

func (o *Orchestrator) runHostilityBatch(ctx context.Context, batch []Item, prompt, version, model, note string, framework types.Framework, targetGroup string) ([]types.HostilityClassification, int, error) {
	payload, err := UserPayload(batch, note)
	if err != nil {
		return nil, 0, err
	}

	callCtx, cancel := o.callContext(ctx)
	defer cancel()
	result, err := o.client.ChatCompletion(callCtx, []llm.Message{
		{Role: "system", Content: prompt},
		{Role: "user", Content: payload},
	}, llm.Options{Model: model, JSONMode: true})
	if err != nil {
		return nil, 0, err
	}
	if !result.Success {
		return nil, 0, fmt.Errorf("%s", result.Error)
	}
	o.tracker.RecordCallResult(model, result.TokensUsed, result.InputTokens, result.OutputTokens)

	elements, err := decodeArray[rawHostilityElement](result.Data)
	if err != nil {
		return nil, 0, err
	}

	byID := itemsByID(batch)
	tokensPer := perItemTokens(result.TokensUsed, len(elements))

	var (
		out     []types.HostilityClassification
		invalid int
	)
	for _, el := range elements {
		if !el.valid() {
			invalid++
			continue
		}
		item, ok := byID[*el.ID]
		if !ok {
			invalid++
			continue
		}
		cls := types.HostilityClassification{
			ItemID:         item.ID,
			Framework:      framework,
			TargetGroup:    targetGroup,
			MentionsGroup:  *el.MentionsGroup,
			HostilityLevel: NormalizeHostilityLevel(*el.HostilityLevel),
			Labels:         NormalizeLabels(el.Labels),
			Confidence:     Clamp01(*el.Confidence),
			Rationale:      *el.Rationale,
			ModelUsed:      model,
			PromptVersion:  version,
		}
		out = append(out, cls)

		o.writeCache(ctx, cache.Key{
			ItemID:        item.ID,
			EditedAt:      item.EditedAt,
			TaskType:      types.TaskHostility,
			Framework:     framework,
			TargetGroup:   targetGroup,
			Model:         model,
			PromptVersion: version,
		}, cls, tokensPer)
	}
	return out, invalid, nil
}

// callContext detaches the remote call from run cancellation: dispatch
// stops on cancel, but an in-flight call completes under its own timeout
// so its budget is not wasted.
func (o *Orchestrator) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), o.cfg.TimeoutDuration())
}

func (o *Orchestrator) writeCache(ctx context.Context, key cache.Key, cls interface{}, tokens int) {
	data, err := json.Marshal(cls)
	if err != nil {
		return
	}
	entry := cache.Entry{Key: key, Result: data, TokensUsed: tokens, ExpiresAt: o.expiry()}
	if err := o.cache.Set(context.WithoutCancel(ctx), entry); err != nil {
		logging.Get(logging.CategoryCache).Warn("cache set %s: %v", key.String(), err)
	}
}

func itemsByID(batch []Item) map[string]Item {
	m := make(map[string]Item, len(batch))
	for _, item := range batch {
		m[item.ID] = item
	}
	return m
}

func perItemTokens(total, n int) int {
	if n <= 0 {
		return total
	}
	return total / n
}

func joinFirst(violations []string) string {
	if len(violations) == 0 {
		return "budget exceeded"
	}
	return violations[0]
}
