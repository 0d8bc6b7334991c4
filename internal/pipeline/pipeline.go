// Package pipeline drives one report run end to end: phased sampling,
// the two-stage classification cascade, aggregation, and persistence.
// Phases advance strictly forward and progress never decreases; a
// failure at any point preserves the partial results computed so far.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"threadlens/internal/budget"
	"threadlens/internal/classify"
	"threadlens/internal/config"
	"threadlens/internal/content"
	"threadlens/internal/heuristics"
	"threadlens/internal/logging"
	"threadlens/internal/sampling"
	"threadlens/internal/stats"
	"threadlens/internal/store"
	"threadlens/internal/types"
)

// PhaseFunc observes phase transitions.
type PhaseFunc func(phase types.Phase)

// ProgressFunc observes progress in percent, monotone within [0,100].
type ProgressFunc func(percent int)

// Controller runs report pipelines. One controller may serve many runs
// sequentially; each Run gets its own RunID and sampler.
type Controller struct {
	source   content.Source
	orch     *classify.Orchestrator
	patterns *heuristics.Registry
	tracker  *budget.Tracker
	store    store.Store
	cfg      *config.Config

	mu         sync.Mutex
	onPhase    PhaseFunc
	onProgress ProgressFunc
	progress   int
}

// NewController wires the pipeline collaborators.
func NewController(src content.Source, orch *classify.Orchestrator, patterns *heuristics.Registry, tracker *budget.Tracker, st store.Store, cfg *config.Config) *Controller {
	return &Controller{
		source:   src,
		orch:     orch,
		patterns: patterns,
		tracker:  tracker,
		store:    st,
		cfg:      cfg,
	}
}

// OnPhase registers the phase-transition callback.
func (c *Controller) OnPhase(fn PhaseFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onPhase = fn
}

// OnProgress registers the progress callback.
func (c *Controller) OnProgress(fn ProgressFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onProgress = fn
}

// Identity strings recorded on classifications answered locally by
// Stage A. Bumped when a lexicon or pattern set changes.
const (
	localModel            = "heuristics"
	localSentimentVersion = "lexicon-v1"
	localHostilityVersion = "patterns-v1"
)

// Run executes one full pipeline for the subject over the given time
// window. It never returns a nil result: on failure the result carries
// Success=false, the error, and whatever partial output was computed.
func (c *Controller) Run(ctx context.Context, subject string, windowStart, windowEnd time.Time) *types.Result {
	result := &types.Result{RunID: uuid.NewString()}
	c.resetProgress()

	timer := logging.StartTimer(logging.CategoryPipeline, "Run")
	defer timer.Stop()
	logging.Pipeline("run %s started: subject=%s window=[%s, %s]",
		result.RunID, subject, windowStart.Format(time.RFC3339), windowEnd.Format(time.RFC3339))

	samplingCfg := c.cfg.Sampling
	if samplingCfg.Seed == 0 {
		samplingCfg.Seed = sampling.GenerateSeed(subject, windowStart, windowEnd)
		logging.Pipeline("run %s: derived seed %d", result.RunID, samplingCfg.Seed)
	}

	src := newRetrySource(c.source, c.cfg.Pipeline.FetchRetries)
	sampler, err := sampling.NewSampler(src, samplingCfg)
	if err != nil {
		return c.fail(ctx, subject, result, err)
	}

	c.setPhase(types.PhaseFetchingPosts, 0)
	listings, err := sampler.FetchPosts(ctx, subject, windowStart, windowEnd)
	if err != nil {
		return c.fail(ctx, subject, result, fmt.Errorf("fetching posts: %w", err))
	}

	c.setPhase(types.PhaseSamplingPosts, 15)
	posts := sampler.SelectPosts(listings)

	c.setPhase(types.PhaseFetchingComments, 25)
	trees, err := sampler.FetchComments(ctx, subject, posts)
	if err != nil {
		return c.fail(ctx, subject, result, fmt.Errorf("fetching comments: %w", err))
	}

	c.setPhase(types.PhaseSamplingComments, 40)
	comments := sampler.SelectComments(posts, trees)
	if max := c.cfg.Pipeline.MaxCommentsTotal; max > 0 && len(comments) > max {
		logging.Pipeline("run %s: truncating %d sampled comments to %d", result.RunID, len(comments), max)
		comments = comments[:max]
	}
	c.recordDepths(comments)
	result.SampledComments = withoutBodies(comments)

	sentimentEnd := 90
	if c.cfg.Pipeline.EnableTargetGroupAnalysis {
		sentimentEnd = 70
	}
	c.setPhase(types.PhaseSentimentAnalysis, 50)
	result.SentimentClassifications, result.Errors = c.classifySentiment(ctx, comments, result.Errors, 50, sentimentEnd)
	if err := ctx.Err(); err != nil {
		return c.fail(ctx, subject, result, err)
	}

	if c.cfg.Pipeline.EnableTargetGroupAnalysis {
		c.setPhase(types.PhaseTargetGroupAnalysis, 70)
		result.HostilityClassifications, result.Errors = c.classifyHostility(ctx, comments, result.Errors, 70, 90)
		if err := ctx.Err(); err != nil {
			return c.fail(ctx, subject, result, err)
		}
	}

	c.setPhase(types.PhaseAggregating, 90)
	c.aggregate(comments, result)
	c.persist(ctx, subject, result)

	result.Success = true
	c.setPhase(types.PhaseCompleted, 100)
	logging.Pipeline("run %s completed: %d comments, %d tokens, $%.4f",
		result.RunID, len(comments), result.TotalTokensUsed, result.EstimatedCostUSD)
	return result
}

// classifySentiment runs the cascade for sentiment over all comments.
// Stage A answers confident items locally; the rest go to Stage B in
// chunks so long runs report progress between startPct and endPct.
func (c *Controller) classifySentiment(ctx context.Context, comments []types.Comment, errs []string, startPct, endPct int) ([]types.SentimentClassification, []string) {
	var (
		resolved []types.SentimentClassification
		deferred []classify.Item
	)
	for _, comment := range comments {
		outcome := heuristics.RunSentiment(comment.Body)
		if outcome.Decision == heuristics.DecisionConfident {
			resolved = append(resolved, types.SentimentClassification{
				ItemID:        comment.ID,
				Sentiment:     outcome.Suggestion.Sentiment,
				Subjectivity:  outcome.Suggestion.Subjectivity,
				Confidence:    outcome.Suggestion.Confidence,
				ModelUsed:     localModel,
				PromptVersion: localSentimentVersion,
			})
			continue
		}
		deferred = append(deferred, classify.Item{ID: comment.ID, Text: comment.Body, EditedAt: comment.EditedAt})
	}
	logging.Pipeline("sentiment: %d local, %d deferred", len(resolved), len(deferred))

	// Chunks align with batch boundaries so dispatch is unchanged; only
	// progress reporting becomes finer-grained.
	chunkSize := c.cfg.LLM.MaxBatchItems * c.cfg.LLM.MaxConcurrentBatches
	if chunkSize <= 0 {
		chunkSize = len(deferred)
	}
	for done := 0; done < len(deferred); {
		end := done + chunkSize
		if end > len(deferred) {
			end = len(deferred)
		}
		remote, outcome := c.orch.ClassifySentiment(ctx, deferred[done:end])
		resolved = append(resolved, remote...)
		errs = append(errs, outcome.Errors...)
		done = end
		c.advanceTo(startPct + (endPct-startPct)*done/len(deferred))
	}
	return resolved, errs
}

// classifyHostility runs the cascade for every configured
// (framework, target group) pair. A group without a loaded pattern pack
// skips Stage A and defers everything to the remote classifier.
func (c *Controller) classifyHostility(ctx context.Context, comments []types.Comment, errs []string, startPct, endPct int) ([]types.HostilityClassification, []string) {
	var all []types.HostilityClassification
	totalPairs := len(c.cfg.Pipeline.Frameworks) * len(c.cfg.Pipeline.TargetGroups)
	pairsDone := 0
	for _, framework := range c.cfg.Pipeline.Frameworks {
		for _, group := range c.cfg.Pipeline.TargetGroups {
			if ctx.Err() != nil {
				return all, errs
			}
			cls, pairErrs := c.classifyHostilityPair(ctx, comments, framework, group)
			all = append(all, cls...)
			errs = append(errs, pairErrs...)
			pairsDone++
			c.advanceTo(startPct + (endPct-startPct)*pairsDone/totalPairs)
		}
	}
	return all, errs
}

func (c *Controller) classifyHostilityPair(ctx context.Context, comments []types.Comment, framework types.Framework, group string) ([]types.HostilityClassification, []string) {
	patterns := c.patterns.Get(group)
	if patterns == nil {
		logging.Pipeline("hostility %s/%s: no pattern pack, deferring all items", framework, group)
	}

	var (
		resolved []types.HostilityClassification
		deferred []classify.Item
	)
	for _, comment := range comments {
		if patterns == nil {
			deferred = append(deferred, classify.Item{ID: comment.ID, Text: comment.Body, EditedAt: comment.EditedAt})
			continue
		}
		outcome := heuristics.RunHostility(comment.Body, patterns)
		if outcome.Decision == heuristics.DecisionConfident {
			resolved = append(resolved, types.HostilityClassification{
				ItemID:         comment.ID,
				Framework:      framework,
				TargetGroup:    group,
				MentionsGroup:  outcome.Suggestion.MentionsGroup,
				HostilityLevel: outcome.Suggestion.Level,
				Labels:         outcome.Suggestion.Labels,
				Confidence:     outcome.Suggestion.Confidence,
				ModelUsed:      localModel,
				PromptVersion:  localHostilityVersion,
			})
			continue
		}
		deferred = append(deferred, classify.Item{ID: comment.ID, Text: comment.Body, EditedAt: comment.EditedAt})
	}
	logging.Pipeline("hostility %s/%s: %d local, %d deferred", framework, group, len(resolved), len(deferred))

	remote, outcome := c.orch.ClassifyHostility(ctx, deferred, framework, group)
	return append(resolved, remote...), outcome.Errors
}

// aggregate derives the report statistics. Moderator and community
// comments are segregated here, not during classification.
func (c *Controller) aggregate(comments []types.Comment, result *types.Result) {
	moderator := make(map[string]bool)
	for _, comment := range comments {
		if comment.IsModerator {
			moderator[comment.ID] = true
		}
	}

	var community, mods []types.SentimentClassification
	for _, cls := range result.SentimentClassifications {
		if moderator[cls.ItemID] {
			mods = append(mods, cls)
		} else {
			community = append(community, cls)
		}
	}
	communityStats := stats.BuildSentimentStats(community)
	result.CommunitySentiment = &communityStats
	if len(mods) > 0 {
		modStats := stats.BuildSentimentStats(mods)
		result.ModeratorSentiment = &modStats
	}

	if c.cfg.Pipeline.EnableTargetGroupAnalysis {
		for _, framework := range c.cfg.Pipeline.Frameworks {
			for _, group := range c.cfg.Pipeline.TargetGroups {
				result.TargetGroupStats = append(result.TargetGroupStats,
					stats.BuildTargetGroupStats(framework, group, result.HostilityClassifications))
			}
		}
	}

	usage := c.tracker.Snapshot()
	result.TotalTokensUsed = usage.TokensUsed
	result.EstimatedCostUSD = usage.EstimatedCostUSD
}

// persist writes the run's artifacts. Store failures are recorded as
// run errors, never fatal: the caller still gets the full result.
func (c *Controller) persist(ctx context.Context, subject string, result *types.Result) {
	if c.store == nil {
		return
	}
	// Outlive run cancellation: a cancelled run still persists partials.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	if err := c.store.SaveComments(saveCtx, result.RunID, result.SampledComments); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("persist comments: %v", err))
	}
	if err := c.store.UpsertSentiment(saveCtx, result.RunID, result.SentimentClassifications); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("persist sentiment: %v", err))
	}
	if err := c.store.UpsertHostility(saveCtx, result.RunID, result.HostilityClassifications); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("persist hostility: %v", err))
	}
	if err := c.store.SaveReport(saveCtx, subject, result); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("persist report: %v", err))
	}
}

// fail marks the run failed, preserving partial output, and still
// attempts persistence and budget accounting.
func (c *Controller) fail(ctx context.Context, subject string, result *types.Result, err error) *types.Result {
	logging.PipelineError("run %s failed: %v", result.RunID, err)
	result.Success = false
	result.Error = err.Error()

	usage := c.tracker.Snapshot()
	result.TotalTokensUsed = usage.TokensUsed
	result.EstimatedCostUSD = usage.EstimatedCostUSD

	c.persist(ctx, subject, result)
	c.setPhase(types.PhaseFailed, -1)
	return result
}

func (c *Controller) recordDepths(comments []types.Comment) {
	byDepth := make(map[int]int)
	for _, comment := range comments {
		byDepth[comment.Depth]++
	}
	for depth, n := range byDepth {
		c.tracker.RecordComments(depth, n)
	}
}

func (c *Controller) resetProgress() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.progress = 0
}

// setPhase emits the phase transition and advances progress. Progress
// only moves forward; percent < 0 keeps the current value (Failed).
func (c *Controller) setPhase(phase types.Phase, percent int) {
	c.mu.Lock()
	if percent > c.progress {
		c.progress = percent
	}
	if c.progress > 100 {
		c.progress = 100
	}
	current := c.progress
	onPhase, onProgress := c.onPhase, c.onProgress
	c.mu.Unlock()

	logging.Pipeline("phase=%s progress=%d%%", phase, current)
	if onPhase != nil {
		onPhase(phase)
	}
	if onProgress != nil {
		onProgress(current)
	}
}

// advanceTo moves progress forward within the current phase without a
// phase transition.
func (c *Controller) advanceTo(percent int) {
	c.mu.Lock()
	if percent > c.progress {
		c.progress = percent
	}
	if c.progress > 100 {
		c.progress = 100
	}
	current := c.progress
	onProgress := c.onProgress
	c.mu.Unlock()

	if onProgress != nil {
		onProgress(current)
	}
}

func withoutBodies(comments []types.Comment) []types.Comment {
	out := make([]types.Comment, len(comments))
	for i, c := range comments {
		out[i] = c.WithoutBody()
	}
	return out
}
