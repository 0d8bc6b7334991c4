package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"threadlens/internal/budget"
	"threadlens/internal/cache"
	"threadlens/internal/classify"
	"threadlens/internal/config"
	"threadlens/internal/content"
	"threadlens/internal/heuristics"
	"threadlens/internal/llm"
	"threadlens/internal/store"
	"threadlens/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// mockSource serves a fixed deterministic corpus.
type mockSource struct {
	postsPerStrategy int
	commentsPerPost  int
	moderatorEvery   int // every nth comment is a moderator comment, 0 disables
	failPosts        error
	failComments     error
	failPostsFirstN  int // fail the first n GetPosts calls, then succeed
	postsCalls       int
	lastOpts         content.ListingOptions
}

func (m *mockSource) GetPosts(_ context.Context, subject string, sort types.SortStrategy, opts content.ListingOptions) (*content.Listing, error) {
	m.postsCalls++
	m.lastOpts = opts
	if m.failPosts != nil {
		return nil, m.failPosts
	}
	if m.postsCalls <= m.failPostsFirstN {
		return nil, &content.APIError{StatusCode: 503, Message: "upstream hiccup"}
	}
	listing := &content.Listing{}
	for i := 0; i < m.postsPerStrategy*3; i++ {
		listing.Items = append(listing.Items, types.Post{
			ID:        fmt.Sprintf("%s-p%d", sort, i),
			Subreddit: subject,
			Title:     fmt.Sprintf("post %d", i),
			CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		})
	}
	return listing, nil
}

func (m *mockSource) GetComments(_ context.Context, _ string, postID string) ([]types.Comment, error) {
	if m.failComments != nil {
		return nil, m.failComments
	}
	var comments []types.Comment
	for i := 0; i < m.commentsPerPost; i++ {
		c := types.Comment{
			ID:        fmt.Sprintf("%s-c%d", postID, i),
			PostID:    postID,
			AuthorID:  fmt.Sprintf("author%d", i),
			Body:      fmt.Sprintf("the committee reviewed proposal %d on tuesday", i),
			CreatedAt: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
			Depth:     i % 3,
		}
		if m.moderatorEvery > 0 && i%m.moderatorEvery == 0 {
			c.IsModerator = true
		}
		comments = append(comments, c)
	}
	return comments, nil
}

// scriptedClient answers every batch with a well-formed neutral verdict
// per requested item. It records which tasks it was asked to run.
type scriptedClient struct {
	calls          int
	hostilityCalls int
}

func (s *scriptedClient) Model() string { return "test-model" }

func (s *scriptedClient) ChatCompletion(_ context.Context, messages []llm.Message, _ llm.Options) (llm.Result, error) {
	s.calls++
	system, user := messages[0].Content, messages[1].Content
	ids := extractIDs(user)

	var out []map[string]any
	if strings.Contains(strings.ToLower(system), "hostility") {
		s.hostilityCalls++
		for _, id := range ids {
			out = append(out, map[string]any{
				"id": id, "mentions_group": false, "hostility_level": "none",
				"labels": []string{}, "confidence": 0.9, "rationale": "no mention",
			})
		}
	} else {
		for _, id := range ids {
			out = append(out, map[string]any{
				"id": id, "sentiment": "neutral", "subjectivity": 0.2, "confidence": 0.8,
			})
		}
	}
	data, _ := json.Marshal(out)
	return llm.Result{Success: true, Data: string(data), TokensUsed: 100, InputTokens: 80, OutputTokens: 20}, nil
}

func extractIDs(payload string) []string {
	_, after, _ := strings.Cut(payload, "Items:\n")
	var items []struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal([]byte(after), &items)
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	return ids
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Sampling.Strategies = []types.SortStrategy{types.SortTop}
	cfg.Sampling.PostsPerStrategy = 5
	cfg.Sampling.CommentsPerPost = 10
	cfg.Sampling.MaxDepth = 5
	cfg.Sampling.Seed = 12345
	cfg.LLM.MaxConcurrentBatches = 2
	cfg.Pipeline.FetchRetries = 2
	return cfg
}

func newTestController(src content.Source, cfg *config.Config, client llm.Client) (*Controller, *budget.Tracker, *store.MemoryStore) {
	tracker := budget.NewTracker(cfg.Budget)
	orch := classify.NewOrchestrator(client, cache.NewMemoryCache(), tracker, cfg.LLM, 0)
	st := store.NewMemoryStore()
	ctrl := NewController(src, orch, heuristics.NewRegistry(), tracker, st, cfg)
	return ctrl, tracker, st
}

func sampledIDs(result *types.Result) []string {
	ids := make([]string, len(result.SampledComments))
	for i, c := range result.SampledComments {
		ids[i] = c.ID
	}
	return ids
}

func TestRunCompletes(t *testing.T) {
	cfg := testConfig()
	src := &mockSource{postsPerStrategy: 5, commentsPerPost: 10}
	client := &scriptedClient{}
	ctrl, _, st := newTestController(src, cfg, client)

	var phases []types.Phase
	var progress []int
	ctrl.OnPhase(func(p types.Phase) { phases = append(phases, p) })
	ctrl.OnProgress(func(p int) { progress = append(progress, p) })

	result := ctrl.Run(context.Background(), "r/test", time.Unix(1000, 0), time.Unix(2000, 0))
	require.True(t, result.Success, "run should succeed: %v", result.Error)
	assert.NotEmpty(t, result.RunID)
	assert.Len(t, result.SampledComments, 50)
	assert.Len(t, result.SentimentClassifications, 50)

	t.Run("phases advance in order", func(t *testing.T) {
		want := []types.Phase{
			types.PhaseFetchingPosts, types.PhaseSamplingPosts,
			types.PhaseFetchingComments, types.PhaseSamplingComments,
			types.PhaseSentimentAnalysis, types.PhaseAggregating,
			types.PhaseCompleted,
		}
		assert.Equal(t, want, phases)
	})

	t.Run("progress is monotone within range", func(t *testing.T) {
		last := -1
		for _, p := range progress {
			assert.GreaterOrEqual(t, p, last)
			assert.LessOrEqual(t, p, 100)
			last = p
		}
		assert.Equal(t, 100, progress[len(progress)-1])
	})

	t.Run("bodies never leave the run", func(t *testing.T) {
		for _, c := range result.SampledComments {
			assert.Empty(t, c.Body)
		}
		stored, err := st.GetComments(context.Background(), result.RunID)
		require.NoError(t, err)
		require.NotEmpty(t, stored)
		for _, c := range stored {
			assert.Empty(t, c.Body)
		}
	})

	t.Run("report persisted", func(t *testing.T) {
		saved, err := st.GetReport(context.Background(), result.RunID)
		require.NoError(t, err)
		assert.True(t, saved.Success)
	})

	t.Run("usage accounted", func(t *testing.T) {
		assert.Greater(t, result.TotalTokensUsed, 0)
		assert.Greater(t, result.EstimatedCostUSD, 0.0)
	})

	t.Run("time window reaches the content source", func(t *testing.T) {
		assert.Equal(t, time.Unix(1000, 0), src.lastOpts.TimeWindowStart)
		assert.Equal(t, time.Unix(2000, 0), src.lastOpts.TimeWindowEnd)
	})
}

func TestProgressWithinPhases(t *testing.T) {
	cfg := testConfig()
	cfg.Pipeline.EnableTargetGroupAnalysis = true
	cfg.Pipeline.Frameworks = []types.Framework{types.FrameworkIHRA, types.FrameworkJDA}
	cfg.Pipeline.TargetGroups = []string{"jewish"}
	src := &mockSource{postsPerStrategy: 5, commentsPerPost: 10}
	ctrl, _, _ := newTestController(src, cfg, &scriptedClient{})

	var progress []int
	ctrl.OnProgress(func(p int) { progress = append(progress, p) })

	result := ctrl.Run(context.Background(), "r/test", time.Unix(1000, 0), time.Unix(2000, 0))
	require.True(t, result.Success, "run should succeed: %v", result.Error)

	// Long classification phases report progress between the phase
	// marks, not just at transitions.
	within := func(lo, hi int) bool {
		for _, p := range progress {
			if p > lo && p < hi {
				return true
			}
		}
		return false
	}
	assert.True(t, within(50, 70), "sentiment batching never reported mid-phase progress: %v", progress)
	assert.True(t, within(70, 90), "hostility pairs never reported mid-phase progress: %v", progress)

	last := -1
	for _, p := range progress {
		assert.GreaterOrEqual(t, p, last)
		last = p
	}
	assert.Equal(t, 100, progress[len(progress)-1])
}

func TestRunReproducible(t *testing.T) {
	cfg := testConfig()
	runOnce := func() *types.Result {
		src := &mockSource{postsPerStrategy: 5, commentsPerPost: 10}
		ctrl, _, _ := newTestController(src, cfg, &scriptedClient{})
		return ctrl.Run(context.Background(), "r/test", time.Unix(1000, 0), time.Unix(2000, 0))
	}

	first := runOnce()
	second := runOnce()
	require.True(t, first.Success)
	require.True(t, second.Success)

	assert.Equal(t, sampledIDs(first), sampledIDs(second), "same seed must sample identical comment sets")
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestRunDerivesSeedFromWindow(t *testing.T) {
	cfg := testConfig()
	cfg.Sampling.Seed = 0

	runOnce := func(start int64) *types.Result {
		src := &mockSource{postsPerStrategy: 5, commentsPerPost: 10}
		ctrl, _, _ := newTestController(src, cfg, &scriptedClient{})
		return ctrl.Run(context.Background(), "r/test", time.Unix(start, 0), time.Unix(2000, 0))
	}

	sameA := runOnce(1000)
	sameB := runOnce(1000)
	assert.Equal(t, sampledIDs(sameA), sampledIDs(sameB), "derived seed is a pure function of subject and window")
}

func TestTargetGroupAnalysis(t *testing.T) {
	t.Run("disabled skips hostility entirely", func(t *testing.T) {
		cfg := testConfig()
		cfg.Pipeline.EnableTargetGroupAnalysis = false
		cfg.Pipeline.TargetGroups = []string{"jewish"}
		src := &mockSource{postsPerStrategy: 2, commentsPerPost: 5}
		client := &scriptedClient{}
		ctrl, _, _ := newTestController(src, cfg, client)

		result := ctrl.Run(context.Background(), "r/test", time.Unix(1000, 0), time.Unix(2000, 0))
		require.True(t, result.Success)
		assert.Empty(t, result.HostilityClassifications)
		assert.Empty(t, result.TargetGroupStats)
		assert.Zero(t, client.hostilityCalls)
	})

	t.Run("enabled classifies every pair", func(t *testing.T) {
		cfg := testConfig()
		cfg.Pipeline.EnableTargetGroupAnalysis = true
		cfg.Pipeline.Frameworks = []types.Framework{types.FrameworkIHRA, types.FrameworkJDA}
		cfg.Pipeline.TargetGroups = []string{"jewish"}
		src := &mockSource{postsPerStrategy: 2, commentsPerPost: 5}
		ctrl, _, _ := newTestController(src, cfg, &scriptedClient{})

		result := ctrl.Run(context.Background(), "r/test", time.Unix(1000, 0), time.Unix(2000, 0))
		require.True(t, result.Success)
		// 10 comments, 2 frameworks, 1 group: one verdict per (item, pair).
		assert.Len(t, result.HostilityClassifications, 20)
		assert.Len(t, result.TargetGroupStats, 2)
	})
}

func TestModeratorSegregation(t *testing.T) {
	cfg := testConfig()
	src := &mockSource{postsPerStrategy: 2, commentsPerPost: 6, moderatorEvery: 2}
	ctrl, _, _ := newTestController(src, cfg, &scriptedClient{})

	result := ctrl.Run(context.Background(), "r/test", time.Unix(1000, 0), time.Unix(2000, 0))
	require.True(t, result.Success)
	require.NotNil(t, result.CommunitySentiment)
	require.NotNil(t, result.ModeratorSentiment)

	total := result.CommunitySentiment.Distribution.Total + result.ModeratorSentiment.Distribution.Total
	assert.Equal(t, len(result.SentimentClassifications), total, "every classification lands in exactly one population")
	assert.Greater(t, result.ModeratorSentiment.Distribution.Total, 0)
}

func TestMaxCommentsTotal(t *testing.T) {
	cfg := testConfig()
	cfg.Pipeline.MaxCommentsTotal = 7
	src := &mockSource{postsPerStrategy: 5, commentsPerPost: 10}
	ctrl, _, _ := newTestController(src, cfg, &scriptedClient{})

	result := ctrl.Run(context.Background(), "r/test", time.Unix(1000, 0), time.Unix(2000, 0))
	require.True(t, result.Success)
	assert.Len(t, result.SampledComments, 7)
	assert.Len(t, result.SentimentClassifications, 7)
}

func TestRunFailure(t *testing.T) {
	t.Run("persistent fetch failure fails the run", func(t *testing.T) {
		cfg := testConfig()
		src := &mockSource{failPosts: content.ErrNotFound}
		ctrl, _, st := newTestController(src, cfg, &scriptedClient{})

		var phases []types.Phase
		ctrl.OnPhase(func(p types.Phase) { phases = append(phases, p) })

		result := ctrl.Run(context.Background(), "r/gone", time.Unix(1000, 0), time.Unix(2000, 0))
		assert.False(t, result.Success)
		assert.NotEmpty(t, result.Error)
		assert.Equal(t, types.PhaseFailed, phases[len(phases)-1])

		// Failed runs still persist what they have.
		saved, err := st.GetReport(context.Background(), result.RunID)
		require.NoError(t, err)
		assert.False(t, saved.Success)
	})

	t.Run("transient 5xx is retried", func(t *testing.T) {
		cfg := testConfig()
		cfg.Pipeline.FetchRetries = 3
		src := &mockSource{postsPerStrategy: 2, commentsPerPost: 3, failPostsFirstN: 1}
		ctrl, _, _ := newTestController(src, cfg, &scriptedClient{})

		result := ctrl.Run(context.Background(), "r/test", time.Unix(1000, 0), time.Unix(2000, 0))
		assert.True(t, result.Success, "run should recover: %v", result.Error)
	})
}

func TestRetrySource(t *testing.T) {
	t.Run("not found is terminal", func(t *testing.T) {
		src := newRetrySource(&mockSource{failPosts: content.ErrNotFound}, 3)
		_, err := src.GetPosts(context.Background(), "r/x", types.SortTop, content.ListingOptions{})
		assert.ErrorIs(t, err, content.ErrNotFound)
	})

	t.Run("client errors are terminal", func(t *testing.T) {
		inner := &mockSource{failPosts: &content.APIError{StatusCode: 403, Message: "forbidden"}}
		src := newRetrySource(inner, 3)
		_, err := src.GetPosts(context.Background(), "r/x", types.SortTop, content.ListingOptions{})
		assert.Error(t, err)
		assert.Equal(t, 1, inner.postsCalls)
	})

	t.Run("cancellation stops waiting", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		inner := &mockSource{failPosts: &content.RateLimitedError{RetryAfter: time.Minute}}
		src := newRetrySource(inner, 3)
		_, err := src.GetPosts(ctx, "r/x", types.SortTop, content.ListingOptions{})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
