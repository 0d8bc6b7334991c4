package sampling

import (
	"context"
	"fmt"
	"strings"
	"time"

	"threadlens/internal/config"
	"threadlens/internal/content"
	"threadlens/internal/logging"
	"threadlens/internal/types"
)

// Metadata is the audit trail attached to every sampling output.
type Metadata struct {
	Seed          int64                `json:"seed"`
	Strategies    []types.SortStrategy `json:"strategies"`
	TotalPosts    int                  `json:"total_posts"`
	TotalComments int                  `json:"total_comments"`
}

// Output is the result of one sampling pass. Empty input yields an
// empty-but-valid output, never an error.
type Output struct {
	Posts    []types.Post
	Comments []types.Comment
	Metadata Metadata
}

// ValidationError carries the human-readable range violations found
// before any I/O happened.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "invalid sampling config: " + strings.Join(e.Violations, "; ")
}

// strategyOrder is the fixed iteration order for strategies. The PRNG
// sequence continues across strategies, so this order is part of the
// reproducibility contract.
var strategyOrder = []types.SortStrategy{types.SortTop, types.SortNew, types.SortControversial}

// OrderedStrategies returns the configured strategies in fixed canonical
// order (top, new, controversial), deduplicated.
func OrderedStrategies(configured []types.SortStrategy) []types.SortStrategy {
	want := make(map[types.SortStrategy]bool, len(configured))
	for _, s := range configured {
		want[s] = true
	}
	var out []types.SortStrategy
	for _, s := range strategyOrder {
		if want[s] {
			out = append(out, s)
		}
	}
	return out
}

// SamplePosts selects up to n posts from the listing using the generator.
// Fewer posts than n means take all, no error.
func SamplePosts(r *SeededRandom, posts []types.Post, n int) []types.Post {
	return Sample(r, posts, n)
}

// FilterComments drops removed and deleted comments and anything deeper
// than maxDepth.
func FilterComments(comments []types.Comment, maxDepth int) []types.Comment {
	var out []types.Comment
	for _, c := range comments {
		if c.IsRemoved || c.IsDeleted {
			continue
		}
		if c.Depth > maxDepth {
			continue
		}
		out = append(out, c)
	}
	return out
}

// SampleComments selects up to n of the already-filtered comments,
// continuing the generator's sequence.
func SampleComments(r *SeededRandom, comments []types.Comment, n int) []types.Comment {
	return Sample(r, comments, n)
}

// PostListings is the raw fetch result, keyed by strategy.
type PostListings map[types.SortStrategy][]types.Post

// CommentTrees is the flattened comment fetch result, keyed by post ID.
type CommentTrees map[string][]types.Comment

// Sampler runs one sampling pass in explicit stages so callers can
// observe phase boundaries. The generator's sequence spans all selection
// stages: SelectPosts must run before SelectComments, exactly once each.
type Sampler struct {
	src        content.Source
	cfg        config.SamplingConfig
	rng        *SeededRandom
	strategies []types.SortStrategy
}

// NewSampler validates the config and prepares a single-use sampler.
func NewSampler(src content.Source, cfg config.SamplingConfig) (*Sampler, error) {
	if violations := config.ValidateSamplingConfig(cfg); len(violations) > 0 {
		return nil, &ValidationError{Violations: violations}
	}
	return &Sampler{
		src:        src,
		cfg:        cfg,
		rng:        NewSeededRandom(cfg.Seed),
		strategies: OrderedStrategies(cfg.Strategies),
	}, nil
}

// FetchPosts retrieves the listing for every configured strategy,
// restricted to the run's time window. Zero window bounds fetch
// unrestricted.
func (s *Sampler) FetchPosts(ctx context.Context, subject string, windowStart, windowEnd time.Time) (PostListings, error) {
	listings := make(PostListings, len(s.strategies))
	for _, strategy := range s.strategies {
		listing, err := s.src.GetPosts(ctx, subject, strategy, content.ListingOptions{
			Limit:           100,
			TimeWindowStart: windowStart,
			TimeWindowEnd:   windowEnd,
		})
		if err != nil {
			return nil, fmt.Errorf("fetch posts (%s): %w", strategy, err)
		}
		logging.SamplingDebug("strategy=%s fetched=%d posts", strategy, len(listing.Items))
		listings[strategy] = listing.Items
	}
	return listings, nil
}

// SelectPosts draws the per-strategy post samples in canonical strategy
// order, deduplicating by ID across strategies.
func (s *Sampler) SelectPosts(listings PostListings) []types.Post {
	seen := make(map[string]bool)
	var out []types.Post
	for _, strategy := range s.strategies {
		sampled := SamplePosts(s.rng, listings[strategy], s.cfg.PostsPerStrategy)
		logging.SamplingDebug("strategy=%s sampled=%d posts", strategy, len(sampled))
		for _, post := range sampled {
			if seen[post.ID] {
				continue
			}
			seen[post.ID] = true
			out = append(out, post)
		}
	}
	return out
}

// FetchComments retrieves the flattened comment tree for each selected
// post.
func (s *Sampler) FetchComments(ctx context.Context, subject string, posts []types.Post) (CommentTrees, error) {
	trees := make(CommentTrees, len(posts))
	for _, post := range posts {
		tree, err := s.src.GetComments(ctx, subject, post.ID)
		if err != nil {
			return nil, fmt.Errorf("fetch comments for post %s: %w", post.ID, err)
		}
		trees[post.ID] = tree
	}
	return trees, nil
}

// SelectComments filters and samples each post's tree in post order,
// continuing the generator's sequence and deduplicating by comment ID.
func (s *Sampler) SelectComments(posts []types.Post, trees CommentTrees) []types.Comment {
	seen := make(map[string]bool)
	var out []types.Comment
	for _, post := range posts {
		eligible := FilterComments(trees[post.ID], s.cfg.MaxDepth)
		for _, c := range SampleComments(s.rng, eligible, s.cfg.CommentsPerPost) {
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			out = append(out, c)
		}
	}
	return out
}

// Metadata describes the pass for the audit trail.
func (s *Sampler) Metadata(posts []types.Post, comments []types.Comment) Metadata {
	return Metadata{
		Seed:          s.cfg.Seed,
		Strategies:    s.strategies,
		TotalPosts:    len(posts),
		TotalComments: len(comments),
	}
}

// PerformSampling runs the full sampling pass against a content source:
// fetch and sample posts for each configured strategy in canonical order,
// then fetch, filter, and sample each post's comment tree with the same
// generator. Posts and comments are deduplicated by ID; the post fetch
// is restricted to the given time window.
func PerformSampling(ctx context.Context, src content.Source, subject string, cfg config.SamplingConfig, windowStart, windowEnd time.Time) (*Output, error) {
	sampler, err := NewSampler(src, cfg)
	if err != nil {
		return nil, err
	}

	timer := logging.StartTimer(logging.CategorySampling, "PerformSampling")
	defer timer.Stop()

	listings, err := sampler.FetchPosts(ctx, subject, windowStart, windowEnd)
	if err != nil {
		return nil, err
	}
	posts := sampler.SelectPosts(listings)

	trees, err := sampler.FetchComments(ctx, subject, posts)
	if err != nil {
		return nil, err
	}
	comments := sampler.SelectComments(posts, trees)

	out := &Output{
		Posts:    posts,
		Comments: comments,
		Metadata: sampler.Metadata(posts, comments),
	}
	logging.Sampling("sampled %d posts, %d comments (seed=%d)",
		out.Metadata.TotalPosts, out.Metadata.TotalComments, cfg.Seed)
	return out, nil
}
