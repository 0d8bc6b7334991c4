// Package types holds the pipeline's data model: immutable content
// snapshots produced by sampling, the classification records produced by
// the cascade, and the derived aggregate statistics.
package types

import "time"

// Post is an immutable snapshot of an upstream post. Fields are fixed at
// fetch time and never updated.
type Post struct {
	ID          string    `json:"id"`
	Subreddit   string    `json:"subreddit"`
	Title       string    `json:"title"`
	Permalink   string    `json:"permalink"`
	CreatedAt   time.Time `json:"created_at"`
	Score       int       `json:"score"`
	NumComments int       `json:"num_comments"`
	IsRemoved   bool      `json:"is_removed"`
}

// Comment is an immutable snapshot of an upstream comment.
//
// Body is transient: it exists only while a pipeline run is classifying and
// is stripped before any record is persisted (privacy invariant). EditedAt
// participates in cache-key identity — an edited comment is a new
// classification target.
type Comment struct {
	ID          string     `json:"id"`
	PostID      string     `json:"post_id"`
	ParentID    string     `json:"parent_id,omitempty"`
	Permalink   string     `json:"permalink"`
	AuthorID    string     `json:"author_id"`
	Body        string     `json:"body,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	EditedAt    *time.Time `json:"edited_at,omitempty"`
	Score       int        `json:"score"`
	Depth       int        `json:"depth"`
	IsRemoved   bool       `json:"is_removed"`
	IsDeleted   bool       `json:"is_deleted"`
	IsModerator bool       `json:"is_moderator"`
}

// WithoutBody returns a copy of the comment with the body cleared, for
// persistence and result payloads.
func (c Comment) WithoutBody() Comment {
	c.Body = ""
	return c
}

// SentimentClassification is one sentiment verdict for one item in one
// pipeline run. Upsert semantics keyed by ItemID.
type SentimentClassification struct {
	ItemID        string    `json:"item_id"`
	Sentiment     Sentiment `json:"sentiment"`
	Subjectivity  float64   `json:"subjectivity"`
	Confidence    float64   `json:"confidence"`
	FromCache     bool      `json:"from_cache"`
	ModelUsed     string    `json:"model_used"`
	PromptVersion string    `json:"prompt_version"`
}

// HostilityClassification is one hostility verdict for one item under one
// (framework, target group) pair. Unique per (ItemID, Framework, TargetGroup).
type HostilityClassification struct {
	ItemID         string           `json:"item_id"`
	Framework      Framework        `json:"framework"`
	MentionsGroup  bool             `json:"mentions_group"`
	TargetGroup    string           `json:"target_group"`
	HostilityLevel HostilityLevel   `json:"hostility_level"`
	Labels         []HostilityLabel `json:"labels"`
	Confidence     float64          `json:"confidence"`
	Rationale      string           `json:"rationale"`
	FromCache      bool             `json:"from_cache"`
	ModelUsed      string           `json:"model_used"`
	PromptVersion  string           `json:"prompt_version"`
}

// SentimentDistribution is the per-category count breakdown.
type SentimentDistribution struct {
	Positive int `json:"positive"`
	Neutral  int `json:"neutral"`
	Negative int `json:"negative"`
	Total    int `json:"total"`
}

// ConfidenceInterval is a [Lower, Upper] interval over a proportion,
// both clamped to [0,1].
type ConfidenceInterval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// SentimentStats is the derived sentiment aggregate for one comment
// population. Recomputed whole each run, never mutated in place.
type SentimentStats struct {
	Distribution     SentimentDistribution         `json:"distribution"`
	MeanSubjectivity float64                       `json:"mean_subjectivity"`
	MeanConfidence   float64                       `json:"mean_confidence"`
	Intervals        map[Sentiment]ConfidenceInterval `json:"intervals"`
}

// TargetGroupStats is the derived hostility aggregate for one
// (framework, target group) pair.
type TargetGroupStats struct {
	Framework      Framework              `json:"framework"`
	TargetGroup    string                 `json:"target_group"`
	TotalMentions  int                    `json:"total_mentions"`
	HostileCount   int                    `json:"hostile_count"`
	Prevalence     float64                `json:"prevalence"`
	Interval       ConfidenceInterval     `json:"interval"`
	LevelCounts    map[HostilityLevel]int `json:"level_counts"`
	MeanConfidence float64                `json:"mean_confidence"`
}

// Result is the final pipeline output. Success=false always carries Error;
// partial classifications computed before a failure are preserved.
type Result struct {
	RunID                     string                    `json:"run_id"`
	Success                   bool                      `json:"success"`
	CommunitySentiment        *SentimentStats           `json:"community_sentiment,omitempty"`
	ModeratorSentiment        *SentimentStats           `json:"moderator_sentiment,omitempty"`
	TargetGroupStats          []TargetGroupStats        `json:"target_group_stats"`
	SampledComments           []Comment                 `json:"sampled_comments"`
	SentimentClassifications  []SentimentClassification `json:"sentiment_classifications"`
	HostilityClassifications  []HostilityClassification `json:"hostility_classifications"`
	TotalTokensUsed           int                       `json:"total_tokens_used"`
	EstimatedCostUSD          float64                   `json:"estimated_cost_usd"`
	Errors                    []string                  `json:"errors,omitempty"`
	Error                     string                    `json:"error,omitempty"`
}
