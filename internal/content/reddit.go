package content

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"threadlens/internal/logging"
	"threadlens/internal/types"
)

// RedditConfig holds configuration for the Reddit JSON API client.
type RedditConfig struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

// DefaultRedditConfig returns sensible defaults.
func DefaultRedditConfig() RedditConfig {
	return RedditConfig{
		BaseURL:   "https://www.reddit.com",
		UserAgent: "threadlens/1.0",
		Timeout:   30 * time.Second,
	}
}

// RedditClient implements Source against the public Reddit JSON endpoints.
// All requests pass through a shared token bucket.
type RedditClient struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	bucket     *TokenBucket
}

// NewRedditClient creates a client with the given config. A nil bucket
// uses the process-wide default.
func NewRedditClient(cfg RedditConfig, bucket *TokenBucket) *RedditClient {
	if cfg.BaseURL == "" {
		cfg = DefaultRedditConfig()
	}
	if bucket == nil {
		bucket = DefaultBucket()
	}
	return &RedditClient{
		baseURL:   cfg.BaseURL,
		userAgent: cfg.UserAgent,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		bucket: bucket,
	}
}

// redditListing mirrors the slice of the wire format we consume.
type redditListing struct {
	Data struct {
		After    string        `json:"after"`
		Children []redditChild `json:"children"`
	} `json:"data"`
}

type redditChild struct {
	Kind string     `json:"kind"`
	Data redditItem `json:"data"`
}

type redditItem struct {
	ID                string          `json:"id"`
	Subreddit         string          `json:"subreddit"`
	Title             string          `json:"title"`
	Permalink         string          `json:"permalink"`
	CreatedUTC        float64         `json:"created_utc"`
	Score             int             `json:"score"`
	NumComments       int             `json:"num_comments"`
	RemovedByCategory string          `json:"removed_by_category"`
	ParentID          string          `json:"parent_id"`
	LinkID            string          `json:"link_id"`
	AuthorFullname    string          `json:"author_fullname"`
	Author            string          `json:"author"`
	Body              string          `json:"body"`
	Edited            json.RawMessage `json:"edited"` // false or unix seconds
	Distinguished     string          `json:"distinguished"`
	Replies           json.RawMessage `json:"replies"` // "" or nested listing
}

// editedAt decodes Reddit's "edited" field: false when never edited,
// a unix timestamp otherwise.
func (it *redditItem) editedAt() *time.Time {
	if len(it.Edited) == 0 {
		return nil
	}
	var secs float64
	if err := json.Unmarshal(it.Edited, &secs); err != nil {
		return nil
	}
	t := time.Unix(int64(secs), 0).UTC()
	return &t
}

// GetPosts fetches one page of posts for a subreddit under the given sort.
func (c *RedditClient) GetPosts(ctx context.Context, subject string, sort types.SortStrategy, opts ListingOptions) (*Listing, error) {
	if err := c.bucket.Wait(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Cursor != "" {
		q.Set("after", opts.Cursor)
	}
	endpoint := fmt.Sprintf("%s/r/%s/%s.json?%s", c.baseURL, url.PathEscape(subject), sort, q.Encode())

	var listing redditListing
	if err := c.getJSON(ctx, endpoint, &listing); err != nil {
		return nil, err
	}

	out := &Listing{NextCursor: listing.Data.After}
	for _, child := range listing.Data.Children {
		post := types.Post{
			ID:          child.Data.ID,
			Subreddit:   child.Data.Subreddit,
			Title:       child.Data.Title,
			Permalink:   child.Data.Permalink,
			CreatedAt:   time.Unix(int64(child.Data.CreatedUTC), 0).UTC(),
			Score:       child.Data.Score,
			NumComments: child.Data.NumComments,
			IsRemoved:   child.Data.RemovedByCategory != "",
		}
		if !opts.TimeWindowStart.IsZero() && post.CreatedAt.Before(opts.TimeWindowStart) {
			continue
		}
		if !opts.TimeWindowEnd.IsZero() && post.CreatedAt.After(opts.TimeWindowEnd) {
			continue
		}
		out.Items = append(out.Items, post)
	}

	logging.ContentDebug("GetPosts r/%s sort=%s returned %d posts", subject, sort, len(out.Items))
	return out, nil
}

// GetComments fetches the full comment tree for a post, flattened
// depth-first with Depth populated.
func (c *RedditClient) GetComments(ctx context.Context, subject, postID string) ([]types.Comment, error) {
	if err := c.bucket.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/r/%s/comments/%s.json", c.baseURL, url.PathEscape(subject), url.PathEscape(postID))

	// The comments endpoint returns [postListing, commentListing].
	var pages []redditListing
	if err := c.getJSON(ctx, endpoint, &pages); err != nil {
		return nil, err
	}
	if len(pages) < 2 {
		return nil, nil
	}

	var comments []types.Comment
	walkComments(pages[1].Data.Children, postID, 0, &comments)
	logging.ContentDebug("GetComments r/%s post=%s returned %d comments", subject, postID, len(comments))
	return comments, nil
}

func walkComments(children []redditChild, postID string, depth int, out *[]types.Comment) {
	for _, child := range children {
		if child.Kind != "t1" {
			continue // "more" stubs and anything else we don't expand
		}
		it := child.Data
		comment := types.Comment{
			ID:          it.ID,
			PostID:      postID,
			Permalink:   it.Permalink,
			AuthorID:    it.AuthorFullname,
			Body:        it.Body,
			CreatedAt:   time.Unix(int64(it.CreatedUTC), 0).UTC(),
			EditedAt:    it.editedAt(),
			Score:       it.Score,
			Depth:       depth,
			IsRemoved:   it.Body == "[removed]",
			IsDeleted:   it.Author == "[deleted]",
			IsModerator: it.Distinguished == "moderator",
		}
		if it.ParentID != "" && it.ParentID != it.LinkID {
			comment.ParentID = it.ParentID
		}
		*out = append(*out, comment)

		if len(it.Replies) > 0 && string(it.Replies) != `""` {
			var nested redditListing
			if err := json.Unmarshal(it.Replies, &nested); err == nil {
				walkComments(nested.Data.Children, postID, depth+1, out)
			}
		}
	}
}

func (c *RedditClient) getJSON(ctx context.Context, endpoint string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitedError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	case resp.StatusCode != http.StatusOK:
		return &APIError{StatusCode: resp.StatusCode, Message: string(body)}
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
