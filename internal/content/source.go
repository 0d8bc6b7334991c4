// Package content defines the upstream content-source port and a
// Reddit-style JSON API client implementing it. Upstream failures are
// typed: callers branch on NotFound / RateLimited / APIError instead of
// string matching.
package content

import (
	"context"
	"errors"
	"fmt"
	"time"

	"threadlens/internal/types"
)

// ErrNotFound reports that the requested subject or post does not exist
// upstream. Terminal for that subject, not fatal to the caller.
var ErrNotFound = errors.New("content: not found")

// RateLimitedError reports an upstream 429. RetryAfter is the server's
// hint, zero when the server sent none.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("content: rate limited (retry after %s)", e.RetryAfter)
	}
	return "content: rate limited"
}

// APIError is any other upstream failure with an HTTP status attached.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("content: api error (status %d): %s", e.StatusCode, e.Message)
}

// ListingOptions narrows a post listing request.
type ListingOptions struct {
	Limit           int
	TimeWindowStart time.Time
	TimeWindowEnd   time.Time
	Cursor          string
}

// Listing is one page of posts plus the cursor for the next page.
type Listing struct {
	Items      []types.Post
	NextCursor string
}

// Source is the upstream content port consumed by the sampler and the
// pipeline controller.
type Source interface {
	// GetPosts returns one page of posts for the subject under the given
	// sort. May return ErrNotFound, *RateLimitedError, or *APIError.
	GetPosts(ctx context.Context, subject string, sort types.SortStrategy, opts ListingOptions) (*Listing, error)

	// GetComments returns the full comment tree for a post, depth-first,
	// with Depth populated on every comment.
	GetComments(ctx context.Context, subject, postID string) ([]types.Comment, error)
}
