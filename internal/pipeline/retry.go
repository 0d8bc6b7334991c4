package pipeline

import (
	"context"
	"errors"
	"time"

	"threadlens/internal/content"
	"threadlens/internal/logging"
	"threadlens/internal/types"
)

// retrySource decorates a content source with bounded retries. Rate
// limits wait out the server's hint, 5xx and transport errors back off
// exponentially, and everything else (not found, other 4xx) fails
// immediately.
type retrySource struct {
	src      content.Source
	attempts int
}

func newRetrySource(src content.Source, attempts int) *retrySource {
	if attempts < 1 {
		attempts = 1
	}
	return &retrySource{src: src, attempts: attempts}
}

func (r *retrySource) GetPosts(ctx context.Context, subject string, sort types.SortStrategy, opts content.ListingOptions) (*content.Listing, error) {
	var listing *content.Listing
	err := r.do(ctx, func() error {
		var err error
		listing, err = r.src.GetPosts(ctx, subject, sort, opts)
		return err
	})
	return listing, err
}

func (r *retrySource) GetComments(ctx context.Context, subject, postID string) ([]types.Comment, error) {
	var comments []types.Comment
	err := r.do(ctx, func() error {
		var err error
		comments, err = r.src.GetComments(ctx, subject, postID)
		return err
	})
	return comments, err
}

func (r *retrySource) do(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < r.attempts; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, retryDelay(lastErr, attempt)); err != nil {
				return err
			}
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) {
			return lastErr
		}
		logging.ContentDebug("fetch attempt %d/%d failed: %v", attempt+1, r.attempts, lastErr)
	}
	return lastErr
}

func retryable(err error) bool {
	if errors.Is(err, content.ErrNotFound) {
		return false
	}
	var rateLimited *content.RateLimitedError
	if errors.As(err, &rateLimited) {
		return true
	}
	var apiErr *content.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}
	// Transport-level failure.
	return true
}

func retryDelay(err error, attempt int) time.Duration {
	var rateLimited *content.RateLimitedError
	if errors.As(err, &rateLimited) && rateLimited.RetryAfter > 0 {
		return rateLimited.RetryAfter
	}
	return time.Second << (attempt - 1)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
