package github

import (
	"fmt"
	"time"
)

// NotFoundError marks a 404 from the upstream. Load endpoints translate it
// straight to their own 404.
type NotFoundError struct {
	URL string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("upstream not found: %s", e.URL)
}

// UpstreamError covers every non-success status that is not a 404 or an
// exhausted rate limit.
type UpstreamError struct {
	Status int
	URL    string
	Body   string
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream status %d: %s", e.Status, e.URL)
	}
	return fmt.Sprintf("upstream status %d: %s: %s", e.Status, e.URL, e.Body)
}

// RateLimitedError means the token's request budget is spent. Reset says
// when the window reopens; schedulers re-enqueue at exactly that instant
// and inline callers translate it to a 503.
type RateLimitedError struct {
	RateLimit
	URL string
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited: 0 of %d requests remaining, resets %s: %s",
		e.Limit, e.Reset.Format(time.RFC3339), e.URL)
}
