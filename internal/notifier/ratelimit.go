package notifier

import (
	"errors"
	"sync"
	"time"
)

// ErrRateLimited indicates a notification was dropped because the
// organization exceeded its delivery budget for the current window.
var ErrRateLimited = errors.New("notification rate limit exceeded")

// RateLimiter enforces a sliding-window cap on notifications per
// organization so a burst of session churn cannot flood a channel.
type RateLimiter struct {
	mu       sync.Mutex
	window   time.Duration
	limit    int
	requests map[string][]time.Time
}

// NewRateLimiter creates a rate limiter allowing limit notifications
// per organization per window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		window:   window,
		limit:    limit,
		requests: make(map[string][]time.Time),
	}
}

// Allow reports whether the organization may send another notification
// now, recording the attempt if allowed.
func (r *RateLimiter) Allow(orgID string) bool {
	return r.allowAt(orgID, time.Now())
}

func (r *RateLimiter) allowAt(orgID string, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := now.Add(-r.window)
	kept := r.requests[orgID][:0]
	for _, t := range r.requests[orgID] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= r.limit {
		r.requests[orgID] = kept
		return false
	}

	r.requests[orgID] = append(kept, now)
	return true
}

// Reset clears the recorded history for an organization.
func (r *RateLimiter) Reset(orgID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.requests, orgID)
}
