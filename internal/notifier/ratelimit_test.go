package notifier

import (
	"testing"
	"time"
)

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	now := time.Now()

	if !rl.allowAt("org-1", now) {
		t.Error("first notification should be allowed")
	}
	if !rl.allowAt("org-1", now.Add(time.Second)) {
		t.Error("second notification should be allowed")
	}
	if rl.allowAt("org-1", now.Add(2*time.Second)) {
		t.Error("third notification within window should be rejected")
	}

	// Other organizations have independent budgets.
	if !rl.allowAt("org-2", now.Add(2*time.Second)) {
		t.Error("different organization should be allowed")
	}
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	now := time.Now()

	if !rl.allowAt("org-1", now) {
		t.Error("first notification should be allowed")
	}
	if rl.allowAt("org-1", now.Add(30*time.Second)) {
		t.Error("notification within window should be rejected")
	}
	if !rl.allowAt("org-1", now.Add(61*time.Second)) {
		t.Error("notification after window should be allowed")
	}
}

func TestRateLimiter_Reset(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	now := time.Now()

	rl.allowAt("org-1", now)
	if rl.allowAt("org-1", now) {
		t.Error("should be rejected before reset")
	}
	rl.Reset("org-1")
	if !rl.allowAt("org-1", now) {
		t.Error("should be allowed after reset")
	}
}
