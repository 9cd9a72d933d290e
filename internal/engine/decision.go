// Package engine polls the time-tracking feed and turns raw activity
// records into at-most-once work-session announcements.
package engine

import (
	"context"
	"time"

	"github.com/dmritesh/Refari-Notifier/internal/hubstaff"
	"github.com/dmritesh/Refari-Notifier/internal/models"
)

// Reason explains a decision outcome.
type Reason string

const (
	// ReasonFirstContact is the first activity ever seen for this user.
	ReasonFirstContact Reason = "first_contact"
	// ReasonTaskChanged means the user switched to a different task.
	ReasonTaskChanged Reason = "task_changed"
	// ReasonGapExceeded means the idle period exceeded the session gap.
	ReasonGapExceeded Reason = "gap_exceeded"

	// ReasonDuplicate means this exact time entry was already processed.
	ReasonDuplicate Reason = "duplicate"
	// ReasonStale means the activity is older than the session cursor.
	ReasonStale Reason = "stale"
	// ReasonContinuation means the user kept working on the same task.
	ReasonContinuation Reason = "continuation"
	// ReasonFlipFlop means a rapid A->B->A task switch was suppressed
	// because task B was already announced within the gap window.
	ReasonFlipFlop Reason = "flip_flop"
)

// Decision is the outcome for one activity.
type Decision struct {
	Notify         bool
	Reason         Reason
	AdvanceSession bool
}

// recentAnnouncementFn reports whether the activity's task was already
// announced for this user within the current gap window. It is only
// consulted on a task change that does not exceed the gap.
type recentAnnouncementFn func(ctx context.Context) (bool, error)

// Decide classifies one activity against the user's session cursor.
//
// The checks run in strict order: exact-duplicate suppression first,
// then the stale guard, then the session transitions. The cursor
// advances on every non-stale, non-duplicate activity whether or not
// it produces an announcement, so LastActivityAt never moves backward.
func Decide(ctx context.Context, act hubstaff.Activity, sess *models.Session, gap time.Duration, alreadySeen bool, recentlyAnnounced recentAnnouncementFn) (Decision, error) {
	if alreadySeen {
		return Decision{Reason: ReasonDuplicate}, nil
	}

	if sess != nil && act.TimeSlot.Before(sess.LastActivityAt) {
		return Decision{Reason: ReasonStale}, nil
	}

	if sess == nil {
		return Decision{Notify: true, Reason: ReasonFirstContact, AdvanceSession: true}, nil
	}

	taskChanged := act.TaskID != sess.LastTaskID
	gapExceeded := act.TimeSlot.Sub(sess.LastActivityAt) > gap

	switch {
	case gapExceeded:
		// A long break always re-announces, even on the same task.
		return Decision{Notify: true, Reason: ReasonGapExceeded, AdvanceSession: true}, nil
	case taskChanged:
		recent, err := recentlyAnnounced(ctx)
		if err != nil {
			return Decision{}, err
		}
		if recent {
			return Decision{Reason: ReasonFlipFlop, AdvanceSession: true}, nil
		}
		return Decision{Notify: true, Reason: ReasonTaskChanged, AdvanceSession: true}, nil
	default:
		return Decision{Reason: ReasonContinuation, AdvanceSession: true}, nil
	}
}
