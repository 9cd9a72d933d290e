package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmritesh/Refari-Notifier/internal/hubstaff"
	"github.com/dmritesh/Refari-Notifier/internal/models"
)

var baseTime = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func activity(id, userID, taskID int64, at time.Time) hubstaff.Activity {
	return hubstaff.Activity{ID: id, UserID: userID, TaskID: taskID, TimeSlot: at}
}

func session(taskID int64, lastAt time.Time) *models.Session {
	return &models.Session{
		OrgID:          "org-1",
		HubstaffUserID: 7,
		LastTaskID:     taskID,
		LastActivityAt: lastAt,
	}
}

func neverAnnounced(context.Context) (bool, error)  { return false, nil }
func alwaysAnnounced(context.Context) (bool, error) { return true, nil }

func TestDecide(t *testing.T) {
	gap := 2 * time.Hour

	tests := []struct {
		name        string
		act         hubstaff.Activity
		sess        *models.Session
		alreadySeen bool
		recent      recentAnnouncementFn
		wantNotify  bool
		wantReason  Reason
		wantAdvance bool
	}{
		{
			name:        "first contact notifies",
			act:         activity(1, 7, 100, baseTime),
			sess:        nil,
			recent:      neverAnnounced,
			wantNotify:  true,
			wantReason:  ReasonFirstContact,
			wantAdvance: true,
		},
		{
			name:        "duplicate time entry is suppressed",
			act:         activity(1, 7, 100, baseTime),
			sess:        session(100, baseTime.Add(-10*time.Minute)),
			alreadySeen: true,
			recent:      neverAnnounced,
			wantReason:  ReasonDuplicate,
		},
		{
			name:        "duplicate wins even without a session",
			act:         activity(1, 7, 100, baseTime),
			sess:        nil,
			alreadySeen: true,
			recent:      neverAnnounced,
			wantReason:  ReasonDuplicate,
		},
		{
			name:       "activity older than cursor is stale",
			act:        activity(1, 7, 100, baseTime.Add(-time.Hour)),
			sess:       session(100, baseTime),
			recent:     neverAnnounced,
			wantReason: ReasonStale,
		},
		{
			name:        "same task within gap is a continuation",
			act:         activity(2, 7, 100, baseTime.Add(10*time.Minute)),
			sess:        session(100, baseTime),
			recent:      neverAnnounced,
			wantReason:  ReasonContinuation,
			wantAdvance: true,
		},
		{
			name:        "same timestamp same task is a continuation",
			act:         activity(2, 7, 100, baseTime),
			sess:        session(100, baseTime),
			recent:      neverAnnounced,
			wantReason:  ReasonContinuation,
			wantAdvance: true,
		},
		{
			name:        "task change within gap notifies",
			act:         activity(2, 7, 200, baseTime.Add(10*time.Minute)),
			sess:        session(100, baseTime),
			recent:      neverAnnounced,
			wantNotify:  true,
			wantReason:  ReasonTaskChanged,
			wantAdvance: true,
		},
		{
			name:        "task change back to a recent task is suppressed",
			act:         activity(2, 7, 200, baseTime.Add(10*time.Minute)),
			sess:        session(100, baseTime),
			recent:      alwaysAnnounced,
			wantReason:  ReasonFlipFlop,
			wantAdvance: true,
		},
		{
			name:        "gap exceeded on same task notifies",
			act:         activity(2, 7, 100, baseTime.Add(gap+time.Minute)),
			sess:        session(100, baseTime),
			recent:      neverAnnounced,
			wantNotify:  true,
			wantReason:  ReasonGapExceeded,
			wantAdvance: true,
		},
		{
			name:        "exactly at the gap boundary is a continuation",
			act:         activity(2, 7, 100, baseTime.Add(gap)),
			sess:        session(100, baseTime),
			recent:      neverAnnounced,
			wantReason:  ReasonContinuation,
			wantAdvance: true,
		},
		{
			name:        "gap exceeded with task change reports the gap",
			act:         activity(2, 7, 200, baseTime.Add(gap+time.Minute)),
			sess:        session(100, baseTime),
			recent:      alwaysAnnounced, // must not be consulted
			wantNotify:  true,
			wantReason:  ReasonGapExceeded,
			wantAdvance: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Decide(context.Background(), tt.act, tt.sess, gap, tt.alreadySeen, tt.recent)
			if err != nil {
				t.Fatalf("Decide failed: %v", err)
			}
			if d.Notify != tt.wantNotify {
				t.Errorf("Notify = %v, want %v", d.Notify, tt.wantNotify)
			}
			if d.Reason != tt.wantReason {
				t.Errorf("Reason = %s, want %s", d.Reason, tt.wantReason)
			}
			if d.AdvanceSession != tt.wantAdvance {
				t.Errorf("AdvanceSession = %v, want %v", d.AdvanceSession, tt.wantAdvance)
			}
		})
	}
}

func TestDecide_RecentLookupError(t *testing.T) {
	act := activity(2, 7, 200, baseTime.Add(10*time.Minute))
	sess := session(100, baseTime)

	wantErr := errors.New("ledger unavailable")
	_, err := Decide(context.Background(), act, sess, 2*time.Hour, false, func(context.Context) (bool, error) {
		return false, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected lookup error, got %v", err)
	}
}
