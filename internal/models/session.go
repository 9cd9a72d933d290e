package models

import "time"

// Session is the per-(organization, user) work cursor: the most recently
// observed task and its timestamp. LastActivityAt is monotonically
// non-decreasing; activities older than it are ignored upstream.
type Session struct {
	OrgID          string     `json:"org_id"`
	HubstaffUserID int64      `json:"hubstaff_user_id"`
	LastTaskID     int64      `json:"last_task_id"`
	LastActivityAt time.Time  `json:"last_activity_at"`
	NotifiedAt     *time.Time `json:"notified_at,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
