package models

import "time"

// ProcessedEvent is one ledger entry: an activity occurrence that has
// already produced a notification attempt. TimeEntryID is the Hubstaff
// time-entry id and carries the uniqueness constraint; inserting the same
// id twice is a no-op. Bucket is the unix second the event was processed,
// kept only as a diagnostic ordering value.
type ProcessedEvent struct {
	ID             string    `json:"id"`
	OrgID          string    `json:"org_id"`
	HubstaffUserID int64     `json:"hubstaff_user_id"`
	HubstaffTaskID int64     `json:"hubstaff_task_id"`
	TimeEntryID    string    `json:"time_entry_id"`
	Bucket         int64     `json:"bucket"`
	CreatedAt      time.Time `json:"created_at"`
}
