package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmritesh/Refari-Notifier/internal/models"
)

type sqliteEventRepo struct {
	db *sql.DB
}

func (r *sqliteEventRepo) Exists(ctx context.Context, timeEntryID string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		"SELECT 1 FROM processed_events WHERE time_entry_id = ?",
		timeEntryID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query processed event: %w", err)
	}
	return true, nil
}

func (r *sqliteEventRepo) ExistsRecent(ctx context.Context, orgID string, hubstaffUserID, hubstaffTaskID int64, since time.Time) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `
		SELECT 1 FROM processed_events
		WHERE org_id = ? AND hubstaff_user_id = ? AND hubstaff_task_id = ? AND created_at >= ?
		LIMIT 1
	`, orgID, hubstaffUserID, hubstaffTaskID, since).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query recent events: %w", err)
	}
	return true, nil
}

// Create appends a ledger entry. The UNIQUE constraint on time_entry_id
// is the concurrency guard against double-processing; a conflicting
// insert means the entry is already recorded and is not an error.
func (r *sqliteEventRepo) Create(ctx context.Context, event *models.ProcessedEvent) error {
	query := `
		INSERT INTO processed_events (id, org_id, hubstaff_user_id, hubstaff_task_id, time_entry_id, bucket, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(time_entry_id) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query,
		event.ID, event.OrgID, event.HubstaffUserID, event.HubstaffTaskID,
		event.TimeEntryID, event.Bucket, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert processed event: %w", err)
	}
	return nil
}

func (r *sqliteEventRepo) ListRecent(ctx context.Context, limit int) ([]*models.ProcessedEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, org_id, hubstaff_user_id, hubstaff_task_id, time_entry_id, bucket, created_at
		FROM processed_events ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query processed events: %w", err)
	}
	defer rows.Close()

	var events []*models.ProcessedEvent
	for rows.Next() {
		event := &models.ProcessedEvent{}
		if err := rows.Scan(
			&event.ID, &event.OrgID, &event.HubstaffUserID, &event.HubstaffTaskID,
			&event.TimeEntryID, &event.Bucket, &event.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan processed event: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
