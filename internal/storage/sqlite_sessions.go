package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmritesh/Refari-Notifier/internal/models"
)

type sqliteSessionRepo struct {
	db *sql.DB
}

func (r *sqliteSessionRepo) Get(ctx context.Context, orgID string, hubstaffUserID int64) (*models.Session, error) {
	query := `
		SELECT org_id, hubstaff_user_id, last_task_id, last_activity_at, notified_at, updated_at
		FROM user_sessions WHERE org_id = ? AND hubstaff_user_id = ?
	`
	session := &models.Session{}
	var notifiedAt sql.NullTime

	err := r.db.QueryRowContext(ctx, query, orgID, hubstaffUserID).Scan(
		&session.OrgID, &session.HubstaffUserID, &session.LastTaskID,
		&session.LastActivityAt, &notifiedAt, &session.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}

	if notifiedAt.Valid {
		session.NotifiedAt = &notifiedAt.Time
	}

	return session, nil
}

// Upsert writes the session in a single statement so the cursor advance
// is observed exactly once even if a later step of the pipeline fails.
func (r *sqliteSessionRepo) Upsert(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO user_sessions (org_id, hubstaff_user_id, last_task_id, last_activity_at, notified_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(org_id, hubstaff_user_id) DO UPDATE SET
			last_task_id = excluded.last_task_id,
			last_activity_at = excluded.last_activity_at,
			notified_at = excluded.notified_at,
			updated_at = excluded.updated_at
	`
	_, err := r.db.ExecContext(ctx, query,
		session.OrgID, session.HubstaffUserID, session.LastTaskID,
		session.LastActivityAt, session.NotifiedAt, session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}
