package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmritesh/Refari-Notifier/internal/models"
	"github.com/dmritesh/Refari-Notifier/internal/security"
)

type sqliteOrganizationRepo struct {
	db        *sql.DB
	masterKey []byte
}

const organizationColumns = `id, name, is_active, notification_gap_minutes,
	freshdesk_domain, freshdesk_api_key, slack_webhook_url,
	gitlab_domain, gitlab_project_path, gitlab_api_key,
	hubstaff_org_id, hubstaff_access_token, hubstaff_refresh_token,
	hubstaff_token_expires_at, last_checked_at, created_at, updated_at`

func (r *sqliteOrganizationRepo) Create(ctx context.Context, org *models.Organization) error {
	query := `
		INSERT INTO organizations (` + organizationColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		org.ID, org.Name, org.IsActive, org.NotificationGapMinutes,
		org.FreshdeskDomain, org.FreshdeskAPIKey, org.SlackWebhookURL,
		nullString(org.GitLabDomain), nullString(org.GitLabProjectPath), org.GitLabAPIKey,
		nullString(org.HubstaffOrgID), org.HubstaffAccessToken, org.HubstaffRefreshToken,
		org.HubstaffTokenExpiresAt, org.LastCheckedAt, org.CreatedAt, org.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert organization: %w", err)
	}
	return nil
}

func (r *sqliteOrganizationRepo) GetByID(ctx context.Context, id string) (*models.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE id = ?`
	return r.scanOrganization(r.db.QueryRowContext(ctx, query, id))
}

func (r *sqliteOrganizationRepo) Update(ctx context.Context, org *models.Organization) error {
	query := `
		UPDATE organizations SET name = ?, is_active = ?, notification_gap_minutes = ?,
			freshdesk_domain = ?, freshdesk_api_key = ?, slack_webhook_url = ?,
			gitlab_domain = ?, gitlab_project_path = ?, gitlab_api_key = ?,
			updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		org.Name, org.IsActive, org.NotificationGapMinutes,
		org.FreshdeskDomain, org.FreshdeskAPIKey, org.SlackWebhookURL,
		nullString(org.GitLabDomain), nullString(org.GitLabProjectPath), org.GitLabAPIKey,
		time.Now(),
		org.ID,
	)
	if err != nil {
		return fmt.Errorf("update organization: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("organization not found: %s", org.ID)
	}
	return nil
}

func (r *sqliteOrganizationRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM organizations WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete organization: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("organization not found: %s", id)
	}
	return nil
}

func (r *sqliteOrganizationRepo) List(ctx context.Context) ([]*models.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations ORDER BY name`
	return r.queryOrganizations(ctx, query)
}

func (r *sqliteOrganizationRepo) ListActive(ctx context.Context) ([]*models.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE is_active = 1 ORDER BY name`
	return r.queryOrganizations(ctx, query)
}

func (r *sqliteOrganizationRepo) SetActive(ctx context.Context, id string, active bool) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE organizations SET is_active = ?, updated_at = ? WHERE id = ?",
		active, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("set organization active: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("organization not found: %s", id)
	}
	return nil
}

func (r *sqliteOrganizationRepo) TouchLastChecked(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE organizations SET last_checked_at = ? WHERE id = ?",
		at, id,
	)
	if err != nil {
		return fmt.Errorf("touch last checked: %w", err)
	}
	return nil
}

func (r *sqliteOrganizationRepo) UpdateHubstaffTokens(ctx context.Context, id string, accessToken, refreshToken []byte, expiresAt time.Time, hubstaffOrgID string) error {
	// hubstaff_org_id is only overwritten when the caller discovered one;
	// token refreshes pass the empty string and keep the stored value.
	query := `
		UPDATE organizations SET
			hubstaff_access_token = ?,
			hubstaff_refresh_token = ?,
			hubstaff_token_expires_at = ?,
			hubstaff_org_id = CASE WHEN ? != '' THEN ? ELSE hubstaff_org_id END,
			updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		accessToken, refreshToken, expiresAt,
		hubstaffOrgID, hubstaffOrgID, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("update hubstaff tokens: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("organization not found: %s", id)
	}
	return nil
}

// SealSecret encrypts a secret for storage.
func (r *sqliteOrganizationRepo) SealSecret(secret string) ([]byte, error) {
	if len(r.masterKey) == 0 {
		return nil, fmt.Errorf("master key not set")
	}
	return security.SealString(secret, r.masterKey)
}

// OpenSecret decrypts a stored secret.
func (r *sqliteOrganizationRepo) OpenSecret(blob []byte) (string, error) {
	if len(r.masterKey) == 0 {
		return "", fmt.Errorf("master key not set")
	}
	return security.OpenString(blob, r.masterKey)
}

func (r *sqliteOrganizationRepo) queryOrganizations(ctx context.Context, query string) ([]*models.Organization, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query organizations: %w", err)
	}
	defer rows.Close()

	var orgs []*models.Organization
	for rows.Next() {
		org, err := scanOrganizationFields(rows.Scan)
		if err != nil {
			return nil, err
		}
		orgs = append(orgs, org)
	}
	return orgs, rows.Err()
}

func (r *sqliteOrganizationRepo) scanOrganization(row *sql.Row) (*models.Organization, error) {
	org, err := scanOrganizationFields(row.Scan)
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	return org, err
}

func scanOrganizationFields(scan func(dest ...any) error) (*models.Organization, error) {
	org := &models.Organization{}
	var freshdeskDomain, gitlabDomain, gitlabPath, hubstaffOrgID sql.NullString
	var tokenExpiresAt, lastCheckedAt sql.NullTime

	err := scan(
		&org.ID, &org.Name, &org.IsActive, &org.NotificationGapMinutes,
		&freshdeskDomain, &org.FreshdeskAPIKey, &org.SlackWebhookURL,
		&gitlabDomain, &gitlabPath, &org.GitLabAPIKey,
		&hubstaffOrgID, &org.HubstaffAccessToken, &org.HubstaffRefreshToken,
		&tokenExpiresAt, &lastCheckedAt, &org.CreatedAt, &org.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan organization: %w", err)
	}

	org.FreshdeskDomain = freshdeskDomain.String
	org.GitLabDomain = gitlabDomain.String
	org.GitLabProjectPath = gitlabPath.String
	org.HubstaffOrgID = hubstaffOrgID.String
	if tokenExpiresAt.Valid {
		org.HubstaffTokenExpiresAt = &tokenExpiresAt.Time
	}
	if lastCheckedAt.Valid {
		org.LastCheckedAt = &lastCheckedAt.Time
	}

	return org, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
