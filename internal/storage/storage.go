// Package storage provides database storage interfaces and implementations.
package storage

import (
	"context"
	"time"

	"github.com/dmritesh/Refari-Notifier/internal/models"
)

// Storage is the main interface for database operations.
type Storage interface {
	// Open initializes the database connection.
	Open() error
	// Close closes the database connection.
	Close() error
	// Migrate runs database migrations.
	Migrate() error

	// Repository accessors
	Organizations() OrganizationRepository
	Sessions() SessionRepository
	Events() EventRepository
}

// OrganizationRepository defines operations for organization management.
type OrganizationRepository interface {
	Create(ctx context.Context, org *models.Organization) error
	GetByID(ctx context.Context, id string) (*models.Organization, error)
	Update(ctx context.Context, org *models.Organization) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*models.Organization, error)
	ListActive(ctx context.Context) ([]*models.Organization, error)
	SetActive(ctx context.Context, id string, active bool) error
	TouchLastChecked(ctx context.Context, id string, at time.Time) error
	UpdateHubstaffTokens(ctx context.Context, id string, accessToken, refreshToken []byte, expiresAt time.Time, hubstaffOrgID string) error
	SealSecret(secret string) ([]byte, error)
	OpenSecret(blob []byte) (string, error)
}

// SessionRepository defines operations for the per-user work cursor.
type SessionRepository interface {
	// Get returns the session for (org, user), or nil if none exists yet.
	Get(ctx context.Context, orgID string, hubstaffUserID int64) (*models.Session, error)
	// Upsert creates or replaces the session in a single statement.
	Upsert(ctx context.Context, session *models.Session) error
}

// EventRepository defines operations for the deduplication ledger.
type EventRepository interface {
	// Exists reports whether a ledger entry for this time-entry id exists.
	Exists(ctx context.Context, timeEntryID string) (bool, error)
	// ExistsRecent reports whether a notification for (org, user, task)
	// was recorded at or after the given time.
	ExistsRecent(ctx context.Context, orgID string, hubstaffUserID, hubstaffTaskID int64, since time.Time) (bool, error)
	// Create appends a ledger entry. Inserting a duplicate time-entry id
	// is a no-op, not an error.
	Create(ctx context.Context, event *models.ProcessedEvent) error
	// ListRecent returns the newest entries, most recent first.
	ListRecent(ctx context.Context, limit int) ([]*models.ProcessedEvent, error)
}
