package storage

import (
	"context"
	"database/sql"
	"fmt"

	// Pure-Go SQLite driver.
	_ "modernc.org/sqlite"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	path      string
	masterKey []byte
	db        *sql.DB

	organizations *sqliteOrganizationRepo
	sessions      *sqliteSessionRepo
	events        *sqliteEventRepo
}

// NewSQLiteStorage creates a new SQLite storage. The master key is used
// to encrypt organization secrets at rest.
func NewSQLiteStorage(path string, masterKey []byte) *SQLiteStorage {
	return &SQLiteStorage{
		path:      path,
		masterKey: masterKey,
	}
}

// Open initializes the database connection.
func (s *SQLiteStorage) Open() error {
	ctx := context.Background()

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", s.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	// SQLite is single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("ping database: %w", err)
	}

	s.db = db

	// Initialize repositories
	s.organizations = &sqliteOrganizationRepo{db: db, masterKey: s.masterKey}
	s.sessions = &sqliteSessionRepo{db: db}
	s.events = &sqliteEventRepo{db: db}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying database connection for health checks.
func (s *SQLiteStorage) DB() *sql.DB {
	return s.db
}

// Migrate runs database migrations.
func (s *SQLiteStorage) Migrate() error {
	return runMigrations(s.db)
}

// Organizations returns the organization repository.
func (s *SQLiteStorage) Organizations() OrganizationRepository {
	return s.organizations
}

// Sessions returns the session repository.
func (s *SQLiteStorage) Sessions() SessionRepository {
	return s.sessions
}

// Events returns the processed-event (ledger) repository.
func (s *SQLiteStorage) Events() EventRepository {
	return s.events
}
