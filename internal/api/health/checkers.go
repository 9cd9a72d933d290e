package health

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLiteChecker checks SQLite database connectivity.
type SQLiteChecker struct {
	db *sql.DB
}

// NewSQLiteChecker creates a new SQLite health checker.
func NewSQLiteChecker(db *sql.DB) *SQLiteChecker {
	return &SQLiteChecker{db: db}
}

// Name returns the checker name.
func (c *SQLiteChecker) Name() string {
	return "sqlite"
}

// Check verifies the SQLite database is accessible.
func (c *SQLiteChecker) Check(ctx context.Context) error {
	if c.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return c.db.PingContext(ctx)
}

// PollerChecker reports whether the polling worker has ticked recently.
type PollerChecker struct {
	lastTick func() (lastAt int64, interval int64)
	now      func() int64
}

// NewPollerChecker creates a checker over the poller's last-tick clock.
// lastTick returns the unix time of the last completed cycle and the
// configured interval in seconds.
func NewPollerChecker(lastTick func() (int64, int64), now func() int64) *PollerChecker {
	return &PollerChecker{lastTick: lastTick, now: now}
}

// Name returns the checker name.
func (c *PollerChecker) Name() string {
	return "poller"
}

// Check fails when the poller has missed more than three intervals.
func (c *PollerChecker) Check(ctx context.Context) error {
	if c.lastTick == nil {
		return fmt.Errorf("poller not configured")
	}
	lastAt, interval := c.lastTick()
	if lastAt == 0 {
		return fmt.Errorf("poller has not completed a cycle yet")
	}
	if age := c.now() - lastAt; age > 3*interval {
		return fmt.Errorf("poller stalled: last cycle %ds ago", age)
	}
	return nil
}
