// internal/cache/sqlite.go
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ ScratchCache = (*SQLiteCache)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS scratch (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at TIMESTAMP NOT NULL
);`

// SQLiteCache implements ScratchCache backed by a device-local SQLite file.
type SQLiteCache struct {
	db *sql.DB
}

// NewSQLiteCache opens (or creates) the cache database at dbPath and ensures
// the schema exists. Use ":memory:" for an ephemeral in-process cache.
func NewSQLiteCache(dbPath string) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open scratch cache: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize scratch cache schema: %w", err)
	}
	return &SQLiteCache{db: db}, nil
}

// Get returns the value stored under key, or ok=false when absent.
func (c *SQLiteCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := c.db.QueryRowContext(ctx, `SELECT value FROM scratch WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read scratch key %q: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key, replacing any previous value.
func (c *SQLiteCache) Set(ctx context.Context, key string, value []byte) error {
	query := `INSERT INTO scratch (key, value, updated_at) VALUES (?, ?, ?)
	          ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	if _, err := c.db.ExecContext(ctx, query, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to write scratch key %q: %w", key, err)
	}
	return nil
}

// Remove deletes key; absent keys are a no-op.
func (c *SQLiteCache) Remove(ctx context.Context, key string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM scratch WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to remove scratch key %q: %w", key, err)
	}
	return nil
}

// Close closes the underlying database.
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}
