package cache

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"threadlens/internal/logging"
)

// SQLiteCache persists classification results across pipeline runs.
type SQLiteCache struct {
	db *sql.DB
}

const cacheSchema = `
CREATE TABLE IF NOT EXISTS classification_cache (
	cache_key   TEXT PRIMARY KEY,
	result      BLOB NOT NULL,
	tokens_used INTEGER NOT NULL DEFAULT 0,
	expires_at  INTEGER,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cache_expires ON classification_cache(expires_at);
`

// NewSQLiteCache opens (creating if needed) the cache database at path.
func NewSQLiteCache(path string) (*SQLiteCache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	if _, err := db.Exec(cacheSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply cache schema: %w", err)
	}

	logging.Cache("sqlite cache opened at %s", path)
	return &SQLiteCache{db: db}, nil
}

// Get returns the entry for key. Expired rows read as absent and are
// deleted opportunistically.
func (c *SQLiteCache) Get(ctx context.Context, key Key) (*Entry, bool, error) {
	k := key.String()

	var (
		result    []byte
		tokens    int
		expiresAt sql.NullInt64
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT result, tokens_used, expires_at FROM classification_cache WHERE cache_key = ?`, k).
		Scan(&result, &tokens, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}

	entry := Entry{Key: key, Result: result, TokensUsed: tokens}
	if expiresAt.Valid {
		t := time.Unix(expiresAt.Int64, 0)
		entry.ExpiresAt = &t
	}

	if entry.Expired(time.Now()) {
		if _, err := c.db.ExecContext(ctx,
			`DELETE FROM classification_cache WHERE cache_key = ? AND expires_at <= ?`,
			k, time.Now().Unix()); err != nil {
			logging.Get(logging.CategoryCache).Warn("evict expired %s: %v", k, err)
		}
		return nil, false, nil
	}

	return &entry, true, nil
}

// Set upserts the entry.
func (c *SQLiteCache) Set(ctx context.Context, entry Entry) error {
	var expiresAt interface{}
	if entry.ExpiresAt != nil {
		expiresAt = entry.ExpiresAt.Unix()
	}
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO classification_cache (cache_key, result, tokens_used, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			result = excluded.result,
			tokens_used = excluded.tokens_used,
			expires_at = excluded.expires_at`,
		entry.Key.String(), []byte(entry.Result), entry.TokensUsed, expiresAt, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}
