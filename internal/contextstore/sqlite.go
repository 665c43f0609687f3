package contextstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on a local SQLite database. Expiry is
// enforced on read and swept lazily, so stale rows are never returned even
// if the sweeper has not run yet.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS context_entries (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_context_expires ON context_entries(expires_at);
`

// NewSQLiteStore opens (creating if needed) the store at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy_timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set journal_mode: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: path}, nil
}

// Get returns the value for key, deleting it when expired.
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	var value []byte
	var expiresAt int64
	err := s.db.QueryRowContext(ctx,
		"SELECT value, expires_at FROM context_entries WHERE key = ?", key,
	).Scan(&value, &expiresAt)
	s.mu.RUnlock()

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("context get: %w", err)
	}
	if time.Now().UnixMilli() >= expiresAt {
		_ = s.Delete(ctx, key)
		return nil, ErrNotFound
	}
	return value, nil
}

// Set stores value under key for ttl, replacing any prior entry. Each write
// also sweeps already-expired rows; with one writer per user-key that keeps
// the table bounded without a background goroutine.
func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	_, _ = s.db.ExecContext(ctx, "DELETE FROM context_entries WHERE expires_at <= ?", now)

	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO context_entries (key, value, expires_at) VALUES (?, ?, ?)",
		key, value, now+ttl.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("context set: %w", err)
	}
	return nil
}

// Delete removes key.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, "DELETE FROM context_entries WHERE key = ?", key); err != nil {
		return fmt.Errorf("context delete: %w", err)
	}
	return nil
}

// Ping verifies the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
