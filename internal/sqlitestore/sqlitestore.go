// Package sqlitestore provides a SQLite-backed ScopedStore for single-host
// deployments where no Redis is available. One table holds every scoped
// value; the addressing tuple is the primary key.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/epiclink/pkg/types"
)

const schemaSQL = `CREATE TABLE IF NOT EXISTS scoped_values (
    scope_kind TEXT NOT NULL,
    scope_id TEXT NOT NULL,
    visibility TEXT NOT NULL,
    member TEXT NOT NULL,
    key TEXT NOT NULL,
    value TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    PRIMARY KEY (scope_kind, scope_id, visibility, member, key)
);`

// Store implements types.ScopedStore on a SQLite database file.
type Store struct {
	mu     sync.Mutex
	db     *sql.DB
	closed bool
}

// Open creates the data directory if needed, opens (or creates) the
// database file inside it, and ensures the schema exists.
func Open(dataDir string) (*Store, error) {
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, "epiclink.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// memberColumn normalizes the member for storage: shared keys ignore the
// member, and the primary key needs a non-NULL value.
func memberColumn(visibility, member string) string {
	if visibility != types.VisibilityPrivate {
		return ""
	}
	return member
}

func (s *Store) conn() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, types.ErrStoreClosed
	}
	return s.db, nil
}

// Get implements types.ScopedStore.
func (s *Store) Get(ctx context.Context, scope types.Scope, visibility, member, key string) (json.RawMessage, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	var value string
	err = db.QueryRowContext(ctx,
		`SELECT value FROM scoped_values
		 WHERE scope_kind = ? AND scope_id = ? AND visibility = ? AND member = ? AND key = ?`,
		scope.Kind, scope.ID, visibility, memberColumn(visibility, member), key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, types.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select value: %w", err)
	}
	return json.RawMessage(value), nil
}

// Set implements types.ScopedStore.
func (s *Store) Set(ctx context.Context, scope types.Scope, visibility, member, key string, value json.RawMessage) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	db, err := s.conn()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO scoped_values (scope_kind, scope_id, visibility, member, key, value, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (scope_kind, scope_id, visibility, member, key)
		 DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		scope.Kind, scope.ID, visibility, memberColumn(visibility, member), key,
		string(value), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("upsert value: %w", err)
	}
	return nil
}

// Remove implements types.ScopedStore.
func (s *Store) Remove(ctx context.Context, scope types.Scope, visibility, member string, keys ...string) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	db, err := s.conn()
	if err != nil {
		return err
	}

	for _, key := range keys {
		if _, err := db.ExecContext(ctx,
			`DELETE FROM scoped_values
			 WHERE scope_kind = ? AND scope_id = ? AND visibility = ? AND member = ? AND key = ?`,
			scope.Kind, scope.ID, visibility, memberColumn(visibility, member), key); err != nil {
			return fmt.Errorf("delete value: %w", err)
		}
	}
	return nil
}

// Keys implements types.ScopedStore.
func (s *Store) Keys(ctx context.Context, scope types.Scope, visibility, member string) ([]string, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT key FROM scoped_values
		 WHERE scope_kind = ? AND scope_id = ? AND visibility = ? AND member = ?
		 ORDER BY key`,
		scope.Kind, scope.ID, visibility, memberColumn(visibility, member))
	if err != nil {
		return nil, fmt.Errorf("select keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Close implements types.ScopedStore. Idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
