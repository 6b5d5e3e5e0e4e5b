package localstore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// ScopeLocal is the persistent scope used for on-device storage.
const ScopeLocal = "local"

// SQLite is a file-backed store holding any number of named scopes.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite creates or opens the database at path and applies the schema.
func OpenSQLite(path string) (*SQLite, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("localstore: database path is required")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("localstore: open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("localstore: connect database: %w", err)
	}

	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("localstore: execute %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("localstore: apply schema: %w", err)
	}

	return &SQLite{db: db, now: time.Now}, nil
}

// Close releases the database handle.
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Scope returns a Store view limited to the named scope.
func (s *SQLite) Scope(name string) Store {
	return &sqliteScope{parent: s, scope: name}
}

type sqliteScope struct {
	parent *SQLite
	scope  string
}

func (s *sqliteScope) db() (*sql.DB, error) {
	if s.parent == nil || s.parent.db == nil {
		return nil, ErrClosed
	}
	return s.parent.db, nil
}

func (s *sqliteScope) Get(ctx context.Context, key string) (string, bool, error) {
	db, err := s.db()
	if err != nil {
		return "", false, err
	}
	var value string
	err = db.QueryRowContext(ctx, `SELECT value FROM kv WHERE scope = ? AND key = ?`, s.scope, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("localstore: get %q: %w", key, err)
	}
	return value, true, nil
}

func (s *sqliteScope) Set(ctx context.Context, key, value string) error {
	db, err := s.db()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO kv (scope, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (scope, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.scope, key, value, s.parent.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("localstore: set %q: %w", key, err)
	}
	return nil
}

func (s *sqliteScope) Remove(ctx context.Context, key string) error {
	db, err := s.db()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM kv WHERE scope = ? AND key = ?`, s.scope, key); err != nil {
		return fmt.Errorf("localstore: remove %q: %w", key, err)
	}
	return nil
}

func (s *sqliteScope) Keys(ctx context.Context) ([]string, error) {
	db, err := s.db()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT key FROM kv WHERE scope = ? ORDER BY key`, s.scope)
	if err != nil {
		return nil, fmt.Errorf("localstore: list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("localstore: scan key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("localstore: iterate keys: %w", err)
	}
	return keys, nil
}
