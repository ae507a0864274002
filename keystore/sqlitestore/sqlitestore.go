// Package sqlitestore persists credentials in a local SQLite database so
// the demo binary keeps its login across runs. It stands in for a
// platform secure store behind the keystore.Store contract.
package sqlitestore

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"

	"github.com/jrsteele09/go-auth-client/keystore"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS secrets (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

var _ keystore.Store = (*Store)(nil)

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) a SQLite-backed store at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("[sqlitestore.Open] path is required")
	}

	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "[sqlitestore.Open] sql.Open")
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "[sqlitestore.Open] db.Ping")
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "[sqlitestore.Open] create schema")
	}
	return &Store{db: db}, nil
}

func (s *Store) Store(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO secrets (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return &keystore.StoreError{Op: keystore.OpStore, Key: key, Err: err}
	}
	return nil
}

func (s *Store) Retrieve(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM secrets WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, &keystore.StoreError{Op: keystore.OpRetrieve, Key: key, Err: err}
	}
	return value, true, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM secrets WHERE key = ?`, key); err != nil {
		return &keystore.StoreError{Op: keystore.OpDelete, Key: key, Err: err}
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM secrets`); err != nil {
		return &keystore.StoreError{Op: keystore.OpClear, Err: err}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
