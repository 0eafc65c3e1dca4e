package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	_ "modernc.org/sqlite"

	"github.com/cognicore/ethnoscan/pkg/ethnoscan/cache"
	"github.com/cognicore/ethnoscan/pkg/ethnoscan/cache/jsonl"
	"github.com/cognicore/ethnoscan/pkg/ethnoscan/internalerr"
)

// sqliteStore implements cache.Store with a key-indexed table.
type sqliteStore struct {
	db *sql.DB
}

// Store is the SQLite cache with JSONL import support.
type Store interface {
	cache.Store
	Import(ctx context.Context, path string) (int, error)
}

// OpenSQLite opens a SQLite database with WAL mode enabled.
func OpenSQLite(ctx context.Context, path string) (Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &sqliteStore{db: db}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func initSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS responses (
	key TEXT PRIMARY KEY,
	response TEXT NOT NULL,
	created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);`)
	return err
}

func (s *sqliteStore) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT response FROM responses WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Put keeps the first value written for a key.
func (s *sqliteStore) Put(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO responses(key, response) VALUES(?, ?) ON CONFLICT(key) DO NOTHING`,
		key, value)
	return err
}

// Import copies records from a JSONL cache file. Keys already present are
// kept, so importing the same file twice is harmless. It returns the number
// of records read.
func (s *sqliteStore) Import(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO responses(key, response) VALUES(?, ?) ON CONFLICT(key) DO NOTHING`)
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	defer stmt.Close()

	var n int
	var execErr error
	scanErr := jsonl.Scan(f, func(e cache.Entry) {
		if execErr != nil {
			return
		}
		if _, err := stmt.ExecContext(ctx, e.Key, e.Response); err != nil {
			execErr = err
			return
		}
		n++
	})
	if scanErr != nil || execErr != nil {
		tx.Rollback()
		return 0, errors.Join(scanErr, execErr)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}
