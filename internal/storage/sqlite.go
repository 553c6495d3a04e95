package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver
)

const kvSchema = `
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at TEXT NOT NULL
);`

// SQLiteStorage stores each key as one row. WAL mode lets a second process
// (the widget task) read while the app writes.
type SQLiteStorage struct {
	db *sqlx.DB
}

type kvRow struct {
	Key       string `db:"key"`
	Value     []byte `db:"value"`
	UpdatedAt string `db:"updated_at"`
}

func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	if path == "" {
		return nil, errors.New("storage: database path is empty")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	db, err := sqlx.Connect("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if path == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(kvSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to execute kv schema: %w", err)
	}
	return &SQLiteStorage{db: db}, nil
}

func (s *SQLiteStorage) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var row kvRow
	err := s.db.GetContext(ctx, &row, `SELECT key, value, updated_at FROM kv WHERE key = ?`, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read %s: %w", key, err)
	}
	return row.Value, true, nil
}

// Set upserts in a single statement.
func (s *SQLiteStorage) Set(ctx context.Context, key string, value []byte) error {
	row := kvRow{Key: key, Value: value, UpdatedAt: time.Now().UTC().Format(time.RFC3339Nano)}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (:key, :value, :updated_at)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`, row)
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
