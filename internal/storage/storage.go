package storage

import (
	"context"
	"errors"
	"strings"
)

// Storage is a tiny durable key/value substrate. Set must be atomic: a
// reader observes either the previous value or the new one in full.
type Storage interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

// ErrClosed is returned by operations on a closed storage.
var ErrClosed = errors.New("storage: closed")

// Open returns the backend for driver ("file" or "sqlite") rooted at path.
func Open(driver, path string) (Storage, error) {
	switch strings.ToLower(driver) {
	case "", "file":
		return NewFileStorage(path)
	case "sqlite", "sqlite3":
		return NewSQLiteStorage(path)
	default:
		return nil, errors.New("storage: unknown driver " + driver)
	}
}
