package storage

import (
	"context"
	"errors"
	"strings"

	logx "salonbot/pkg/logx"
)

// Store is the minimal persistence API used by the in-memory stores.
//
// Load unmarshals the document stored under key into v, returning
// ErrNotFound for keys that were never saved. Save replaces the whole
// document atomically (per key).
type Store interface {
	Load(ctx context.Context, key string, v any) error
	Save(ctx context.Context, key string, v any) error
	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "", "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
