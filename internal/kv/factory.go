package kv

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"ttshist/internal/config"
	"ttshist/internal/history"
)

// DBFileName is the sqlite database file created under data_dir.
const DBFileName = "ttshist.db"

// Store is a KeyValueStore that holds resources until closed.
type Store interface {
	history.KeyValueStore
	io.Closer
}

// NewStoreFromConfig creates a KeyValueStore implementation based on the store config type.
func NewStoreFromConfig(cfg config.StoreConfig, clock history.Clock) (Store, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite store")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		s, err := NewSQLiteStore(filepath.Join(cfg.DataDir, DBFileName), clock)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "memory":
		return nopCloser{NewMemoryStore(cfg.Quota)}, nil
	default:
		return nil, fmt.Errorf("unknown store type: %s", cfg.Type)
	}
}

type nopCloser struct {
	*MemoryStore
}

func (nopCloser) Close() error { return nil }
