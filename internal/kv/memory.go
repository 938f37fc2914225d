package kv

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"ttshist/internal/history"
)

// MemoryStore is an in-memory implementation of the KeyValueStore interface.
// An optional quota caps the summed size of keys and values, the way a
// browser's local storage does.
// This implementation is safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	data  map[string][]byte
	quota int64
}

var _ history.KeyValueStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store. A quota of zero means unlimited.
func NewMemoryStore(quota int64) *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte), quota: quota}
}

// Get returns a copy of the value stored under key.
func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key]
	if !ok {
		return nil, fmt.Errorf("key %q: %w", key, history.ErrNotFound)
	}
	return slices.Clone(v), nil
}

// Set stores value under key. It fails with ErrQuotaExceeded, leaving the
// previous value in place, when the write would exceed the quota.
func (m *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.quota > 0 {
		used := m.usedLocked()
		if old, ok := m.data[key]; ok {
			used -= int64(len(key) + len(old))
		}
		if used+int64(len(key)+len(value)) > m.quota {
			return fmt.Errorf("setting %q: %w", key, history.ErrQuotaExceeded)
		}
	}
	m.data[key] = slices.Clone(value)
	return nil
}

// Remove deletes key if present.
func (m *MemoryStore) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Keys returns the stored keys in sorted order.
func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.data))
}

// Used returns the bytes counted against the quota.
func (m *MemoryStore) Used() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.usedLocked()
}

func (m *MemoryStore) usedLocked() int64 {
	var n int64
	for k, v := range m.data {
		n += int64(len(k) + len(v))
	}
	return n
}
