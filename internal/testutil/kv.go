package testutil

import (
	"context"
	"sync"

	"ttshist/internal/history"
)

// FaultyStore wraps a KeyValueStore and fails selected operations on demand.
type FaultyStore struct {
	history.KeyValueStore

	mu        sync.Mutex
	getErr    error
	setErr    error
	removeErr error
}

var _ history.KeyValueStore = (*FaultyStore)(nil)

func NewFaultyStore(inner history.KeyValueStore) *FaultyStore {
	return &FaultyStore{KeyValueStore: inner}
}

// FailGet makes Get return err; nil restores normal behavior.
func (s *FaultyStore) FailGet(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getErr = err
}

// FailSet makes Set return err; nil restores normal behavior.
func (s *FaultyStore) FailSet(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setErr = err
}

// FailRemove makes Remove return err; nil restores normal behavior.
func (s *FaultyStore) FailRemove(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeErr = err
}

func (s *FaultyStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	err := s.getErr
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.KeyValueStore.Get(ctx, key)
}

func (s *FaultyStore) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	err := s.setErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.KeyValueStore.Set(ctx, key, value)
}

func (s *FaultyStore) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	err := s.removeErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.KeyValueStore.Remove(ctx, key)
}
