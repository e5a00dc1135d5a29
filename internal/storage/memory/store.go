// Package memory is an in-process storage.Store for development and tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"budgetflow/internal/storage"
)

type entry struct {
	value   []byte
	version int64
}

type Store struct {
	mu     sync.RWMutex
	items  map[string]entry
	closed bool
}

func NewStore() *Store {
	return &Store{items: make(map[string]entry)}
}

func (s *Store) Get(_ context.Context, key string) (storage.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.items[key]
	if !ok {
		return storage.Item{}, fmt.Errorf("%w: %q", storage.ErrNotFound, key)
	}
	return storage.Item{Key: key, Value: slices.Clone(e.value), Version: e.version}, nil
}

func (s *Store) Put(_ context.Context, key string, value []byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, fmt.Errorf("put %q: store closed", key)
	}
	e := s.items[key]
	e.value = slices.Clone(value)
	e.version++
	s.items[key] = e
	return e.version, nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}

func (s *Store) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for k := range s.items {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
