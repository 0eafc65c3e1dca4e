package memstore

import (
	"context"
	"sync"
)

// Store is an in-memory implementation of cache.Store for tests.
type Store struct {
	mu      sync.RWMutex
	entries map[string]string
	puts    int
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{entries: make(map[string]string)}
}

// Close implements cache.Store.
func (s *Store) Close() error { return nil }

// Get returns the first value stored for key.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.entries[key]
	return v, ok, nil
}

// Put stores value unless key already has one.
func (s *Store) Put(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	if _, ok := s.entries[key]; ok {
		return nil
	}
	s.entries[key] = value
	return nil
}

// Len returns the number of distinct keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Puts returns how many Put calls were made, including ignored ones.
func (s *Store) Puts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.puts
}
