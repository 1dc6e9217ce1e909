// Package memory provides an in-memory storage backend for tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/goccy/go-json"

	"github.com/acuervo/catalog-mirror/internal/storage"
)

// Store keeps encoded documents in a map guarded by a mutex.
type Store struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// New constructs an empty Store.
func New() *Store {
	return &Store{docs: make(map[string][]byte)}
}

// ReadJSON decodes the stored document at key into v.
func (s *Store) ReadJSON(_ context.Context, key string, v any) error {
	s.mu.RLock()
	data, ok := s.docs[key]
	s.mu.RUnlock()
	if !ok {
		return storage.ErrNotFound
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// WriteJSON encodes v and replaces the document at key.
func (s *Store) WriteJSON(_ context.Context, key string, v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", key, err)
	}
	s.mu.Lock()
	s.docs[key] = data
	s.mu.Unlock()
	return "mem://" + key, nil
}

// Exists reports whether a document is present at key.
func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.docs[key]
	return ok, nil
}

// Keys returns the stored document keys. Intended for assertions in tests.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.docs))
	for k := range s.docs {
		keys = append(keys, k)
	}
	return keys
}
