package settings

import (
	"context"
	"strings"
	"sync"
)

// memStore is an in-memory Store implementation used in tests and when the
// server runs without a database-backed settings table.
type memStore struct {
	mu     sync.RWMutex
	values map[string]string
	subs   []subscription
}

// NewInMemoryStore creates an empty in-memory settings store.
func NewInMemoryStore() Store {
	return &memStore{values: make(map[string]string)}
}

func (s *memStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

func (s *memStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	s.values[key] = value
	subs := make([]subscription, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		if strings.HasPrefix(key, sub.prefix) {
			go sub.fn(key)
		}
	}
	return nil
}

func (s *memStore) Subscribe(prefix string, fn func(key string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, subscription{prefix: prefix, fn: fn})
}
