// Package settings provides a database-backed dynamic settings store.
// Values can be changed at runtime without a restart; interested components
// register change subscriptions at construction time instead of listening on
// an ambient event bus.
package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Upstream credential keys. When both are present they take precedence over
// the static configuration.
const (
	KeyUpstreamClientID     = "upstream.client_id"
	KeyUpstreamClientSecret = "upstream.client_secret"
)

// ErrNotFound is returned when a key has no stored value.
var ErrNotFound = errors.New("setting not found")

// Store is the dynamic settings interface consumed by the rest of the
// system.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set persists the value for key and notifies subscribers.
	Set(ctx context.Context, key, value string) error

	// Subscribe registers fn to be called whenever a key under the given
	// prefix changes. Notifications are asynchronous and best-effort.
	Subscribe(prefix string, fn func(key string))
}

type subscription struct {
	prefix string
	fn     func(key string)
}

// pgStore implements Store on the app_settings table.
type pgStore struct {
	pool *pgxpool.Pool

	mu   sync.RWMutex
	subs []subscription
}

// NewStore creates a database-backed settings store.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

// Get returns the value for key, or ErrNotFound.
func (s *pgStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM app_settings WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return value, nil
}

// Set persists the value for key and notifies subscribers whose prefix
// matches.
func (s *pgStore) Set(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO app_settings (key, value, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value)
	if err != nil {
		return fmt.Errorf("failed to write setting %s: %w", key, err)
	}

	s.notify(key)
	return nil
}

// Subscribe registers a change callback for keys under the given prefix.
func (s *pgStore) Subscribe(prefix string, fn func(key string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, subscription{prefix: prefix, fn: fn})
}

func (s *pgStore) notify(key string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sub := range s.subs {
		if strings.HasPrefix(key, sub.prefix) {
			go sub.fn(key)
		}
	}
	slog.Debug("Setting changed", "key", key)
}
