package upstream_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/squadfinder/game-catalog-server/internal/config"
	"github.com/squadfinder/game-catalog-server/internal/settings"
	"github.com/squadfinder/game-catalog-server/internal/upstream"
)

func newTokenServer(t *testing.T, calls *atomic.Int64, statusCode int, expiresIn int) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "test-id", r.PostForm.Get("client_id"))
		assert.Equal(t, "test-secret", r.PostForm.Get("client_secret"))

		if statusCode != http.StatusOK {
			w.WriteHeader(statusCode)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-abc","expires_in":` + strconv.Itoa(expiresIn) + `}`))
	}))
	t.Cleanup(server.Close)
	return server
}

func configuredResolver(t *testing.T) upstream.CredentialResolver {
	t.Helper()
	store := settings.NewInMemoryStore()
	require.NoError(t, store.Set(context.Background(), settings.KeyUpstreamClientID, "test-id"))
	require.NoError(t, store.Set(context.Background(), settings.KeyUpstreamClientSecret, "test-secret"))
	return upstream.NewCredentialResolver(store, &config.UpstreamConfig{})
}

func TestTokenManagerCachesToken(t *testing.T) {
	t.Parallel()
	var calls atomic.Int64
	server := newTokenServer(t, &calls, http.StatusOK, 3600)

	manager := upstream.NewTokenManager(configuredResolver(t), &config.UpstreamConfig{
		TokenURL:            server.URL,
		SafetyBufferSeconds: 60,
	})

	ctx := context.Background()
	token, err := manager.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-abc", token)
	assert.True(t, manager.Valid())

	// Second call must be served from cache.
	token, err = manager.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-abc", token)
	assert.Equal(t, int64(1), calls.Load())
}

func TestTokenManagerSingleFlight(t *testing.T) {
	t.Parallel()
	var calls atomic.Int64

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		<-release
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-sf","expires_in":3600}`))
	}))
	t.Cleanup(server.Close)

	manager := upstream.NewTokenManager(configuredResolver(t), &config.UpstreamConfig{
		TokenURL: server.URL,
	})

	const concurrent = 16
	var wg sync.WaitGroup
	tokens := make([]string, concurrent)
	errs := make([]error, concurrent)

	for i := 0; i < concurrent; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = manager.Token(context.Background())
		}(i)
	}

	// Let all goroutines pile onto the in-flight fetch before releasing it.
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := 0; i < concurrent; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "tok-sf", tokens[i])
	}
	assert.Equal(t, int64(1), calls.Load(), "concurrent callers must share one provider request")
}

func TestTokenManagerExpiryBuffer(t *testing.T) {
	t.Parallel()
	var calls atomic.Int64
	server := newTokenServer(t, &calls, http.StatusOK, 100)

	now := time.Now()
	clock := now
	var mu sync.Mutex
	nowFunc := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return clock
	}

	manager := upstream.NewTokenManager(configuredResolver(t), &config.UpstreamConfig{
		TokenURL:            server.URL,
		SafetyBufferSeconds: 30,
	}, upstream.WithTokenClock(nowFunc))

	ctx := context.Background()
	_, err := manager.Token(ctx)
	require.NoError(t, err)
	assert.True(t, manager.Valid())

	// 100s lifetime minus 30s buffer: at +71s the token must be expired.
	mu.Lock()
	clock = now.Add(71 * time.Second)
	mu.Unlock()
	assert.False(t, manager.Valid())

	_, err = manager.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls.Load(), "expired token must trigger a refetch")
}

func TestTokenManagerFailureThenRetry(t *testing.T) {
	t.Parallel()
	var calls atomic.Int64
	var failing atomic.Bool
	failing.Store(true)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		if failing.Load() {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-later","expires_in":3600}`))
	}))
	t.Cleanup(server.Close)

	manager := upstream.NewTokenManager(configuredResolver(t), &config.UpstreamConfig{
		TokenURL: server.URL,
	})

	ctx := context.Background()
	_, err := manager.Token(ctx)
	require.Error(t, err)

	var tokenErr *upstream.TokenError
	require.ErrorAs(t, err, &tokenErr)
	assert.Equal(t, http.StatusUnauthorized, tokenErr.StatusCode)
	assert.False(t, manager.Valid())

	// The in-flight marker must have been cleared by the failure: a
	// subsequent call issues a fresh provider request.
	failing.Store(false)
	token, err := manager.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-later", token)
	assert.Equal(t, int64(2), calls.Load())
}

func TestTokenManagerInvalidate(t *testing.T) {
	t.Parallel()
	var calls atomic.Int64
	server := newTokenServer(t, &calls, http.StatusOK, 3600)

	manager := upstream.NewTokenManager(configuredResolver(t), &config.UpstreamConfig{
		TokenURL: server.URL,
	})

	ctx := context.Background()
	_, err := manager.Token(ctx)
	require.NoError(t, err)
	assert.True(t, manager.Valid())

	manager.Invalidate()
	assert.False(t, manager.Valid())

	_, err = manager.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls.Load())
}

func TestTokenManagerNotConfigured(t *testing.T) {
	t.Parallel()

	resolver := upstream.NewCredentialResolver(settings.NewInMemoryStore(), &config.UpstreamConfig{})
	manager := upstream.NewTokenManager(resolver, &config.UpstreamConfig{TokenURL: "http://127.0.0.1:0"})

	_, err := manager.Token(context.Background())
	require.ErrorIs(t, err, upstream.ErrNotConfigured)
}
