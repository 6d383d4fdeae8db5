package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/squadfinder/game-catalog-server/internal/config"
)

// tokenFlightKey is the single-flight key for token fetches. There is
// exactly one upstream identity, so one key suffices.
const tokenFlightKey = "token"

// accessToken holds a bearer token and its absolute expiry, already reduced
// by the safety buffer.
type accessToken struct {
	token  string
	expiry time.Time
}

// TokenManager obtains and caches the OAuth2 client-credentials token for
// the upstream API. Concurrent callers during an in-flight fetch share the
// same outstanding request.
type TokenManager struct {
	resolver   CredentialResolver
	tokenURL   string
	buffer     time.Duration
	httpClient *http.Client
	now        func() time.Time

	group singleflight.Group

	mu      sync.RWMutex
	current *accessToken
}

// TokenManagerOption configures a TokenManager.
type TokenManagerOption func(*TokenManager)

// WithTokenHTTPClient overrides the HTTP client used for token fetches.
func WithTokenHTTPClient(client *http.Client) TokenManagerOption {
	return func(m *TokenManager) {
		m.httpClient = client
	}
}

// WithTokenClock overrides the clock, for tests.
func WithTokenClock(now func() time.Time) TokenManagerOption {
	return func(m *TokenManager) {
		m.now = now
	}
}

// NewTokenManager creates a TokenManager for the configured identity
// provider.
func NewTokenManager(resolver CredentialResolver, cfg *config.UpstreamConfig, opts ...TokenManagerOption) *TokenManager {
	m := &TokenManager{
		resolver:   resolver,
		tokenURL:   cfg.TokenURL,
		buffer:     cfg.SafetyBuffer(),
		httpClient: &http.Client{Timeout: cfg.GetRequestTimeout()},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Token returns a valid bearer token, fetching a new one when the cached
// token is missing or expired. K concurrent callers with no valid token
// produce exactly one identity-provider request; the in-flight marker is
// cleared when the fetch settles, success or failure, so a later call
// retries cleanly.
func (m *TokenManager) Token(ctx context.Context) (string, error) {
	if token, ok := m.cached(); ok {
		return token, nil
	}

	result, err, _ := m.group.Do(tokenFlightKey, func() (any, error) {
		// Re-check under the flight: a caller that lost the race to an
		// already-completed fetch should not fetch again.
		if token, ok := m.cached(); ok {
			return token, nil
		}
		return m.fetch(ctx)
	})
	if err != nil {
		return "", err
	}

	return result.(string), nil
}

// Valid reports whether a non-expired token is currently cached.
func (m *TokenManager) Valid() bool {
	_, ok := m.cached()
	return ok
}

// Invalidate drops the cached token. Wired to the settings store's change
// notification for the upstream credential keys, so a credential rotation
// takes effect on the next call.
func (m *TokenManager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = nil
	slog.Info("Upstream token invalidated")
}

func (m *TokenManager) cached() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil || !m.now().Before(m.current.expiry) {
		return "", false
	}
	return m.current.token, true
}

func (m *TokenManager) fetch(ctx context.Context) (string, error) {
	creds, err := m.resolver.Resolve(ctx)
	if err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("client_id", creds.ClientID)
	form.Set("client_secret", creds.ClientSecret)
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", &TokenError{StatusCode: resp.StatusCode}
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("identity provider returned an empty token")
	}

	expiry := m.now().Add(time.Duration(payload.ExpiresIn)*time.Second - m.buffer)

	m.mu.Lock()
	m.current = &accessToken{token: payload.AccessToken, expiry: expiry}
	m.mu.Unlock()

	slog.Debug("Upstream token refreshed", "expiresIn", payload.ExpiresIn)
	return payload.AccessToken, nil
}
