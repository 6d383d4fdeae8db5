package upstream

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured is returned when neither the settings store nor the
	// static configuration yields complete upstream credentials. Callers
	// treat this as a soft failure and fall back to local-only mode.
	ErrNotConfigured = errors.New("upstream credentials not configured")

	// ErrRateLimited is returned for HTTP 429 responses from the upstream
	// catalog API. It is the only error the retry controller retries.
	ErrRateLimited = errors.New("upstream rate limited")

	// ErrExhausted is returned after the retry budget is spent on
	// consecutive rate-limited responses. Callers fall back to degraded
	// local data rather than surfacing it.
	ErrExhausted = errors.New("upstream retry budget exhausted")
)

// TokenError reports a non-2xx response from the identity provider's token
// endpoint. Token fetches are never retried by the retry controller; its
// scope is catalog queries only.
type TokenError struct {
	StatusCode int
}

func (e *TokenError) Error() string {
	return fmt.Sprintf("token acquisition failed with status %d", e.StatusCode)
}

// Error reports a terminal non-2xx response from the upstream catalog API.
// Token acquisition failures also surface through this type so the read
// path sees a single terminal error class.
type Error struct {
	StatusCode int
	cause      error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("upstream query failed: %v", e.cause)
	}
	return fmt.Sprintf("upstream query failed with status %d", e.StatusCode)
}

func (e *Error) Unwrap() error {
	return e.cause
}
