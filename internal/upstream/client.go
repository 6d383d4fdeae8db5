package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/squadfinder/game-catalog-server/internal/config"
	"github.com/squadfinder/game-catalog-server/internal/status"
)

// gamesEndpoint is the query endpoint under the upstream API base URL.
const gamesEndpoint = "/games"

// TokenSource supplies a valid bearer token for upstream calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// CallObserver is notified of the outcome of every upstream call; the status
// tracker implements it.
type CallObserver interface {
	RecordUpstreamCall(outcome status.UpstreamOutcome)
}

// Client issues structured queries to the upstream catalog API.
type Client struct {
	apiURL     string
	tokens     TokenSource
	resolver   CredentialResolver
	httpClient *http.Client
	observer   CallObserver
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client used for queries.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithCallObserver wires an observer for upstream call outcomes.
func WithCallObserver(observer CallObserver) ClientOption {
	return func(c *Client) {
		c.observer = observer
	}
}

// NewClient creates an upstream catalog API client.
func NewClient(cfg *config.UpstreamConfig, tokens TokenSource, resolver CredentialResolver, opts ...ClientOption) *Client {
	c := &Client{
		apiURL:     strings.TrimRight(cfg.APIURL, "/"),
		tokens:     tokens,
		resolver:   resolver,
		httpClient: &http.Client{Timeout: cfg.GetRequestTimeout()},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Query posts a structured query body and returns the decoded records.
// HTTP 429 is classified as ErrRateLimited (recoverable); any other non-2xx
// as a terminal *Error for this attempt. Token acquisition failures surface
// as *Error as well, except ErrNotConfigured which passes through so callers
// can drop to local-only mode.
func (c *Client) Query(ctx context.Context, body string) ([]Record, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		c.observe(status.UpstreamOutcomeError)
		if errors.Is(err, ErrNotConfigured) {
			return nil, err
		}
		return nil, &Error{cause: fmt.Errorf("failed to acquire token: %w", err)}
	}

	creds, err := c.resolver.Resolve(ctx)
	if err != nil {
		c.observe(status.UpstreamOutcomeError)
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+gamesEndpoint, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build upstream request: %w", err)
	}
	req.Header.Set("Client-ID", creds.ClientID)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(status.UpstreamOutcomeError)
		return nil, &Error{cause: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		c.observe(status.UpstreamOutcomeRateLimited)
		return nil, fmt.Errorf("%w (status %d)", ErrRateLimited, resp.StatusCode)
	case resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		c.observe(status.UpstreamOutcomeError)
		return nil, &Error{StatusCode: resp.StatusCode}
	}

	var records []Record
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		c.observe(status.UpstreamOutcomeError)
		return nil, &Error{cause: fmt.Errorf("failed to decode upstream response: %w", err)}
	}

	c.observe(status.UpstreamOutcomeSuccess)
	slog.Debug("Upstream query completed", "records", len(records))
	return records, nil
}

func (c *Client) observe(outcome status.UpstreamOutcome) {
	if c.observer != nil {
		c.observer.RecordUpstreamCall(outcome)
	}
}
