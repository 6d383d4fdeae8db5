package upstream

import (
	"context"
	"errors"
	"fmt"

	"github.com/squadfinder/game-catalog-server/internal/config"
	"github.com/squadfinder/game-catalog-server/internal/settings"
)

// Credentials holds an OAuth2 client-credentials pair for the upstream API.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// CredentialResolver resolves upstream API credentials.
type CredentialResolver interface {
	// Resolve returns complete credentials or ErrNotConfigured.
	Resolve(ctx context.Context) (Credentials, error)
}

// defaultCredentialResolver tries the dynamic settings store first so
// credentials can be rotated without a restart, then falls back to static
// process configuration.
type defaultCredentialResolver struct {
	settings settings.Store
	cfg      *config.UpstreamConfig
}

// NewCredentialResolver creates the default resolver.
func NewCredentialResolver(store settings.Store, cfg *config.UpstreamConfig) CredentialResolver {
	return &defaultCredentialResolver{settings: store, cfg: cfg}
}

// Resolve returns complete credentials or ErrNotConfigured. A partial pair
// in the settings store (one key set, the other missing) falls through to
// the static configuration rather than failing.
func (r *defaultCredentialResolver) Resolve(ctx context.Context) (Credentials, error) {
	creds, err := r.fromSettings(ctx)
	if err == nil {
		return creds, nil
	}
	if !errors.Is(err, settings.ErrNotFound) {
		return Credentials{}, fmt.Errorf("failed to read credentials from settings store: %w", err)
	}

	clientID := r.cfg.GetClientID()
	clientSecret, err := r.cfg.GetClientSecret()
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to read static client secret: %w", err)
	}

	if clientID == "" || clientSecret == "" {
		return Credentials{}, ErrNotConfigured
	}

	return Credentials{ClientID: clientID, ClientSecret: clientSecret}, nil
}

func (r *defaultCredentialResolver) fromSettings(ctx context.Context) (Credentials, error) {
	clientID, err := r.settings.Get(ctx, settings.KeyUpstreamClientID)
	if err != nil {
		return Credentials{}, err
	}
	clientSecret, err := r.settings.Get(ctx, settings.KeyUpstreamClientSecret)
	if err != nil {
		return Credentials{}, err
	}
	if clientID == "" || clientSecret == "" {
		return Credentials{}, settings.ErrNotFound
	}
	return Credentials{ClientID: clientID, ClientSecret: clientSecret}, nil
}
