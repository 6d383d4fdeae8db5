// Package config provides configuration loading and management for the game
// catalog server.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment variables consumed by the server.
const EnvPrefix = "GAMECAT"

const (
	defaultSafetyBuffer   = 60 * time.Second
	defaultRequestTimeout = 15 * time.Second
	defaultSyncInterval   = "6h"
	defaultSyncBatchSize  = 10
	defaultBatchDelay     = 250 * time.Millisecond
	defaultDiscoveryLimit = 50
	defaultSearchTTL      = 300
	defaultSearchLimit    = 25
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		// Validate the path to prevent path traversal attacks
		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	Server   ServerConfig    `yaml:"server,omitempty"`
	Database *DatabaseConfig `yaml:"database"`
	Redis    RedisConfig     `yaml:"redis,omitempty"`
	Upstream UpstreamConfig  `yaml:"upstream,omitempty"`
	Sync     SyncConfig      `yaml:"sync,omitempty"`
	Policy   PolicyConfig    `yaml:"policy,omitempty"`
}

// ServerConfig defines HTTP server settings
type ServerConfig struct {
	// Address is the listen address for the HTTP server (e.g. ":8080")
	Address string `yaml:"address,omitempty"`
}

// DatabaseConfig defines database connection settings
type DatabaseConfig struct {
	// Host is the database server hostname or IP address
	Host string `yaml:"host"`

	// Port is the database server port
	Port int `yaml:"port"`

	// User is the database username
	User string `yaml:"user"`

	// PasswordFile is the path to a file containing the database password.
	// This is the recommended approach for production deployments.
	PasswordFile string `yaml:"passwordFile,omitempty"`

	// Database is the database name
	Database string `yaml:"database"`

	// SSLMode is the SSL mode for the connection (disable, require, verify-ca, verify-full)
	SSLMode string `yaml:"sslMode,omitempty"`

	// MaxConns is the maximum number of connections in the pool
	MaxConns int32 `yaml:"maxConns,omitempty"`

	// MinConns is the minimum number of idle connections kept in the pool
	MinConns int32 `yaml:"minConns,omitempty"`

	// ConnMaxLifetime is the maximum lifetime of a connection (e.g. "1h", "30m")
	ConnMaxLifetime string `yaml:"connMaxLifetime,omitempty"`
}

// RedisConfig defines fast-cache connection settings. The cache is optional;
// an empty address disables it and the read path degrades to the durable
// store.
type RedisConfig struct {
	// Addr is the redis host:port. Empty disables the fast cache.
	Addr string `yaml:"addr,omitempty"`

	// DB is the redis logical database number
	DB int `yaml:"db,omitempty"`

	// DialTimeout bounds the initial connection attempt (e.g. "2s")
	DialTimeout string `yaml:"dialTimeout,omitempty"`

	// SearchTTLSeconds is the time-to-live for cached search results
	SearchTTLSeconds int `yaml:"searchTTLSeconds,omitempty"`
}

// GetPassword returns the redis password from the GAMECAT_REDIS_PASSWORD
// environment variable, or empty when unauthenticated.
func (*RedisConfig) GetPassword() string {
	return os.Getenv(EnvPrefix + "_REDIS_PASSWORD")
}

// GetDialTimeout returns the configured dial timeout with its default.
func (r *RedisConfig) GetDialTimeout() time.Duration {
	if r.DialTimeout == "" {
		return 2 * time.Second
	}
	d, err := time.ParseDuration(r.DialTimeout)
	if err != nil {
		return 2 * time.Second
	}
	return d
}

// SearchTTL returns the configured search-result TTL with its default.
func (r *RedisConfig) SearchTTL() time.Duration {
	seconds := r.SearchTTLSeconds
	if seconds <= 0 {
		seconds = defaultSearchTTL
	}
	return time.Duration(seconds) * time.Second
}

// UpstreamConfig defines settings for the upstream catalog API and its
// identity provider.
type UpstreamConfig struct {
	// TokenURL is the identity provider's client-credentials token endpoint
	TokenURL string `yaml:"tokenUrl,omitempty"`

	// APIURL is the base URL of the upstream catalog query API
	APIURL string `yaml:"apiUrl,omitempty"`

	// ClientID is the static OAuth2 client id. The dynamic settings store
	// takes precedence when it holds credentials.
	ClientID string `yaml:"clientId,omitempty"`

	// ClientSecretFile is the path to a file containing the client secret
	ClientSecretFile string `yaml:"clientSecretFile,omitempty"`

	// SafetyBufferSeconds is subtracted from the provider's stated token
	// expiry so a token is never used right at its deadline
	SafetyBufferSeconds int `yaml:"safetyBufferSeconds,omitempty"`

	// RequestTimeout bounds a single upstream HTTP call (e.g. "15s")
	RequestTimeout string `yaml:"requestTimeout,omitempty"`
}

// GetClientID returns the static client id, falling back to the
// GAMECAT_UPSTREAM_CLIENT_ID environment variable.
func (u *UpstreamConfig) GetClientID() string {
	if u.ClientID != "" {
		return u.ClientID
	}
	return os.Getenv(EnvPrefix + "_UPSTREAM_CLIENT_ID")
}

// GetClientSecret returns the client secret using the following priority:
// 1. Read from ClientSecretFile if specified
// 2. Read from GAMECAT_UPSTREAM_CLIENT_SECRET environment variable
//
// The secret from file will have leading/trailing whitespace trimmed.
func (u *UpstreamConfig) GetClientSecret() (string, error) {
	if u.ClientSecretFile != "" {
		cleanPath := filepath.Clean(u.ClientSecretFile)

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return "", fmt.Errorf("failed to read client secret from file %s: %w", u.ClientSecretFile, err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	return os.Getenv(EnvPrefix + "_UPSTREAM_CLIENT_SECRET"), nil
}

// SafetyBuffer returns the token expiry safety buffer with its default.
func (u *UpstreamConfig) SafetyBuffer() time.Duration {
	if u.SafetyBufferSeconds <= 0 {
		return defaultSafetyBuffer
	}
	return time.Duration(u.SafetyBufferSeconds) * time.Second
}

// GetRequestTimeout returns the per-request timeout with its default.
func (u *UpstreamConfig) GetRequestTimeout() time.Duration {
	if u.RequestTimeout == "" {
		return defaultRequestTimeout
	}
	d, err := time.ParseDuration(u.RequestTimeout)
	if err != nil {
		return defaultRequestTimeout
	}
	return d
}

// SyncConfig defines full-catalog synchronization settings
type SyncConfig struct {
	// Interval between automatic full syncs (e.g. "6h")
	Interval string `yaml:"interval,omitempty"`

	// BatchSize is the number of records refreshed per upstream query
	BatchSize int `yaml:"batchSize,omitempty"`

	// BatchDelay is the pause between refresh batches (e.g. "250ms"),
	// keeping the synchronizer under the upstream rate limit
	BatchDelay string `yaml:"batchDelay,omitempty"`

	// DiscoveryLimit is the number of trending records requested by the
	// discovery phase
	DiscoveryLimit int `yaml:"discoveryLimit,omitempty"`
}

// GetInterval returns the parsed sync interval with its default.
func (s *SyncConfig) GetInterval() time.Duration {
	interval := s.Interval
	if interval == "" {
		interval = defaultSyncInterval
	}
	d, err := time.ParseDuration(interval)
	if err != nil {
		d, _ = time.ParseDuration(defaultSyncInterval)
	}
	return d
}

// GetBatchSize returns the refresh batch size with its default.
func (s *SyncConfig) GetBatchSize() int {
	if s.BatchSize <= 0 {
		return defaultSyncBatchSize
	}
	return s.BatchSize
}

// GetBatchDelay returns the inter-batch delay with its default.
func (s *SyncConfig) GetBatchDelay() time.Duration {
	if s.BatchDelay == "" {
		return defaultBatchDelay
	}
	d, err := time.ParseDuration(s.BatchDelay)
	if err != nil {
		return defaultBatchDelay
	}
	return d
}

// GetDiscoveryLimit returns the discovery page size with its default.
func (s *SyncConfig) GetDiscoveryLimit() int {
	if s.DiscoveryLimit <= 0 {
		return defaultDiscoveryLimit
	}
	return s.DiscoveryLimit
}

// PolicyConfig defines content-policy settings applied on every read path
type PolicyConfig struct {
	// FilterAdult excludes adult-themed records from all results
	FilterAdult bool `yaml:"filterAdult,omitempty"`
}

// SearchLimit is the maximum number of records returned by a search.
func SearchLimit() int {
	return defaultSearchLimit
}

// GetPassword returns the database password using the following priority:
// 1. Read from PasswordFile if specified
// 2. Read from GAMECAT_DATABASE_PASSWORD environment variable
//
// The password from file will have leading/trailing whitespace trimmed.
func (d *DatabaseConfig) GetPassword() (string, error) {
	// Priority 1: Read from file if specified
	if d.PasswordFile != "" {
		// Use filepath.Clean to prevent path traversal attacks
		cleanPath := filepath.Clean(d.PasswordFile)

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return "", fmt.Errorf("failed to read password from file %s: %w", d.PasswordFile, err)
		}

		// Trim whitespace (including newlines) from file content
		password := strings.TrimSpace(string(data))
		return password, nil
	}

	// Priority 2: Check environment variable
	if envPassword := os.Getenv(EnvPrefix + "_DATABASE_PASSWORD"); envPassword != "" {
		return envPassword, nil
	}

	return "", fmt.Errorf(
		"no database password configured: set passwordFile or %s_DATABASE_PASSWORD environment variable",
		EnvPrefix,
	)
}

// GetConnectionString builds a PostgreSQL connection string with proper
// password handling. The password is URL-escaped to handle special
// characters safely.
func (d *DatabaseConfig) GetConnectionString() (string, error) {
	password, err := d.GetPassword()
	if err != nil {
		return "", err
	}

	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}

	// URL-escape the password to handle special characters
	escapedPassword := url.QueryEscape(password)

	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User,
		escapedPassword,
		d.Host,
		d.Port,
		d.Database,
		sslMode,
	)

	return connString, nil
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	// As of now, this is required because there's no other options to load
	// configuration. Once we add more options, we can remove this check.
	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	// Read the entire file into memory
	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML content
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	// Validate the config
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if c.Database == nil {
		return fmt.Errorf("database configuration is required")
	}
	if err := validateDatabaseConfig(c.Database); err != nil {
		return err
	}

	if err := validateUpstreamConfig(&c.Upstream); err != nil {
		return err
	}

	return validateSyncConfig(&c.Sync)
}

// validateDatabaseConfig validates the database configuration
func validateDatabaseConfig(db *DatabaseConfig) error {
	if db.Host == "" {
		return fmt.Errorf("database: host is required")
	}
	if db.Port == 0 {
		return fmt.Errorf("database: port is required")
	}
	if db.User == "" {
		return fmt.Errorf("database: user is required")
	}
	if db.Database == "" {
		return fmt.Errorf("database: database name is required")
	}
	if db.ConnMaxLifetime != "" {
		if _, err := time.ParseDuration(db.ConnMaxLifetime); err != nil {
			return fmt.Errorf("database: connMaxLifetime must be a valid duration: %w", err)
		}
	}
	return nil
}

// validateUpstreamConfig validates upstream API settings. Credentials are
// deliberately not required here: the system runs in local-only mode when
// they are absent.
func validateUpstreamConfig(upstream *UpstreamConfig) error {
	if upstream.TokenURL != "" {
		if _, err := url.Parse(upstream.TokenURL); err != nil {
			return fmt.Errorf("upstream: tokenUrl is not a valid URL: %w", err)
		}
	}
	if upstream.APIURL != "" {
		if _, err := url.Parse(upstream.APIURL); err != nil {
			return fmt.Errorf("upstream: apiUrl is not a valid URL: %w", err)
		}
	}
	if upstream.RequestTimeout != "" {
		if _, err := time.ParseDuration(upstream.RequestTimeout); err != nil {
			return fmt.Errorf("upstream: requestTimeout must be a valid duration: %w", err)
		}
	}
	return nil
}

// validateSyncConfig validates the sync policy configuration
func validateSyncConfig(sync *SyncConfig) error {
	if sync.Interval != "" {
		if _, err := time.ParseDuration(sync.Interval); err != nil {
			return fmt.Errorf("sync: interval must be a valid duration (e.g. '30m', '6h'): %w", err)
		}
	}
	if sync.BatchDelay != "" {
		if _, err := time.ParseDuration(sync.BatchDelay); err != nil {
			return fmt.Errorf("sync: batchDelay must be a valid duration: %w", err)
		}
	}
	return nil
}
