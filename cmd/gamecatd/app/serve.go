package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/squadfinder/game-catalog-server/internal/api"
	"github.com/squadfinder/game-catalog-server/internal/cache"
	"github.com/squadfinder/game-catalog-server/internal/catalog"
	"github.com/squadfinder/game-catalog-server/internal/config"
	"github.com/squadfinder/game-catalog-server/internal/db"
	"github.com/squadfinder/game-catalog-server/internal/settings"
	"github.com/squadfinder/game-catalog-server/internal/status"
	"github.com/squadfinder/game-catalog-server/internal/store"
	catalogsync "github.com/squadfinder/game-catalog-server/internal/sync"
	"github.com/squadfinder/game-catalog-server/internal/upstream"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the catalog API server",
	Long: `Start the catalog API server.

The server requires a configuration file (--config) that specifies the
database connection, the optional fast cache, upstream API credentials,
and the sync schedule. Upstream credentials may also be stored in the
settings table or provided via environment variables.`,
	RunE: runServe,
}

const (
	defaultGracefulTimeout = 30 * time.Second
	serverRequestTimeout   = 20 * time.Second // Cold searches reach out to the upstream API
	serverReadTimeout      = 10 * time.Second
	serverWriteTimeout     = 25 * time.Second // Must be > serverRequestTimeout to let middleware handle timeout
	serverIdleTimeout      = 60 * time.Second
)

func init() {
	serveCmd.Flags().String("address", ":8080", "Address to listen on")
	serveCmd.Flags().String("config", "", "Path to configuration file (YAML format, required)")

	if err := viper.BindPFlag("address", serveCmd.Flags().Lookup("address")); err != nil {
		slog.Error("Failed to bind address flag", "error", err)
	}
	if err := viper.BindPFlag("config", serveCmd.Flags().Lookup("config")); err != nil {
		slog.Error("Failed to bind config flag", "error", err)
	}

	if err := serveCmd.MarkFlagRequired("config"); err != nil {
		panic(err)
	}
}

// tokenInvalidator is the slice of the token manager the credential watcher
// needs.
type tokenInvalidator interface {
	Invalidate()
}

// syncTrigger is the slice of the synchronizer the credential watcher needs.
type syncTrigger interface {
	SyncAll(ctx context.Context) (catalogsync.Result, error)
}

// watchUpstreamCredentials reacts to credential changes in the settings
// store. The cached token is dropped immediately so the next upstream call
// authenticates under the new client id/secret pair, and a full sync starts
// so the catalog recovers as soon as working credentials land. A run already
// in flight is left alone.
func watchUpstreamCredentials(settingsStore settings.Store, tokens tokenInvalidator, synchronizer syncTrigger) {
	settingsStore.Subscribe("upstream.", func(key string) {
		slog.Info("upstream setting changed, invalidating cached token", "key", key)
		tokens.Invalidate()
		go func() {
			if _, err := synchronizer.SyncAll(context.Background()); err != nil {
				if errors.Is(err, catalogsync.ErrSyncInProgress) {
					slog.Debug("credential-change sync skipped, a run is already in progress")
					return
				}
				slog.Warn("credential-change sync failed", "error", err)
			}
		}()
	})
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	configPath := viper.GetString("config")
	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	address := cfg.Server.Address
	if address == "" {
		address = viper.GetString("address")
	}
	slog.Info("Starting catalog API server", "address", address, "config", configPath)

	pool, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	catalogStore := store.New(pool)
	searchCache := cache.New(ctx, cfg.Redis)
	settingsStore := settings.NewStore(pool)

	// Upstream stack: credentials from settings or config, single-flight
	// token management, a rate-limit-aware client reporting into the status
	// tracker, and retry on top.
	tracker := status.NewTracker()
	resolver := upstream.NewCredentialResolver(settingsStore, &cfg.Upstream)
	tokens := upstream.NewTokenManager(resolver, &cfg.Upstream)
	tracker.SetTokenValidator(tokens)

	client := upstream.NewClient(&cfg.Upstream, tokens, resolver,
		upstream.WithCallObserver(tracker))
	upstreamService := upstream.NewService(client, upstream.NewRetryController())

	filters := store.Filters{ExcludeAdult: cfg.Policy.FilterAdult}
	catalogService := catalog.NewService(catalogStore, searchCache, upstreamService, filters)

	synchronizer := catalogsync.NewSynchronizer(catalogStore, upstreamService, searchCache, tracker, cfg.Sync)
	scheduler := catalogsync.NewScheduler(synchronizer, cfg.Sync.GetInterval())
	go scheduler.Run(ctx)

	watchUpstreamCredentials(settingsStore, tokens, synchronizer)

	router := api.NewServer(
		api.Deps{
			Catalog:      catalogService,
			Synchronizer: synchronizer,
			Tracker:      tracker,
			Counter:      catalogStore,
			Pinger:       catalogStore,
		},
		api.WithMiddlewares(
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(serverRequestTimeout),
			api.LoggingMiddleware,
		),
	)

	server := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("Server listening", "address", address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Shutting down server", "timeout", defaultGracefulTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("Server stopped")
	return nil
}
