package app

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/squadfinder/game-catalog-server/internal/cache"
	"github.com/squadfinder/game-catalog-server/internal/config"
	"github.com/squadfinder/game-catalog-server/internal/db"
	"github.com/squadfinder/game-catalog-server/internal/settings"
	"github.com/squadfinder/game-catalog-server/internal/status"
	"github.com/squadfinder/game-catalog-server/internal/store"
	catalogsync "github.com/squadfinder/game-catalog-server/internal/sync"
	"github.com/squadfinder/game-catalog-server/internal/upstream"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one full catalog sync and exit",
	Long: `Run a single full catalog sync: refresh every known record from the
upstream API in batches, discover trending records, and invalidate cached
search results. Useful for cron-style scheduling and initial seeding.`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().String("config", "", "Path to configuration file (YAML format, required)")
	if err := syncCmd.MarkFlagRequired("config"); err != nil {
		panic(err)
	}
}

func runSync(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("failed to get config flag: %w", err)
	}
	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	pool, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	catalogStore := store.New(pool)
	searchCache := cache.New(ctx, cfg.Redis)
	settingsStore := settings.NewStore(pool)

	tracker := status.NewTracker()
	resolver := upstream.NewCredentialResolver(settingsStore, &cfg.Upstream)
	tokens := upstream.NewTokenManager(resolver, &cfg.Upstream)
	client := upstream.NewClient(&cfg.Upstream, tokens, resolver,
		upstream.WithCallObserver(tracker))
	upstreamService := upstream.NewService(client, upstream.NewRetryController())

	synchronizer := catalogsync.NewSynchronizer(catalogStore, upstreamService, searchCache, tracker, cfg.Sync)

	result, err := synchronizer.SyncAll(ctx)
	if err != nil {
		return fmt.Errorf("catalog sync failed: %w", err)
	}

	slog.Info("Catalog sync finished",
		"refreshed", result.RefreshedCount,
		"discovered", result.DiscoveredCount)
	return nil
}
