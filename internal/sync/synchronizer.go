// Package sync keeps the local catalog consistent with the upstream API: a
// full-catalog synchronizer refreshing known records in batches and
// discovering trending ones, plus a scheduler that runs it periodically.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/squadfinder/game-catalog-server/internal/cache"
	"github.com/squadfinder/game-catalog-server/internal/config"
	"github.com/squadfinder/game-catalog-server/internal/store"
)

// ErrSyncInProgress is returned when a sync is requested while one is already
// running. Syncs are idempotent and scheduled, so a concurrent request is
// rejected rather than queued.
var ErrSyncInProgress = errors.New("catalog sync already in progress")

// Result summarizes a completed sync run.
type Result struct {
	RefreshedCount  int `json:"refreshedCount"`
	DiscoveredCount int `json:"discoveredCount"`
}

// Store is the durable-store surface the synchronizer needs.
type Store interface {
	ListIGDBIDs(ctx context.Context, limit, offset int) ([]int64, error)
	Upsert(ctx context.Context, games []store.Game) ([]store.Game, error)
}

// Upstream fetches refresh batches and trending discovery pages.
type Upstream interface {
	FetchByIDs(ctx context.Context, ids []int64) ([]store.Game, error)
	DiscoverTrending(ctx context.Context, limit int) ([]store.Game, error)
}

// Invalidator drops cached search results once a sync lands new data.
type Invalidator interface {
	DeleteByPrefix(ctx context.Context, prefix string) error
}

// StatusTracker observes the sync lifecycle; the status tracker implements it.
type StatusTracker interface {
	SyncStarted()
	SyncCompleted(refreshed, discovered int)
	SyncFailed(message string)
}

// Synchronizer runs full catalog syncs, at most one at a time process-wide.
type Synchronizer struct {
	store    Store
	upstream Upstream
	cache    Invalidator
	tracker  StatusTracker

	batchSize      int
	batchDelay     time.Duration
	discoveryLimit int

	running atomic.Bool
}

// NewSynchronizer creates a catalog synchronizer.
func NewSynchronizer(st Store, up Upstream, invalidator Invalidator, tracker StatusTracker, cfg config.SyncConfig) *Synchronizer {
	return &Synchronizer{
		store:          st,
		upstream:       up,
		cache:          invalidator,
		tracker:        tracker,
		batchSize:      cfg.GetBatchSize(),
		batchDelay:     cfg.GetBatchDelay(),
		discoveryLimit: cfg.GetDiscoveryLimit(),
	}
}

// Running reports whether a sync is currently in progress.
func (s *Synchronizer) Running() bool {
	return s.running.Load()
}

// SyncAll refreshes every known record in batches, then discovers trending
// ones. Cached search results are invalidated when the run ends, successful
// or not. Only one run may be in flight at a time; a concurrent call gets
// ErrSyncInProgress. Per-batch
// upstream failures are logged and skipped so one bad batch cannot abort the
// run. Cancelling the context stops the run between batches; already-upserted
// batches stay, upserts are idempotent.
func (s *Synchronizer) SyncAll(ctx context.Context) (Result, error) {
	if !s.running.CompareAndSwap(false, true) {
		return Result{}, ErrSyncInProgress
	}
	defer s.running.Store(false)

	runID := uuid.NewString()
	logger := slog.With("sync_run", runID)
	logger.Info("catalog sync started")
	s.tracker.SyncStarted()

	// Any upserted batch may have changed rows behind standing cache entries,
	// so cached search results are dropped even when the run aborts partway.
	// Best-effort, the fast cache is revalidated on read anyway.
	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)
		if cacheErr := s.cache.DeleteByPrefix(cleanupCtx, cache.SearchKeyPrefix); cacheErr != nil &&
			!errors.Is(cacheErr, cache.ErrCacheDisabled) {
			logger.Warn("failed to invalidate search cache after sync", "error", cacheErr)
		}
	}()

	start := time.Now()
	result, err := s.run(ctx, logger)
	if err != nil {
		logger.Error("catalog sync failed", "error", err)
		s.tracker.SyncFailed(err.Error())
		return Result{}, err
	}

	s.tracker.SyncCompleted(result.RefreshedCount, result.DiscoveredCount)
	logger.Info("catalog sync completed",
		"refreshed", result.RefreshedCount,
		"discovered", result.DiscoveredCount,
		"duration", time.Since(start).Round(time.Millisecond))
	return result, nil
}

func (s *Synchronizer) run(ctx context.Context, logger *slog.Logger) (Result, error) {
	known, refreshed, err := s.refresh(ctx, logger)
	if err != nil {
		return Result{}, err
	}

	discovered, err := s.discover(ctx, logger, known)
	if err != nil {
		return Result{}, err
	}

	return Result{RefreshedCount: refreshed, DiscoveredCount: discovered}, nil
}

// refresh pages through every stored identifier and re-fetches each page from
// upstream as one identifier-set query. It returns the set of identifiers
// seen so discovery can count genuinely new records.
func (s *Synchronizer) refresh(ctx context.Context, logger *slog.Logger) (map[int64]struct{}, int, error) {
	known := make(map[int64]struct{})
	refreshed := 0

	for offset := 0; ; offset += s.batchSize {
		ids, err := s.store.ListIGDBIDs(ctx, s.batchSize, offset)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to list catalog identifiers: %w", err)
		}
		if len(ids) == 0 {
			break
		}
		for _, id := range ids {
			known[id] = struct{}{}
		}

		records, err := s.upstream.FetchByIDs(ctx, ids)
		if err != nil {
			if ctx.Err() != nil {
				return nil, 0, ctx.Err()
			}
			logger.Warn("refresh batch failed, skipping",
				"offset", offset,
				"batch_size", len(ids),
				"error", err)
		} else if len(records) > 0 {
			persisted, upsertErr := s.store.Upsert(ctx, records)
			if upsertErr != nil {
				return nil, 0, fmt.Errorf("failed to upsert refresh batch: %w", upsertErr)
			}
			refreshed += len(persisted)
		}

		if len(ids) < s.batchSize {
			break
		}
		if err := s.pause(ctx); err != nil {
			return nil, 0, err
		}
	}

	return known, refreshed, nil
}

// discover pulls a page of trending records and upserts them, counting those
// the catalog had never seen before.
func (s *Synchronizer) discover(ctx context.Context, logger *slog.Logger, known map[int64]struct{}) (int, error) {
	records, err := s.upstream.DiscoverTrending(ctx, s.discoveryLimit)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		// Discovery enriches the catalog but the refresh already landed;
		// a failed discovery page does not fail the run.
		logger.Warn("discovery phase failed, skipping", "error", err)
		return 0, nil
	}
	if len(records) == 0 {
		return 0, nil
	}

	if _, err := s.store.Upsert(ctx, records); err != nil {
		return 0, fmt.Errorf("failed to upsert discovered records: %w", err)
	}

	discovered := 0
	for _, record := range records {
		if _, seen := known[record.IGDBID]; !seen {
			discovered++
		}
	}
	return discovered, nil
}

// pause waits the inter-batch delay that keeps refresh traffic under the
// upstream rate limit, or returns early when the context is cancelled.
func (s *Synchronizer) pause(ctx context.Context) error {
	if s.batchDelay <= 0 {
		return nil
	}
	timer := time.NewTimer(s.batchDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
