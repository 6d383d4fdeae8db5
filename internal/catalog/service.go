// Package catalog implements the layered read path over the fast cache, the
// durable store, and the upstream catalog API, degrading to local-only data
// when the upstream path is unavailable.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/squadfinder/game-catalog-server/internal/cache"
	"github.com/squadfinder/game-catalog-server/internal/config"
	"github.com/squadfinder/game-catalog-server/internal/store"
)

// Source tags where a search result set was resolved from.
type Source string

const (
	// SourceFastCache means the result came from a revalidated fast-cache hit.
	SourceFastCache Source = "fast-cache"

	// SourceDurableStore means the result came from a local name search.
	SourceDurableStore Source = "durable-store"

	// SourceUpstream means the result was fetched from the upstream API and
	// persisted before being returned.
	SourceUpstream Source = "upstream"

	// SourceDegradedLocal means the upstream path failed and the caller got
	// whatever the durable store had, possibly nothing.
	SourceDegradedLocal Source = "degraded-local"
)

// Result is a resolved search with its provenance.
type Result struct {
	Games  []store.Game `json:"games"`
	Source Source       `json:"source"`
	Cached bool         `json:"cached"`
}

// Store is the durable-store surface the read path needs.
type Store interface {
	SearchByName(ctx context.Context, term string, filters store.Filters, limit int) ([]store.Game, error)
	GetByIGDBIDs(ctx context.Context, ids []int64, filters store.Filters) ([]store.Game, error)
	GetByID(ctx context.Context, id int64, filters store.Filters) (*store.Game, error)
	Upsert(ctx context.Context, games []store.Game) ([]store.Game, error)
}

// FastCache is the ephemeral identifier-list cache in front of the store.
type FastCache interface {
	GetIDs(ctx context.Context, key string) ([]int64, error)
	SetIDs(ctx context.Context, key string, ids []int64) error
}

// Upstream fetches catalog records from the external API.
type Upstream interface {
	SearchGames(ctx context.Context, term string, limit int) ([]store.Game, error)
	FetchByIDs(ctx context.Context, ids []int64) ([]store.Game, error)
}

// Service resolves catalog reads through the layered fallback chain.
type Service interface {
	// Search resolves a free-text search, trying the fast cache, the durable
	// store, and the upstream API in order. Upstream failures are contained:
	// the caller gets a degraded local result, never a network error. Only a
	// durable-store outage is surfaced as an error.
	Search(ctx context.Context, term string) (Result, error)

	// GetByID returns a single visible record, fetching it from upstream on a
	// local miss. Returns (nil, nil) when the record does not exist or is not
	// visible under the current policy.
	GetByID(ctx context.Context, id int64) (*store.Game, error)
}

type defaultService struct {
	store    Store
	cache    FastCache
	upstream Upstream
	filters  store.Filters
	limit    int
}

// NewService creates the layered read path. The filters carry the visibility
// policy applied to every read, whatever layer it is served from.
func NewService(st Store, fastCache FastCache, up Upstream, filters store.Filters) Service {
	return &defaultService{
		store:    st,
		cache:    fastCache,
		upstream: up,
		filters:  filters,
		limit:    config.SearchLimit(),
	}
}

func (s *defaultService) Search(ctx context.Context, term string) (Result, error) {
	normalized := cache.NormalizeTerm(term)
	if normalized == "" {
		return Result{Games: []store.Game{}, Source: SourceDurableStore}, nil
	}
	key := cache.SearchKey(normalized)

	// Layer 1: fast cache. A hit holds identifiers only, so it is revalidated
	// against current visibility flags before being trusted. A record hidden
	// or banned after being cached must not resurrect from a stale entry.
	// Cache errors count as a miss.
	if ids, err := s.cache.GetIDs(ctx, key); err == nil && len(ids) > 0 {
		games, lookupErr := s.store.GetByIGDBIDs(ctx, ids, s.filters)
		if lookupErr != nil {
			return Result{}, fmt.Errorf("failed to revalidate cached search result: %w", lookupErr)
		}
		if len(games) > 0 {
			return Result{Games: games, Source: SourceFastCache, Cached: true}, nil
		}
	} else if err != nil && !errors.Is(err, cache.ErrCacheMiss) && !errors.Is(err, cache.ErrCacheDisabled) {
		slog.Debug("fast cache lookup failed, treating as miss", "key", key, "error", err)
	}

	// Layer 2: durable store.
	games, err := s.store.SearchByName(ctx, normalized, s.filters, s.limit)
	if err != nil {
		return Result{}, fmt.Errorf("failed to search catalog store: %w", err)
	}
	if len(games) > 0 {
		s.writeThrough(ctx, key, games)
		return Result{Games: games, Source: SourceDurableStore, Cached: true}, nil
	}

	// Layer 3: upstream. Failures here degrade to the local result from
	// layer 2 (empty by now) instead of surfacing to the caller.
	fetched, err := s.upstream.SearchGames(ctx, normalized, s.limit)
	if err != nil {
		slog.Warn("upstream search failed, serving degraded local result",
			"term", normalized,
			"error", err)
		return Result{Games: []store.Game{}, Source: SourceDegradedLocal}, nil
	}
	if len(fetched) == 0 {
		// An empty upstream result must not populate the fast cache: a
		// transient empty answer would otherwise suppress discovery of a
		// record added upstream later.
		return Result{Games: []store.Game{}, Source: SourceUpstream}, nil
	}

	persisted, err := s.store.Upsert(ctx, fetched)
	if err != nil {
		return Result{}, fmt.Errorf("failed to persist upstream search results: %w", err)
	}

	// Re-read so the response reflects the authoritative row shape and any
	// moderation flags set locally before this search.
	visible, err := s.store.GetByIGDBIDs(ctx, gameIDs(persisted), s.filters)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read back upserted records: %w", err)
	}
	if len(visible) > 0 {
		s.writeThrough(ctx, key, visible)
	}
	return Result{Games: visible, Source: SourceUpstream}, nil
}

func (s *defaultService) GetByID(ctx context.Context, id int64) (*store.Game, error) {
	game, err := s.store.GetByID(ctx, id, s.filters)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog record: %w", err)
	}
	if game != nil {
		return game, nil
	}

	fetched, err := s.upstream.FetchByIDs(ctx, []int64{id})
	if err != nil {
		slog.Warn("upstream fetch failed, record stays unknown locally",
			"igdb_id", id,
			"error", err)
		return nil, nil
	}
	if len(fetched) == 0 {
		return nil, nil
	}
	if _, err := s.store.Upsert(ctx, fetched); err != nil {
		return nil, fmt.Errorf("failed to persist upstream record: %w", err)
	}
	return s.store.GetByID(ctx, id, s.filters)
}

// writeThrough populates the fast cache best-effort. A cache write failure
// never fails the read that produced it.
func (s *defaultService) writeThrough(ctx context.Context, key string, games []store.Game) {
	if err := s.cache.SetIDs(ctx, key, gameIDs(games)); err != nil &&
		!errors.Is(err, cache.ErrCacheDisabled) {
		slog.Debug("fast cache write failed", "key", key, "error", err)
	}
}

func gameIDs(games []store.Game) []int64 {
	ids := make([]int64, 0, len(games))
	for _, g := range games {
		ids = append(ids, g.IGDBID)
	}
	return ids
}
