// Package store provides the Postgres-backed durable store for the game
// catalog.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// adultThemeID is the upstream theme identifier for erotic content,
// excluded under the content policy flag.
const adultThemeID = 42

const gameColumns = `igdb_id, name, slug, cover_url, genres, themes, platforms, game_modes,
	summary, critic_rating, total_rating, popularity, release_date, max_players,
	twitch_id, crossplay, hidden, banned, cached_at`

const upsertQuery = `INSERT INTO games (
	igdb_id, name, slug, cover_url, genres, themes, platforms, game_modes,
	summary, critic_rating, total_rating, popularity, release_date, max_players,
	twitch_id, crossplay, cached_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, now())
ON CONFLICT (igdb_id) DO UPDATE SET
	name = EXCLUDED.name,
	slug = EXCLUDED.slug,
	cover_url = EXCLUDED.cover_url,
	genres = EXCLUDED.genres,
	themes = EXCLUDED.themes,
	platforms = EXCLUDED.platforms,
	game_modes = EXCLUDED.game_modes,
	summary = EXCLUDED.summary,
	critic_rating = EXCLUDED.critic_rating,
	total_rating = EXCLUDED.total_rating,
	popularity = EXCLUDED.popularity,
	release_date = EXCLUDED.release_date,
	max_players = EXCLUDED.max_players,
	twitch_id = EXCLUDED.twitch_id,
	crossplay = EXCLUDED.crossplay,
	cached_at = now()
RETURNING ` + gameColumns

// CatalogStore is the durable store for catalog records, backed by a pgx
// connection pool.
type CatalogStore struct {
	pool *pgxpool.Pool
}

// New creates a CatalogStore using the given pool. The caller is responsible
// for closing the pool when it is done.
func New(pool *pgxpool.Pool) *CatalogStore {
	return &CatalogStore{pool: pool}
}

// Ping checks database connectivity.
func (s *CatalogStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// visibilityPredicate returns the SQL fragment enforcing the visibility
// filter. Hidden (curation) and banned (policy) are distinct flags but are
// always filtered together on every read path.
func visibilityPredicate(filters Filters) string {
	predicate := "NOT hidden AND NOT banned"
	if filters.ExcludeAdult {
		predicate += fmt.Sprintf(" AND NOT (themes @> ARRAY[%d])", adultThemeID)
	}
	return predicate
}

// SearchByName returns visible games whose name contains the given term,
// case-insensitively, ordered by total rating.
func (s *CatalogStore) SearchByName(ctx context.Context, term string, filters Filters, limit int) ([]Game, error) {
	query := fmt.Sprintf(`SELECT %s FROM games
		WHERE name ILIKE '%%' || $1 || '%%' AND %s
		ORDER BY total_rating DESC NULLS LAST, name ASC
		LIMIT $2`, gameColumns, visibilityPredicate(filters))

	rows, err := s.pool.Query(ctx, query, term, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search games by name: %w", err)
	}
	return scanGames(rows)
}

// GetByIGDBIDs returns the visible games matching the given upstream
// identifiers. Identifiers with no stored row, or whose row is filtered out,
// are silently absent from the result.
func (s *CatalogStore) GetByIGDBIDs(ctx context.Context, ids []int64, filters Filters) ([]Game, error) {
	if len(ids) == 0 {
		return []Game{}, nil
	}

	query := fmt.Sprintf(`SELECT %s FROM games
		WHERE igdb_id = ANY($1) AND %s
		ORDER BY total_rating DESC NULLS LAST, name ASC`, gameColumns, visibilityPredicate(filters))

	rows, err := s.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch games by identifier set: %w", err)
	}
	return scanGames(rows)
}

// GetByID returns a single visible game, or nil when it does not exist or is
// filtered out.
func (s *CatalogStore) GetByID(ctx context.Context, id int64, filters Filters) (*Game, error) {
	query := fmt.Sprintf(`SELECT %s FROM games WHERE igdb_id = $1 AND %s`,
		gameColumns, visibilityPredicate(filters))

	row := s.pool.QueryRow(ctx, query, id)
	game, err := scanGame(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch game %d: %w", id, err)
	}
	return game, nil
}

// ListIGDBIDs pages through all stored upstream identifiers in a stable
// order, regardless of visibility. The synchronizer refreshes hidden and
// banned records too; only reads filter them.
func (s *CatalogStore) ListIGDBIDs(ctx context.Context, limit, offset int) ([]int64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT igdb_id FROM games ORDER BY igdb_id ASC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list game identifiers: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan game identifier: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read game identifiers: %w", err)
	}
	return ids, nil
}

// Count returns the total number of stored games, including hidden and
// banned ones.
func (s *CatalogStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM games`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count games: %w", err)
	}
	return count, nil
}

// Upsert persists the given games in a single batched round trip, resolving
// conflicts on the upstream identifier. All mutable fields are updated and
// the cache timestamp refreshed; the hidden and banned moderation flags are
// never written — they are owned by the moderation collaborator. Duplicate
// identifiers within one call are collapsed (last occurrence wins) so an
// identifier never yields two rows. Returns the fully materialized rows.
func (s *CatalogStore) Upsert(ctx context.Context, games []Game) ([]Game, error) {
	deduped := DeduplicateByID(games)
	if len(deduped) == 0 {
		return []Game{}, nil
	}

	batch := &pgx.Batch{}
	for _, g := range deduped {
		batch.Queue(upsertQuery,
			g.IGDBID, g.Name, g.Slug, g.CoverURL,
			emptyIfNil(g.Genres), emptyIfNil(g.Themes), emptyIfNil(g.Platforms), emptyIfNil(g.GameModes),
			g.Summary, g.CriticRating, g.TotalRating, g.Popularity,
			g.ReleaseDate, g.MaxPlayers, g.TwitchID, g.Crossplay,
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	persisted := make([]Game, 0, len(deduped))
	for range deduped {
		row := results.QueryRow()
		game, err := scanGame(row)
		if err != nil {
			return nil, fmt.Errorf("failed to upsert game batch: %w", err)
		}
		persisted = append(persisted, *game)
	}

	return persisted, nil
}

// DeduplicateByID collapses games sharing an upstream identifier, keeping
// the last occurrence while preserving first-seen order.
func DeduplicateByID(games []Game) []Game {
	if len(games) < 2 {
		return games
	}

	position := make(map[int64]int, len(games))
	deduped := make([]Game, 0, len(games))
	for _, g := range games {
		if idx, seen := position[g.IGDBID]; seen {
			deduped[idx] = g
			continue
		}
		position[g.IGDBID] = len(deduped)
		deduped = append(deduped, g)
	}
	return deduped
}

func emptyIfNil(values []int32) []int32 {
	if values == nil {
		return []int32{}
	}
	return values
}

func scanGames(rows pgx.Rows) ([]Game, error) {
	defer rows.Close()

	games := []Game{}
	for rows.Next() {
		game, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan game row: %w", err)
		}
		games = append(games, *game)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read game rows: %w", err)
	}
	return games, nil
}

func scanGame(row pgx.Row) (*Game, error) {
	var g Game
	err := row.Scan(
		&g.IGDBID, &g.Name, &g.Slug, &g.CoverURL,
		&g.Genres, &g.Themes, &g.Platforms, &g.GameModes,
		&g.Summary, &g.CriticRating, &g.TotalRating, &g.Popularity,
		&g.ReleaseDate, &g.MaxPlayers, &g.TwitchID, &g.Crossplay,
		&g.Hidden, &g.Banned, &g.CachedAt,
	)
	if err != nil {
		return nil, err
	}
	return &g, nil
}
