package store

import "time"

// Game is the canonical local catalog record. The upstream identifier
// (IGDBID) is the sole conflict key for upserts; a game is never duplicated
// by identifier.
type Game struct {
	IGDBID       int64      `json:"igdb_id"`
	Name         string     `json:"name"`
	Slug         string     `json:"slug"`
	CoverURL     *string    `json:"cover_url,omitempty"`
	Genres       []int32    `json:"genres"`
	Themes       []int32    `json:"themes"`
	Platforms    []int32    `json:"platforms"`
	GameModes    []int32    `json:"game_modes"`
	Summary      *string    `json:"summary,omitempty"`
	CriticRating *float64   `json:"critic_rating,omitempty"`
	TotalRating  *float64   `json:"total_rating,omitempty"`
	Popularity   *float64   `json:"popularity,omitempty"`
	ReleaseDate  *time.Time `json:"release_date,omitempty"`
	MaxPlayers   *int32     `json:"max_players,omitempty"`
	TwitchID     *string    `json:"twitch_id,omitempty"`
	Crossplay    *bool      `json:"crossplay,omitempty"`
	Hidden       bool       `json:"-"`
	Banned       bool       `json:"-"`
	CachedAt     time.Time  `json:"cached_at"`
}

// Filters carries the cross-cutting visibility predicate applied on every
// read path. Hidden and banned records are always excluded; adult-themed
// records are excluded when the content policy demands it.
type Filters struct {
	ExcludeAdult bool
}
