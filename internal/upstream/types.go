package upstream

// Record is a single game as returned by the upstream catalog API. Every
// field beyond the identifier is optional; the mapper must tolerate any of
// them being absent.
type Record struct {
	ID               int64             `json:"id"`
	Name             string            `json:"name"`
	Slug             string            `json:"slug"`
	Summary          string            `json:"summary"`
	Cover            *Cover            `json:"cover,omitempty"`
	Genres           []int32           `json:"genres,omitempty"`
	Themes           []int32           `json:"themes,omitempty"`
	Platforms        []int32           `json:"platforms,omitempty"`
	GameModes        []int32           `json:"game_modes,omitempty"`
	AggregatedRating *float64          `json:"aggregated_rating,omitempty"`
	TotalRating      *float64          `json:"total_rating,omitempty"`
	TotalRatingCount *int64            `json:"total_rating_count,omitempty"`
	FirstReleaseDate *int64            `json:"first_release_date,omitempty"`
	MultiplayerModes []MultiplayerMode `json:"multiplayer_modes,omitempty"`
	ExternalGames    []ExternalGame    `json:"external_games,omitempty"`
}

// Cover is the cover-art reference returned by the upstream API.
type Cover struct {
	ID      int64  `json:"id"`
	ImageID string `json:"image_id"`
}

// MultiplayerMode describes multiplayer support on one platform.
type MultiplayerMode struct {
	Platform      *int32 `json:"platform,omitempty"`
	OnlineCoop    bool   `json:"onlinecoop,omitempty"`
	OnlineMax     *int32 `json:"onlinemax,omitempty"`
	OnlineCoopMax *int32 `json:"onlinecoopmax,omitempty"`
	OfflineMax    *int32 `json:"offlinemax,omitempty"`
	OfflineCoopMax *int32 `json:"offlinecoopmax,omitempty"`
}

// ExternalGame links a record to an external service by category code.
type ExternalGame struct {
	Category int32  `json:"category"`
	UID      string `json:"uid"`
}
