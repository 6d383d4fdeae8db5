package upstream_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/squadfinder/game-catalog-server/internal/upstream"
)

func int32Ptr(v int32) *int32    { return &v }
func int64Ptr(v int64) *int64    { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestToGameFullRecord(t *testing.T) {
	t.Parallel()

	released := time.Date(2021, 12, 8, 0, 0, 0, 0, time.UTC)
	rec := upstream.Record{
		ID:               1122,
		Name:             "Halo Infinite",
		Slug:             "halo-infinite",
		Summary:          "Master Chief returns.",
		Cover:            &upstream.Cover{ID: 9, ImageID: "co2dto"},
		Genres:           []int32{5},
		Themes:           []int32{1, 18},
		Platforms:        []int32{6, 49},
		GameModes:        []int32{1, 2},
		AggregatedRating: floatPtr(87.1),
		TotalRating:      floatPtr(85.4),
		TotalRatingCount: int64Ptr(412),
		FirstReleaseDate: int64Ptr(released.Unix()),
		MultiplayerModes: []upstream.MultiplayerMode{
			{Platform: int32Ptr(6), OnlineMax: int32Ptr(24), OfflineMax: int32Ptr(0)},
			{Platform: int32Ptr(49), OnlineMax: int32Ptr(24), OnlineCoopMax: int32Ptr(4)},
		},
		ExternalGames: []upstream.ExternalGame{
			{Category: 1, UID: "steam-123"},
			{Category: 14, UID: "twitch-halo"},
		},
	}

	game := upstream.ToGame(rec)

	assert.Equal(t, int64(1122), game.IGDBID)
	assert.Equal(t, "Halo Infinite", game.Name)
	assert.Equal(t, "halo-infinite", game.Slug)
	require.NotNil(t, game.Summary)
	assert.Equal(t, "Master Chief returns.", *game.Summary)
	require.NotNil(t, game.CoverURL)
	assert.Equal(t, "https://images.igdb.com/igdb/image/upload/t_cover_big/co2dto.jpg", *game.CoverURL)
	assert.Equal(t, []int32{1, 18}, game.Themes)
	require.NotNil(t, game.CriticRating)
	assert.InDelta(t, 87.1, *game.CriticRating, 0.001)
	require.NotNil(t, game.Popularity)
	assert.InDelta(t, 412, *game.Popularity, 0.001)
	require.NotNil(t, game.ReleaseDate)
	assert.True(t, released.Equal(*game.ReleaseDate))
	require.NotNil(t, game.MaxPlayers)
	assert.Equal(t, int32(24), *game.MaxPlayers)
	require.NotNil(t, game.Crossplay)
	assert.True(t, *game.Crossplay, "online play on two platforms implies crossplay")
	require.NotNil(t, game.TwitchID)
	assert.Equal(t, "twitch-halo", *game.TwitchID)
}

func TestToGameSparseRecord(t *testing.T) {
	t.Parallel()

	game := upstream.ToGame(upstream.Record{ID: 7, Name: "Obscure Gem", Slug: "obscure-gem"})

	assert.Equal(t, int64(7), game.IGDBID)
	assert.Nil(t, game.Summary)
	assert.Nil(t, game.CoverURL)
	assert.Nil(t, game.CriticRating)
	assert.Nil(t, game.TotalRating)
	assert.Nil(t, game.Popularity)
	assert.Nil(t, game.ReleaseDate)
	assert.Nil(t, game.MaxPlayers)
	assert.Nil(t, game.Crossplay, "no multiplayer data leaves crossplay unknown")
	assert.Nil(t, game.TwitchID)
}

func TestDerivedCrossplay(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		modes []upstream.MultiplayerMode
		want  *bool
	}{
		{
			name:  "no_modes",
			modes: nil,
			want:  nil,
		},
		{
			name: "single_online_platform",
			modes: []upstream.MultiplayerMode{
				{Platform: int32Ptr(6), OnlineMax: int32Ptr(8)},
			},
			want: boolPtr(false),
		},
		{
			name: "two_online_platforms",
			modes: []upstream.MultiplayerMode{
				{Platform: int32Ptr(6), OnlineMax: int32Ptr(8)},
				{Platform: int32Ptr(48), OnlineCoop: true},
			},
			want: boolPtr(true),
		},
		{
			name: "offline_only_modes",
			modes: []upstream.MultiplayerMode{
				{Platform: int32Ptr(6), OfflineMax: int32Ptr(4)},
				{Platform: int32Ptr(48), OfflineMax: int32Ptr(4)},
			},
			want: boolPtr(false),
		},
		{
			name: "online_without_platform",
			modes: []upstream.MultiplayerMode{
				{OnlineMax: int32Ptr(8)},
				{OnlineMax: int32Ptr(8)},
			},
			want: boolPtr(false),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			game := upstream.ToGame(upstream.Record{ID: 1, MultiplayerModes: tt.modes})
			if tt.want == nil {
				assert.Nil(t, game.Crossplay)
				return
			}
			require.NotNil(t, game.Crossplay)
			assert.Equal(t, *tt.want, *game.Crossplay)
		})
	}
}

func TestDerivedMaxPlayers(t *testing.T) {
	t.Parallel()

	game := upstream.ToGame(upstream.Record{
		ID: 1,
		MultiplayerModes: []upstream.MultiplayerMode{
			{OnlineMax: int32Ptr(10), OfflineMax: int32Ptr(4)},
			{OnlineCoopMax: int32Ptr(32)},
			{OfflineCoopMax: int32Ptr(2)},
		},
	})

	require.NotNil(t, game.MaxPlayers)
	assert.Equal(t, int32(32), *game.MaxPlayers)
}

func boolPtr(v bool) *bool { return &v }
