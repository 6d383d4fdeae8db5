package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/squadfinder/game-catalog-server/database"
	"github.com/squadfinder/game-catalog-server/internal/store"
)

func TestUpsertAgainstDatabase(t *testing.T) {
	pool, cleanupFunc := database.SetupTestDB(t)
	t.Cleanup(cleanupFunc)

	ctx := context.Background()
	st := store.New(pool)

	seeded, err := st.Upsert(ctx, []store.Game{
		{IGDBID: 1122, Name: "Halo Infinite", Slug: "halo-infinite"},
	})
	require.NoError(t, err)
	require.Len(t, seeded, 1)

	// Moderation happens out of band, directly against the row.
	_, err = pool.Exec(ctx, "UPDATE games SET hidden = TRUE WHERE igdb_id = $1", int64(1122))
	require.NoError(t, err)

	// A refresh delivers the same identifier twice; the later entry wins and
	// the conflict update must leave the moderation flags alone.
	rating := 87.5
	persisted, err := st.Upsert(ctx, []store.Game{
		{IGDBID: 1122, Name: "Halo Infinite", Slug: "halo-infinite"},
		{IGDBID: 1122, Name: "Halo Infinite", Slug: "halo-infinite", TotalRating: &rating},
	})
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	require.NotNil(t, persisted[0].TotalRating)
	assert.Equal(t, rating, *persisted[0].TotalRating)
	assert.True(t, persisted[0].Hidden)
	assert.False(t, persisted[0].Banned)

	var rows int64
	require.NoError(t, pool.QueryRow(ctx,
		"SELECT count(*) FROM games WHERE igdb_id = $1", int64(1122)).Scan(&rows))
	assert.Equal(t, int64(1), rows)

	var hidden, banned bool
	require.NoError(t, pool.QueryRow(ctx,
		"SELECT hidden, banned FROM games WHERE igdb_id = $1", int64(1122)).Scan(&hidden, &banned))
	assert.True(t, hidden)
	assert.False(t, banned)

	// The hidden row stays out of every read path.
	got, err := st.GetByID(ctx, 1122, store.Filters{})
	require.NoError(t, err)
	assert.Nil(t, got)

	found, err := st.SearchByName(ctx, "halo", store.Filters{}, 10)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestSearchByNameAgainstDatabase(t *testing.T) {
	pool, cleanupFunc := database.SetupTestDB(t)
	t.Cleanup(cleanupFunc)

	ctx := context.Background()
	st := store.New(pool)

	high := 90.0
	low := 70.0
	_, err := st.Upsert(ctx, []store.Game{
		{IGDBID: 1, Name: "Rocket League", Slug: "rocket-league", TotalRating: &low},
		{IGDBID: 2, Name: "Rocket Racing", Slug: "rocket-racing", TotalRating: &high},
		{IGDBID: 3, Name: "Rocket Redlight", Slug: "rocket-redlight", Themes: []int32{42}},
		{IGDBID: 4, Name: "Unrelated", Slug: "unrelated"},
	})
	require.NoError(t, err)

	// Case-insensitive match, ordered by rating.
	found, err := st.SearchByName(ctx, "ROCKET", store.Filters{}, 10)
	require.NoError(t, err)
	require.Len(t, found, 3)
	assert.Equal(t, int64(2), found[0].IGDBID)
	assert.Equal(t, int64(1), found[1].IGDBID)

	// The adult-content policy drops the flagged theme.
	found, err = st.SearchByName(ctx, "rocket", store.Filters{ExcludeAdult: true}, 10)
	require.NoError(t, err)
	require.Len(t, found, 2)
	for _, g := range found {
		assert.NotEqual(t, int64(3), g.IGDBID)
	}

	count, err := st.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)
}
