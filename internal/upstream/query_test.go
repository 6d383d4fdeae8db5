package upstream_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/squadfinder/game-catalog-server/internal/upstream"
)

func TestSearchQuery(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		term string
		want string
	}{
		{
			name: "plain_term",
			term: "halo",
			want: `search "halo";`,
		},
		{
			name: "escapes_quotes",
			term: `ha"lo`,
			want: `search "ha\"lo";`,
		},
		{
			name: "escapes_backslashes",
			term: `ha\lo`,
			want: `search "ha\\lo";`,
		},
		{
			name: "strips_statement_separator",
			term: `halo"; fields *; search "x`,
			want: `search "halo\" fields * search \"x";`,
		},
		{
			name: "strips_control_characters",
			term: "halo\n\t",
			want: `search "halo";`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			query := upstream.SearchQuery(tt.term, 25)
			assert.True(t, strings.HasPrefix(query, tt.want), "query %q must start with %q", query, tt.want)
			assert.Contains(t, query, "fields name,slug,summary")
			assert.Contains(t, query, "limit 25;")
		})
	}
}

func TestIDBatchQuery(t *testing.T) {
	t.Parallel()

	query := upstream.IDBatchQuery([]int64{7, 42, 1000})
	assert.Contains(t, query, "where id = (7,42,1000);")
	assert.Contains(t, query, "limit 3;")
	assert.Contains(t, query, "multiplayer_modes.platform")
	assert.Contains(t, query, "external_games.category")
}

func TestDiscoveryQuery(t *testing.T) {
	t.Parallel()

	query := upstream.DiscoveryQuery(50)
	assert.Contains(t, query, "where game_modes = (2,3,4,5)")
	assert.Contains(t, query, "total_rating_count >= 20")
	assert.Contains(t, query, "sort total_rating desc;")
	assert.Contains(t, query, "limit 50;")
}
