package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeduplicateByID(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		input     []Game
		wantIDs   []int64
		wantNames []string
	}{
		{
			name:      "empty",
			input:     []Game{},
			wantIDs:   []int64{},
			wantNames: []string{},
		},
		{
			name:      "single",
			input:     []Game{{IGDBID: 1, Name: "Halo Infinite"}},
			wantIDs:   []int64{1},
			wantNames: []string{"Halo Infinite"},
		},
		{
			name: "no_duplicates",
			input: []Game{
				{IGDBID: 1, Name: "a"},
				{IGDBID: 2, Name: "b"},
			},
			wantIDs:   []int64{1, 2},
			wantNames: []string{"a", "b"},
		},
		{
			name: "last_occurrence_wins",
			input: []Game{
				{IGDBID: 1, Name: "stale"},
				{IGDBID: 2, Name: "b"},
				{IGDBID: 1, Name: "fresh"},
			},
			wantIDs:   []int64{1, 2},
			wantNames: []string{"fresh", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := DeduplicateByID(tt.input)
			ids := make([]int64, 0, len(got))
			names := make([]string, 0, len(got))
			for _, g := range got {
				ids = append(ids, g.IGDBID)
				names = append(names, g.Name)
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, tt.wantNames, names)
		})
	}
}

func TestVisibilityPredicate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "NOT hidden AND NOT banned", visibilityPredicate(Filters{}))
	assert.Equal(t,
		"NOT hidden AND NOT banned AND NOT (themes @> ARRAY[42])",
		visibilityPredicate(Filters{ExcludeAdult: true}))
}
