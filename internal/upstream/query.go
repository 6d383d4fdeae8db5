package upstream

import (
	"fmt"
	"strings"
)

// recordFields is the expanded field set requested on every query: tags,
// ratings, media, release date, multiplayer metadata, and external platform
// linkage.
const recordFields = "fields name,slug,summary,cover.image_id,genres,themes,platforms,game_modes," +
	"aggregated_rating,total_rating,total_rating_count,first_release_date," +
	"multiplayer_modes.platform,multiplayer_modes.onlinecoop,multiplayer_modes.onlinemax," +
	"multiplayer_modes.onlinecoopmax,multiplayer_modes.offlinemax,multiplayer_modes.offlinecoopmax," +
	"external_games.category,external_games.uid;"

// Multiplayer-relevant game mode identifiers used by the discovery query:
// multiplayer, co-operative, split screen, MMO.
const discoveryGameModes = "(2,3,4,5)"

// discoveryMinRatingCount is the minimum popularity signal for a record to
// qualify as trending.
const discoveryMinRatingCount = 20

// SearchQuery builds a free-text search query. The term is sanitized before
// being embedded in the structured query body.
func SearchQuery(term string, limit int) string {
	return fmt.Sprintf("search \"%s\"; %s limit %d;", sanitizeTerm(term), recordFields, limit)
}

// IDBatchQuery builds a fetch-by-identifier-set query for one refresh batch.
func IDBatchQuery(ids []int64) string {
	idList := make([]string, len(ids))
	for i, id := range ids {
		idList[i] = fmt.Sprintf("%d", id)
	}
	return fmt.Sprintf("%s where id = (%s); limit %d;", recordFields, strings.Join(idList, ","), len(ids))
}

// DiscoveryQuery builds the trending-records query: multiplayer-relevant
// modes with a minimum popularity signal, sorted descending by composite
// rating.
func DiscoveryQuery(limit int) string {
	return fmt.Sprintf("%s where game_modes = %s & total_rating_count >= %d; sort total_rating desc; limit %d;",
		recordFields, discoveryGameModes, discoveryMinRatingCount, limit)
}

// sanitizeTerm escapes a free-text fragment for safe embedding inside a
// quoted string of the upstream query language. Backslashes and double
// quotes are escaped; semicolons and control characters are stripped since
// they act as statement separators.
func sanitizeTerm(term string) string {
	var b strings.Builder
	b.Grow(len(term))
	for _, r := range term {
		switch {
		case r == '\\':
			b.WriteString(`\\`)
		case r == '"':
			b.WriteString(`\"`)
		case r == ';':
			// dropped
		case r < 0x20 || r == 0x7f:
			// dropped
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
