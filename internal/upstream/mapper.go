package upstream

import (
	"time"

	"github.com/squadfinder/game-catalog-server/internal/store"
)

// coverURLBase is the fixed base path combined with returned media
// identifiers to build canonical cover-art URLs.
const (
	coverURLBase   = "https://images.igdb.com/igdb/image/upload/t_cover_big/"
	coverURLSuffix = ".jpg"
)

// externalCategoryTwitch is the external-linkage category code for the
// live-streaming platform.
const externalCategoryTwitch = 14

// ToGame normalizes an upstream record into the local storage schema. All
// derived fields default to nil or an empty collection when the source data
// is absent.
func ToGame(rec Record) store.Game {
	game := store.Game{
		IGDBID:       rec.ID,
		Name:         rec.Name,
		Slug:         rec.Slug,
		Genres:       rec.Genres,
		Themes:       rec.Themes,
		Platforms:    rec.Platforms,
		GameModes:    rec.GameModes,
		CriticRating: rec.AggregatedRating,
		TotalRating:  rec.TotalRating,
	}

	if rec.Summary != "" {
		summary := rec.Summary
		game.Summary = &summary
	}

	if rec.Cover != nil && rec.Cover.ImageID != "" {
		coverURL := coverURLBase + rec.Cover.ImageID + coverURLSuffix
		game.CoverURL = &coverURL
	}

	if rec.TotalRatingCount != nil {
		popularity := float64(*rec.TotalRatingCount)
		game.Popularity = &popularity
	}

	if rec.FirstReleaseDate != nil {
		released := time.Unix(*rec.FirstReleaseDate, 0).UTC()
		game.ReleaseDate = &released
	}

	game.MaxPlayers = derivedMaxPlayers(rec.MultiplayerModes)
	game.Crossplay = derivedCrossplay(rec.MultiplayerModes)
	game.TwitchID = derivedTwitchID(rec.ExternalGames)

	return game
}

// ToGames maps a batch of upstream records.
func ToGames(records []Record) []store.Game {
	games := make([]store.Game, 0, len(records))
	for _, rec := range records {
		games = append(games, ToGame(rec))
	}
	return games
}

// derivedMaxPlayers is the maximum of all reported online/offline maxima
// across multiplayer modes, or nil when none is reported.
func derivedMaxPlayers(modes []MultiplayerMode) *int32 {
	var maxPlayers *int32
	consider := func(v *int32) {
		if v == nil || *v <= 0 {
			return
		}
		if maxPlayers == nil || *v > *maxPlayers {
			value := *v
			maxPlayers = &value
		}
	}
	for _, mode := range modes {
		consider(mode.OnlineMax)
		consider(mode.OnlineCoopMax)
		consider(mode.OfflineMax)
		consider(mode.OfflineCoopMax)
	}
	return maxPlayers
}

// derivedCrossplay is true only when online play is reported on two or more
// distinct platforms. With multiplayer data but fewer online platforms it is
// false; with no multiplayer data at all it stays nil.
func derivedCrossplay(modes []MultiplayerMode) *bool {
	if len(modes) == 0 {
		return nil
	}

	onlinePlatforms := make(map[int32]struct{})
	for _, mode := range modes {
		if !modeHasOnlinePlay(mode) || mode.Platform == nil {
			continue
		}
		onlinePlatforms[*mode.Platform] = struct{}{}
	}

	crossplay := len(onlinePlatforms) >= 2
	return &crossplay
}

func modeHasOnlinePlay(mode MultiplayerMode) bool {
	if mode.OnlineCoop {
		return true
	}
	if mode.OnlineMax != nil && *mode.OnlineMax > 0 {
		return true
	}
	if mode.OnlineCoopMax != nil && *mode.OnlineCoopMax > 0 {
		return true
	}
	return false
}

// derivedTwitchID resolves the live-streaming-platform identifier from the
// external-linkage entries.
func derivedTwitchID(externals []ExternalGame) *string {
	for _, ext := range externals {
		if ext.Category == externalCategoryTwitch && ext.UID != "" {
			uid := ext.UID
			return &uid
		}
	}
	return nil
}
