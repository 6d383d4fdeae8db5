package upstream

import (
	"context"

	"github.com/squadfinder/game-catalog-server/internal/store"
)

// Service is the upstream facade consumed by the read path and the
// synchronizer: query construction, retry handling, and normalization in
// one place.
type Service interface {
	// SearchGames runs a free-text search, retried on rate limiting.
	SearchGames(ctx context.Context, term string, limit int) ([]store.Game, error)

	// FetchByIDs fetches one refresh batch by identifier set. Not retried:
	// the synchronizer paces itself and skips failed batches instead.
	FetchByIDs(ctx context.Context, ids []int64) ([]store.Game, error)

	// DiscoverTrending fetches high-signal trending records.
	DiscoverTrending(ctx context.Context, limit int) ([]store.Game, error)
}

// querier is the slice of Client the service needs; tests substitute it.
type querier interface {
	Query(ctx context.Context, body string) ([]Record, error)
}

type defaultService struct {
	client querier
	retry  *RetryController
}

// NewService creates the default upstream service.
func NewService(client *Client, retry *RetryController) Service {
	return &defaultService{client: client, retry: retry}
}

func (s *defaultService) SearchGames(ctx context.Context, term string, limit int) ([]store.Game, error) {
	body := SearchQuery(term, limit)
	records, err := s.retry.Do(ctx, func() ([]Record, error) {
		return s.client.Query(ctx, body)
	})
	if err != nil {
		return nil, err
	}
	return ToGames(records), nil
}

func (s *defaultService) FetchByIDs(ctx context.Context, ids []int64) ([]store.Game, error) {
	if len(ids) == 0 {
		return []store.Game{}, nil
	}
	records, err := s.client.Query(ctx, IDBatchQuery(ids))
	if err != nil {
		return nil, err
	}
	return ToGames(records), nil
}

func (s *defaultService) DiscoverTrending(ctx context.Context, limit int) ([]store.Game, error) {
	records, err := s.client.Query(ctx, DiscoveryQuery(limit))
	if err != nil {
		return nil, err
	}
	return ToGames(records), nil
}
