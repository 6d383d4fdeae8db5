package sync_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/squadfinder/game-catalog-server/internal/config"
	"github.com/squadfinder/game-catalog-server/internal/store"
	catalogsync "github.com/squadfinder/game-catalog-server/internal/sync"
)

type fakeStore struct {
	mu  sync.Mutex
	ids []int64

	upsertBatches [][]store.Game
	upsertCalls   int
	upsertErrAt   int // 1-based call index that fails, 0 for never
}

func (s *fakeStore) ListIGDBIDs(_ context.Context, limit, offset int) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if offset >= len(s.ids) {
		return nil, nil
	}
	end := offset + limit
	if end > len(s.ids) {
		end = len(s.ids)
	}
	return s.ids[offset:end], nil
}

func (s *fakeStore) Upsert(_ context.Context, games []store.Game) ([]store.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertCalls++
	if s.upsertErrAt > 0 && s.upsertCalls == s.upsertErrAt {
		return nil, errors.New("connection reset by peer")
	}
	s.upsertBatches = append(s.upsertBatches, games)
	return games, nil
}

func (s *fakeStore) batches() [][]store.Game {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertBatches
}

type fakeUpstream struct {
	mu         sync.Mutex
	fetchCalls [][]int64
	fetchErrAt int // 1-based call index that fails, 0 for never

	trending    []store.Game
	trendingErr error

	discoverStarted chan struct{}
	startedOnce     sync.Once
	release         chan struct{}
}

func (u *fakeUpstream) FetchByIDs(_ context.Context, ids []int64) ([]store.Game, error) {
	u.mu.Lock()
	u.fetchCalls = append(u.fetchCalls, ids)
	call := len(u.fetchCalls)
	u.mu.Unlock()

	if u.fetchErrAt > 0 && call == u.fetchErrAt {
		return nil, errors.New("upstream failure (status 502)")
	}
	games := make([]store.Game, 0, len(ids))
	for _, id := range ids {
		games = append(games, store.Game{IGDBID: id, Name: "refreshed"})
	}
	return games, nil
}

func (u *fakeUpstream) DiscoverTrending(ctx context.Context, _ int) ([]store.Game, error) {
	if u.discoverStarted != nil {
		u.startedOnce.Do(func() { close(u.discoverStarted) })
	}
	if u.release != nil {
		select {
		case <-u.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return u.trending, u.trendingErr
}

func (u *fakeUpstream) calls() [][]int64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.fetchCalls
}

type fakeInvalidator struct {
	mu       sync.Mutex
	prefixes []string
}

func (i *fakeInvalidator) DeleteByPrefix(_ context.Context, prefix string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.prefixes = append(i.prefixes, prefix)
	return nil
}

type fakeTracker struct {
	mu        sync.Mutex
	started   int
	completed int
	failed    []string

	refreshed  int
	discovered int
}

func (t *fakeTracker) SyncStarted() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.started++
}

func (t *fakeTracker) SyncCompleted(refreshed, discovered int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.completed++
	t.refreshed = refreshed
	t.discovered = discovered
}

func (t *fakeTracker) SyncFailed(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failed = append(t.failed, message)
}

func testSyncConfig(batchSize int) config.SyncConfig {
	return config.SyncConfig{
		BatchSize:      batchSize,
		BatchDelay:     "1ms",
		DiscoveryLimit: 50,
	}
}

func TestSyncAllRefreshesInBatches(t *testing.T) {
	t.Parallel()

	st := &fakeStore{ids: []int64{1, 2, 3, 4, 5, 6, 7}}
	up := &fakeUpstream{trending: []store.Game{
		{IGDBID: 7, Name: "already known"},
		{IGDBID: 100, Name: "newly trending"},
	}}
	inv := &fakeInvalidator{}
	tracker := &fakeTracker{}

	s := catalogsync.NewSynchronizer(st, up, inv, tracker, testSyncConfig(3))

	result, err := s.SyncAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, result.RefreshedCount)
	assert.Equal(t, 1, result.DiscoveredCount)

	// 7 identifiers with batch size 3 means 3 identifier-set queries.
	calls := up.calls()
	require.Len(t, calls, 3)
	assert.Equal(t, []int64{1, 2, 3}, calls[0])
	assert.Equal(t, []int64{4, 5, 6}, calls[1])
	assert.Equal(t, []int64{7}, calls[2])

	assert.Equal(t, []string{"search:"}, inv.prefixes)
	assert.Equal(t, 1, tracker.started)
	assert.Equal(t, 1, tracker.completed)
	assert.Equal(t, 7, tracker.refreshed)
	assert.Equal(t, 1, tracker.discovered)
}

func TestSyncAllSkipsFailedBatch(t *testing.T) {
	t.Parallel()

	st := &fakeStore{ids: []int64{1, 2, 3, 4}}
	up := &fakeUpstream{fetchErrAt: 1}
	s := catalogsync.NewSynchronizer(st, up, &fakeInvalidator{}, &fakeTracker{}, testSyncConfig(2))

	result, err := s.SyncAll(context.Background())
	require.NoError(t, err)

	// The first batch failed and was skipped; the second still landed.
	assert.Equal(t, 2, result.RefreshedCount)
	require.Len(t, up.calls(), 2)
}

func TestSyncAllRejectsConcurrentRun(t *testing.T) {
	t.Parallel()

	st := &fakeStore{}
	up := &fakeUpstream{
		discoverStarted: make(chan struct{}),
		release:         make(chan struct{}),
	}
	s := catalogsync.NewSynchronizer(st, up, &fakeInvalidator{}, &fakeTracker{}, testSyncConfig(10))

	firstDone := make(chan error, 1)
	go func() {
		_, err := s.SyncAll(context.Background())
		firstDone <- err
	}()

	select {
	case <-up.discoverStarted:
	case <-time.After(2 * time.Second):
		t.Fatal("first sync never reached the discovery phase")
	}
	assert.True(t, s.Running())

	_, err := s.SyncAll(context.Background())
	require.ErrorIs(t, err, catalogsync.ErrSyncInProgress)

	close(up.release)
	require.NoError(t, <-firstDone)
	assert.False(t, s.Running())

	// The guard clears once the first run finishes.
	_, err = s.SyncAll(context.Background())
	require.NoError(t, err)
}

func TestSyncAllFailedRunStillInvalidatesCache(t *testing.T) {
	t.Parallel()

	st := &fakeStore{ids: []int64{1, 2, 3, 4}, upsertErrAt: 2}
	inv := &fakeInvalidator{}
	tracker := &fakeTracker{}
	s := catalogsync.NewSynchronizer(st, &fakeUpstream{}, inv, tracker, testSyncConfig(2))

	_, err := s.SyncAll(context.Background())
	require.Error(t, err)
	assert.Len(t, tracker.failed, 1)

	// The first batch landed before the run aborted, so standing cache
	// entries may already be stale and must still be dropped.
	require.Len(t, st.batches(), 1)
	assert.Equal(t, []string{"search:"}, inv.prefixes)
}

func TestSyncAllDiscoveryFailureDoesNotFailRun(t *testing.T) {
	t.Parallel()

	st := &fakeStore{ids: []int64{1}}
	up := &fakeUpstream{trendingErr: errors.New("rate limited (status 429)")}
	tracker := &fakeTracker{}
	s := catalogsync.NewSynchronizer(st, up, &fakeInvalidator{}, tracker, testSyncConfig(10))

	result, err := s.SyncAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.RefreshedCount)
	assert.Equal(t, 0, result.DiscoveredCount)
	assert.Equal(t, 1, tracker.completed)
}

func TestSyncAllStopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	st := &fakeStore{ids: []int64{1, 2, 3, 4, 5, 6}}
	up := &fakeUpstream{}
	tracker := &fakeTracker{}
	s := catalogsync.NewSynchronizer(st, up, &fakeInvalidator{}, tracker, config.SyncConfig{
		BatchSize:  2,
		BatchDelay: "1h",
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := s.SyncAll(ctx)
		done <- err
	}()

	// Let the first batch land, then cancel during the inter-batch pause.
	require.Eventually(t, func() bool {
		return len(up.calls()) >= 1
	}, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("sync did not stop after cancellation")
	}

	// Partial progress stays; the aborted run reports a failure.
	assert.NotEmpty(t, st.batches())
	assert.Len(t, tracker.failed, 1)
}

func TestSchedulerSkipsTickWhileSyncRunning(t *testing.T) {
	t.Parallel()

	st := &fakeStore{}
	up := &fakeUpstream{
		discoverStarted: make(chan struct{}),
		release:         make(chan struct{}),
	}
	s := catalogsync.NewSynchronizer(st, up, &fakeInvalidator{}, &fakeTracker{}, testSyncConfig(10))
	scheduler := catalogsync.NewScheduler(s, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		scheduler.Run(ctx)
		close(stopped)
	}()

	select {
	case <-up.discoverStarted:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler never started a sync")
	}

	// Several ticks elapse while the first sync is blocked in discovery;
	// none of them may start a second run.
	time.Sleep(50 * time.Millisecond)
	assert.True(t, s.Running())

	close(up.release)
	cancel()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancellation")
	}
}
