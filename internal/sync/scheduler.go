package sync

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Scheduler triggers full catalog syncs on a fixed interval until its
// context is cancelled.
type Scheduler struct {
	synchronizer *Synchronizer
	interval     time.Duration
}

// NewScheduler creates a periodic sync scheduler.
func NewScheduler(synchronizer *Synchronizer, interval time.Duration) *Scheduler {
	return &Scheduler{synchronizer: synchronizer, interval: interval}
}

// Run blocks, syncing once immediately and then on every interval tick.
// A tick that lands while a sync is still running is skipped; the next tick
// will try again. Returns when the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.trigger(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("sync scheduler stopping")
			return
		case <-ticker.C:
			s.trigger(ctx)
		}
	}
}

func (s *Scheduler) trigger(ctx context.Context) {
	if _, err := s.synchronizer.SyncAll(ctx); err != nil {
		if errors.Is(err, ErrSyncInProgress) {
			slog.Debug("scheduled sync skipped, previous run still in progress")
			return
		}
		if ctx.Err() != nil {
			return
		}
		slog.Warn("scheduled sync failed", "error", err)
	}
}
