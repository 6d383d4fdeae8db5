package status

import (
	"sync"
	"time"
)

// TokenValidator reports whether a usable upstream token is currently
// cached. Implemented by the token manager.
type TokenValidator interface {
	Valid() bool
}

// Tracker records sync progress and upstream call outcomes. All methods are
// safe for concurrent use.
type Tracker struct {
	mu sync.RWMutex

	phase           SyncPhase
	running         bool
	lastSyncTime    *time.Time
	lastSyncMessage string
	refreshed       int
	discovered      int

	lastUpstreamCall    *time.Time
	lastUpstreamOutcome UpstreamOutcome

	tokenValidator TokenValidator
}

// NewTracker creates a Tracker with no recorded history.
func NewTracker() *Tracker {
	return &Tracker{
		phase:               SyncPhaseIdle,
		lastUpstreamOutcome: UpstreamOutcomeNone,
	}
}

// SetTokenValidator wires the token manager in after construction; the token
// manager itself is built later in startup.
func (t *Tracker) SetTokenValidator(v TokenValidator) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tokenValidator = v
}

// SyncStarted marks a sync as in progress.
func (t *Tracker) SyncStarted() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.phase = SyncPhaseSyncing
	t.running = true
}

// SyncCompleted records a finished sync and its counters.
func (t *Tracker) SyncCompleted(refreshed, discovered int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now().UTC()
	t.phase = SyncPhaseComplete
	t.running = false
	t.lastSyncTime = &now
	t.lastSyncMessage = ""
	t.refreshed = refreshed
	t.discovered = discovered
}

// SyncFailed records a failed sync with its error message.
func (t *Tracker) SyncFailed(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.phase = SyncPhaseFailed
	t.running = false
	t.lastSyncMessage = message
}

// RecordUpstreamCall notes the outcome of an upstream query or token fetch.
func (t *Tracker) RecordUpstreamCall(outcome UpstreamOutcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now().UTC()
	t.lastUpstreamCall = &now
	t.lastUpstreamOutcome = outcome
}

// Snapshot returns a point-in-time copy of the tracked state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	tokenValid := false
	if t.tokenValidator != nil {
		tokenValid = t.tokenValidator.Valid()
	}

	return Snapshot{
		SyncPhase:           t.phase,
		SyncRunning:         t.running,
		LastSyncTime:        t.lastSyncTime,
		LastSyncMessage:     t.lastSyncMessage,
		RefreshedCount:      t.refreshed,
		DiscoveredCount:     t.discovered,
		TokenValid:          tokenValid,
		LastUpstreamCall:    t.lastUpstreamCall,
		LastUpstreamOutcome: t.lastUpstreamOutcome,
	}
}
