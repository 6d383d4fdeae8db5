// Package status provides in-memory health and sync status tracking for the
// catalog server.
package status

import "time"

// SyncPhase represents the current phase of a synchronization operation
type SyncPhase string

const (
	// SyncPhaseIdle means no sync has run yet
	SyncPhaseIdle SyncPhase = "Idle"

	// SyncPhaseSyncing means sync is currently in progress
	SyncPhaseSyncing SyncPhase = "Syncing"

	// SyncPhaseComplete means sync completed successfully
	SyncPhaseComplete SyncPhase = "Complete"

	// SyncPhaseFailed means sync failed
	SyncPhaseFailed SyncPhase = "Failed"
)

// UpstreamOutcome classifies the result of the most recent upstream call
type UpstreamOutcome string

const (
	// UpstreamOutcomeNone means no upstream call has been made yet
	UpstreamOutcomeNone UpstreamOutcome = "none"

	// UpstreamOutcomeSuccess means the last upstream call succeeded
	UpstreamOutcomeSuccess UpstreamOutcome = "success"

	// UpstreamOutcomeRateLimited means the last upstream call was rate limited
	UpstreamOutcomeRateLimited UpstreamOutcome = "rate-limited"

	// UpstreamOutcomeError means the last upstream call failed
	UpstreamOutcomeError UpstreamOutcome = "error"
)

// Snapshot is a point-in-time view of the server's sync and upstream health.
type Snapshot struct {
	// SyncPhase is the phase of the most recent (or current) sync
	SyncPhase SyncPhase `json:"syncPhase"`

	// SyncRunning reports whether a full sync is currently in progress
	SyncRunning bool `json:"syncRunning"`

	// LastSyncTime is the completion time of the last successful sync
	LastSyncTime *time.Time `json:"lastSyncTime,omitempty"`

	// LastSyncMessage carries additional detail about the last sync outcome
	LastSyncMessage string `json:"lastSyncMessage,omitempty"`

	// RefreshedCount is the number of records refreshed by the last sync
	RefreshedCount int `json:"refreshedCount"`

	// DiscoveredCount is the number of records discovered by the last sync
	DiscoveredCount int `json:"discoveredCount"`

	// TokenValid reports whether a non-expired upstream token is cached
	TokenValid bool `json:"tokenValid"`

	// LastUpstreamCall is the time of the most recent upstream call
	LastUpstreamCall *time.Time `json:"lastUpstreamCall,omitempty"`

	// LastUpstreamOutcome classifies the most recent upstream call
	LastUpstreamOutcome UpstreamOutcome `json:"lastUpstreamOutcome"`
}
