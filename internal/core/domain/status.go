package domain

// SyncState is one of the five states of the sync status signal.
type SyncState string

const (
	// StateIdle is the steady state: nothing pending or in flight.
	StateIdle SyncState = "idle"

	// StateSyncing means a write or a queue drain is in flight.
	StateSyncing SyncState = "syncing"

	// StateSuccess means the last operation completed. It auto-reverts to
	// idle after a short delay unless superseded.
	StateSuccess SyncState = "success"

	// StateError means the last operation failed; Message carries details.
	StateError SyncState = "error"

	// StateOffline means connectivity is lost; Pending counts deferred
	// writes.
	StateOffline SyncState = "offline"
)

// SyncStatus is the value broadcast to status listeners.
type SyncStatus struct {
	State   SyncState
	Message string
	Pending int
}
