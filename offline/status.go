package offline

import "time"

// SyncState is the tri-state connectivity/sync status.
type SyncState string

const (
	StateOffline SyncState = "offline"
	StateSyncing SyncState = "syncing"
	StateSynced  SyncState = "synced"
)

// Snapshot is a read-only view of the engine's current sync state,
// consumed by header/status surfaces.
type Snapshot struct {
	State             SyncState
	IsConnected       bool
	LastSynced        time.Time
	PendingOperations int
}
