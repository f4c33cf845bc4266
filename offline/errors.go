// ABOUTME: Typed errors for offline sync operations.
// ABOUTME: Enables programmatic error handling with errors.Is() and errors.As().
package offline

import (
	"errors"
	"fmt"
)

// Sentinel errors for programmatic handling.
var (
	ErrNetworkFailure = errors.New("network failure")
	ErrServerError    = errors.New("server error")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrNotConfigured  = errors.New("sync not configured")
	ErrNoPrincipal    = errors.New("no authenticated principal")
	ErrOffline        = errors.New("remote store unreachable")
	ErrUnknownKind    = errors.New("unknown operation kind")
)

// SyncError wraps errors with operation context.
type SyncError struct {
	Op     string // "save", "drain", "sync", "restore", "reset"
	Err    error  // underlying typed error
	Detail string // server message if any
}

func (e *SyncError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s failed: %v (%s)", e.Op, e.Err, e.Detail)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}
