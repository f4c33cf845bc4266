package offline

import (
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
)

// OpKind describes supported deferred operations.
type OpKind string

const (
	// OpPersistCollection mirrors one collection snapshot to the remote store.
	OpPersistCollection OpKind = "persist"
	// OpFullSync is reserved for a deferred whole-state push. Nothing
	// enqueues it today; replay rejects it.
	OpFullSync OpKind = "sync"
)

// QueuedOperation is one deferred remote write.
type QueuedOperation struct {
	ID         string          `json:"id"`
	Kind       OpKind          `json:"kind"`
	Collection string          `json:"collection,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	RetryCount int             `json:"retry_count"`
}

// newOperation builds an operation with a ULID and zero retry count.
func newOperation(kind OpKind, collection string, payload json.RawMessage) QueuedOperation {
	return QueuedOperation{
		ID:         ulid.Make().String(),
		Kind:       kind,
		Collection: collection,
		Payload:    payload,
		EnqueuedAt: time.Now().UTC(),
	}
}
