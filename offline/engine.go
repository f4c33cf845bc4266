// ABOUTME: Remote sync engine orchestrating local-first writes, queue draining,
// ABOUTME: full-state push/pull, and remote reset for the current principal.
package offline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"
)

// EngineOptions carries the injected collaborator hooks.
type EngineOptions struct {
	// Notifier surfaces user-visible outcomes. Nil discards them.
	Notifier Notifier
	// Logger receives swallowed errors and drop reports. Nil uses the
	// standard logger.
	Logger Logger
	// Reload is invoked after a successful restore so every in-memory
	// reader picks up the new local state. Nil skips the reload.
	Reload func()
}

// Engine mirrors local collection writes to the remote per-principal store,
// queueing any write that cannot reach it and draining the backlog when
// connectivity returns. Reads always come from the local store.
type Engine struct {
	store      *Store
	queue      *Queue
	client     *Client
	principals PrincipalProvider
	notify     Notifier
	logger     Logger
	reload     func()

	mu          sync.Mutex
	state       SyncState
	isConnected bool
	lastSynced  time.Time

	// drainMu makes "at most one drain in flight" structural. Re-entrant
	// ProcessQueue calls collapse to a no-op instead of racing replays.
	drainMu sync.Mutex
}

// NewEngine wires the sync engine. The engine starts offline until the
// connectivity monitor reports the remote store reachable.
func NewEngine(store *Store, queue *Queue, client *Client, principals PrincipalProvider, opts EngineOptions) *Engine {
	notify := opts.Notifier
	if notify == nil {
		notify = NopNotifier
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		store:      store,
		queue:      queue,
		client:     client,
		principals: principals,
		notify:     notify,
		logger:     logger,
		reload:     opts.Reload,
		state:      StateOffline,
	}
}

// SaveCollection persists records locally, then mirrors the snapshot to the
// remote store. It never fails from the caller's perspective: when the remote
// store is unreachable, the principal is absent, or the write is rejected,
// the operation is queued for a later drain and the caller proceeds.
func (e *Engine) SaveCollection(ctx context.Context, name string, records []json.RawMessage) {
	e.store.WriteCollection(name, records)

	_, signedIn := e.principals.Principal()
	if !e.client.Configured() || !signedIn || !e.connected() {
		e.queueWrite(name, records)
		return
	}

	e.setState(StateSyncing)
	if err := e.client.PutCollection(ctx, name, records); err != nil {
		e.logger.Printf("remote write %q: %v", name, err)
		e.queueWrite(name, records)
		e.setOffline()
		return
	}
	e.markSynced()
}

// queueWrite queues a collection write for replay and tells the user.
func (e *Engine) queueWrite(name string, records []json.RawMessage) {
	payload, err := json.Marshal(records)
	if err != nil {
		e.logger.Printf("encode queued write %q: %v", name, err)
		return
	}
	if _, err := e.queue.Enqueue(OpPersistCollection, name, payload); err != nil {
		e.logger.Printf("enqueue %q: %v", name, err)
		return
	}
	e.notify(SeverityInfo, fmt.Sprintf("%s saved locally; change queued for sync", name))
}

// FetchCollection reads the local snapshot for name. Absence and failure both
// yield nil.
func (e *Engine) FetchCollection(name string) []json.RawMessage {
	return e.store.ReadCollection(name)
}

// ProcessQueue replays the backlog once, in FIFO order. Operations that
// succeed are removed; failures keep their place with a bumped retry count
// and wait for the next drain. Operations whose retry budget is exhausted
// are dropped. Concurrent calls collapse to one drain pass.
func (e *Engine) ProcessQueue(ctx context.Context) error {
	if !e.drainMu.TryLock() {
		return nil
	}
	defer e.drainMu.Unlock()

	_, signedIn := e.principals.Principal()
	if !e.client.Configured() || !signedIn || !e.connected() {
		return nil
	}

	ops, err := e.queue.List()
	if err != nil {
		return err
	}
	if len(ops) == 0 {
		return nil
	}

	var succeeded, remaining int
	for _, op := range ops {
		if !e.queue.ShouldRetry(op) {
			e.logger.Printf("dropping queued %s %q after %d failed attempts", op.Kind, op.Collection, op.RetryCount)
			if err := e.queue.Remove(op.ID); err != nil {
				e.logger.Printf("remove %s: %v", op.ID, err)
			}
			continue
		}
		if err := e.replay(ctx, op); err != nil {
			e.logger.Printf("replay %s %q: %v", op.Kind, op.Collection, err)
			if err := e.queue.IncrementRetry(op.ID); err != nil {
				e.logger.Printf("bump retry %s: %v", op.ID, err)
			}
			remaining++
			continue
		}
		if err := e.queue.Remove(op.ID); err != nil {
			e.logger.Printf("remove %s: %v", op.ID, err)
		}
		succeeded++
	}

	if succeeded > 0 {
		e.markSynced()
		msg := fmt.Sprintf("synced %d queued change(s)", succeeded)
		if remaining > 0 {
			msg += fmt.Sprintf("; %d still pending", remaining)
		}
		e.notify(SeveritySuccess, msg)
	}
	return nil
}

func (e *Engine) replay(ctx context.Context, op QueuedOperation) error {
	switch op.Kind {
	case OpPersistCollection:
		var records []json.RawMessage
		if err := json.Unmarshal(op.Payload, &records); err != nil {
			return err
		}
		return e.client.PutCollection(ctx, op.Collection, records)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKind, op.Kind)
	}
}

// Sync pushes every locally persisted collection to the remote store as one
// all-or-nothing batch. This is a user-initiated action: it fails loudly and
// never queues.
func (e *Engine) Sync(ctx context.Context) error {
	if err := e.requireRemote("sync"); err != nil {
		return err
	}

	e.setState(StateSyncing)
	snaps, err := e.store.Snapshots()
	if err != nil {
		e.setOffline()
		e.notify(SeverityError, "sync failed: could not read local data")
		return &SyncError{Op: "sync", Err: err}
	}
	if err := e.client.PutBatch(ctx, snaps); err != nil {
		e.setOffline()
		e.notify(SeverityError, "sync failed; check your connection")
		return &SyncError{Op: "sync", Err: err}
	}
	e.markSynced()
	e.notify(SeveritySuccess, fmt.Sprintf("synced %d collection(s)", len(snaps)))
	return nil
}

// Restore pulls every remote partition and overwrites the matching local
// collections, then invokes the reload hook so every reader sees the new
// state. Partitions with no local storage key mapping are ignored. Any
// failure surfaces to the caller.
func (e *Engine) Restore(ctx context.Context) error {
	if err := e.requireRemote("restore"); err != nil {
		return err
	}

	e.setState(StateSyncing)
	parts, err := e.client.PullAll(ctx)
	if err != nil {
		e.setOffline()
		e.notify(SeverityError, "restore failed; check your connection")
		return &SyncError{Op: "restore", Err: err}
	}
	for name, part := range parts {
		if !IsKnownCollection(name) {
			continue
		}
		if err := e.store.writeCollection(name, part.Items); err != nil {
			e.setOffline()
			e.notify(SeverityError, "restore failed: could not write local data")
			return &SyncError{Op: "restore", Err: err}
		}
	}
	e.markSynced()
	e.notify(SeveritySuccess, "data restored from remote store")
	if e.reload != nil {
		e.reload()
	}
	return nil
}

// ResetAllData deletes every remote partition under the current principal and
// clears the offline backlog. Deletion is best effort: a failed partition
// does not stop the rest, and the first error propagates. Clearing local
// collections is the collaborator's responsibility.
func (e *Engine) ResetAllData(ctx context.Context) error {
	if err := e.requireRemote("reset"); err != nil {
		return err
	}

	names, err := e.client.ListCollections(ctx)
	if err != nil {
		e.notify(SeverityError, "reset failed; check your connection")
		return &SyncError{Op: "reset", Err: err}
	}

	var firstErr error
	for _, name := range names {
		if err := e.client.DeleteCollection(ctx, name); err != nil {
			e.logger.Printf("delete partition %q: %v", name, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if err := e.queue.Clear(); err != nil {
		e.logger.Printf("clear queue: %v", err)
	}

	if firstErr != nil {
		e.notify(SeverityError, "reset incomplete: some remote data could not be deleted")
		return &SyncError{Op: "reset", Err: firstErr}
	}
	e.notify(SeveritySuccess, "all remote data deleted")
	return nil
}

// Status returns a read-only snapshot for status surfaces.
func (e *Engine) Status() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{
		State:             e.state,
		IsConnected:       e.isConnected,
		LastSynced:        e.lastSynced,
		PendingOperations: e.queue.Len(),
	}
}

// ConnectivityChanged is called by the monitor on every reachability
// transition. A rising edge with a non-empty backlog triggers a drain.
func (e *Engine) ConnectivityChanged(connected bool, cause error) {
	e.mu.Lock()
	wasConnected := e.isConnected
	e.isConnected = connected
	if connected {
		if e.state != StateSyncing {
			e.state = StateSynced
		}
	} else {
		e.state = StateOffline
	}
	e.mu.Unlock()

	if !connected {
		if cause != nil {
			e.logger.Printf("connectivity lost: %v", cause)
		}
		return
	}
	if !wasConnected && e.queue.Len() > 0 {
		if err := e.ProcessQueue(context.Background()); err != nil {
			e.logger.Printf("drain after reconnect: %v", err)
		}
	}
}

// requireRemote gates explicit user actions on a reachable, signed-in remote.
func (e *Engine) requireRemote(op string) error {
	if !e.client.Configured() {
		e.notify(SeverityError, "remote store is not configured")
		return &SyncError{Op: op, Err: ErrNotConfigured}
	}
	if _, ok := e.principals.Principal(); !ok {
		e.notify(SeverityError, "sign in to use remote sync")
		return &SyncError{Op: op, Err: ErrNoPrincipal}
	}
	if !e.connected() {
		e.notify(SeverityError, "no connection to remote store")
		return &SyncError{Op: op, Err: ErrOffline}
	}
	return nil
}

func (e *Engine) connected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isConnected
}

func (e *Engine) setState(s SyncState) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

func (e *Engine) setOffline() {
	e.mu.Lock()
	e.state = StateOffline
	e.isConnected = false
	e.mu.Unlock()
}

func (e *Engine) markSynced() {
	e.mu.Lock()
	e.state = StateSynced
	e.isConnected = true
	e.lastSynced = time.Now()
	e.mu.Unlock()
}
