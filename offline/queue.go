// ABOUTME: Durable bounded FIFO of pending remote writes.
// ABOUTME: Evicts oldest entries on overflow and tracks per-operation retry budgets.
package offline

import (
	"encoding/json"
	"time"
)

// Queue is the durable offline backlog. It shares the local store's database
// and persists every mutation synchronously. The queue is bounded: once
// MaxQueueSize is reached, the oldest entry is evicted to make room. That
// drops the oldest unsynced change after a long offline period; bounded
// storage wins over completeness here.
type Queue struct {
	store      *Store
	maxSize    int
	maxRetries int
}

// NewQueue wires a queue over the local store using cfg's bounds.
func NewQueue(store *Store, cfg SyncConfig) *Queue {
	return &Queue{
		store:      store,
		maxSize:    cfg.queueSize(),
		maxRetries: cfg.retryBudget(),
	}
}

// Enqueue appends a new operation, assigning id, timestamp, and a zero retry
// count. When the queue is full the oldest entry is evicted first.
func (q *Queue) Enqueue(kind OpKind, collection string, payload json.RawMessage) (QueuedOperation, error) {
	op := newOperation(kind, collection, payload)

	tx, err := q.store.db.Begin()
	if err != nil {
		return QueuedOperation{}, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.Exec(`
INSERT INTO queue(op_id, kind, collection, payload, enqueued_at, retry_count)
VALUES(?,?,?,?,?,0)`,
		op.ID, string(op.Kind), op.Collection, string(op.Payload), op.EnqueuedAt.Unix(),
	); err != nil {
		return QueuedOperation{}, err
	}

	var count int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM queue`).Scan(&count); err != nil {
		return QueuedOperation{}, err
	}
	if over := count - q.maxSize; over > 0 {
		if _, err := tx.Exec(`
DELETE FROM queue WHERE pos IN (SELECT pos FROM queue ORDER BY pos ASC LIMIT ?)`, over); err != nil {
			return QueuedOperation{}, err
		}
	}

	return op, tx.Commit()
}

// List returns the full backlog in insertion order.
func (q *Queue) List() ([]QueuedOperation, error) {
	rows, err := q.store.db.Query(`
SELECT op_id, kind, collection, payload, enqueued_at, retry_count
FROM queue ORDER BY pos ASC`)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var ops []QueuedOperation
	for rows.Next() {
		var op QueuedOperation
		var kind, payload string
		var enqueued int64
		if err := rows.Scan(&op.ID, &kind, &op.Collection, &payload, &enqueued, &op.RetryCount); err != nil {
			return nil, err
		}
		op.Kind = OpKind(kind)
		op.Payload = json.RawMessage(payload)
		op.EnqueuedAt = time.Unix(enqueued, 0).UTC()
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

// Remove deletes the operation with the given id. Removing an absent id is a
// no-op.
func (q *Queue) Remove(id string) error {
	_, err := q.store.db.Exec(`DELETE FROM queue WHERE op_id = ?`, id)
	return err
}

// IncrementRetry bumps the retry count for the matching entry; no-op if
// absent.
func (q *Queue) IncrementRetry(id string) error {
	_, err := q.store.db.Exec(`UPDATE queue SET retry_count = retry_count + 1 WHERE op_id = ?`, id)
	return err
}

// ShouldRetry reports whether op still has replay budget.
func (q *Queue) ShouldRetry(op QueuedOperation) bool {
	return op.RetryCount < q.maxRetries
}

// Clear empties the queue unconditionally.
func (q *Queue) Clear() error {
	_, err := q.store.db.Exec(`DELETE FROM queue`)
	return err
}

// Len returns the current backlog length.
func (q *Queue) Len() int {
	var n int
	if err := q.store.db.QueryRow(`SELECT COUNT(*) FROM queue`).Scan(&n); err != nil {
		q.store.logger.Printf("queue length: %v", err)
		return 0
	}
	return n
}
