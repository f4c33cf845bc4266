package inspect

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "modernc.org/sqlite"
)

// Inspector provides read-only access to the local sync database for
// troubleshooting. It opens the file directly, so it works while offline and
// never mutates anything.
type Inspector struct {
	db *sql.DB
}

// Open opens the SQLite database located at path.
func Open(path string) (*Inspector, error) {
	if path == "" {
		return nil, errors.New("local db path required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	return &Inspector{db: db}, nil
}

// Close releases resources held by Inspector.
func (i *Inspector) Close() error {
	if i == nil || i.db == nil {
		return nil
	}
	return i.db.Close()
}

// SummaryRow represents one persisted collection snapshot.
type SummaryRow struct {
	Collection string
	Records    int
	UpdatedAt  time.Time
}

// Summary returns per-collection record counts.
func (i *Inspector) Summary(ctx context.Context) ([]SummaryRow, error) {
	rows, err := i.db.QueryContext(ctx, `SELECT name, items, updated_at FROM collections ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []SummaryRow
	for rows.Next() {
		var (
			name    string
			items   string
			updated int64
		)
		if err := rows.Scan(&name, &items, &updated); err != nil {
			return nil, err
		}
		var records []json.RawMessage
		if err := json.Unmarshal([]byte(items), &records); err != nil {
			return nil, err
		}
		out = append(out, SummaryRow{
			Collection: name,
			Records:    len(records),
			UpdatedAt:  time.Unix(updated, 0),
		})
	}
	return out, rows.Err()
}

// QueueEntry captures one pending operation in the offline backlog.
type QueueEntry struct {
	Pos        int64
	ID         string
	Kind       string
	Collection string
	EnqueuedAt time.Time
	RetryCount int
}

// Backlog returns pending operations in replay order.
func (i *Inspector) Backlog(ctx context.Context, limit int) ([]QueueEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := i.db.QueryContext(ctx, `
SELECT pos, op_id, kind, collection, enqueued_at, retry_count
FROM queue
ORDER BY pos ASC
LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []QueueEntry
	for rows.Next() {
		var (
			e        QueueEntry
			enqueued int64
		)
		if err := rows.Scan(&e.Pos, &e.ID, &e.Kind, &e.Collection, &enqueued, &e.RetryCount); err != nil {
			return nil, err
		}
		e.EnqueuedAt = time.Unix(enqueued, 0)
		out = append(out, e)
	}
	return out, rows.Err()
}
