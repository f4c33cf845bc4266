package offline

import (
	"database/sql"
	"encoding/json"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Store persists named collections and the offline backlog locally.
// Collections are whole-snapshot values: every write fully replaces the
// previous persisted version. There is no atomicity across collections.
type Store struct {
	db     *sql.DB
	logger Logger

	draftMu sync.Mutex
	draft   json.RawMessage // session-scoped in-progress order form
}

// OpenStore opens/creates a SQLite database and runs migrations.
// A nil logger falls back to the standard logger.
func OpenStore(path string, logger Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}
	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS collections (
  name TEXT PRIMARY KEY,
  items TEXT NOT NULL,
  updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS queue (
  pos INTEGER PRIMARY KEY AUTOINCREMENT,
  op_id TEXT NOT NULL UNIQUE,
  kind TEXT NOT NULL,
  collection TEXT NOT NULL DEFAULT '',
  payload TEXT NOT NULL,
  enqueued_at INTEGER NOT NULL,
  retry_count INTEGER NOT NULL DEFAULT 0
);
`)
	return err
}

// ReadCollection returns the persisted snapshot for name, or nil when absent.
// Failures are logged and reported as absence.
func (s *Store) ReadCollection(name string) []json.RawMessage {
	var raw string
	err := s.db.QueryRow(`SELECT items FROM collections WHERE name = ?`, name).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		s.logger.Printf("local read %q: %v", name, err)
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		s.logger.Printf("local decode %q: %v", name, err)
		return nil
	}
	return items
}

// WriteCollection replaces the persisted snapshot for name. It never fails
// observably: errors are logged and swallowed, leaving in-memory state as the
// session's source of truth.
func (s *Store) WriteCollection(name string, records []json.RawMessage) {
	if err := s.writeCollection(name, records); err != nil {
		s.logger.Printf("local write %q: %v", name, err)
	}
}

// writeCollection is the error-returning write path used where failure must
// surface (restore).
func (s *Store) writeCollection(name string, records []json.RawMessage) error {
	if records == nil {
		records = []json.RawMessage{}
	}
	raw, err := json.Marshal(records)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
INSERT INTO collections(name, items, updated_at) VALUES(?,?,?)
ON CONFLICT(name) DO UPDATE SET items=excluded.items, updated_at=excluded.updated_at`,
		name, string(raw), time.Now().Unix(),
	)
	return err
}

// Snapshots returns every locally persisted collection keyed by name.
func (s *Store) Snapshots() (map[string][]json.RawMessage, error) {
	rows, err := s.db.Query(`SELECT name, items FROM collections ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	out := make(map[string][]json.RawMessage)
	for rows.Next() {
		var name, raw string
		if err := rows.Scan(&name, &raw); err != nil {
			return nil, err
		}
		var items []json.RawMessage
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			return nil, err
		}
		out[name] = items
	}
	return out, rows.Err()
}

// SetDraft stores the session-scoped order form draft.
func (s *Store) SetDraft(draft json.RawMessage) {
	s.draftMu.Lock()
	defer s.draftMu.Unlock()
	s.draft = draft
}

// Draft returns the session-scoped order form draft, or nil.
func (s *Store) Draft() json.RawMessage {
	s.draftMu.Lock()
	defer s.draftMu.Unlock()
	return s.draft
}

// ClearDraft discards the session-scoped order form draft.
func (s *Store) ClearDraft() {
	s.draftMu.Lock()
	defer s.draftMu.Unlock()
	s.draft = nil
}
