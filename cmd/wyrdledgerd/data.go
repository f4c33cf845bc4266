// ABOUTME: Partition handlers: per-user collection snapshots with server-assigned
// ABOUTME: write times, batch commits, and best-effort deletes.
package main

import (
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pocketbase/pocketbase/core"
)

// partition wire shape, shared with the client library.
type partitionResp struct {
	Items     json.RawMessage `json:"items"`
	UpdatedAt int64           `json:"updated_at"`
}

type putCollectionReq struct {
	Items []json.RawMessage `json:"items"`
}

// PUT /v1/data/collections/{name}.
func (s *Server) handlePutCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		fail(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	name := collectionName(r)
	if name == "" {
		fail(w, http.StatusBadRequest, "collection name required")
		return
	}

	var req putCollectionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "invalid json")
		return
	}

	userID := userIDFrom(r)
	if !s.writeAllowed(w, r, userID) {
		return
	}

	updatedAt := time.Now().Unix()
	if err := s.upsertPartition(s.app, userID, name, req.Items, updatedAt); err != nil {
		log.Printf("put partition %q: %v", name, err)
		fail(w, http.StatusInternalServerError, "db error")
		return
	}

	if err := s.accounts.RecordWrites(r.Context(), userID, 1); err != nil {
		log.Printf("record usage: %v", err)
	}

	ok(w, map[string]any{"ok": true, "updated_at": updatedAt})
}

type batchReq struct {
	Collections map[string][]json.RawMessage `json:"collections"`
}

// POST /v1/data/batch. All snapshots commit in one transaction: if any write
// fails, none of them land.
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		fail(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req batchReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "invalid json")
		return
	}
	if len(req.Collections) == 0 {
		fail(w, http.StatusBadRequest, "no collections in batch")
		return
	}

	userID := userIDFrom(r)
	if !s.writeAllowed(w, r, userID) {
		return
	}

	updatedAt := time.Now().Unix()
	err := s.app.RunInTransaction(func(txApp core.App) error {
		for name, items := range req.Collections {
			if err := s.upsertPartition(txApp, userID, name, items, updatedAt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Printf("batch commit: %v", err)
		fail(w, http.StatusInternalServerError, "db error")
		return
	}

	if err := s.accounts.RecordWrites(r.Context(), userID, len(req.Collections)); err != nil {
		log.Printf("record usage: %v", err)
	}

	ok(w, map[string]any{"ok": true, "updated_at": updatedAt, "count": len(req.Collections)})
}

// GET /v1/data.
func (s *Server) handlePullAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		fail(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	records, err := s.partitionsFor(userIDFrom(r))
	if err != nil {
		log.Printf("pull partitions: %v", err)
		fail(w, http.StatusInternalServerError, "db error")
		return
	}

	partitions := make(map[string]partitionResp, len(records))
	for _, rec := range records {
		items := rec.GetString("items")
		if items == "" {
			items = "[]"
		}
		partitions[rec.GetString("name")] = partitionResp{
			Items:     json.RawMessage(items),
			UpdatedAt: int64(rec.GetInt("updated_at")),
		}
	}
	ok(w, map[string]any{"partitions": partitions})
}

// GET /v1/data/names.
func (s *Server) handleListNames(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		fail(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	records, err := s.partitionsFor(userIDFrom(r))
	if err != nil {
		log.Printf("list partitions: %v", err)
		fail(w, http.StatusInternalServerError, "db error")
		return
	}

	names := make([]string, 0, len(records))
	for _, rec := range records {
		names = append(names, rec.GetString("name"))
	}
	ok(w, map[string]any{"names": names})
}

// DELETE /v1/data/collections/{name}.
func (s *Server) handleDeleteCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		fail(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	name := collectionName(r)
	if name == "" {
		fail(w, http.StatusBadRequest, "collection name required")
		return
	}

	col, err := s.app.FindCollectionByNameOrId("partitions")
	if err != nil {
		fail(w, http.StatusInternalServerError, "collection not found")
		return
	}
	rec, err := s.app.FindFirstRecordByFilter(col, "user_id = {:uid} && name = {:name}",
		map[string]any{"uid": userIDFrom(r), "name": name})
	if err != nil {
		fail(w, http.StatusNotFound, "partition not found")
		return
	}
	if err := s.app.Delete(rec); err != nil {
		log.Printf("delete partition %q: %v", name, err)
		fail(w, http.StatusInternalServerError, "db error")
		return
	}
	ok(w, map[string]any{"ok": true})
}

// GET /v1/data/health. Authenticated reachability probe used by the client's
// connectivity monitor.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		fail(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	ok(w, map[string]any{"ok": true, "time": time.Now().Unix()})
}

// upsertPartition writes one snapshot under (userID, name), stamping the
// server write time.
func (s *Server) upsertPartition(app core.App, userID, name string, items []json.RawMessage, updatedAt int64) error {
	if items == nil {
		items = []json.RawMessage{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return err
	}

	col, err := app.FindCollectionByNameOrId("partitions")
	if err != nil {
		return err
	}

	rec, err := app.FindFirstRecordByFilter(col, "user_id = {:uid} && name = {:name}",
		map[string]any{"uid": userID, "name": name})
	if err != nil {
		rec = core.NewRecord(col)
		rec.Set("user_id", userID)
		rec.Set("name", name)
	}
	rec.Set("items", string(raw))
	rec.Set("updated_at", updatedAt)
	return app.Save(rec)
}

func (s *Server) partitionsFor(userID string) ([]*core.Record, error) {
	col, err := s.app.FindCollectionByNameOrId("partitions")
	if err != nil {
		return nil, err
	}
	return s.app.FindRecordsByFilter(col, "user_id = {:uid}", "name", 0, 0,
		map[string]any{"uid": userID})
}

// writeAllowed rejects writes from inactive or over-quota accounts. Lookup
// failures fail open: the control plane being down must not take sync down
// with it.
func (s *Server) writeAllowed(w http.ResponseWriter, r *http.Request, userID string) bool {
	status, err := s.accounts.Status(r.Context(), userID)
	if err != nil {
		log.Printf("account status %s: %v", userID, err)
		return true
	}
	if !status.Active {
		fail(w, http.StatusForbidden, "account is not active")
		return false
	}
	if status.OverQuota() {
		fail(w, http.StatusForbidden, "write quota exceeded")
		return false
	}
	return true
}

func collectionName(r *http.Request) string {
	raw := strings.TrimPrefix(r.URL.Path, "/v1/data/collections/")
	name, err := url.PathUnescape(raw)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(name)
}
