// ABOUTME: Tests for the accounts control-plane client.
// ABOUTME: Uses an httptest fake to verify endpoint shapes and quota math.
package pocketbase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStatusFetchesAccount(t *testing.T) {
	var gotPath, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"user_id":     "usr_1",
			"email":       "owner@example.com",
			"active":      true,
			"plan":        "starter",
			"write_quota": 500,
			"writes_used": 120,
		})
	}))
	defer server.Close()

	c := &HTTPClient{BaseURL: server.URL, Token: "admin-token"}
	status, err := c.Status(context.Background(), "usr_1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}

	if gotPath != "/api/wyrd/accounts/usr_1" {
		t.Errorf("unexpected path: %s", gotPath)
	}
	if gotAuth != "Bearer admin-token" {
		t.Errorf("unexpected auth header: %s", gotAuth)
	}
	if !status.Active || status.WriteQuota != 500 || status.WritesUsed != 120 {
		t.Errorf("unexpected status: %+v", status)
	}
}

func TestStatusAccountNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := &HTTPClient{BaseURL: server.URL, Token: "admin-token"}
	_, err := c.Status(context.Background(), "ghost")
	if !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestRecordWritesPostsUsage(t *testing.T) {
	var gotPath string
	var gotBody struct {
		Writes int `json:"writes"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer server.Close()

	c := &HTTPClient{BaseURL: server.URL, Token: "admin-token"}
	if err := c.RecordWrites(context.Background(), "usr_1", 3); err != nil {
		t.Fatalf("record writes: %v", err)
	}
	if gotPath != "/api/wyrd/accounts/usr_1/usage" {
		t.Errorf("unexpected path: %s", gotPath)
	}
	if gotBody.Writes != 3 {
		t.Errorf("unexpected writes payload: %d", gotBody.Writes)
	}
}

func TestRecordWritesSkipsZero(t *testing.T) {
	// No server: a zero delta must not produce a request at all.
	c := &HTTPClient{BaseURL: "http://127.0.0.1:1", Token: "admin-token"}
	if err := c.RecordWrites(context.Background(), "usr_1", 0); err != nil {
		t.Errorf("zero writes should be a no-op, got %v", err)
	}
}

func TestOverQuota(t *testing.T) {
	tests := []struct {
		name   string
		status AccountStatus
		want   bool
	}{
		{"unmetered", AccountStatus{WriteQuota: 0, WritesUsed: 9999}, false},
		{"under quota", AccountStatus{WriteQuota: 100, WritesUsed: 99}, false},
		{"at quota", AccountStatus{WriteQuota: 100, WritesUsed: 100}, true},
		{"over quota", AccountStatus{WriteQuota: 100, WritesUsed: 150}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.OverQuota(); got != tt.want {
				t.Errorf("OverQuota() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNoopClientIsUnmetered(t *testing.T) {
	status, err := NoopClient{}.Status(context.Background(), "anyone")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !status.Active || status.OverQuota() {
		t.Errorf("noop accounts must be active and unmetered: %+v", status)
	}
}
