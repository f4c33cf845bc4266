// ABOUTME: In-memory fake of the partition server for engine and monitor tests.
// ABOUTME: Supports scripted failures, blocking puts, and health flipping.
package offline

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

const testToken = "test-token"

type fakeRemote struct {
	mu          sync.Mutex
	partitions  map[string][]json.RawMessage
	healthy     bool
	failPuts    map[string]int // remaining put failures per collection; -1 fails forever
	failDeletes map[string]bool
	failBatch   bool
	putAttempts int
	requests    int
	putGate     chan struct{} // when non-nil, puts block until it closes
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		partitions:  make(map[string][]json.RawMessage),
		healthy:     true,
		failPuts:    make(map[string]int),
		failDeletes: make(map[string]bool),
	}
}

func (f *fakeRemote) server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(srv.Close)
	return srv
}

func (f *fakeRemote) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests++
	f.mu.Unlock()

	if r.Header.Get("Authorization") != "Bearer "+testToken {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "invalid token"})
		return
	}

	switch {
	case r.URL.Path == "/v1/data/health":
		f.mu.Lock()
		healthy := f.healthy
		f.mu.Unlock()
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "down"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "time": time.Now().Unix()})

	case r.URL.Path == "/v1/data" && r.Method == http.MethodGet:
		f.mu.Lock()
		parts := make(map[string]any, len(f.partitions))
		for name, items := range f.partitions {
			parts[name] = map[string]any{"items": items, "updated_at": time.Now().Unix()}
		}
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"partitions": parts})

	case r.URL.Path == "/v1/data/names":
		f.mu.Lock()
		names := make([]string, 0, len(f.partitions))
		for name := range f.partitions {
			names = append(names, name)
		}
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"names": names})

	case r.URL.Path == "/v1/data/batch" && r.Method == http.MethodPost:
		var req struct {
			Collections map[string][]json.RawMessage `json:"collections"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "invalid json"})
			return
		}
		f.mu.Lock()
		if f.failBatch {
			f.mu.Unlock()
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "batch commit failed"})
			return
		}
		for name, items := range req.Collections {
			f.partitions[name] = items
		}
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})

	case strings.HasPrefix(r.URL.Path, "/v1/data/collections/"):
		name := strings.TrimPrefix(r.URL.Path, "/v1/data/collections/")
		switch r.Method {
		case http.MethodPut:
			f.handlePut(w, r, name)
		case http.MethodDelete:
			f.mu.Lock()
			if f.failDeletes[name] {
				f.mu.Unlock()
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(map[string]any{"error": "delete failed"})
				return
			}
			_, existed := f.partitions[name]
			delete(f.partitions, name)
			f.mu.Unlock()
			if !existed {
				w.WriteHeader(http.StatusNotFound)
				_ = json.NewEncoder(w).Encode(map[string]any{"error": "partition not found"})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}

	default:
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "not found"})
	}
}

func (f *fakeRemote) handlePut(w http.ResponseWriter, r *http.Request, name string) {
	f.mu.Lock()
	f.putAttempts++
	gate := f.putGate
	fail := false
	if n, ok := f.failPuts[name]; ok && n != 0 {
		fail = true
		if n > 0 {
			f.failPuts[name] = n - 1
		}
	}
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if fail {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "write rejected"})
		return
	}

	var req struct {
		Items []json.RawMessage `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "invalid json"})
		return
	}
	f.mu.Lock()
	f.partitions[name] = req.Items
	f.mu.Unlock()
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "updated_at": time.Now().Unix()})
}

func (f *fakeRemote) items(name string) []json.RawMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.partitions[name]
}

func (f *fakeRemote) setHealthy(ok bool) {
	f.mu.Lock()
	f.healthy = ok
	f.mu.Unlock()
}

func (f *fakeRemote) attempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.putAttempts
}

func (f *fakeRemote) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests
}

// notifyRecorder captures notifications for assertions.
type notifyRecorder struct {
	mu   sync.Mutex
	sevs []Severity
	msgs []string
}

func (n *notifyRecorder) notify(sev Severity, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sevs = append(n.sevs, sev)
	n.msgs = append(n.msgs, msg)
}

func (n *notifyRecorder) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.msgs)
}

func (n *notifyRecorder) last() (Severity, string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.msgs) == 0 {
		return "", ""
	}
	return n.sevs[len(n.sevs)-1], n.msgs[len(n.msgs)-1]
}
