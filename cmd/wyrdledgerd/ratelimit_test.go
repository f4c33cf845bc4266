// ABOUTME: Unit tests for the per-key token bucket rate limiter.
// ABOUTME: Covers burst behavior, key isolation, pruning, and client IP parsing.

package main

import (
	"net/http"
	"testing"
	"time"
)

func TestRateLimiterBurstThenBlocks(t *testing.T) {
	store := newRateLimiterStore(RateLimitConfig{Interval: 100 * time.Millisecond, Burst: 2})
	limiter := store.get("user-1")

	if !limiter.Allow() {
		t.Fatal("request 1 should succeed")
	}
	if !limiter.Allow() {
		t.Fatal("request 2 should succeed")
	}
	if limiter.Allow() {
		t.Fatal("request 3 should be rate limited after the burst")
	}
}

func TestRateLimiterKeysAreIsolated(t *testing.T) {
	store := newRateLimiterStore(RateLimitConfig{Interval: time.Second, Burst: 1})

	if !store.get("user-a").Allow() {
		t.Fatal("user-a first request should succeed")
	}
	if store.get("user-a").Allow() {
		t.Fatal("user-a second request should be limited")
	}
	// A different key gets its own bucket.
	if !store.get("user-b").Allow() {
		t.Fatal("user-b must not share user-a's bucket")
	}
}

func TestRateLimiterZeroInterval(t *testing.T) {
	// rate.Every treats a non-positive interval as unlimited.
	store := newRateLimiterStore(RateLimitConfig{Interval: 0, Burst: 100})
	limiter := store.get("user-1")

	for i := 0; i < 1000; i++ {
		if !limiter.Allow() {
			t.Fatalf("zero interval limiter blocked request %d", i)
		}
	}
}

func TestRateLimiterGetReusesEntry(t *testing.T) {
	store := newRateLimiterStore(DefaultRateLimitConfig())
	first := store.get("user-1")
	second := store.get("user-1")
	if first != second {
		t.Fatal("expected the same limiter for the same key")
	}
}

func TestRateLimiterPrune(t *testing.T) {
	store := newRateLimiterStore(DefaultRateLimitConfig())
	store.get("stale")
	store.get("fresh")

	// Backdate one entry past the idle cutoff.
	store.mu.Lock()
	store.limiters["stale"].lastSeen = time.Now().Add(-2 * time.Hour)
	store.mu.Unlock()

	if pruned := store.prune(time.Hour); pruned != 1 {
		t.Fatalf("expected 1 pruned entry, got %d", pruned)
	}
	store.mu.RLock()
	_, staleKept := store.limiters["stale"]
	_, freshKept := store.limiters["fresh"]
	store.mu.RUnlock()
	if staleKept {
		t.Error("stale entry should have been dropped")
	}
	if !freshKept {
		t.Error("fresh entry should have been kept")
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name          string
		remoteAddr    string
		xForwardedFor string
		want          string
	}{
		{
			name:       "remote addr with port",
			remoteAddr: "203.0.113.42:5678",
			want:       "203.0.113.42",
		},
		{
			name:       "remote addr without port",
			remoteAddr: "203.0.113.42",
			want:       "203.0.113.42",
		},
		{
			name:          "first forwarded-for entry wins",
			remoteAddr:    "192.168.1.100:1234",
			xForwardedFor: "10.0.0.1, 10.0.0.2",
			want:          "10.0.0.1",
		},
		{
			name:          "forwarded-for with whitespace",
			remoteAddr:    "192.168.1.100:1234",
			xForwardedFor: "  10.0.0.1  ",
			want:          "10.0.0.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &http.Request{
				RemoteAddr: tt.remoteAddr,
				Header:     http.Header{},
			}
			if tt.xForwardedFor != "" {
				req.Header.Set("X-Forwarded-For", tt.xForwardedFor)
			}
			if got := getClientIP(req); got != tt.want {
				t.Errorf("getClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
