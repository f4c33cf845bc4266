// ABOUTME: Per-key rate limiting using token bucket algorithm.
// ABOUTME: Protects the partition API from runaway clients and abuse.

package main

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig holds rate limiter settings.
type RateLimitConfig struct {
	Interval time.Duration // Time between allowed requests
	Burst    int           // Max burst size
}

// DefaultRateLimitConfig returns ~100 req/min with burst of 10.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Interval: 600 * time.Millisecond,
		Burst:    10,
	}
}

// AuthRateLimitConfig returns ~10 req/min with burst of 3, for
// unauthenticated auth endpoints.
func AuthRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Interval: 6 * time.Second,
		Burst:    3,
	}
}

// rateLimiterStore manages per-key (user id or client IP) rate limiters.
type rateLimiterStore struct {
	mu       sync.RWMutex
	limiters map[string]*limiterEntry
	config   RateLimitConfig
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newRateLimiterStore(config RateLimitConfig) *rateLimiterStore {
	return &rateLimiterStore{
		limiters: make(map[string]*limiterEntry),
		config:   config,
	}
}

func (s *rateLimiterStore) get(key string) *rate.Limiter {
	s.mu.RLock()
	entry, ok := s.limiters[key]
	s.mu.RUnlock()
	if ok {
		s.mu.Lock()
		entry.lastSeen = time.Now()
		s.mu.Unlock()
		return entry.limiter
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Double-check after acquiring write lock
	if entry, ok := s.limiters[key]; ok {
		entry.lastSeen = time.Now()
		return entry.limiter
	}
	entry = &limiterEntry{
		limiter:  rate.NewLimiter(rate.Every(s.config.Interval), s.config.Burst),
		lastSeen: time.Now(),
	}
	s.limiters[key] = entry
	return entry.limiter
}

// prune drops limiters idle longer than maxIdle, returning how many went.
func (s *rateLimiterStore) prune(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)
	s.mu.Lock()
	defer s.mu.Unlock()
	pruned := 0
	for key, entry := range s.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(s.limiters, key)
			pruned++
		}
	}
	return pruned
}
