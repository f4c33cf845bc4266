// ABOUTME: Background cleanup routines for expired refresh tokens and idle limiters.
// ABOUTME: Prevents unbounded growth of auth tables and the limiter maps.

package main

import (
	"context"
	"log"
	"time"
)

// CleanupStats tracks how many records were purged.
type CleanupStats struct {
	tokens   int
	limiters int
}

// cleanupExpired deletes expired refresh tokens and prunes idle rate
// limiters, returning counts.
func (s *Server) cleanupExpired(ctx context.Context) CleanupStats {
	var stats CleanupStats

	tokensCol, err := s.app.FindCollectionByNameOrId("refresh_tokens")
	if err == nil {
		expired, err := s.app.FindRecordsByFilter(tokensCol, "expires < {:now}", "", 0, 0,
			map[string]any{"now": time.Now()})
		if err != nil {
			log.Printf("cleanup tokens query error: %v", err)
		}
		for _, rec := range expired {
			if err := s.app.Delete(rec); err != nil {
				log.Printf("cleanup token delete error: %v", err)
				continue
			}
			stats.tokens++
		}
	}

	stats.limiters += s.limiters.prune(24 * time.Hour)
	stats.limiters += s.authLimiters.prune(24 * time.Hour)

	return stats
}

// startCleanupRoutine runs cleanup every hour in background.
func (s *Server) startCleanupRoutine(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := s.cleanupExpired(ctx)
				if stats.tokens > 0 || stats.limiters > 0 {
					log.Printf("cleanup: %d expired token(s), %d idle limiter(s)", stats.tokens, stats.limiters)
				}
			}
		}
	}()
}
