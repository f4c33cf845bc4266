// ABOUTME: Wyrdledgerd is the remote document store for wyrdledger clients.
// ABOUTME: Serves per-user collection partitions over PocketBase with auth and rate limiting.

package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/router"

	pbclient "github.com/stanyfernando/wyrdledger/internal/pocketbase"

	_ "github.com/stanyfernando/wyrdledger/cmd/wyrdledgerd/migrations" // Import migrations
)

// Server bundles state for wyrdledgerd handlers.
type Server struct {
	app          core.App
	accounts     pbclient.Client
	limiters     *rateLimiterStore // Per-user rate limiting for authenticated endpoints
	authLimiters *rateLimiterStore // Per-IP rate limiting for auth endpoints
}

func main() {
	app := pocketbase.New()

	srv := &Server{
		app:          app,
		accounts:     initAccountsClient(),
		limiters:     newRateLimiterStore(DefaultRateLimitConfig()),
		authLimiters: newRateLimiterStore(AuthRateLimitConfig()),
	}

	app.OnServe().BindFunc(func(se *core.ServeEvent) error {
		srv.registerRoutes(se.Router)
		return se.Next()
	})

	app.OnServe().BindFunc(func(se *core.ServeEvent) error {
		srv.startCleanupRoutine(context.Background())
		return se.Next()
	})

	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
}

func (s *Server) registerRoutes(r *router.Router[*core.RequestEvent]) {
	r.GET("/healthz", func(e *core.RequestEvent) error {
		return e.NoContent(http.StatusOK)
	})

	// Auth endpoints (with IP-based rate limiting)
	r.POST("/v1/auth/pb/register", s.wrapHandler(s.withIPRateLimit(s.handleRegister)))
	r.POST("/v1/auth/pb/login", s.wrapHandler(s.withIPRateLimit(s.handleLogin)))
	r.POST("/v1/auth/pb/refresh", s.wrapHandler(s.withIPRateLimit(s.handleRefresh)))

	// Partition endpoints (protected)
	r.GET("/v1/data", s.wrapHandler(s.withAuth(s.handlePullAll)))
	r.GET("/v1/data/names", s.wrapHandler(s.withAuth(s.handleListNames)))
	r.GET("/v1/data/health", s.wrapHandler(s.withAuth(s.handleHealth)))
	r.POST("/v1/data/batch", s.wrapHandler(s.withAuth(s.handleBatch)))
	r.PUT("/v1/data/collections/{name}", s.wrapHandler(s.withAuth(s.handlePutCollection)))
	r.DELETE("/v1/data/collections/{name}", s.wrapHandler(s.withAuth(s.handleDeleteCollection)))
}

// wrapHandler converts http.HandlerFunc to PocketBase RequestHandler.
func (s *Server) wrapHandler(h http.HandlerFunc) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		h(e.Response, e.Request)
		return nil
	}
}

// withIPRateLimit applies per-IP rate limiting for auth endpoints.
// This protects against brute-force attacks on unauthenticated endpoints.
func (s *Server) withIPRateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.authLimiters != nil {
			clientIP := getClientIP(r)
			limiter := s.authLimiters.get(clientIP)
			if !limiter.Allow() {
				fail(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
		}
		next(w, r)
	}
}

// auth middleware

type ctxUserIDKey struct{}

func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := s.authUser(r)
		if err != nil {
			fail(w, http.StatusUnauthorized, err.Error())
			return
		}

		if s.limiters != nil {
			limiter := s.limiters.get(userID)
			if !limiter.Allow() {
				fail(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
		}

		ctx := context.WithValue(r.Context(), ctxUserIDKey{}, userID)
		next(w, r.WithContext(ctx))
	}
}

func (s *Server) authUser(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	if h == "" || !strings.HasPrefix(h, "Bearer ") {
		return "", errors.New("missing bearer token")
	}
	raw := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	if raw == "" {
		return "", errors.New("missing bearer token")
	}

	userRecord, err := s.app.FindAuthRecordByToken(raw, "")
	if err != nil {
		return "", errors.New("invalid token")
	}
	return userRecord.Id, nil
}

func userIDFrom(r *http.Request) string {
	id, _ := r.Context().Value(ctxUserIDKey{}).(string)
	return id
}

// getClientIP extracts the client address, honoring X-Forwarded-For from a
// fronting proxy.
func getClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i >= 0 {
		host = host[:i]
	}
	return host
}

// helpers

func ok(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func fail(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(map[string]any{"error": msg}); err != nil {
		log.Printf("write error response: %v", err)
	}
}

func randHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func initAccountsClient() pbclient.Client {
	base := strings.TrimSpace(os.Getenv("ACCOUNTS_URL"))
	token := strings.TrimSpace(os.Getenv("ACCOUNTS_ADMIN_TOKEN"))
	if base == "" || token == "" {
		return pbclient.NoopClient{}
	}
	return &pbclient.HTTPClient{
		BaseURL: base,
		Token:   token,
	}
}
