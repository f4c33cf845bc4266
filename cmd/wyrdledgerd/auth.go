// ABOUTME: Handles PocketBase email/password authentication endpoints.
// ABOUTME: Issues JWT access tokens and single-use refresh tokens.
package main

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/pocketbase/pocketbase/core"
)

const (
	accessTokenTTL  = 24 * time.Hour
	refreshTokenTTL = 30 * 24 * time.Hour
)

// POST /v1/auth/pb/register.
type registerReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		fail(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req registerReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "invalid json")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Password = strings.TrimSpace(req.Password)
	if req.Email == "" || req.Password == "" {
		fail(w, http.StatusBadRequest, "email and password required")
		return
	}
	if len(req.Password) < 8 {
		fail(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	usersCol, err := s.app.FindCollectionByNameOrId("users")
	if err != nil {
		log.Printf("users collection not found: %v", err)
		fail(w, http.StatusInternalServerError, "auth not configured")
		return
	}

	if _, err := s.app.FindAuthRecordByEmail(usersCol, req.Email); err == nil {
		fail(w, http.StatusConflict, "email already registered")
		return
	}

	userRecord := core.NewRecord(usersCol)
	userRecord.Set("email", req.Email)
	userRecord.SetPassword(req.Password)
	userRecord.Set("verified", true)

	if err := s.app.Save(userRecord); err != nil {
		log.Printf("user creation error: %v", err)
		fail(w, http.StatusInternalServerError, "failed to create account")
		return
	}

	token, err := userRecord.NewStaticAuthToken(accessTokenTTL)
	if err != nil {
		fail(w, http.StatusInternalServerError, "failed to generate token")
		return
	}
	refreshToken := s.issueRefreshToken(userRecord.Id)

	//nolint:errchkjson // Response encoding errors are not recoverable.
	_ = json.NewEncoder(w).Encode(map[string]any{
		"user_id":       userRecord.Id,
		"token":         token,
		"refresh_token": refreshToken,
		"expires_unix":  time.Now().Add(accessTokenTTL).Unix(),
	})
}

// POST /v1/auth/pb/login.
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		fail(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req loginReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "invalid json")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Password = strings.TrimSpace(req.Password)
	if req.Email == "" || req.Password == "" {
		fail(w, http.StatusBadRequest, "email and password required")
		return
	}

	usersCol, err := s.app.FindCollectionByNameOrId("users")
	if err != nil {
		fail(w, http.StatusInternalServerError, "auth not configured")
		return
	}

	userRecord, err := s.app.FindAuthRecordByEmail(usersCol, req.Email)
	if err != nil {
		fail(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if !userRecord.ValidatePassword(req.Password) {
		fail(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	token, err := userRecord.NewStaticAuthToken(accessTokenTTL)
	if err != nil {
		fail(w, http.StatusInternalServerError, "failed to generate token")
		return
	}
	refreshToken := s.issueRefreshToken(userRecord.Id)

	//nolint:errchkjson // Response encoding errors are not recoverable.
	_ = json.NewEncoder(w).Encode(map[string]any{
		"user_id":       userRecord.Id,
		"token":         token,
		"refresh_token": refreshToken,
		"expires_unix":  time.Now().Add(accessTokenTTL).Unix(),
	})
}

// POST /v1/auth/pb/refresh.
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		fail(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req refreshReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.RefreshToken == "" {
		fail(w, http.StatusBadRequest, "refresh_token required")
		return
	}

	tokensCol, err := s.app.FindCollectionByNameOrId("refresh_tokens")
	if err != nil {
		fail(w, http.StatusInternalServerError, "auth not configured")
		return
	}

	tokenRecord, err := s.app.FindFirstRecordByFilter(tokensCol, "token_hash = {:hash}",
		map[string]any{"hash": hashRefreshToken(req.RefreshToken)})
	if err != nil {
		fail(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	if tokenRecord.GetDateTime("expires").Time().Before(time.Now()) {
		_ = s.app.Delete(tokenRecord)
		fail(w, http.StatusUnauthorized, "refresh token expired")
		return
	}

	userID := tokenRecord.GetString("user")
	usersCol, err := s.app.FindCollectionByNameOrId("users")
	if err != nil {
		fail(w, http.StatusInternalServerError, "auth not configured")
		return
	}
	userRecord, err := s.app.FindRecordById(usersCol, userID)
	if err != nil {
		fail(w, http.StatusUnauthorized, "user not found")
		return
	}

	// Single use: rotate the refresh token.
	if err := s.app.Delete(tokenRecord); err != nil {
		log.Printf("refresh token delete error: %v", err)
	}

	token, err := userRecord.NewStaticAuthToken(accessTokenTTL)
	if err != nil {
		fail(w, http.StatusInternalServerError, "failed to generate token")
		return
	}
	newRefreshToken := s.issueRefreshToken(userRecord.Id)

	//nolint:errchkjson // Response encoding errors are not recoverable.
	_ = json.NewEncoder(w).Encode(map[string]any{
		"user_id":       userRecord.Id,
		"token":         token,
		"refresh_token": newRefreshToken,
		"expires_unix":  time.Now().Add(accessTokenTTL).Unix(),
	})
}

// issueRefreshToken mints, stores, and returns a new refresh token for the
// user. Storage failures are logged; the access token still works.
func (s *Server) issueRefreshToken(userID string) string {
	refreshToken := randHex(32)
	tokensCol, err := s.app.FindCollectionByNameOrId("refresh_tokens")
	if err != nil {
		log.Printf("refresh_tokens collection not found: %v", err)
		return refreshToken
	}
	rec := core.NewRecord(tokensCol)
	rec.Set("user", userID)
	rec.Set("token_hash", hashRefreshToken(refreshToken))
	rec.Set("expires", time.Now().Add(refreshTokenTTL))
	if err := s.app.Save(rec); err != nil {
		log.Printf("refresh token save error: %v", err)
	}
	return refreshToken
}

// hashRefreshToken creates a SHA-256 hash of the refresh token for storage.
func hashRefreshToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
