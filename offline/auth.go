// ABOUTME: PocketBase email/password authentication for sync clients.
// ABOUTME: Handles register, login, and token refresh against the sync server.
package offline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// AuthClient handles PocketBase-based authentication against the sync
// server. The result of a login feeds a PrincipalProvider.
type AuthClient struct {
	baseURL string
	hc      *http.Client
}

// NewAuthClient constructs an AuthClient for the given server URL.
func NewAuthClient(baseURL string) *AuthClient {
	baseURL = strings.TrimSuffix(baseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return &AuthClient{
		baseURL: baseURL,
		hc:      &http.Client{Timeout: 30 * time.Second},
	}
}

// AuthToken is an access token with expiration.
type AuthToken struct {
	Token   string
	Expires time.Time
}

// LoginResult contains the response from login or registration.
type LoginResult struct {
	UserID       string
	Token        AuthToken
	RefreshToken string
}

// RefreshResult contains the response from token refresh.
type RefreshResult struct {
	Token        AuthToken
	RefreshToken string
}

// Register creates a new user account with email/password.
func (c *AuthClient) Register(ctx context.Context, email, password string) (LoginResult, error) {
	email = strings.TrimSpace(email)
	password = strings.TrimSpace(password)
	if email == "" || password == "" {
		return LoginResult{}, errors.New("email and password required")
	}
	return c.authRequest(ctx, "/v1/auth/pb/register", map[string]string{
		"email":    email,
		"password": password,
	})
}

// Login authenticates with email/password and returns tokens.
func (c *AuthClient) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = strings.TrimSpace(email)
	password = strings.TrimSpace(password)
	if email == "" || password == "" {
		return LoginResult{}, errors.New("email and password required")
	}
	return c.authRequest(ctx, "/v1/auth/pb/login", map[string]string{
		"email":    email,
		"password": password,
	})
}

// Refresh exchanges a refresh token for a new access token.
func (c *AuthClient) Refresh(ctx context.Context, refreshToken string) (RefreshResult, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return RefreshResult{}, errors.New("refresh token required")
	}

	res, err := c.authRequest(ctx, "/v1/auth/pb/refresh", map[string]string{
		"refresh_token": refreshToken,
	})
	if err != nil {
		return RefreshResult{}, err
	}
	return RefreshResult{Token: res.Token, RefreshToken: res.RefreshToken}, nil
}

func (c *AuthClient) authRequest(ctx context.Context, path string, payload map[string]string) (LoginResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return LoginResult{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return LoginResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return LoginResult{}, fmt.Errorf("%w: %v", ErrNetworkFailure, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return LoginResult{}, fmt.Errorf("auth failed: %s", errorMessage(resp))
	}

	var out struct {
		UserID       string `json:"user_id"`
		Token        string `json:"token"`
		ExpiresUnix  int64  `json:"expires_unix"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return LoginResult{}, err
	}

	return LoginResult{
		UserID: out.UserID,
		Token: AuthToken{
			Token:   out.Token,
			Expires: time.Unix(out.ExpiresUnix, 0).UTC(),
		},
		RefreshToken: out.RefreshToken,
	}, nil
}
