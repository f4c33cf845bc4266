// ABOUTME: Control-plane client for account standing and write-quota accounting.
// ABOUTME: The partition server gates writes on it and reports usage back.
package pocketbase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// ErrAccountNotFound reports that the control plane has no record for a user.
var ErrAccountNotFound = errors.New("account not found")

// AccountStatus is what the partition server needs to decide whether a write
// may land: account standing plus the write-quota position for the current
// billing period.
type AccountStatus struct {
	UserID     string
	Email      string
	Active     bool
	Plan       string
	WriteQuota int // writes allowed per period; 0 means unmetered
	WritesUsed int // writes consumed in the current period
}

// OverQuota reports whether the account has exhausted its metered writes.
func (a AccountStatus) OverQuota() bool {
	return a.WriteQuota > 0 && a.WritesUsed >= a.WriteQuota
}

// Client is the control-plane contract: ask before a write, report after.
type Client interface {
	Status(ctx context.Context, userID string) (AccountStatus, error)
	RecordWrites(ctx context.Context, userID string, writes int) error
}

// NoopClient is used when no control plane is configured: every account is
// active and unmetered.
type NoopClient struct{}

func (NoopClient) Status(ctx context.Context, userID string) (AccountStatus, error) {
	return AccountStatus{UserID: userID, Active: true}, nil
}

func (NoopClient) RecordWrites(ctx context.Context, userID string, writes int) error {
	return nil
}

// HTTPClient talks to the accounts service's partition-server API using an
// admin token.
type HTTPClient struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func (c *HTTPClient) httpClient() *http.Client {
	if c.Client != nil {
		return c.Client
	}
	return &http.Client{Timeout: 5 * time.Second}
}

func (c *HTTPClient) adminRequest(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	if c.BaseURL == "" || c.Token == "" {
		return nil, errors.New("accounts url/token required")
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	return c.httpClient().Do(req)
}

// Status fetches the account standing and quota position for one user.
func (c *HTTPClient) Status(ctx context.Context, userID string) (AccountStatus, error) {
	resp, err := c.adminRequest(ctx, http.MethodGet, "/api/wyrd/accounts/"+url.PathEscape(userID), nil)
	if err != nil {
		return AccountStatus{}, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode == http.StatusNotFound {
		return AccountStatus{}, ErrAccountNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return AccountStatus{}, fmt.Errorf("accounts: %s", resp.Status)
	}

	var doc struct {
		UserID     string `json:"user_id"`
		Email      string `json:"email"`
		Active     bool   `json:"active"`
		Plan       string `json:"plan"`
		WriteQuota int    `json:"write_quota"`
		WritesUsed int    `json:"writes_used"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return AccountStatus{}, err
	}
	return AccountStatus{
		UserID:     doc.UserID,
		Email:      doc.Email,
		Active:     doc.Active,
		Plan:       doc.Plan,
		WriteQuota: doc.WriteQuota,
		WritesUsed: doc.WritesUsed,
	}, nil
}

// RecordWrites reports completed partition writes against the user's quota.
func (c *HTTPClient) RecordWrites(ctx context.Context, userID string, writes int) error {
	if writes <= 0 {
		return nil
	}
	payload, err := json.Marshal(map[string]any{"writes": writes})
	if err != nil {
		return err
	}
	path := "/api/wyrd/accounts/" + url.PathEscape(userID) + "/usage"
	resp, err := c.adminRequest(ctx, http.MethodPost, path, payload)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("accounts usage: %s", resp.Status)
	}
	return nil
}
