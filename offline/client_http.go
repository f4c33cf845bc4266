package offline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Client performs partition RPCs against the remote document store. All state
// lives under the authenticated principal; the provider supplies the bearer
// token per call so sign-in changes take effect immediately.
type Client struct {
	cfg        SyncConfig
	hc         *http.Client
	principals PrincipalProvider
}

// NewClient builds a client with optional timeout override.
func NewClient(cfg SyncConfig, principals PrincipalProvider) *Client {
	return &Client{
		cfg:        cfg,
		hc:         &http.Client{Timeout: cfg.timeout()},
		principals: principals,
	}
}

// Configured reports whether the client can reach a remote store at all.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.BaseURL != ""
}

// Partition is one remote collection snapshot plus its server write time.
type Partition struct {
	Items     []json.RawMessage `json:"items"`
	UpdatedAt int64             `json:"updated_at"`
}

// PutCollection replaces the remote snapshot for name under the current
// principal. The server stamps the write time.
func (c *Client) PutCollection(ctx context.Context, name string, items []json.RawMessage) error {
	if items == nil {
		items = []json.RawMessage{}
	}
	body, err := json.Marshal(map[string]any{"items": items})
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, http.MethodPut, "/v1/data/collections/"+url.PathEscape(name), body)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	return classify(resp)
}

// PutBatch writes several snapshots in one all-or-nothing commit.
func (c *Client) PutBatch(ctx context.Context, collections map[string][]json.RawMessage) error {
	body, err := json.Marshal(map[string]any{"collections": collections})
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, http.MethodPost, "/v1/data/batch", body)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	return classify(resp)
}

// PullAll fetches every partition under the current principal.
func (c *Client) PullAll(ctx context.Context) (map[string]Partition, error) {
	resp, err := c.do(ctx, http.MethodGet, "/v1/data", nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if err := classify(resp); err != nil {
		return nil, err
	}
	var out struct {
		Partitions map[string]Partition `json:"partitions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out.Partitions, nil
}

// ListCollections returns the names of existing partitions.
func (c *Client) ListCollections(ctx context.Context) ([]string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/v1/data/names", nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if err := classify(resp); err != nil {
		return nil, err
	}
	var out struct {
		Names []string `json:"names"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out.Names, nil
}

// DeleteCollection removes one partition. Deleting an absent partition
// succeeds.
func (c *Client) DeleteCollection(ctx context.Context, name string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/v1/data/collections/"+url.PathEscape(name), nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	return classify(resp)
}

// HealthStatus reports the outcome of a reachability probe.
type HealthStatus struct {
	OK      bool
	Latency time.Duration
	Err     error
}

// Health probes the authenticated health endpoint. It never returns an error;
// failures are folded into the status so the monitor can treat every outcome
// uniformly.
func (c *Client) Health(ctx context.Context) HealthStatus {
	start := time.Now()
	resp, err := c.do(ctx, http.MethodGet, "/v1/data/health", nil)
	if err != nil {
		return HealthStatus{Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if err := classify(resp); err != nil {
		return HealthStatus{Err: err}
	}
	return HealthStatus{OK: true, Latency: time.Since(start)}
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	p, ok := c.principals.Principal()
	if !ok {
		return nil, ErrNoPrincipal
	}

	var rd *bytes.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkFailure, err)
	}
	return resp, nil
}

// classify maps an HTTP response to a sentinel error, draining the error body
// for detail when present.
func classify(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, errorMessage(resp))
	default:
		return fmt.Errorf("%w: %s", ErrServerError, errorMessage(resp))
	}
}

// errorMessage drains the server's error body; when the body carries no
// message, the HTTP status line stands in.
func errorMessage(resp *http.Response) string {
	var out struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.Error == "" {
		return resp.Status
	}
	return out.Error
}
