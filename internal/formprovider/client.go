// Package formprovider is a minimal client for the form provider's REST
// API.  Only the form listing used by event pre-sync is implemented.
package formprovider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("formprovider: api key not configured")

// Config configures a Client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Form is one form as listed by the provider.
type Form struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

type listResponse struct {
	ResponseCode int    `json:"responseCode"`
	Message      string `json:"message"`
	Content      []Form `json:"content"`
}

// Client talks to the provider API.
type Client struct {
	cfg  Config
	http *http.Client
}

// New returns a Client.  A zero timeout defaults to ten seconds.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

// ListForms returns the account's forms.  Deleted forms are skipped.
func (c *Client) ListForms(ctx context.Context) ([]Form, error) {
	if c.cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	u := c.cfg.BaseURL + "/user/forms?" + url.Values{"apiKey": {c.cfg.APIKey}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list forms: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("list forms: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	var body listResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode forms: %w", err)
	}
	if body.ResponseCode != 0 && body.ResponseCode != http.StatusOK {
		return nil, fmt.Errorf("list forms: provider code %d: %s", body.ResponseCode, body.Message)
	}

	out := make([]Form, 0, len(body.Content))
	for _, f := range body.Content {
		if f.ID == "" || strings.EqualFold(f.Status, "DELETED") {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}
