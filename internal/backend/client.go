// Package backend is the client for the external processing API that does
// heavy audio analysis and video rendering.
//
// Every failure, whether transport, non-2xx status or undecodable body,
// surfaces as *ExternalBackendError so callers can fall back to local
// computation with a single errors.As check.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	PathBeatDetection = "/api/audio/beat-detection"
	PathKeyDetection  = "/api/audio/key-detection"
	PathRenderVideo   = "/api/video/render"
)

// ErrNotConfigured is wrapped when no base URL was set.
var ErrNotConfigured = errors.New("backend url not configured")

// ExternalBackendError wraps any failure talking to the backend.
type ExternalBackendError struct {
	Path   string
	Status int // 0 for transport errors
	Err    error
}

func (e *ExternalBackendError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("backend %s: status %d: %v", e.Path, e.Status, e.Err)
	}
	return fmt.Sprintf("backend %s: %v", e.Path, e.Err)
}

func (e *ExternalBackendError) Unwrap() error {
	return e.Err
}

// Client posts JSON requests to the backend.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Token   string
}

// NewClient creates a client with a request timeout.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
		Token:   token,
	}
}

// Configured reports whether requests can be sent at all.
func (c *Client) Configured() bool {
	return c != nil && c.BaseURL != ""
}

// Post sends req as JSON to path and decodes the response body into resp.
func (c *Client) Post(ctx context.Context, path string, req, resp any) error {
	fail := func(status int, err error) error {
		return &ExternalBackendError{Path: path, Status: status, Err: err}
	}
	if !c.Configured() {
		return fail(0, ErrNotConfigured)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fail(0, fmt.Errorf("marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fail(0, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.Token)
	}

	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	httpResp, err := hc.Do(httpReq)
	if err != nil {
		return fail(0, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		return fail(httpResp.StatusCode, fmt.Errorf("unexpected status: %s", strings.TrimSpace(string(snippet))))
	}

	if resp == nil {
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(httpResp.Body, 4<<20)).Decode(resp); err != nil {
		return fail(httpResp.StatusCode, fmt.Errorf("decode response: %w", err))
	}
	return nil
}
