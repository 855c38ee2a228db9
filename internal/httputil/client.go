// Package httputil provides the HTTP client and response helpers shared by
// the backend adapters and the edge router.
package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pacetrack/gateway/internal/trust"
)

// Client is the typed HTTP client the backend adapters share. It propagates
// the request's trust context (token, caller id, role id) as internal
// headers on every downstream call and is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	backend    string
	headers    map[string]string
}

// ClientConfig configures a backend client.
type ClientConfig struct {
	// BaseURL is the backend's root URL.
	BaseURL string

	// Backend names the backend in errors and metrics.
	Backend string

	// Timeout bounds each call. Defaults to 10s.
	Timeout time.Duration

	// Headers are static headers attached to every call, e.g. an internal
	// service token.
	Headers map[string]string
}

// NewClient creates a backend client.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		backend:    cfg.Backend,
		headers:    cfg.Headers,
	}
}

// Backend returns the backend name this client targets.
func (c *Client) Backend() string {
	return c.backend
}

// Do executes a JSON request against the backend. The trust context in ctx,
// when present, is propagated as the gateway's internal headers.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body interface{}) (*http.Response, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	if tc, ok := trust.FromContext(ctx); ok {
		if tc.Token != "" {
			req.Header.Set(trust.TokenHeader, tc.Token)
		}
		if tc.CallerID != "" {
			req.Header.Set(trust.UserIDHeader, tc.CallerID)
		}
		if tc.RoleID != "" {
			req.Header.Set(trust.RoleIDHeader, tc.RoleID)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	return resp, nil
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*http.Response, error) {
	return c.Do(ctx, http.MethodGet, path, query, nil)
}

// Post performs a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body interface{}) (*http.Response, error) {
	return c.Do(ctx, http.MethodPost, path, nil, body)
}

// Patch performs a PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body interface{}) (*http.Response, error) {
	return c.Do(ctx, http.MethodPatch, path, nil, body)
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) (*http.Response, error) {
	return c.Do(ctx, http.MethodDelete, path, nil, nil)
}

// UpstreamStatusError reports a non-2xx backend response. Message is a
// best-effort extract from a structured error body; it is empty when the
// backend failed without one, which callers must treat as a first-class
// case.
type UpstreamStatusError struct {
	Backend string
	Status  int
	Message string
}

// Error implements the error interface.
func (e *UpstreamStatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s returned status %d: %s", e.Backend, e.Status, e.Message)
	}
	return fmt.Sprintf("%s returned status %d", e.Backend, e.Status)
}

// upstreamErrorBody matches the common error shapes the backends produce.
// Backends are inconsistent; any field may be absent.
type upstreamErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// DecodeResponse decodes a JSON response into target. Non-2xx responses
// become an *UpstreamStatusError regardless of whether the backend produced
// a structured body.
func (c *Client) DecodeResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		var parsed upstreamErrorBody
		// A failed backend may answer with HTML, an empty body or plain
		// text; an unparseable body is expected here, not an error.
		_ = json.Unmarshal(body, &parsed)
		msg := parsed.Error
		if msg == "" {
			msg = parsed.Message
		}
		return &UpstreamStatusError{Backend: c.backend, Status: resp.StatusCode, Message: msg}
	}

	if target == nil {
		return nil
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", c.backend, err)
	}
	return nil
}
