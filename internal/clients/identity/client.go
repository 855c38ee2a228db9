// Package identity wraps the identity service's HTTP contract: token
// validation, stats updates with badge grants, and the user-facing
// pass-through operations.
package identity

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/url"
	"time"

	"github.com/pacetrack/gateway/internal/errors"
	"github.com/pacetrack/gateway/internal/httputil"
	"github.com/pacetrack/gateway/internal/metrics"
	"github.com/pacetrack/gateway/internal/trust"
)

// BackendName identifies this backend in errors and metrics.
const BackendName = "identity"

// Client is the identity service adapter.
type Client struct {
	http    *httputil.Client
	metrics *metrics.Metrics
}

// New creates an identity adapter.
func New(baseURL string, timeout time.Duration, m *metrics.Metrics) *Client {
	return &Client{
		http: httputil.NewClient(httputil.ClientConfig{
			BaseURL: baseURL,
			Backend: BackendName,
			Timeout: timeout,
		}),
		metrics: m,
	}
}

// VerifiedUser is the identity carried by a successful token validation.
type VerifiedUser struct {
	ID     json.Number `json:"id"`
	RoleID json.Number `json:"rolesId"`
}

// validateResponse is the validate-token endpoint's shape. user is null for
// tokens the identity service does not recognize.
type validateResponse struct {
	User *VerifiedUser `json:"user"`
}

// ValidateToken exchanges a caller token for a verified identity. It returns
// (nil, nil) when the identity service answered but did not verify a user;
// any transport failure or non-2xx answer is AUTH_SERVICE_UNAVAILABLE, which
// callers must keep distinct from an invalid credential.
func (c *Client) ValidateToken(ctx context.Context, token string) (*VerifiedUser, error) {
	ctx = trust.NewContext(ctx, trust.Context{Token: token})

	resp, err := c.http.Get(ctx, "/users/validate/token", nil)
	if err != nil {
		c.record("error")
		return nil, errors.AuthServiceUnavailable(err)
	}

	var out validateResponse
	if err := c.http.DecodeResponse(resp, &out); err != nil {
		c.record("error")
		return nil, errors.AuthServiceUnavailable(err)
	}

	c.record("ok")
	return out.User, nil
}

// Badge is a badge grant returned by the identity service, passed through to
// the caller unmodified.
type Badge struct {
	ID          json.Number `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	IconURL     string      `json:"iconUrl,omitempty"`
	GrantedAt   string      `json:"grantedAt,omitempty"`
}

// TrainingStats is the aggregate pushed after a training submission.
type TrainingStats struct {
	Rhythm     float64 `json:"rhythm"`
	DistanceKM float64 `json:"distance_km"`
	TotalKM    float64 `json:"totalKm"`
}

type pushStatsResponse struct {
	Badges []Badge `json:"badges"`
}

// PushStats sends the caller's updated training stats so the identity
// service can advance its running counters and evaluate badge thresholds.
// It returns any newly granted badges. The caller id travels in the trust
// context already present in ctx.
func (c *Client) PushStats(ctx context.Context, stats TrainingStats) ([]Badge, error) {
	resp, err := c.http.Post(ctx, "/users/stats", stats)
	if err != nil {
		c.record("error")
		return nil, errors.UpstreamUnavailable(BackendName, err)
	}

	var out pushStatsResponse
	if err := c.http.DecodeResponse(resp, &out); err != nil {
		c.record("error")
		return nil, c.normalize(err)
	}

	c.record("ok")
	return out.Badges, nil
}

// CreateUser forwards a registration request.
func (c *Client) CreateUser(ctx context.Context, body json.RawMessage) (json.RawMessage, error) {
	return c.passthrough(c.http.Post(ctx, "/users", body))
}

// GetUser forwards a user lookup.
func (c *Client) GetUser(ctx context.Context, userID string) (json.RawMessage, error) {
	return c.passthrough(c.http.Get(ctx, "/users/"+url.PathEscape(userID), nil))
}

// UpdateUser forwards a partial user update.
func (c *Client) UpdateUser(ctx context.Context, userID string, body json.RawMessage) (json.RawMessage, error) {
	return c.passthrough(c.http.Patch(ctx, "/users/"+url.PathEscape(userID), body))
}

// Login forwards a credential login.
func (c *Client) Login(ctx context.Context, body json.RawMessage) (json.RawMessage, error) {
	return c.passthrough(c.http.Post(ctx, "/users/login", body))
}

// AddFriend forwards a friend request.
func (c *Client) AddFriend(ctx context.Context, friendID string) (json.RawMessage, error) {
	return c.passthrough(c.http.Post(ctx, "/users/friends/"+url.PathEscape(friendID), nil))
}

// ListFriends forwards the caller's friend list lookup.
func (c *Client) ListFriends(ctx context.Context) (json.RawMessage, error) {
	return c.passthrough(c.http.Get(ctx, "/users/friends", nil))
}

// ListEvents forwards the event catalogue lookup.
func (c *Client) ListEvents(ctx context.Context) (json.RawMessage, error) {
	return c.passthrough(c.http.Get(ctx, "/users/events", nil))
}

// ListBadges forwards the badge catalogue lookup.
func (c *Client) ListBadges(ctx context.Context) (json.RawMessage, error) {
	return c.passthrough(c.http.Get(ctx, "/users/badges", nil))
}

// UserBadges forwards a lookup of one user's granted badges.
func (c *Client) UserBadges(ctx context.Context, userID string) (json.RawMessage, error) {
	return c.passthrough(c.http.Get(ctx, "/users/badges/user/"+url.PathEscape(userID), nil))
}

// passthrough decodes a pass-through response body, normalizing failures
// into the taxonomy.
func (c *Client) passthrough(resp *http.Response, err error) (json.RawMessage, error) {
	if err != nil {
		c.record("error")
		return nil, errors.UpstreamUnavailable(BackendName, err)
	}

	var out json.RawMessage
	if err := c.http.DecodeResponse(resp, &out); err != nil {
		c.record("error")
		return nil, c.normalize(err)
	}

	c.record("ok")
	return out, nil
}

// normalize maps a decode failure into the taxonomy. Backend 4xx answers
// keep their status and message; everything else is a generic upstream
// failure.
func (c *Client) normalize(err error) error {
	var use *httputil.UpstreamStatusError
	if stderrors.As(err, &use) && use.Status < 500 {
		return errors.UpstreamRejected(BackendName, use.Status, use.Message)
	}
	return errors.UpstreamUnavailable(BackendName, err)
}

func (c *Client) record(outcome string) {
	if c.metrics != nil {
		c.metrics.RecordUpstreamCall(BackendName, outcome)
	}
}
