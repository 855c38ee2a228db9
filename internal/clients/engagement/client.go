// Package engagement wraps the engagement/analytics service's HTTP contract.
// All operations are pass-through; the gateway adds the internal service
// token and the caller's trust headers.
package engagement

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pacetrack/gateway/internal/errors"
	"github.com/pacetrack/gateway/internal/httputil"
	"github.com/pacetrack/gateway/internal/metrics"
)

// BackendName identifies this backend in errors and metrics.
const BackendName = "engagement"

// internalTokenHeader authenticates the gateway to the engagement service.
const internalTokenHeader = "x-internal-token"

// Client is the engagement service adapter.
type Client struct {
	http    *httputil.Client
	metrics *metrics.Metrics
}

// New creates an engagement adapter. internalToken is sent on every call.
func New(baseURL, internalToken string, timeout time.Duration, m *metrics.Metrics) *Client {
	var headers map[string]string
	if internalToken != "" {
		headers = map[string]string{internalTokenHeader: internalToken}
	}

	return &Client{
		http: httputil.NewClient(httputil.ClientConfig{
			BaseURL: baseURL,
			Backend: BackendName,
			Timeout: timeout,
			Headers: headers,
		}),
		metrics: m,
	}
}

// Page bounds a log listing.
type Page struct {
	Limit  int
	Offset int
}

func (p Page) query() url.Values {
	q := url.Values{}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Offset > 0 {
		q.Set("offset", strconv.Itoa(p.Offset))
	}
	return q
}

// CreateLog forwards an engagement log entry.
func (c *Client) CreateLog(ctx context.Context, body json.RawMessage) (json.RawMessage, error) {
	return c.passthrough(c.http.Post(ctx, "/api/engagement-logs", body))
}

// ListLogs forwards a paged listing of all engagement logs.
func (c *Client) ListLogs(ctx context.Context, page Page) (json.RawMessage, error) {
	return c.passthrough(c.http.Get(ctx, "/api/engagement-logs", page.query()))
}

// LogsByUser forwards a paged listing of one user's engagement logs.
func (c *Client) LogsByUser(ctx context.Context, userID string, page Page) (json.RawMessage, error) {
	return c.passthrough(c.http.Get(ctx, "/api/engagement-logs/user/"+url.PathEscape(userID), page.query()))
}

// StatsByUser forwards one user's engagement stats.
func (c *Client) StatsByUser(ctx context.Context, userID string) (json.RawMessage, error) {
	return c.passthrough(c.http.Get(ctx, "/api/engagement-logs/stats/user/"+url.PathEscape(userID), nil))
}

// StatsByViews forwards the by-views stats rollup.
func (c *Client) StatsByViews(ctx context.Context) (json.RawMessage, error) {
	return c.passthrough(c.http.Get(ctx, "/api/engagement-logs/stats/by/views", nil))
}

// AnalyticsByUser forwards one user's engagement analytics over a day range.
func (c *Client) AnalyticsByUser(ctx context.Context, userID string, days int) (json.RawMessage, error) {
	q := url.Values{}
	if days > 0 {
		q.Set("days", strconv.Itoa(days))
	}
	return c.passthrough(c.http.Get(ctx, "/api/engagement-logs/analytics/user/"+url.PathEscape(userID), q))
}

func (c *Client) passthrough(resp *http.Response, err error) (json.RawMessage, error) {
	if err != nil {
		c.record("error")
		return nil, errors.UpstreamUnavailable(BackendName, err)
	}

	var out json.RawMessage
	if err := c.http.DecodeResponse(resp, &out); err != nil {
		c.record("error")
		var use *httputil.UpstreamStatusError
		if stderrors.As(err, &use) && use.Status < 500 {
			return nil, errors.UpstreamRejected(BackendName, use.Status, use.Message)
		}
		return nil, errors.UpstreamUnavailable(BackendName, err)
	}

	c.record("ok")
	return out, nil
}

func (c *Client) record(outcome string) {
	if c.metrics != nil {
		c.metrics.RecordUpstreamCall(BackendName, outcome)
	}
}
