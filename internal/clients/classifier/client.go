// Package classifier wraps the text-classification service's HTTP contract.
package classifier

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
const BackendName = "classifier"

// Client is the text-classification adapter.
type Client struct {
	http    *httputil.Client
	metrics *metrics.Metrics
}

// New creates a classifier adapter.
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

type classifyRequest struct {
	Question string `json:"question"`
	UserID   string `json:"userId"`
}

// Classify submits a question for classification on behalf of userID.
func (c *Client) Classify(ctx context.Context, question, userID string) (json.RawMessage, error) {
	return c.passthrough(c.http.Post(ctx, "/api/text-mining/classify", classifyRequest{
		Question: question,
		UserID:   userID,
	}))
}

// StatsByUser forwards one user's classification stats.
func (c *Client) StatsByUser(ctx context.Context, userID string) (json.RawMessage, error) {
	return c.passthrough(c.http.Get(ctx, "/api/text-mining/stats/"+url.PathEscape(userID), nil))
}

// WeeklyStatsByUser forwards one user's weekly classification stats.
func (c *Client) WeeklyStatsByUser(ctx context.Context, userID string, days int) (json.RawMessage, error) {
	q := url.Values{}
	if days > 0 {
		q.Set("days", strconv.Itoa(days))
	}
	return c.passthrough(c.http.Get(ctx, "/api/text-mining/stats/"+url.PathEscape(userID)+"/weekly", q))
}

// Categories forwards the category catalogue lookup.
func (c *Client) Categories(ctx context.Context) (json.RawMessage, error) {
	return c.passthrough(c.http.Get(ctx, "/api/text-mining/categories", nil))
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
