// Package training wraps the training service's HTTP contract.
package training

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
)

// BackendName identifies this backend in errors and metrics.
const BackendName = "training"

// Client is the training service adapter.
type Client struct {
	http    *httputil.Client
	metrics *metrics.Metrics
}

// New creates a training adapter.
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

// Submission is a caller-supplied training session. It is validated before
// it reaches the gateway core and treated as an immutable value afterwards.
type Submission struct {
	TimeMinutes  float64 `json:"time_minutes"`
	DistanceKM   float64 `json:"distance_km"`
	Rhythm       float64 `json:"rhythm"`
	Date         string  `json:"date"`
	Altitude     float64 `json:"altitude"`
	TrainingType string  `json:"trainingType"`
	TerrainType  string  `json:"terrainType"`
	Weather      string  `json:"weather"`
	Notes        string  `json:"notes,omitempty"`
}

// Training is a persisted training record as echoed by the backend.
type Training struct {
	ID int64 `json:"id"`
	Submission
}

// WeeklyAggregate is the caller's rolling weekly activity, derived by the
// training service and never cached by the gateway.
type WeeklyAggregate struct {
	TotalKM        float64 `json:"totalKm"`
	TotalTrainings int     `json:"totalTrainings"`
	AvgRhythm      float64 `json:"avgRhythm"`
}

// Create persists a submission under the caller identified by the trust
// context in ctx and returns the assigned record.
func (c *Client) Create(ctx context.Context, sub Submission) (*Training, error) {
	resp, err := c.http.Post(ctx, "/trainings", sub)
	if err != nil {
		c.record("error")
		return nil, errors.UpstreamUnavailable(BackendName, err)
	}

	var out Training
	if err := c.http.DecodeResponse(resp, &out); err != nil {
		c.record("error")
		return nil, c.normalize(err)
	}

	c.record("ok")
	return &out, nil
}

// WeeklyAggregate reads the caller's current weekly aggregate. The training
// service guarantees read-after-write consistency for its own writes, so a
// read issued after Create reflects the created record.
func (c *Client) WeeklyAggregate(ctx context.Context) (*WeeklyAggregate, error) {
	resp, err := c.http.Get(ctx, "/trainings/weekly-distance/me", nil)
	if err != nil {
		c.record("error")
		return nil, errors.UpstreamUnavailable(BackendName, err)
	}

	var out WeeklyAggregate
	if err := c.http.DecodeResponse(resp, &out); err != nil {
		c.record("error")
		return nil, c.normalize(err)
	}

	c.record("ok")
	return &out, nil
}

// Get forwards a single training lookup.
func (c *Client) Get(ctx context.Context, trainingID string) (json.RawMessage, error) {
	return c.passthrough(c.http.Get(ctx, "/trainings/"+url.PathEscape(trainingID), nil))
}

// ListByUser forwards a lookup of one user's trainings.
func (c *Client) ListByUser(ctx context.Context, userID string) (json.RawMessage, error) {
	return c.passthrough(c.http.Get(ctx, "/trainings/user/"+url.PathEscape(userID), nil))
}

// WeeklyByUser forwards a lookup of one user's weekly distance.
func (c *Client) WeeklyByUser(ctx context.Context, userID string) (json.RawMessage, error) {
	return c.passthrough(c.http.Get(ctx, "/trainings/weekly-distance/"+url.PathEscape(userID), nil))
}

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
