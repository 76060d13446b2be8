package marketdata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/alim08/coin_ticker/pkg/logger"
	"github.com/alim08/coin_ticker/pkg/metrics"
	"github.com/alim08/coin_ticker/pkg/models"
	"go.uber.org/zap"
)

// maxBodySize caps how much of a response is read; a limit=2000 response is
// well under this.
const maxBodySize = 8 << 20

var ErrNetwork = errors.New("network error")

// StatusError is returned for any non-200 response.
type StatusError struct {
	Code   int
	Status string
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("API error: %s", e.Status)
	}
	return fmt.Sprintf("API error: %s - %s", e.Status, e.Body)
}

// Client fetches snapshot sets from a v1-style ticker endpoint.
type Client struct {
	httpClient *http.Client
	endpoint   string
	convert    string
	limit      int
	now        func() time.Time
}

type Option func(*Client)

// WithHTTPClient replaces the tuned default client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithClock sets the time source used to stamp FetchedAt.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New constructs a Client. A zero timeout means no client-side timeout;
// callers still bound each request through the context.
func New(endpoint, convert string, limit int, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     30 * time.Second,
			},
		},
		endpoint: endpoint,
		convert:  convert,
		limit:    limit,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL is the full request URL including the convert and limit parameters.
func (c *Client) URL() string {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return c.endpoint
	}
	q := u.Query()
	if c.convert != "" {
		q.Set("convert", c.convert)
	}
	if c.limit > 0 {
		q.Set("limit", strconv.Itoa(c.limit))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Key identifies the request parameters; identical keys share one fetch.
func (c *Client) Key() string {
	return c.URL()
}

// FetchSnapshots issues one GET and parses the body into a SnapshotSet.
func (c *Client) FetchSnapshots(ctx context.Context) (*models.SnapshotSet, error) {
	start := time.Now()
	defer func() { metrics.FetchLatency.Observe(time.Since(start).Seconds()) }()
	metrics.FetchCounter.Inc()

	reqURL := c.URL()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		metrics.FetchErrors.WithLabelValues("request").Inc()
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	logger.Log.Debug("requesting market data", zap.String("url", reqURL))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.FetchErrors.WithLabelValues("network").Inc()
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.FetchErrors.WithLabelValues("status").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status, Body: string(body)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		metrics.FetchErrors.WithLabelValues("network").Inc()
		return nil, fmt.Errorf("%w: body read: %v", ErrNetwork, err)
	}

	set, err := models.ParseSnapshotSet(body, c.now())
	if err != nil {
		metrics.FetchErrors.WithLabelValues("malformed").Inc()
		return nil, err
	}
	return set, nil
}
