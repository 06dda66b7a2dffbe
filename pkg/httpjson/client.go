package httpjson

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/eqtlab/whale-tracker/pkg/metrics"
)

// ErrDecodeBody is returned when an upstream answered 200 with a body that is not valid JSON for the target.
var ErrDecodeBody = errors.New("failed to parse response")

// StatusError is a non-200 answer from an upstream API.
type StatusError struct {
	URL    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s failed with status code %d: %s", e.URL, e.Status, e.Body)
}

func (e *StatusError) StatusCode() int { return e.Status }

// Client performs rate limited JSON GET requests against a single base url.
type Client struct {
	name    string
	baseURL string
	prefix  string
	headers http.Header
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

type Option func(*Client)

func WithHeader(key, value string) Option {
	return func(c *Client) { c.headers.Set(key, value) }
}

// WithRateLimit limits outgoing requests to rps per second. Zero or negative rps disables the limit.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithPathPrefix prepends a secret path segment, such as a telegram bot token, that is kept out of logs and errors.
func WithPathPrefix(prefix string) Option {
	return func(c *Client) { c.prefix = prefix }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func New(name, baseURL string, l *zap.Logger, opts ...Option) *Client {
	c := &Client{
		name:    name,
		baseURL: baseURL,
		headers: make(http.Header),
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  l,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get requests baseURL+endpoint with the given query and decodes the JSON body into out.
func (c *Client) Get(ctx context.Context, endpoint string, query url.Values, out any) (err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveUpstream(c.name, err)
		c.logger.Debug(
			"upstream request",
			zap.String("upstream", c.name),
			zap.String("endpoint", endpoint),
			zap.Duration("dur", time.Since(start)),
			zap.Error(err),
		)
	}()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter wait: %w", err)
		}
	}

	u := c.baseURL + c.prefix + endpoint
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	for k, vv := range c.headers {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return fmt.Errorf("%s%s: http request: %w", c.name, endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &StatusError{URL: c.name + endpoint, Status: resp.StatusCode, Body: string(body)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: %w: %v", c.name, ErrDecodeBody, err)
	}

	return nil
}
