package runpod

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/imamik/podkeeper/internal/util/retry"
)

const (
	// DefaultRESTURL is the default RunPod REST API endpoint.
	DefaultRESTURL = "https://rest.runpod.io/v1"

	// DefaultGraphQLURL is the default RunPod GraphQL endpoint.
	DefaultGraphQLURL = "https://api.runpod.io/graphql"

	defaultUserAgent = "podkeeper"
	defaultTimeout   = 30 * time.Second
	maxBackoff       = 10 * time.Second
)

// StatusVia selects which API serves pod reads and lifecycle changes.
type StatusVia string

const (
	StatusViaREST    StatusVia = "rest"
	StatusViaGraphQL StatusVia = "graphql"
)

// ParseStatusVia parses "rest" or "graphql", case-insensitively.
func ParseStatusVia(s string) (StatusVia, error) {
	switch v := StatusVia(strings.ToLower(strings.TrimSpace(s))); v {
	case StatusViaREST, StatusViaGraphQL:
		return v, nil
	}
	return "", fmt.Errorf("expected %q or %q, got %q", StatusViaREST, StatusViaGraphQL, s)
}

// Client talks to the RunPod REST and GraphQL APIs.
type Client struct {
	apiKey     string
	restURL    string
	graphqlURL string
	userAgent  string
	statusVia  StatusVia
	resumeGPUs int

	httpClient   *http.Client
	maxRetries   int
	initialDelay time.Duration

	logger  logr.Logger
	metrics *Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient = &http.Client{Timeout: d}
	}
}

// WithEndpoints overrides the REST and GraphQL endpoints (for testing).
// Empty values keep the current endpoint.
func WithEndpoints(restURL, graphqlURL string) Option {
	return func(c *Client) {
		if restURL != "" {
			c.restURL = strings.TrimRight(restURL, "/")
		}
		if graphqlURL != "" {
			c.graphqlURL = graphqlURL
		}
	}
}

// WithRetry sets how often idempotent calls are retried and the first
// backoff delay. Delays double up to 10s.
func WithRetry(maxRetries int, initialDelay time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.initialDelay = initialDelay
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithStatusVia routes pod reads and lifecycle changes through the given API.
func WithStatusVia(v StatusVia) Option {
	return func(c *Client) {
		c.statusVia = v
	}
}

// WithResumeGPUCount sets the GPU count sent with GraphQL resume requests.
func WithResumeGPUCount(n int) Option {
	return func(c *Client) {
		c.resumeGPUs = n
	}
}

// WithLogger sets the logger used when the request context carries none.
func WithLogger(l logr.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithMetrics records call outcomes.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient creates a new RunPod client authenticating with apiKey.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:       apiKey,
		restURL:      DefaultRESTURL,
		graphqlURL:   DefaultGraphQLURL,
		userAgent:    defaultUserAgent,
		statusVia:    StatusViaREST,
		resumeGPUs:   1,
		httpClient:   &http.Client{Timeout: defaultTimeout},
		maxRetries:   3,
		initialDelay: 500 * time.Millisecond,
		logger:       logr.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) log(ctx context.Context) logr.Logger {
	if l, err := logr.FromContext(ctx); err == nil {
		return l
	}
	return c.logger
}

// call runs fn with retries and records metrics under op.
func (c *Client) call(ctx context.Context, op string, retryIf func(error) bool, fn func() error) error {
	start := time.Now()
	err := retry.WithExponentialBackoff(ctx, fn,
		retry.WithMaxRetries(c.maxRetries),
		retry.WithInitialDelay(c.initialDelay),
		retry.WithMaxDelay(maxBackoff),
		retry.WithRetryIf(retryIf),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			c.log(ctx).V(1).Info("retrying RunPod API call",
				"operation", op, "attempt", attempt, "delay", delay.String(), "error", err.Error())
		}),
	)
	c.metrics.observe(op, err, time.Since(start))
	return err
}

// send performs one HTTP exchange and returns the response body. Non-2xx
// responses become *APIError.
func (c *Client) send(ctx context.Context, op, method, url string, in any) ([]byte, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("runpod %s: encode request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("runpod %s: create request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransportError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransportError{Op: op, Err: err}
	}

	c.log(ctx).V(2).Info("RunPod API response", "operation", op, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Op: op, StatusCode: resp.StatusCode, Body: string(data)}
	}
	return data, nil
}

// sendJSON is send followed by decoding the body into out. An empty body
// leaves out untouched.
func (c *Client) sendJSON(ctx context.Context, op, method, url string, in, out any) error {
	data, err := c.send(ctx, op, method, url, in)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &TransportError{Op: op, Err: err, decode: true}
	}
	return nil
}
