package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/arbor-labs/arborsync/internal/core/domain"
	"github.com/arbor-labs/arborsync/internal/core/ports/driven"
)

const (
	// DefaultTimeout is the per-call HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRetries is the number of additional attempts after a failure.
	DefaultRetries = 3

	// DefaultRetryDelay is the base delay; attempt n waits base * 2^n.
	DefaultRetryDelay = time.Second

	// DefaultRate is the proactive request rate, matching the remote
	// API's published average limit of 3 requests per second.
	DefaultRate = 3
)

// Route selects how a logical request reaches the remote API.
type Route int

const (
	// RouteDirect issues the logical method and path against the base URL
	// (the same-origin development proxy).
	RouteDirect Route = iota

	// RouteEnvelope wraps the logical request in a POST body
	// {method, path, body} for the production serverless proxy.
	RouteEnvelope
)

// envelope is the wire form of a logical request under RouteEnvelope.
type envelope struct {
	Method string `json:"method"`
	Path   string `json:"path"`
	Body   any    `json:"body,omitempty"`
}

// ClientOptions configures the transport client. Zero values fall back to
// the defaults above.
type ClientOptions struct {
	BaseURL    string
	Route      Route
	Retries    int
	RetryDelay time.Duration
	Timeout    time.Duration
	// RequestsPerSecond tunes the proactive throttle; <= 0 uses DefaultRate.
	RequestsPerSecond float64
	// HTTPClient overrides the underlying client, mainly for tests.
	HTTPClient *http.Client
}

// Ensure Client implements the transport port.
var _ driven.Transport = (*Client)(nil)

// Client executes logical requests against the remote API with bounded
// retry, a per-call timeout and proactive rate limiting. It performs no
// caching and no queueing; those belong to higher layers.
//
// Retry policy and rate are adjustable at runtime (config hot-reload);
// in-flight calls finish under the policy they started with.
type Client struct {
	baseURL string
	route   Route
	limiter *rate.Limiter
	http    *http.Client

	mu         sync.Mutex
	retries    int
	retryDelay time.Duration
	timeout    time.Duration
}

// NewClient creates a transport client for the given options.
func NewClient(opts ClientOptions) *Client {
	if opts.Retries <= 0 {
		opts.Retries = DefaultRetries
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = DefaultRate
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		route:      opts.Route,
		retries:    opts.Retries,
		retryDelay: opts.RetryDelay,
		timeout:    opts.Timeout,
		limiter:    rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		http:       opts.HTTPClient,
	}
}

// SetRetryPolicy updates the retry count, backoff base and per-attempt
// timeout. Zero or negative delay/timeout values keep the current setting;
// retries may be lowered to zero but not below.
func (c *Client) SetRetryPolicy(retries int, retryDelay, timeout time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if retries >= 0 {
		c.retries = retries
	}
	if retryDelay > 0 {
		c.retryDelay = retryDelay
	}
	if timeout > 0 {
		c.timeout = timeout
	}
}

// SetRate updates the proactive request rate.
func (c *Client) SetRate(requestsPerSecond float64) {
	if requestsPerSecond > 0 {
		c.limiter.SetLimit(rate.Limit(requestsPerSecond))
	}
}

func (c *Client) retryPolicy() (int, time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.retries, c.retryDelay
}

func (c *Client) attemptTimeout() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timeout
}

// Execute performs one logical request, retrying on failure with exponential
// backoff. The final failure after exhausting retries is the last error
// observed. 4xx responses go through the same retry loop; callers that want
// an early exit can inspect the error between their own attempts.
func (c *Client) Execute(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	retries, retryDelay := c.retryPolicy()
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			delay := retryDelay * (1 << (attempt - 1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		res, err := c.do(ctx, method, path, body)
		if err == nil {
			return res, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// do performs a single attempt with its own timeout.
func (c *Client) do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.attemptTimeout())
	defer cancel()

	req, err := c.buildRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Connection refused, DNS failure, timeout: the API was never
		// reached. The offline queue keys off this sentinel.
		return nil, fmt.Errorf("%w: %v", domain.ErrUnreachable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", domain.ErrUnreachable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeAPIError(resp.StatusCode, data)
	}
	return json.RawMessage(data), nil
}

func (c *Client) buildRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var (
		httpMethod string
		url        string
		payload    any
	)
	switch c.route {
	case RouteEnvelope:
		httpMethod = http.MethodPost
		url = c.baseURL
		payload = envelope{Method: method, Path: path, Body: body}
	default:
		httpMethod = method
		url = c.baseURL + "/" + strings.TrimLeft(path, "/")
		payload = body
	}

	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, httpMethod, url, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// decodeAPIError parses a non-2xx body as {code, message}; if that fails the
// raw text (or a synthesized "HTTP <status>" message) is used instead.
func decodeAPIError(status int, body []byte) *APIError {
	var parsed struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && (parsed.Code != "" || parsed.Message != "") {
		return &APIError{StatusCode: status, Code: parsed.Code, Message: parsed.Message}
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = fmt.Sprintf("HTTP %d", status)
	}
	return &APIError{StatusCode: status, Message: msg}
}
