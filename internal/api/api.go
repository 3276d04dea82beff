// Package api is the JSON-over-HTTP client behind the Yahoo, Gemini and Claude adapters.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"llm-fx-advisor/internal/logger"
)

type Client struct {
	http    *http.Client
	baseURL string
	headers http.Header
	verbose bool
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithBaseURL is prefixed to every request path.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

func WithHeader(key, value string) Option {
	return func(c *Client) { c.headers.Set(key, value) }
}

func WithHeaders(h map[string]string) Option {
	return func(c *Client) {
		for k, v := range h {
			c.headers.Set(k, v)
		}
	}
}

// WithLogging logs each exchange at debug and failures at warn.
func WithLogging(enabled bool) Option {
	return func(c *Client) { c.verbose = enabled }
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{Timeout: 30 * time.Second},
		headers: http.Header{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

// Request is one call. Body, when set, is sent as JSON.
type Request struct {
	ctx    context.Context
	method string
	path   string
	query  url.Values
	header http.Header
	body   any
}

func NewRequest(ctx context.Context, method, path string) *Request {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Request{ctx: ctx, method: method, path: path, query: url.Values{}, header: http.Header{}}
}

func (r *Request) WithQuery(key, value string) *Request {
	r.query.Set(key, value)
	return r
}

func (r *Request) WithHeader(key, value string) *Request {
	r.header.Set(key, value)
	return r
}

func (r *Request) WithBody(v any) *Request {
	r.body = v
	return r
}

type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// StatusError is a 4xx or 5xx reply. Body is kept short for logs and session errors.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether a retry can help: 429 and 5xx.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// StatusCode is the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

func (c *Client) Do(req *Request) (*Response, error) {
	target := c.baseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		b, err := json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	hreq, err := http.NewRequestWithContext(req.ctx, req.method, target, body)
	if err != nil {
		return nil, err
	}
	for k, vs := range c.headers {
		hreq.Header[k] = vs
	}
	for k, vs := range req.header {
		hreq.Header[k] = vs
	}
	if body != nil && hreq.Header.Get("Content-Type") == "" {
		hreq.Header.Set("Content-Type", "application/json")
	}

	// only the path is logged: query strings can carry keys
	start := time.Now()
	hresp, err := c.http.Do(hreq)
	if err != nil {
		c.warn(req.ctx, "HTTP request failed", "method", req.method, "path", req.path, "error", err)
		return nil, fmt.Errorf("%s %s: %w", req.method, req.path, err)
	}
	defer hresp.Body.Close()

	raw, err := io.ReadAll(hresp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if c.verbose {
		logger.Debug(req.ctx, "HTTP exchange",
			"method", req.method,
			"path", req.path,
			"status", hresp.StatusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"bytes", len(raw),
		)
	}

	if hresp.StatusCode >= 400 {
		c.warn(req.ctx, "HTTP error status", "method", req.method, "path", req.path, "status", hresp.StatusCode)
		return nil, &StatusError{StatusCode: hresp.StatusCode, Body: clip(string(raw), 200)}
	}
	return &Response{StatusCode: hresp.StatusCode, Header: hresp.Header, Body: raw}, nil
}

func (c *Client) warn(ctx context.Context, msg string, args ...any) {
	if c.verbose {
		logger.Warn(ctx, msg, args...)
	}
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// RetryConfig bounds DoWithRetry: MaxAttempts calls, waits doubling from InitialWait up to MaxWait.
type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
}

func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{MaxAttempts: 3, InitialWait: 500 * time.Millisecond, MaxWait: 4 * time.Second}
}

// backoff is the wait after the given failed attempt (1-based).
func (rc *RetryConfig) backoff(attempt int) time.Duration {
	d := rc.InitialWait
	for i := 1; i < attempt && d < rc.MaxWait; i++ {
		d *= 2
	}
	if rc.MaxWait > 0 && d > rc.MaxWait {
		d = rc.MaxWait
	}
	return d
}

// DoWithRetry retries transport errors, 429 and 5xx. Other client errors return at once,
// and a cancelled context ends the wait.
func (c *Client) DoWithRetry(req *Request, rc *RetryConfig) (*Response, error) {
	if rc == nil {
		rc = DefaultRetryConfig()
	}
	attempts := max(rc.MaxAttempts, 1)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := c.Do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		var se *StatusError
		if errors.As(err, &se) && !se.Temporary() {
			return nil, err
		}
		if attempt == attempts {
			break
		}

		wait := rc.backoff(attempt)
		c.warn(req.ctx, "Retrying request", "path", req.path, "attempt", attempt, "wait", wait, "error", err)
		t := time.NewTimer(wait)
		select {
		case <-req.ctx.Done():
			t.Stop()
			return nil, fmt.Errorf("retry aborted: %w", req.ctx.Err())
		case <-t.C:
		}
	}
	return nil, fmt.Errorf("all %d retry attempts failed: %w", attempts, lastErr)
}
