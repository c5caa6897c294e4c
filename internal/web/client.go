// Package web fetches pages and API documents through the shared retry
// policy and maps HTTP statuses onto the retry classification.
package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/redactyl/leaktrace/internal/retry"
)

// DefaultUserAgent mimics a desktop browser; several profile sites refuse
// obvious bot agents.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

const maxBody = 8 << 20

// ErrNotFound matches 404 and 410 replies.
var ErrNotFound = errors.New("not found")

// StatusError is a non-2xx reply.
type StatusError struct {
	URL        string
	Code       int
	retryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d", e.URL, e.Code)
}

// RetryAfter is the server-suggested wait, zero when absent.
func (e *StatusError) RetryAfter() time.Duration { return e.retryAfter }

// Response is a fully read reply body with its headers.
type Response struct {
	Body   []byte
	Header http.Header
}

// Client performs GET requests with a per-request timeout.
type Client struct {
	http      *http.Client
	policy    *retry.Policy
	userAgent string
	timeout   time.Duration
	headers   map[string]string
}

// Option customizes a Client.
type Option func(*Client)

// WithHeader adds a header to every request.
func WithHeader(k, v string) Option {
	return func(c *Client) { c.headers[k] = v }
}

// WithUserAgent overrides DefaultUserAgent.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// New builds a client. hc may be nil, policy may be nil (single attempt).
func New(hc *http.Client, policy *retry.Policy, timeout time.Duration, opts ...Option) *Client {
	if hc == nil {
		hc = &http.Client{}
	}
	if policy == nil {
		policy = retry.New(retry.Config{MaxAttempts: 1}, nil)
	}
	c := &Client{http: hc, policy: policy, userAgent: DefaultUserAgent, timeout: timeout, headers: map[string]string{}}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Get fetches url, retrying transient and rate-limit replies through the
// policy. Rate limits (403/429) match retry.ErrRateLimited, 5xx and timeouts
// match retry.ErrTransient, 404/410 match ErrNotFound.
func (c *Client) Get(ctx context.Context, url string) (Response, error) {
	var out Response
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		r, err := c.once(ctx, url)
		if err != nil {
			return err
		}
		out = r
		return nil
	})
	return out, err
}

func (c *Client) once(ctx context.Context, url string) (Response, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Response{}, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		// connection resets and per-request deadlines alike
		return Response{}, retry.Transient(err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
		if err != nil {
			return Response{}, retry.Transient(fmt.Errorf("reading %s: %w", url, err))
		}
		return Response{Body: body, Header: resp.Header}, nil
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
	return Response{Header: resp.Header}, classify(url, resp)
}

func classify(url string, resp *http.Response) error {
	se := &StatusError{URL: url, Code: resp.StatusCode, retryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return retry.RateLimited(se)
	case resp.StatusCode == http.StatusForbidden:
		// GitHub signals an exhausted budget with 403; other hosts use it for
		// plain access denial, which retrying will not fix either way.
		return retry.RateLimited(se)
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusGone:
		return errors.Join(ErrNotFound, se)
	case resp.StatusCode >= 500:
		return retry.Transient(se)
	default:
		return se
	}
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
