package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redactyl/leaktrace/internal/retry"
)

func fastPolicy(attempts int) *retry.Policy {
	return retry.New(retry.Config{MaxAttempts: attempts, Base: time.Millisecond, Max: 2 * time.Millisecond}, nil)
}

func TestGet_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		assert.Equal(t, "yes", r.Header.Get("X-Extra"))
		_, _ = w.Write([]byte("hello"))
	}))
	defer srv.Close()

	c := New(srv.Client(), fastPolicy(1), time.Second, WithUserAgent("test-agent"), WithHeader("X-Extra", "yes"))
	resp, err := c.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(resp.Body))
}

func TestGet_StatusClassification(t *testing.T) {
	cases := []struct {
		code     int
		attempts int32
		check    func(t *testing.T, err error)
	}{
		{http.StatusTooManyRequests, 3, func(t *testing.T, err error) { assert.ErrorIs(t, err, retry.ErrRateLimited) }},
		{http.StatusForbidden, 3, func(t *testing.T, err error) { assert.ErrorIs(t, err, retry.ErrRateLimited) }},
		{http.StatusBadGateway, 3, func(t *testing.T, err error) { assert.ErrorIs(t, err, retry.ErrTransient) }},
		{http.StatusNotFound, 1, func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrNotFound) }},
		{http.StatusBadRequest, 1, func(t *testing.T, err error) {
			var se *StatusError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, http.StatusBadRequest, se.Code)
		}},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.code), func(t *testing.T) {
			var hits atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				w.WriteHeader(tc.code)
			}))
			defer srv.Close()

			_, err := New(srv.Client(), fastPolicy(3), time.Second).Get(context.Background(), srv.URL)
			require.Error(t, err)
			tc.check(t, err)
			assert.Equal(t, tc.attempts, hits.Load())
		})
	}
}

func TestGet_TimeoutIsTransient(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := New(srv.Client(), fastPolicy(2), 20*time.Millisecond).Get(context.Background(), srv.URL)
	assert.ErrorIs(t, err, retry.ErrTransient)
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 3*time.Second, parseRetryAfter("3"))
	assert.Zero(t, parseRetryAfter(""))
	assert.Zero(t, parseRetryAfter("soon"))
}
