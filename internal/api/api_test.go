package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() *RetryConfig {
	return &RetryConfig{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: 2 * time.Millisecond}
}

func TestDoSetsHeadersQueryAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/thing", r.URL.Path)
		assert.Equal(t, "1m", r.URL.Query().Get("interval"))
		assert.Equal(t, "default", r.Header.Get("X-Default"))
		assert.Equal(t, "override", r.Header.Get("X-Req"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithHeader("X-Default", "default"))
	req := NewRequest(context.Background(), http.MethodPost, "/v1/thing").
		WithQuery("interval", "1m").
		WithHeader("X-Req", "override").
		WithBody(map[string]string{"a": "b"})
	resp, err := c.Do(req)
	require.NoError(t, err)

	var out struct{ OK bool }
	require.NoError(t, resp.Decode(&out))
	assert.True(t, out.OK)
}

func TestDoReturnsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewClient(WithBaseURL(srv.URL)).Do(NewRequest(context.Background(), http.MethodGet, "/missing"))
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, StatusCode(err))
}

func TestDoWithRetryRecoversFromServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	_, err := c.DoWithRetry(NewRequest(context.Background(), http.MethodGet, "/"), fastRetry())
	require.NoError(t, err)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestDoWithRetryStopsOnClientError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	_, err := c.DoWithRetry(NewRequest(context.Background(), http.MethodGet, "/"), fastRetry())
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, StatusCode(err))
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestDoWithRetryGivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewClient(WithBaseURL(srv.URL)).DoWithRetry(NewRequest(context.Background(), http.MethodGet, "/"), fastRetry())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 3 retry attempts failed")
	assert.Equal(t, http.StatusTooManyRequests, StatusCode(err))
}

func TestBackoffDoublesUpToMax(t *testing.T) {
	rc := &RetryConfig{MaxAttempts: 5, InitialWait: 100 * time.Millisecond, MaxWait: 350 * time.Millisecond}
	assert.Equal(t, 100*time.Millisecond, rc.backoff(1))
	assert.Equal(t, 200*time.Millisecond, rc.backoff(2))
	assert.Equal(t, 350*time.Millisecond, rc.backoff(3))
	assert.Equal(t, 350*time.Millisecond, rc.backoff(4))
}
