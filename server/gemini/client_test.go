package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testClient(t *testing.T, upstream http.HandlerFunc) (*Client, *[]time.Duration) {
	t.Helper()
	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)

	c := NewClient(Config{
		Endpoint:       srv.URL,
		APIKey:         "test-key",
		Model:          "gemini-2.5-flash",
		RequestTimeout: 5 * time.Second,
		Retry: RetryPolicy{
			MaxRetries:   5,
			InitialDelay: 12 * time.Second,
			MaxDelay:     2 * time.Minute,
			Jitter:       0.5,
		},
	}, zap.NewNop(), nil)

	// Capture backoff delays instead of sleeping
	var sleeps []time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	// Midpoint rng removes jitter: factor = 1-0.5+0.5*2*0.5 = 1.0
	c.rng = func() float64 { return 0.5 }

	return c, &sleeps
}

func TestGenerateContentSuccess(t *testing.T) {
	var gotBody generateRequest
	var gotKey string
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1beta/models/gemini-2.5-flash:generateContent", r.URL.Path)
		gotKey = r.Header.Get("x-goog-api-key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Hello"}]}}]}`))
	})

	raw, err := c.GenerateContent(context.Background(), "say hello")
	require.NoError(t, err)
	assert.Equal(t, "test-key", gotKey)

	require.Len(t, gotBody.Contents, 1)
	require.Len(t, gotBody.Contents[0].Parts, 1)
	assert.Equal(t, "say hello", gotBody.Contents[0].Parts[0].Text)

	out, err := Extract(raw)
	require.NoError(t, err)
	assert.Equal(t, "Hello", out.Result())
}

func TestGenerateContentRetriesOn429(t *testing.T) {
	var calls int32
	c, sleeps := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"finally"}]}}]}`))
	})

	raw, err := c.GenerateContent(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))

	// With midpoint jitter, delays follow the doubling schedule exactly
	require.Equal(t, []time.Duration{12 * time.Second, 24 * time.Second}, *sleeps)

	out, err := Extract(raw)
	require.NoError(t, err)
	assert.Equal(t, "finally", out.Result())
}

func TestGenerateContentQuotaExhausted(t *testing.T) {
	var calls int32
	c, sleeps := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.GenerateContent(context.Background(), "p")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrQuotaExhausted)

	// Initial attempt plus five retries
	assert.Equal(t, int32(6), atomic.LoadInt32(&calls))
	assert.Equal(t, []time.Duration{
		12 * time.Second,
		24 * time.Second,
		48 * time.Second,
		96 * time.Second,
		2 * time.Minute, // capped
	}, *sleeps)
}

func TestGenerateContentNoRetryOnOtherStatus(t *testing.T) {
	var calls int32
	c, sleeps := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.GenerateContent(context.Background(), "p")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Empty(t, *sleeps)
}

func TestGenerateContentTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	c := NewClient(Config{
		Endpoint: srv.URL,
		Model:    "gemini-2.5-flash",
		Retry:    RetryPolicy{MaxRetries: 5, InitialDelay: time.Second, MaxDelay: time.Minute, Jitter: 0.5},
	}, zap.NewNop(), nil)

	_, err := c.GenerateContent(context.Background(), "p")
	assert.ErrorIs(t, err, ErrTransport)
}

func TestGenerateContentCancelledDuringBackoff(t *testing.T) {
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	ctx, cancel := context.WithCancel(context.Background())
	c.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	_, err := c.GenerateContent(ctx, "p")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrQuotaExhausted)
}

func TestBackoffJitterBounds(t *testing.T) {
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {})

	// rng at the extremes scales the base delay by 0.5 and 1.5
	c.rng = func() float64 { return 0 }
	assert.Equal(t, 6*time.Second, c.backoffDelay(0))

	c.rng = func() float64 { return 1 }
	assert.Equal(t, 18*time.Second, c.backoffDelay(0))

	// Cap applies before jitter
	c.rng = func() float64 { return 0.5 }
	assert.Equal(t, 2*time.Minute, c.backoffDelay(10))
}
