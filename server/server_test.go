package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nlowel/scribe/config"
	"github.com/nlowel/scribe/server/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testRouter(t *testing.T, process http.Handler, queueCfg config.QueueConfig) *Router {
	t.Helper()
	return NewRouter(RouterConfig{
		Process: process,
		Metrics: metrics.NewMetrics(),
		Logger:  zap.NewNop(),
		Queue:   queueCfg,
	})
}

func TestRouterRoutes(t *testing.T) {
	process := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"result":"done"}`))
	})
	router := testRouter(t, process, config.QueueConfig{})

	t.Run("process endpoint", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/research/process",
			strings.NewReader(`{"content":"x","operation":"summarize"}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
		assert.NotEmpty(t, rec.Header().Get("X-Response-Time"))
	})

	t.Run("health endpoint", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	})

	t.Run("metrics endpoint", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "scribe_http_requests_total")
	})

	t.Run("unknown route", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("process rejects GET", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/research/process", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestRouterPanicRecovery(t *testing.T) {
	process := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("handler blew up")
	})
	router := testRouter(t, process, config.QueueConfig{})

	req := httptest.NewRequest(http.MethodPost, "/api/research/process", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRouterWithQueue(t *testing.T) {
	process := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router := testRouter(t, process, config.QueueConfig{
		Enabled:     true,
		InitialSize: 10,
	})
	require.NotNil(t, router.queue)

	req := httptest.NewRequest(http.MethodPost, "/api/research/process", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Health stays outside the queue
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
