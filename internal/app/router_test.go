package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/auth"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/observability"
)

func testRouter(cfg *Config) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(RouterParams{
		Logger:      logger,
		Config:      cfg,
		Metrics:     observability.NewMetrics(),
		AuthHandler: auth.NewHandler(logger, nil),
	})
}

func serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestHealthzIsPublic(t *testing.T) {
	rec := serve(testRouter(&Config{AppRequestTimeout: time.Second}), http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestMetricsExposeRequestCounter(t *testing.T) {
	router := testRouter(&Config{})
	serve(router, http.MethodGet, "/healthz")

	rec := serve(router, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "crm_http_requests_total")
}

func TestAPIRoutesRequireBearerToken(t *testing.T) {
	router := testRouter(&Config{})

	rec := serve(router, http.MethodGet, "/api/v1/auth/me")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUnmountedModuleIsNotFound(t *testing.T) {
	rec := serve(testRouter(&Config{}), http.MethodGet, "/api/v1/leads")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimitPerClient(t *testing.T) {
	router := testRouter(&Config{RateLimitPerMinute: 2})

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/healthz").Code)
	}
	rec := serve(router, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "json")
}
