package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/api/v1/invoices")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/invoices", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t, metrics)
	assert.Contains(t, body, `crm_http_requests_total{code="418",route="/api/v1/invoices"} 1`)
	assert.Contains(t, body, `crm_http_request_duration_seconds_bucket{route="/api/v1/invoices"`)
}

func TestDocumentEventCounter(t *testing.T) {
	metrics := NewMetrics()
	metrics.DocumentEvent("invoice", "paid")
	metrics.DocumentEvent("invoice", "paid")

	assert.Contains(t, scrape(t, metrics), `crm_document_events_total{doc_type="invoice",event="paid"} 2`)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var metrics *Metrics
	metrics.DocumentEvent("quotation", "sent")

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
