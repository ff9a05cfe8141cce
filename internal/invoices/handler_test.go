package invoices

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/documents"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/rbac"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/shared"
)

type grants map[int64][]string

func (g grants) EffectivePermissions(_ context.Context, userID int64) ([]string, error) {
	return g[userID], nil
}

type stubRenderer struct{}

func (stubRenderer) Render(ctx context.Context, load documents.Loader) (documents.Rendered, error) {
	doc, err := load(ctx)
	if err != nil {
		return documents.Rendered{}, err
	}
	return documents.Rendered{Filename: doc.Filename(), PDF: []byte("%PDF-" + doc.Number)}, nil
}

func newTestRouter(t *testing.T) (http.Handler, *Service) {
	t.Helper()
	svc, _, _ := newTestService(t)
	svc.renderer = stubRenderer{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mw := rbac.Middleware{Service: grants{
		1: {shared.PermInvoicesView, shared.PermInvoicesCreate, shared.PermInvoicesEdit, shared.PermInvoicesExport},
		2: {shared.PermInvoicesView},
	}, Logger: logger}
	h := NewHandler(logger, svc, mw)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			var actor shared.Actor
			switch req.Header.Get("X-Test-User") {
			case "1":
				actor = admin
			case "2":
				actor = rep
			default:
				next.ServeHTTP(w, req)
				return
			}
			next.ServeHTTP(w, req.WithContext(shared.ContextWithActor(req.Context(), actor)))
		})
	})
	r.Route("/invoices", h.MountRoutes)
	return r, svc
}

func do(t *testing.T, h http.Handler, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerCreateAndShow(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := do(t, h, http.MethodPost, "/invoices", "1", `{"title":"Retainer","items":[{"name":"Consulting","quantity":"2","unit_price":"100","tax_rate":"10"}]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Success bool    `json:"success"`
		Data    Invoice `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.True(t, created.Success)
	assert.Equal(t, "INV-000001", created.Data.Number)
	assert.Equal(t, "220", created.Data.TotalAmount.String())

	rec = do(t, h, http.MethodGet, "/invoices/1", "1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandlerLookupNotFoundShape(t *testing.T) {
	h, svc := newTestRouter(t)
	_, err := svc.Create(context.Background(), admin, CreateRequest{Title: "hidden"})
	require.NoError(t, err)

	rec := do(t, h, http.MethodGet, "/invoices/1", "2", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"Invoice not found"}`, rec.Body.String())
}

func TestHandlerPermissions(t *testing.T) {
	h, _ := newTestRouter(t)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/invoices", "", "").Code)
	assert.Equal(t, http.StatusForbidden, do(t, h, http.MethodPost, "/invoices", "2", `{"title":"x"}`).Code)
	assert.Equal(t, http.StatusForbidden, do(t, h, http.MethodGet, "/invoices/export", "2", "").Code)
}

func TestHandlerMalformedBody(t *testing.T) {
	h, _ := newTestRouter(t)
	rec := do(t, h, http.MethodPost, "/invoices", "1", `{"title":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerPDFAndExport(t *testing.T) {
	h, svc := newTestRouter(t)
	_, err := svc.Create(context.Background(), admin, CreateRequest{Title: "x"})
	require.NoError(t, err)

	rec := do(t, h, http.MethodGet, "/invoices/1/pdf/download", "1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="INV-000001.pdf"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "%PDF-INV-000001", rec.Body.String())

	rec = do(t, h, http.MethodGet, "/invoices/1/pdf/preview", "1", "")
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Disposition"), "inline"))

	rec = do(t, h, http.MethodGet, "/invoices/export", "1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Body.String(), "INV-000001")
}
