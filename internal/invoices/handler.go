package invoices

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/billing"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/documents"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/httpx"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/rbac"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/shared"
)

// Handler exposes /invoices endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds the handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers invoice routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermInvoicesView))
		r.Get("/", h.list)
		r.Get("/{id}", h.show)
		r.Get("/{id}/payments", h.listPayments)
		r.Get("/{id}/pdf/preview", h.pdf(false))
		r.Get("/{id}/pdf/download", h.pdf(true))
	})
	r.With(h.rbac.RequireAll(shared.PermInvoicesExport)).Get("/export", h.export)
	r.With(h.rbac.RequireAll(shared.PermInvoicesCreate)).Post("/", h.create)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermInvoicesEdit))
		r.Put("/{id}", h.update)
		r.Post("/{id}/items", h.addItem)
		r.Put("/items/{itemId}", h.updateItem)
		r.Delete("/items/{itemId}", h.removeItem)
		r.Post("/{id}/recalculate", h.recalculate)
	})
	r.With(h.rbac.RequireAll(shared.PermInvoicesSend)).Put("/{id}/send", h.send)
	r.With(h.rbac.RequireAll(shared.PermInvoicesPayment)).Post("/{id}/payments", h.recordPayment)
	r.With(h.rbac.RequireAll(shared.PermInvoicesDelete)).Delete("/{id}", h.delete)
}

func actorOf(r *http.Request) shared.Actor {
	actor, _ := shared.ActorFromContext(r.Context())
	return actor
}

func listFilters(r *http.Request) ListFilters {
	return ListFilters{
		Page:      httpx.QueryInt(r, "page", 1),
		Limit:     httpx.QueryInt(r, "limit", 20),
		Status:    httpx.QueryString(r, "status"),
		Search:    httpx.QueryString(r, "search"),
		CompanyID: httpx.QueryInt64(r, "company_id"),
		From:      httpx.QueryDate(r, "from"),
		To:        httpx.QueryDate(r, "to"),
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	out, meta, err := h.service.List(r.Context(), actorOf(r), listFilters(r))
	if err != nil {
		httpx.Fail(h.logger, w, r, "list invoices", err)
		return
	}
	httpx.Page(w, out, meta)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.Get(r.Context(), actorOf(r), id)
	if errors.Is(err, httpx.ErrNotFound) {
		httpx.NotFoundLookup(w, "Invoice not found")
		return
	}
	if err != nil {
		httpx.Fail(h.logger, w, r, "get invoice", err)
		return
	}
	httpx.OK(w, inv)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.Create(r.Context(), actorOf(r), req)
	if err != nil {
		httpx.Fail(h.logger, w, r, "create invoice", err)
		return
	}
	httpx.Created(w, inv)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req UpdateRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.Update(r.Context(), actorOf(r), id, req)
	if err != nil {
		httpx.Fail(h.logger, w, r, "update invoice", err)
		return
	}
	httpx.OK(w, inv)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), actorOf(r), id); err != nil {
		httpx.Fail(h.logger, w, r, "delete invoice", err)
		return
	}
	httpx.OK(w, map[string]int64{"id": id})
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in billing.ItemInput
	if err := httpx.Decode(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.AddItem(r.Context(), actorOf(r), id, in)
	if err != nil {
		httpx.Fail(h.logger, w, r, "add invoice item", err)
		return
	}
	httpx.Created(w, inv)
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := httpx.IDParam(r, "itemId")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in billing.ItemInput
	if err := httpx.Decode(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.UpdateItem(r.Context(), actorOf(r), itemID, in)
	if err != nil {
		httpx.Fail(h.logger, w, r, "update invoice item", err)
		return
	}
	httpx.OK(w, inv)
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := httpx.IDParam(r, "itemId")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.RemoveItem(r.Context(), actorOf(r), itemID)
	if err != nil {
		httpx.Fail(h.logger, w, r, "remove invoice item", err)
		return
	}
	httpx.OK(w, inv)
}

func (h *Handler) recalculate(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.Recalculate(r.Context(), actorOf(r), id)
	if err != nil {
		httpx.Fail(h.logger, w, r, "recalculate invoice", err)
		return
	}
	httpx.OK(w, inv)
}

func (h *Handler) send(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req SendRequest
	if r.ContentLength != 0 {
		if err := httpx.Decode(r, &req); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	inv, err := h.service.MarkSent(r.Context(), actorOf(r), id, req)
	if err != nil {
		httpx.Fail(h.logger, w, r, "send invoice", err)
		return
	}
	httpx.OK(w, inv)
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req PaymentRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.service.RecordPayment(r.Context(), actorOf(r), id, r.Header.Get("Idempotency-Key"), req)
	if err != nil {
		httpx.Fail(h.logger, w, r, "record payment", err)
		return
	}
	if res.Replayed {
		httpx.OK(w, res)
		return
	}
	httpx.Created(w, res)
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out, err := h.service.ListPayments(r.Context(), actorOf(r), id)
	if errors.Is(err, httpx.ErrNotFound) {
		httpx.NotFoundLookup(w, "Invoice not found")
		return
	}
	if err != nil {
		httpx.Fail(h.logger, w, r, "list payments", err)
		return
	}
	httpx.OK(w, out)
}

func (h *Handler) pdf(attachment bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := httpx.IDParam(r, "id")
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		out, err := h.service.RenderPDF(r.Context(), actorOf(r), id)
		if errors.Is(err, httpx.ErrNotFound) {
			httpx.NotFoundLookup(w, "Invoice not found")
			return
		}
		if err != nil {
			httpx.Fail(h.logger, w, r, "render invoice pdf", err)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", documents.ContentDisposition(out.Filename, attachment))
		w.Header().Set("Content-Length", strconv.Itoa(len(out.PDF)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(out.PDF)
	}
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	buf := &bytes.Buffer{}
	if err := h.service.ExportCSV(r.Context(), actorOf(r), listFilters(r), buf); err != nil {
		httpx.Fail(h.logger, w, r, "export invoices", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", documents.ContentDisposition("invoices-"+time.Now().Format("20060102")+".csv", true))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
