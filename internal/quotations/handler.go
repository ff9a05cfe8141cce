package quotations

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/billing"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/documents"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/httpx"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/rbac"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/shared"
)

// Handler exposes /quotations endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds the handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers quotation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermQuotationsView))
		r.Get("/", h.list)
		r.Get("/{id}", h.show)
		r.Get("/{id}/pdf/preview", h.pdf(false))
		r.Get("/{id}/pdf/download", h.pdf(true))
	})
	r.With(h.rbac.RequireAll(shared.PermQuotationsCreate)).Post("/", h.create)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermQuotationsEdit))
		r.Put("/{id}", h.update)
		r.Post("/{id}/items", h.addItem)
		r.Put("/items/{itemId}", h.updateItem)
		r.Delete("/items/{itemId}", h.removeItem)
		r.Post("/{id}/recalculate", h.recalculate)
	})
	r.With(h.rbac.RequireAll(shared.PermQuotationsSend)).Put("/{id}/send", h.send)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermQuotationsApprove))
		r.Put("/{id}/accept", h.accept)
		r.Put("/{id}/reject", h.reject)
	})
	r.With(h.rbac.RequireAll(shared.PermQuotationsConvert, shared.PermInvoicesCreate)).Post("/{id}/generate-invoice", h.generateInvoice)
	r.With(h.rbac.RequireAll(shared.PermQuotationsDelete)).Delete("/{id}", h.delete)
}

func actorOf(r *http.Request) shared.Actor {
	actor, _ := shared.ActorFromContext(r.Context())
	return actor
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	out, meta, err := h.service.List(r.Context(), actorOf(r), ListFilters{
		Page:      httpx.QueryInt(r, "page", 1),
		Limit:     httpx.QueryInt(r, "limit", 20),
		Status:    httpx.QueryString(r, "status"),
		Search:    httpx.QueryString(r, "search"),
		CompanyID: httpx.QueryInt64(r, "company_id"),
		From:      httpx.QueryDate(r, "from"),
		To:        httpx.QueryDate(r, "to"),
	})
	if err != nil {
		httpx.Fail(h.logger, w, r, "list quotations", err)
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
	q, err := h.service.Get(r.Context(), actorOf(r), id)
	if errors.Is(err, httpx.ErrNotFound) {
		httpx.NotFoundLookup(w, "Quotation not found")
		return
	}
	if err != nil {
		httpx.Fail(h.logger, w, r, "get quotation", err)
		return
	}
	httpx.OK(w, q)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	q, err := h.service.Create(r.Context(), actorOf(r), req)
	if err != nil {
		httpx.Fail(h.logger, w, r, "create quotation", err)
		return
	}
	httpx.Created(w, q)
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
	q, err := h.service.Update(r.Context(), actorOf(r), id, req)
	if err != nil {
		httpx.Fail(h.logger, w, r, "update quotation", err)
		return
	}
	httpx.OK(w, q)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), actorOf(r), id); err != nil {
		httpx.Fail(h.logger, w, r, "delete quotation", err)
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
	q, err := h.service.AddItem(r.Context(), actorOf(r), id, in)
	if err != nil {
		httpx.Fail(h.logger, w, r, "add quotation item", err)
		return
	}
	httpx.Created(w, q)
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
	q, err := h.service.UpdateItem(r.Context(), actorOf(r), itemID, in)
	if err != nil {
		httpx.Fail(h.logger, w, r, "update quotation item", err)
		return
	}
	httpx.OK(w, q)
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := httpx.IDParam(r, "itemId")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q, err := h.service.RemoveItem(r.Context(), actorOf(r), itemID)
	if err != nil {
		httpx.Fail(h.logger, w, r, "remove quotation item", err)
		return
	}
	httpx.OK(w, q)
}

func (h *Handler) recalculate(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q, err := h.service.Recalculate(r.Context(), actorOf(r), id)
	if err != nil {
		httpx.Fail(h.logger, w, r, "recalculate quotation", err)
		return
	}
	httpx.OK(w, q)
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
	q, err := h.service.MarkSent(r.Context(), actorOf(r), id, req)
	if err != nil {
		httpx.Fail(h.logger, w, r, "send quotation", err)
		return
	}
	httpx.OK(w, q)
}

func (h *Handler) accept(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q, err := h.service.MarkAccepted(r.Context(), actorOf(r), id)
	if err != nil {
		httpx.Fail(h.logger, w, r, "accept quotation", err)
		return
	}
	httpx.OK(w, q)
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req RejectRequest
	if r.ContentLength != 0 {
		if err := httpx.Decode(r, &req); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	q, err := h.service.MarkRejected(r.Context(), actorOf(r), id, req)
	if err != nil {
		httpx.Fail(h.logger, w, r, "reject quotation", err)
		return
	}
	httpx.OK(w, q)
}

func (h *Handler) generateInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.GenerateInvoice(r.Context(), actorOf(r), id)
	if err != nil {
		httpx.Fail(h.logger, w, r, "generate invoice", err)
		return
	}
	httpx.Created(w, inv)
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
			httpx.NotFoundLookup(w, "Quotation not found")
			return
		}
		if err != nil {
			httpx.Fail(h.logger, w, r, "render quotation pdf", err)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", documents.ContentDisposition(out.Filename, attachment))
		w.Header().Set("Content-Length", strconv.Itoa(len(out.PDF)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(out.PDF)
	}
}
