package deals

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/httpx"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/rbac"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/shared"
)

// Handler exposes /deals endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds the handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers deal routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermDealsView))
		r.Get("/", h.list)
		r.Get("/{id}", h.show)
	})
	r.With(h.rbac.RequireAll(shared.PermDealsCreate)).Post("/", h.create)
	r.With(h.rbac.RequireAll(shared.PermDealsEdit)).Put("/{id}", h.update)
	r.With(h.rbac.RequireAll(shared.PermDealsDelete)).Delete("/{id}", h.delete)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	out, meta, err := h.service.List(r.Context(), actor, ListFilters{
		Page:      httpx.QueryInt(r, "page", 1),
		Limit:     httpx.QueryInt(r, "limit", 20),
		Stage:     httpx.QueryString(r, "stage"),
		OwnerID:   httpx.QueryInt64(r, "owner_id"),
		CompanyID: httpx.QueryInt64(r, "company_id"),
		Open:      httpx.QueryString(r, "open") == "true",
		Search:    httpx.QueryString(r, "search"),
	})
	if err != nil {
		httpx.Fail(h.logger, w, r, "list deals", err)
		return
	}
	httpx.Page(w, out, meta)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	d, err := h.service.Get(r.Context(), actor, id)
	if errors.Is(err, httpx.ErrNotFound) {
		httpx.NotFoundLookup(w, "Deal not found")
		return
	}
	if err != nil {
		httpx.Fail(h.logger, w, r, "get deal", err)
		return
	}
	httpx.OK(w, d)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	var req CreateRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	d, err := h.service.Create(r.Context(), actor, req)
	if err != nil {
		httpx.Fail(h.logger, w, r, "create deal", err)
		return
	}
	httpx.Created(w, d)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
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
	d, err := h.service.Update(r.Context(), actor, id, req)
	if err != nil {
		httpx.Fail(h.logger, w, r, "update deal", err)
		return
	}
	httpx.OK(w, d)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		httpx.Fail(h.logger, w, r, "delete deal", err)
		return
	}
	httpx.OK(w, map[string]int64{"id": id})
}
