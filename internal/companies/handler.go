package companies

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/httpx"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/rbac"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/shared"
)

// Handler exposes /companies endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds the handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers company routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermCompaniesView))
		r.Get("/", h.list)
		r.Get("/{id}", h.show)
	})
	r.With(h.rbac.RequireAll(shared.PermCompaniesCreate)).Post("/", h.create)
	r.With(h.rbac.RequireAll(shared.PermCompaniesEdit)).Put("/{id}", h.update)
	r.With(h.rbac.RequireAll(shared.PermCompaniesDelete)).Delete("/{id}", h.delete)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	out, meta, err := h.service.List(r.Context(), ListFilters{
		Page:     httpx.QueryInt(r, "page", 1),
		Limit:    httpx.QueryInt(r, "limit", 20),
		Industry: httpx.QueryString(r, "industry"),
		Search:   httpx.QueryString(r, "search"),
	})
	if err != nil {
		httpx.Fail(h.logger, w, r, "list companies", err)
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
	c, err := h.service.Get(r.Context(), id)
	if errors.Is(err, httpx.ErrNotFound) {
		httpx.NotFoundLookup(w, "Company not found")
		return
	}
	if err != nil {
		httpx.Fail(h.logger, w, r, "get company", err)
		return
	}
	httpx.OK(w, c)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	var in Input
	if err := httpx.Decode(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.Create(r.Context(), actor, in)
	if err != nil {
		httpx.Fail(h.logger, w, r, "create company", err)
		return
	}
	httpx.Created(w, c)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in Input
	if err := httpx.Decode(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.Update(r.Context(), actor, id, in)
	if err != nil {
		httpx.Fail(h.logger, w, r, "update company", err)
		return
	}
	httpx.OK(w, c)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		httpx.Fail(h.logger, w, r, "delete company", err)
		return
	}
	httpx.OK(w, map[string]int64{"id": id})
}
