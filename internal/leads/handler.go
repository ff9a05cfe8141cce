package leads

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/httpx"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/rbac"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/shared"
)

// Handler exposes /leads endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds the handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers lead routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermLeadsView))
		r.Get("/", h.list)
		r.Get("/{id}", h.show)
	})
	r.With(h.rbac.RequireAll(shared.PermLeadsCreate)).Post("/", h.create)
	r.With(h.rbac.RequireAll(shared.PermLeadsEdit)).Put("/{id}", h.update)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermLeadsDelete))
		r.Delete("/{id}", h.remove(h.service.Delete, "delete lead"))
		r.Delete("/{id}/permanent", h.remove(h.service.PermanentDelete, "purge lead"))
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	out, meta, err := h.service.List(r.Context(), actor, ListFilters{
		Page:       httpx.QueryInt(r, "page", 1),
		Limit:      httpx.QueryInt(r, "limit", 20),
		Status:     httpx.QueryString(r, "status"),
		Source:     httpx.QueryString(r, "source"),
		AssignedTo: httpx.QueryInt64(r, "assigned_to"),
		Search:     httpx.QueryString(r, "search"),
	})
	if err != nil {
		httpx.Fail(h.logger, w, r, "list leads", err)
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
	l, err := h.service.Get(r.Context(), actor, id)
	if errors.Is(err, httpx.ErrNotFound) {
		httpx.NotFoundLookup(w, "Lead not found")
		return
	}
	if err != nil {
		httpx.Fail(h.logger, w, r, "get lead", err)
		return
	}
	httpx.OK(w, l)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	var req CreateRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	l, err := h.service.Create(r.Context(), actor, req)
	if err != nil {
		httpx.Fail(h.logger, w, r, "create lead", err)
		return
	}
	httpx.Created(w, l)
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
	l, err := h.service.Update(r.Context(), actor, id, req)
	if err != nil {
		httpx.Fail(h.logger, w, r, "update lead", err)
		return
	}
	httpx.OK(w, l)
}

func (h *Handler) remove(fn func(context.Context, shared.Actor, int64) error, op string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := shared.ActorFromContext(r.Context())
		id, err := httpx.IDParam(r, "id")
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		if err := fn(r.Context(), actor, id); err != nil {
			httpx.Fail(h.logger, w, r, op, err)
			return
		}
		httpx.OK(w, map[string]int64{"id": id})
	}
}
