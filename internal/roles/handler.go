package roles

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/httpx"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/rbac"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/shared"
)

// Handler manages role management endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermRolesView, shared.PermRolesEdit))
		r.Get("/", h.listRoles)
		r.Get("/{id}", h.showRole)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermRolesEdit))
		r.Post("/", h.createRole)
		r.Put("/{id}", h.updateRole)
		r.Put("/{id}/permissions", h.setPermissions)
		r.Delete("/{id}", h.deleteRole)
	})
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, meta, err := h.service.ListRoles(r.Context(), ListFilters{
		Page:    httpx.QueryInt(r, "page", 1),
		Limit:   httpx.QueryInt(r, "limit", 20),
		Search:  httpx.QueryString(r, "search"),
		SortBy:  httpx.QueryString(r, "sort_by"),
		SortDir: httpx.QueryString(r, "sort_dir"),
	})
	if err != nil {
		httpx.Fail(h.logger, w, r, "list roles", err)
		return
	}
	httpx.Page(w, roles, meta)
}

func (h *Handler) showRole(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, err := h.service.Get(r.Context(), id)
	if errors.Is(err, httpx.ErrNotFound) {
		httpx.NotFoundLookup(w, "Role not found")
		return
	}
	if err != nil {
		httpx.Fail(h.logger, w, r, "get role", err)
		return
	}
	httpx.OK(w, role)
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	var req CreateRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, err := h.service.Create(r.Context(), actor, req)
	if err != nil {
		httpx.Fail(h.logger, w, r, "create role", err)
		return
	}
	httpx.Created(w, role)
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
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
	role, err := h.service.Update(r.Context(), actor, id, req)
	if err != nil {
		httpx.Fail(h.logger, w, r, "update role", err)
		return
	}
	httpx.OK(w, role)
}

func (h *Handler) setPermissions(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req PermissionsRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, err := h.service.SetPermissions(r.Context(), actor, id, req)
	if err != nil {
		httpx.Fail(h.logger, w, r, "set role permissions", err)
		return
	}
	httpx.OK(w, role)
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		httpx.Fail(h.logger, w, r, "delete role", err)
		return
	}
	httpx.OK(w, map[string]int64{"id": id})
}
