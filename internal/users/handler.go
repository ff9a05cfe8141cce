package users

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

// Handler manages user management endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermUsersView, shared.PermUsersEdit))
		r.Get("/", h.listUsers)
		r.Get("/{id}", h.showUser)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermUsersEdit))
		r.Post("/", h.createUser)
		r.Put("/{id}", h.updateUser)
		r.Put("/{id}/roles", h.assignRoles)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermUsersDelete))
		r.Delete("/{id}", h.deleteUser)
		r.Delete("/{id}/permanent", h.purgeUser)
	})
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	f := ListFilters{
		Page:     httpx.QueryInt(r, "page", 1),
		Limit:    httpx.QueryInt(r, "limit", 20),
		Search:   httpx.QueryString(r, "search"),
		RoleID:   httpx.QueryInt64(r, "role_id"),
		Managers: httpx.QueryString(r, "managers") == "true",
	}
	switch httpx.QueryString(r, "active") {
	case "true":
		f.Active = boolPtr(true)
	case "false":
		f.Active = boolPtr(false)
	}
	users, meta, err := h.service.List(r.Context(), f)
	if err != nil {
		httpx.Fail(h.logger, w, r, "list users", err)
		return
	}
	httpx.Page(w, users, meta)
}

func boolPtr(v bool) *bool { return &v }

func (h *Handler) showUser(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	u, err := h.service.Get(r.Context(), id)
	if errors.Is(err, httpx.ErrNotFound) {
		httpx.NotFoundLookup(w, "User not found")
		return
	}
	if err != nil {
		httpx.Fail(h.logger, w, r, "get user", err)
		return
	}
	httpx.OK(w, u)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	var req CreateRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	u, err := h.service.Create(r.Context(), actor, req)
	if err != nil {
		httpx.Fail(h.logger, w, r, "create user", err)
		return
	}
	httpx.Created(w, u)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
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
	u, err := h.service.Update(r.Context(), actor, id, req)
	if err != nil {
		httpx.Fail(h.logger, w, r, "update user", err)
		return
	}
	httpx.OK(w, u)
}

func (h *Handler) assignRoles(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req RolesRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	u, err := h.service.AssignRoles(r.Context(), actor, id, req)
	if err != nil {
		httpx.Fail(h.logger, w, r, "assign roles", err)
		return
	}
	httpx.OK(w, u)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	h.remove(w, r, "delete user", h.service.Delete)
}

func (h *Handler) purgeUser(w http.ResponseWriter, r *http.Request) {
	h.remove(w, r, "purge user", h.service.PermanentDelete)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request, op string, fn func(ctx context.Context, actor shared.Actor, id int64) error) {
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
