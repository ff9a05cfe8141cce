package products

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/httpx"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/rbac"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/shared"
)

// Handler exposes /products endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds the handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers product routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermProductsView))
		r.Get("/", h.list)
		r.Get("/{id}", h.show)
	})
	r.With(h.rbac.RequireAll(shared.PermProductsCreate)).Post("/", h.create)
	r.With(h.rbac.RequireAll(shared.PermProductsEdit)).Put("/{id}", h.update)
	r.With(h.rbac.RequireAll(shared.PermProductsDelete)).Delete("/{id}", h.delete)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	out, meta, err := h.service.List(r.Context(), ListFilters{
		Page:   httpx.QueryInt(r, "page", 1),
		Limit:  httpx.QueryInt(r, "limit", 20),
		Active: queryBool(r, "active"),
		Search: httpx.QueryString(r, "search"),
	})
	if err != nil {
		httpx.Fail(h.logger, w, r, "list products", err)
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
	p, err := h.service.Get(r.Context(), id)
	if errors.Is(err, httpx.ErrNotFound) {
		httpx.NotFoundLookup(w, "Product not found")
		return
	}
	if err != nil {
		httpx.Fail(h.logger, w, r, "get product", err)
		return
	}
	httpx.OK(w, p)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	var in Input
	if err := httpx.Decode(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.Create(r.Context(), actor, in)
	if err != nil {
		httpx.Fail(h.logger, w, r, "create product", err)
		return
	}
	httpx.Created(w, p)
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
	p, err := h.service.Update(r.Context(), actor, id, in)
	if err != nil {
		httpx.Fail(h.logger, w, r, "update product", err)
		return
	}
	httpx.OK(w, p)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		httpx.Fail(h.logger, w, r, "delete product", err)
		return
	}
	httpx.OK(w, map[string]int64{"id": id})
}

func queryBool(r *http.Request, key string) *bool {
	v, err := strconv.ParseBool(httpx.QueryString(r, key))
	if err != nil {
		return nil
	}
	return &v
}
