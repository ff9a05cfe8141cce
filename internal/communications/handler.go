package communications

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/httpx"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/rbac"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/shared"
)

// Handler exposes /communications endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds the handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers communication routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequireAny(shared.PermCommunicationsView)).Get("/", h.list)
	r.With(h.rbac.RequireAny(shared.PermCommunicationsView)).Get("/{id}", h.show)
	r.With(h.rbac.RequireAll(shared.PermCommunicationsCreate)).Post("/", h.create)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	out, meta, err := h.service.List(r.Context(), actor, ListFilters{
		Page:      httpx.QueryInt(r, "page", 1),
		Limit:     httpx.QueryInt(r, "limit", 20),
		Channel:   httpx.QueryString(r, "channel"),
		Direction: httpx.QueryString(r, "direction"),
		LeadID:    httpx.QueryInt64(r, "lead_id"),
		DealID:    httpx.QueryInt64(r, "deal_id"),
		From:      httpx.QueryDate(r, "from"),
		To:        httpx.QueryDate(r, "to"),
	})
	if err != nil {
		httpx.Fail(h.logger, w, r, "list communications", err)
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
	c, err := h.service.Get(r.Context(), actor, id)
	if errors.Is(err, httpx.ErrNotFound) {
		httpx.NotFoundLookup(w, "Communication not found")
		return
	}
	if err != nil {
		httpx.Fail(h.logger, w, r, "get communication", err)
		return
	}
	httpx.OK(w, c)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	var req CreateRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.Create(r.Context(), actor, req)
	if err != nil {
		httpx.Fail(h.logger, w, r, "log communication", err)
		return
	}
	httpx.Created(w, c)
}
