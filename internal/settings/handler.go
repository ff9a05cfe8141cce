package settings

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/httpx"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/rbac"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/shared"
)

// Handler exposes /settings endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds the handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers settings routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequireAny(shared.PermSettingsView, shared.PermSettingsEdit)).Get("/business", h.show)
	r.With(h.rbac.RequireAll(shared.PermSettingsEdit)).Put("/business", h.update)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	b, err := h.service.Business(r.Context())
	if err != nil {
		httpx.Fail(h.logger, w, r, "load settings", err)
		return
	}
	httpx.OK(w, b)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	var req UpdateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	b, err := h.service.Update(r.Context(), actor, req)
	if err != nil {
		httpx.Fail(h.logger, w, r, "update settings", err)
		return
	}
	httpx.OK(w, b)
}
