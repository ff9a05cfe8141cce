package analytics

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/httpx"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/rbac"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/shared"
)

// Handler serves /analytics.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds the handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers analytics routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequireAny(shared.PermAnalyticsView)).Get("/dashboard", h.dashboard)
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	d, hit, err := h.service.Dashboard(r.Context(), actor)
	if err != nil {
		httpx.Fail(h.logger, w, r, "build dashboard", err)
		return
	}
	if hit {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	httpx.OK(w, d)
}
