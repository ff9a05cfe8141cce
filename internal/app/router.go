package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/activities"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/analytics"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/auth"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/communications"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/companies"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/deals"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/invoices"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/leads"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/observability"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/products"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/quotations"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/rbac"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/roles"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/settings"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/users"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/jobs"
)

// RouterParams groups dependencies for building the HTTP router. Any handler
// except AuthHandler may be nil, in which case its routes are not mounted.
type RouterParams struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics

	AuthHandler           *auth.Handler
	UsersHandler          *users.Handler
	RolesHandler          *roles.Handler
	PermissionsHandler    *rbac.PermissionsHandler
	SettingsHandler       *settings.Handler
	LeadsHandler          *leads.Handler
	DealsHandler          *deals.Handler
	ActivitiesHandler     *activities.Handler
	CommunicationsHandler *communications.Handler
	CompaniesHandler      *companies.Handler
	ProductsHandler       *products.Handler
	InvoicesHandler       *invoices.Handler
	QuotationsHandler     *quotations.Handler
	AnalyticsHandler      *analytics.Handler
	JobHandler            *jobs.Handler
}

type mounter interface {
	MountRoutes(r chi.Router)
}

// NewRouter constructs the chi.Router with the CRM defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", params.AuthHandler.MountRoutes)

		r.Group(func(r chi.Router) {
			r.Use(params.AuthHandler.Require)

			routes := []struct {
				prefix  string
				handler mounter
			}{
				{"/users", nilIfAbsent(params.UsersHandler)},
				{"/roles", nilIfAbsent(params.RolesHandler)},
				{"/permissions", nilIfAbsent(params.PermissionsHandler)},
				{"/settings", nilIfAbsent(params.SettingsHandler)},
				{"/leads", nilIfAbsent(params.LeadsHandler)},
				{"/deals", nilIfAbsent(params.DealsHandler)},
				{"/activities", nilIfAbsent(params.ActivitiesHandler)},
				{"/communications", nilIfAbsent(params.CommunicationsHandler)},
				{"/companies", nilIfAbsent(params.CompaniesHandler)},
				{"/products", nilIfAbsent(params.ProductsHandler)},
				{"/invoices", nilIfAbsent(params.InvoicesHandler)},
				{"/quotations", nilIfAbsent(params.QuotationsHandler)},
				{"/analytics", nilIfAbsent(params.AnalyticsHandler)},
				{"/jobs", nilIfAbsent(params.JobHandler)},
			}
			for _, route := range routes {
				if route.handler == nil {
					continue
				}
				r.Route(route.prefix, route.handler.MountRoutes)
			}
		})
	})

	return r
}

// nilIfAbsent keeps a typed nil handler pointer from becoming a non-nil
// interface value.
func nilIfAbsent[T any, P interface {
	*T
	mounter
}](h P) mounter {
	if h == nil {
		return nil
	}
	return h
}
