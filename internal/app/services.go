package app

import (
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/access"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/activities"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/analytics"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/auth"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/communications"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/companies"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/deals"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/documents"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/invoices"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/leads"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/observability"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/products"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/quotations"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/rbac"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/roles"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/settings"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/shared"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/users"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/report"
)

// ServiceDeps are the infrastructure handles the service graph is built on.
// Metrics and Notifier may be nil.
type ServiceDeps struct {
	Config   Config
	Logger   *slog.Logger
	Pool     *pgxpool.Pool
	Redis    *redis.Client
	Metrics  *observability.Metrics
	Notifier invoices.Notifier
}

// Services is the wired domain layer shared by the API server, the worker and
// the admin CLI.
type Services struct {
	Resolver       *access.Resolver
	RBAC           *rbac.Service
	Auth           *auth.Service
	Users          *users.Service
	Roles          *roles.Service
	Settings       *settings.Service
	Leads          *leads.Service
	Deals          *deals.Service
	Activities     *activities.Service
	Communications *communications.Service
	Companies      *companies.Service
	Products       *products.Service
	Invoices       *invoices.Service
	Quotations     *quotations.Service
	Analytics      *analytics.Service
	DashboardCache *analytics.Cache
	Idempotency    *shared.IdempotencyStore
}

// NewServices wires every domain service.
func NewServices(d ServiceDeps) (*Services, error) {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	cfg := d.Config

	resolver := access.NewResolver(access.NewPgStore(d.Pool), access.Policy{
		BootstrapUnrestricted: cfg.BootstrapUnrestricted(),
	})
	rbacSvc := rbac.NewService(rbac.NewPgStore(d.Pool), resolver)

	if d.Pool == nil || d.Redis == nil {
		return nil, fmt.Errorf("services: postgres and redis are required")
	}
	audit := shared.NewAuditLogger(d.Pool)
	authSvc := auth.NewService(
		auth.NewRepository(d.Pool),
		auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL),
		auth.NewRevocations(d.Redis),
		rbacSvc,
		d.Logger,
	)

	settingsSvc := settings.NewService(settings.NewRepository(d.Pool), audit, d.Logger)
	renderer, err := documents.NewRenderer(settingsSvc, report.NewClient(cfg.GotenbergURL))
	if err != nil {
		return nil, fmt.Errorf("document renderer: %w", err)
	}

	var events invoices.EventRecorder
	if d.Metrics != nil {
		events = d.Metrics
	}

	cache := analytics.NewCache(d.Redis, cfg.DashboardCacheTTL)
	analyticsSvc := analytics.NewService(analytics.NewRepository(d.Pool), resolver, cache, d.Logger)
	if events != nil {
		events = analytics.InvalidatingRecorder{Next: events, Service: analyticsSvc, Logger: d.Logger}
	}

	invoiceSvc := invoices.NewService(invoices.Deps{
		Repo:     invoices.NewRepository(d.Pool),
		Scope:    resolver,
		Numbers:  settingsSvc,
		Renderer: renderer,
		Notifier: d.Notifier,
		Events:   events,
		Logger:   d.Logger,
	})
	quotationSvc := quotations.NewService(quotations.Deps{
		Repo:     quotations.NewRepository(d.Pool),
		Invoices: invoiceSvc,
		Scope:    resolver,
		Numbers:  settingsSvc,
		Renderer: renderer,
		Notifier: d.Notifier,
		Events:   events,
		Logger:   d.Logger,
	})

	return &Services{
		Resolver:       resolver,
		RBAC:           rbacSvc,
		Auth:           authSvc,
		Users:          users.NewService(users.NewRepository(d.Pool), audit, d.Logger),
		Roles:          roles.NewService(roles.NewRepository(d.Pool), audit, d.Logger),
		Settings:       settingsSvc,
		Leads:          leads.NewService(leads.NewRepository(d.Pool), resolver, audit, d.Logger),
		Deals:          deals.NewService(deals.NewRepository(d.Pool), resolver, audit, d.Logger),
		Activities:     activities.NewService(activities.NewRepository(d.Pool), resolver, audit, d.Logger),
		Communications: communications.NewService(communications.NewRepository(d.Pool), resolver, d.Logger),
		Companies:      companies.NewService(companies.NewRepository(d.Pool), audit, d.Logger),
		Products:       products.NewService(products.NewRepository(d.Pool), audit, d.Logger),
		Invoices:       invoiceSvc,
		Quotations:     quotationSvc,
		Analytics:      analyticsSvc,
		DashboardCache: cache,
		Idempotency:    shared.NewIdempotencyStore(d.Pool),
	}, nil
}
