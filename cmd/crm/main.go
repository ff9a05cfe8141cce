package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/activities"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/analytics"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/app"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/auth"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/communications"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/companies"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/deals"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/invoices"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/leads"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/observability"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/cache"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/db"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/tracing"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/products"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/quotations"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/rbac"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/roles"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/settings"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/users"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping server startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	slog.SetDefault(logger)

	shutdownTracing, err := tracing.Init(ctx, "weconnect-crm", cfg.OTLPEndpoint, cfg.OTLPInsecure)
	if err != nil {
		logger.Warn("tracing disabled", slog.Any("error", err))
		shutdownTracing = func(context.Context) error { return nil }
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracing shutdown", slog.Any("error", err))
		}
	}()

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	services, err := app.NewServices(app.ServiceDeps{
		Config:   *cfg,
		Logger:   logger,
		Pool:     pool,
		Redis:    redisClient,
		Metrics:  metrics,
		Notifier: jobClient,
	})
	if err != nil {
		logger.Error("wire services", slog.Any("error", err))
		os.Exit(1)
	}

	if n, err := services.RBAC.SyncCatalogue(ctx); err != nil {
		logger.Warn("sync permission catalogue", slog.Any("error", err))
	} else {
		logger.Info("permission catalogue synced", slog.Int("permissions", n))
	}

	go func() {
		if err := services.DashboardCache.ListenForInvalidation(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("dashboard invalidation listener", slog.Any("error", err))
		}
	}()

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	rbacMiddleware := rbac.Middleware{Service: services.RBAC, Logger: logger}

	router := app.NewRouter(app.RouterParams{
		Logger:                logger,
		Config:                cfg,
		Metrics:               metrics,
		AuthHandler:           auth.NewHandler(logger, services.Auth),
		UsersHandler:          users.NewHandler(logger, services.Users, rbacMiddleware),
		RolesHandler:          roles.NewHandler(logger, services.Roles, rbacMiddleware),
		PermissionsHandler:    rbac.NewPermissionsHandler(logger, services.RBAC, rbacMiddleware),
		SettingsHandler:       settings.NewHandler(logger, services.Settings, rbacMiddleware),
		LeadsHandler:          leads.NewHandler(logger, services.Leads, rbacMiddleware),
		DealsHandler:          deals.NewHandler(logger, services.Deals, rbacMiddleware),
		ActivitiesHandler:     activities.NewHandler(logger, services.Activities, rbacMiddleware),
		CommunicationsHandler: communications.NewHandler(logger, services.Communications, rbacMiddleware),
		CompaniesHandler:      companies.NewHandler(logger, services.Companies, rbacMiddleware),
		ProductsHandler:       products.NewHandler(logger, services.Products, rbacMiddleware),
		InvoicesHandler:       invoices.NewHandler(logger, services.Invoices, rbacMiddleware),
		QuotationsHandler:     quotations.NewHandler(logger, services.Quotations, rbacMiddleware),
		AnalyticsHandler:      analytics.NewHandler(logger, services.Analytics, rbacMiddleware),
		JobHandler:            jobs.NewHandler(inspector, logger, rbacMiddleware),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
