package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/ulule/limiter/v3"

	"github.com/angelmondragon/shopdesk-backend/api/middleware"
	"github.com/angelmondragon/shopdesk-backend/api/routes"
	"github.com/angelmondragon/shopdesk-backend/internal/audit"
	"github.com/angelmondragon/shopdesk-backend/internal/auth"
	"github.com/angelmondragon/shopdesk-backend/internal/catalog"
	"github.com/angelmondragon/shopdesk-backend/internal/finance"
	"github.com/angelmondragon/shopdesk-backend/internal/invoices"
	"github.com/angelmondragon/shopdesk-backend/internal/plans"
	"github.com/angelmondragon/shopdesk-backend/internal/sales"
	"github.com/angelmondragon/shopdesk-backend/internal/shops"
	"github.com/angelmondragon/shopdesk-backend/internal/stockledger"
	"github.com/angelmondragon/shopdesk-backend/internal/users"
	"github.com/angelmondragon/shopdesk-backend/pkg/auth/session"
	"github.com/angelmondragon/shopdesk-backend/pkg/config"
	"github.com/angelmondragon/shopdesk-backend/pkg/db"
	"github.com/angelmondragon/shopdesk-backend/pkg/instance"
	"github.com/angelmondragon/shopdesk-backend/pkg/logger"
	"github.com/angelmondragon/shopdesk-backend/pkg/metrics"
	"github.com/angelmondragon/shopdesk-backend/pkg/migrate"
	"github.com/angelmondragon/shopdesk-backend/pkg/outbox"
	"github.com/angelmondragon/shopdesk-backend/pkg/redis"
	"github.com/angelmondragon/shopdesk-backend/pkg/storage/gcs"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	requireResource(logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	requireResource(logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gcsClient, err := gcs.NewClient(context.Background(), cfg.GCS, cfg.GCP, logg)
	requireResource(logg, "gcs", err)
	defer func() {
		if err := gcsClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing gcs", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	requireResource(logg, "session manager", err)

	services, err := buildServices(cfg, logg, dbClient, sessionManager, gcsClient)
	requireResource(logg, "services", err)

	var apiLimiter *limiter.Limiter
	if cfg.APIRateLimit.Enabled {
		apiLimiter, err = middleware.NewAPILimiter(cfg.APIRateLimit, redisClient.Raw())
		requireResource(logg, "api rate limiter", err)
	}

	addr := ":" + cfg.App.Port
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.ID(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Infra{
			DB:         dbClient,
			Redis:      redisClient,
			Sessions:   sessionManager,
			APILimiter: apiLimiter,
		}, services),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api server shutdown failed", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server shut down gracefully")
}

func buildServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, sessions *session.Manager, storage *gcs.Client) (routes.Services, error) {
	conn := dbClient.DB()

	auditSvc, err := audit.NewService(audit.NewRepository(conn))
	if err != nil {
		return routes.Services{}, err
	}
	ledger, err := stockledger.NewService(stockledger.NewRepository(conn))
	if err != nil {
		return routes.Services{}, err
	}
	outboxSvc := outbox.NewService(outbox.NewRepository(conn), logg)

	userRepo := users.NewRepository(conn)
	shopRepo := shops.NewRepository(conn)

	authSvc, err := auth.NewService(auth.ServiceParams{
		TxRunner:       dbClient,
		UserRepo:       userRepo,
		ShopRepo:       shopRepo,
		SessionManager: sessions,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		Logger:         logg,
	})
	if err != nil {
		return routes.Services{}, err
	}
	plansSvc, err := plans.NewService(plans.NewRepository(conn), cfg.Billing.ContactPhone, cfg.Invoice.CurrencyLabel)
	if err != nil {
		return routes.Services{}, err
	}
	shopsSvc, err := shops.NewService(shopRepo, logg)
	if err != nil {
		return routes.Services{}, err
	}
	usersSvc, err := users.NewService(userRepo, cfg.Password)
	if err != nil {
		return routes.Services{}, err
	}
	catalogSvc, err := catalog.NewService(catalog.ServiceParams{
		Repo:                  catalog.NewRepository(conn),
		TxRunner:              dbClient,
		Ledger:                ledger,
		Audit:                 auditSvc,
		FreeProductCap:        cfg.Catalog.FreeProductCap,
		DefaultAlertThreshold: cfg.Catalog.DefaultAlertThreshold,
	})
	if err != nil {
		return routes.Services{}, err
	}
	salesSvc, err := sales.NewService(sales.ServiceParams{
		Repo:     sales.NewRepository(conn),
		TxRunner: dbClient,
		Ledger:   ledger,
		Audit:    auditSvc,
		Outbox:   outboxSvc,
		Metrics:  metrics.NewSalesMetrics(prometheus.DefaultRegisterer),
		Logger:   logg,
	})
	if err != nil {
		return routes.Services{}, err
	}
	invoicesSvc, err := invoices.NewService(invoices.ServiceParams{
		Repo:               invoices.NewRepository(conn),
		TxRunner:           dbClient,
		Storage:            storage,
		Renderer:           invoices.NewPDFRenderer(cfg.Invoice.NameDisplayWidth),
		Audit:              auditSvc,
		Outbox:             outboxSvc,
		Metrics:            metrics.NewInvoiceMetrics(prometheus.DefaultRegisterer),
		Logger:             logg,
		NumberLength:       cfg.Invoice.NumberLength,
		AllocationAttempts: cfg.Invoice.AllocationAttempts,
		Currency:           cfg.Invoice.CurrencyLabel,
	})
	if err != nil {
		return routes.Services{}, err
	}
	financeSvc, err := finance.NewService(finance.ServiceParams{
		TxRunner: dbClient,
		Repo:     finance.NewRepository(conn),
		Tax:      cfg.Tax,
		Currency: cfg.Invoice.CurrencyLabel,
		Logger:   logg,
	})
	if err != nil {
		return routes.Services{}, err
	}

	return routes.Services{
		Auth:        authSvc,
		Plans:       plansSvc,
		Shops:       shopsSvc,
		Users:       usersSvc,
		Catalog:     catalogSvc,
		Sales:       salesSvc,
		Invoices:    invoicesSvc,
		Audit:       auditSvc,
		Finance:     financeSvc,
		DeadLetters: outbox.NewDLQRepository(conn),
	}, nil
}

func requireResource(logg *logger.Logger, name string, err error) {
	if err == nil {
		return
	}
	logg.Error(logg.WithField(context.Background(), "resource", name), "failed to bootstrap "+name, err)
	os.Exit(1)
}
