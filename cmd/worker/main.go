package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/angelmondragon/shopdesk-backend/internal/audit"
	"github.com/angelmondragon/shopdesk-backend/internal/invoices"
	"github.com/angelmondragon/shopdesk-backend/pkg/config"
	"github.com/angelmondragon/shopdesk-backend/pkg/db"
	"github.com/angelmondragon/shopdesk-backend/pkg/instance"
	"github.com/angelmondragon/shopdesk-backend/pkg/logger"
	"github.com/angelmondragon/shopdesk-backend/pkg/metrics"
	"github.com/angelmondragon/shopdesk-backend/pkg/migrate"
	"github.com/angelmondragon/shopdesk-backend/pkg/outbox"
	"github.com/angelmondragon/shopdesk-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/shopdesk-backend/pkg/pubsub"
	"github.com/angelmondragon/shopdesk-backend/pkg/redis"
	"github.com/angelmondragon/shopdesk-backend/pkg/storage/gcs"
)

const serviceKind = "worker"

func main() {
	boot := logger.New(logger.Options{ServiceName: serviceKind})
	if err := godotenv.Load(); err != nil {
		boot.Warn(context.Background(), ".env file not found, relying on environment")
	}
	if err := run(); err != nil {
		boot.Error(context.Background(), "worker exited", err)
		os.Exit(1)
	}
}

func run() (err error) {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	cfg.Service.Kind = serviceKind
	logg := logger.New(logger.Options{
		ServiceName: serviceKind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opened []io.Closer
	defer func() {
		for i := len(opened) - 1; i >= 0; i-- {
			err = multierr.Append(err, opened[i].Close())
		}
	}()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	opened = append(opened, dbClient)
	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	opened = append(opened, redisClient)

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}
	opened = append(opened, pubsubClient)

	store, err := gcs.NewClient(ctx, cfg.GCS, cfg.GCP, logg)
	if err != nil {
		return fmt.Errorf("gcs: %w", err)
	}
	opened = append(opened, store)

	conn := dbClient.DB()
	auditSvc, err := audit.NewService(audit.NewRepository(conn))
	if err != nil {
		return err
	}
	issuer, err := invoices.NewService(invoices.ServiceParams{
		Repo:               invoices.NewRepository(conn),
		TxRunner:           dbClient,
		Storage:            store,
		Renderer:           invoices.NewPDFRenderer(cfg.Invoice.NameDisplayWidth),
		Audit:              auditSvc,
		Outbox:             outbox.NewService(outbox.NewRepository(conn), logg),
		Metrics:            metrics.NewInvoiceMetrics(prometheus.DefaultRegisterer),
		Logger:             logg,
		NumberLength:       cfg.Invoice.NumberLength,
		AllocationAttempts: cfg.Invoice.AllocationAttempts,
		Currency:           cfg.Invoice.CurrencyLabel,
	})
	if err != nil {
		return fmt.Errorf("invoice service: %w", err)
	}

	marks, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	if err != nil {
		return err
	}
	consumer, err := invoices.NewConsumer(pubsubClient.SalesSubscription(), issuer, marks, logg)
	if err != nil {
		return fmt.Errorf("invoice consumer: %w", err)
	}

	worker, err := NewService(ServiceParams{
		Logger:          logg,
		DB:              dbClient,
		Redis:           redisClient,
		PubSub:          pubsubClient,
		Storage:         store,
		InvoiceConsumer: consumer,
	})
	if err != nil {
		return err
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": serviceKind,
		"instance":    instance.ID(),
	})
	logg.Info(ctx, "invoice worker started")

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logg.Info(ctx, "invoice worker drained")
	return nil
}
