package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/shopdesk-backend/internal/audit"
	"github.com/angelmondragon/shopdesk-backend/internal/cron"
	"github.com/angelmondragon/shopdesk-backend/internal/invoices"
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

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	conn := dbClient.DB()
	outboxRepo := outbox.NewRepository(conn)
	auditSvc, err := audit.NewService(audit.NewRepository(conn))
	requireResource(logg, "audit service", err)

	invoiceSvc, err := invoices.NewService(invoices.ServiceParams{
		Repo:               invoices.NewRepository(conn),
		TxRunner:           dbClient,
		Storage:            gcsClient,
		Renderer:           invoices.NewPDFRenderer(cfg.Invoice.NameDisplayWidth),
		Audit:              auditSvc,
		Outbox:             outbox.NewService(outboxRepo, logg),
		Metrics:            metrics.NewInvoiceMetrics(prometheus.DefaultRegisterer),
		Logger:             logg,
		NumberLength:       cfg.Invoice.NumberLength,
		AllocationAttempts: cfg.Invoice.AllocationAttempts,
		Currency:           cfg.Invoice.CurrencyLabel,
	})
	requireResource(logg, "invoice service", err)

	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:       logg,
		DB:           dbClient,
		Events:       outboxRepo,
		DeadLetters:  outbox.NewDLQRepository(conn),
		Retention:    cfg.Outbox.Retention,
		DLQRetention: cfg.Outbox.DLQRetention,
		MinAttempts:  cfg.Outbox.MaxAttempts,
	})
	requireResource(logg, "outbox retention job", err)

	backfillJob, err := cron.NewInvoiceBackfillJob(cron.InvoiceBackfillJobParams{
		Logger:    logg,
		Invoices:  invoiceSvc,
		Grace:     cfg.Invoice.BackfillGrace,
		BatchSize: cfg.Invoice.BackfillBatchSize,
	})
	requireResource(logg, "invoice backfill job", err)

	registry := cron.NewRegistry()
	registry.Register(backfillJob, cfg.Cron.InvoiceBackfillEvery)
	registry.Register(retentionJob, cfg.Cron.OutboxRetentionEvery)

	locker, err := cron.NewRedisLocker(redisClient, func(job string) string {
		return redisClient.LockKey(lockName(cfg.App.Env, job))
	}, cfg.Cron.LockTTL)
	requireResource(logg, "cron lock", err)

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Locker:   locker,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Tick:     cfg.Cron.Tick,
	})
	requireResource(logg, "cron service", err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.ID(),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockName(env, job string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf("cron:%s:%s", env, job)
}

func requireResource(logg *logger.Logger, name string, err error) {
	if err == nil {
		return
	}
	logg.Error(logg.WithField(context.Background(), "resource", name), "failed to bootstrap "+name, err)
	os.Exit(1)
}
