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
	"go.uber.org/multierr"

	"github.com/angelmondragon/shopdesk-backend/internal/analytics"
	"github.com/angelmondragon/shopdesk-backend/pkg/bigquery"
	"github.com/angelmondragon/shopdesk-backend/pkg/config"
	"github.com/angelmondragon/shopdesk-backend/pkg/instance"
	"github.com/angelmondragon/shopdesk-backend/pkg/logger"
	"github.com/angelmondragon/shopdesk-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/shopdesk-backend/pkg/pubsub"
	"github.com/angelmondragon/shopdesk-backend/pkg/redis"
)

const serviceKind = "analytics-worker"

func main() {
	boot := logger.New(logger.Options{ServiceName: serviceKind})
	if err := godotenv.Load(); err != nil {
		boot.Warn(context.Background(), ".env file not found, relying on environment")
	}
	if err := run(); err != nil {
		boot.Error(context.Background(), "analytics worker exited", err)
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

	warehouse, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
	if err != nil {
		return fmt.Errorf("bigquery: %w", err)
	}
	opened = append(opened, warehouse)

	subscription := pubsubClient.AnalyticsSubscription()
	if subscription == nil {
		return errors.New(config.EnvPubSubAnalyticsSubscription + " is not set")
	}

	marks, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	if err != nil {
		return err
	}
	writer, err := analytics.NewWriter(warehouse, cfg.BigQuery.SaleEventsTable, analytics.RetryPolicy{})
	if err != nil {
		return err
	}
	consumer, err := analytics.NewConsumer(subscription, writer, marks, logg)
	if err != nil {
		return err
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": serviceKind,
		"instance":    instance.ID(),
		"table":       cfg.BigQuery.SaleEventsTable,
	})
	logg.Info(ctx, "analytics export started")

	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logg.Info(ctx, "analytics export drained")
	return nil
}
