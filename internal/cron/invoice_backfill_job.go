package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/shopdesk-backend/pkg/logger"
)

const (
	defaultBackfillGrace = 10 * time.Minute
	defaultBackfillBatch = 100
)

type invoiceBackfiller interface {
	Backfill(ctx context.Context, before time.Time, limit int) (int, error)
}

type InvoiceBackfillJobParams struct {
	Logger    *logger.Logger
	Invoices  invoiceBackfiller
	Grace     time.Duration
	BatchSize int
}

// NewInvoiceBackfillJob issues invoices for sales the event consumer missed.
// Sales younger than the grace period are left to the consumer.
func NewInvoiceBackfillJob(params InvoiceBackfillJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Invoices == nil {
		return nil, fmt.Errorf("invoice service required")
	}
	grace := params.Grace
	if grace <= 0 {
		grace = defaultBackfillGrace
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultBackfillBatch
	}
	return &invoiceBackfillJob{
		logg:     params.Logger,
		invoices: params.Invoices,
		grace:    grace,
		batch:    batch,
		now:      time.Now,
	}, nil
}

type invoiceBackfillJob struct {
	logg     *logger.Logger
	invoices invoiceBackfiller
	grace    time.Duration
	batch    int
	now      func() time.Time
}

func (j *invoiceBackfillJob) Name() string { return "invoice-backfill" }

// Run reports partial failures as a combined error after logging how many
// invoices were issued.
func (j *invoiceBackfillJob) Run(ctx context.Context) error {
	before := j.now().UTC().Add(-j.grace)
	issued, err := j.invoices.Backfill(ctx, before, j.batch)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"before": before,
		"limit":  j.batch,
		"issued": issued,
	})
	if issued > 0 || err == nil {
		j.logg.Info(logCtx, "invoice backfill pass complete")
	}
	if err != nil {
		return fmt.Errorf("invoice backfill: %w", err)
	}
	return nil
}
