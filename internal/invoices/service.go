package invoices

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/angelmondragon/shopdesk-backend/internal/audit"
	"github.com/angelmondragon/shopdesk-backend/pkg/db"
	"github.com/angelmondragon/shopdesk-backend/pkg/db/models"
	"github.com/angelmondragon/shopdesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopdesk-backend/pkg/errors"
	"github.com/angelmondragon/shopdesk-backend/pkg/logger"
	"github.com/angelmondragon/shopdesk-backend/pkg/metrics"
	"github.com/angelmondragon/shopdesk-backend/pkg/outbox"
	"github.com/angelmondragon/shopdesk-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/shopdesk-backend/pkg/pagination"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

const (
	numberConstraint = "invoices_number_key"
	saleConstraint   = "invoices_sale_id_key"
	maxErrorLength   = 1024

	modeIssue      = "issue"
	modeRegenerate = "regenerate"
)

// Storage keeps rendered invoice artifacts.
type Storage interface {
	Put(ctx context.Context, key, contentType string, body io.Reader) (string, error)
	PublicURL(key string) string
}

// ListParams filters and paginates the invoice listing.
type ListParams struct {
	Start  *time.Time
	End    *time.Time
	Limit  int
	Cursor string
}

// Service issues invoices for committed sales. It runs outside any sale
// transaction and never modifies the sale.
type Service interface {
	Issue(ctx context.Context, saleID uuid.UUID) (*InvoiceDTO, error)
	Regenerate(ctx context.Context, saleID uuid.UUID) (*InvoiceDTO, error)
	Generate(ctx context.Context, shopID, saleID uuid.UUID) (*InvoiceDTO, error)
	Get(ctx context.Context, shopID, invoiceID uuid.UUID) (*InvoiceDTO, error)
	List(ctx context.Context, shopID uuid.UUID, params ListParams) (*ListResult, error)
	Backfill(ctx context.Context, before time.Time, limit int) (int, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type ServiceParams struct {
	Repo               Repository
	TxRunner           txRunner
	Storage            Storage
	Renderer           Renderer
	Audit              audit.Service
	Outbox             outboxPublisher
	Metrics            *metrics.InvoiceMetrics
	Logger             *logger.Logger
	NumberLength       int
	AllocationAttempts int
	Currency           string
}

type service struct {
	repo      Repository
	tx        txRunner
	storage   Storage
	renderer  Renderer
	audit     audit.Service
	outbox    outboxPublisher
	metrics   *metrics.InvoiceMetrics
	logg      *logger.Logger
	attempts  int
	currency  string
	newNumber func() string
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("invoice repository required")
	case params.TxRunner == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Storage == nil:
		return nil, fmt.Errorf("invoice storage required")
	case params.Renderer == nil:
		return nil, fmt.Errorf("invoice renderer required")
	case params.Audit == nil:
		return nil, fmt.Errorf("audit service required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox service required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	attempts := params.AllocationAttempts
	if attempts <= 0 {
		attempts = 5
	}
	length := params.NumberLength
	return &service{
		repo:      params.Repo,
		tx:        params.TxRunner,
		storage:   params.Storage,
		renderer:  params.Renderer,
		audit:     params.Audit,
		outbox:    params.Outbox,
		metrics:   params.Metrics,
		logg:      params.Logger,
		attempts:  attempts,
		currency:  params.Currency,
		newNumber: func() string { return NewNumber(length) },
	}, nil
}

// Issue creates the sale's invoice. Calling it again for an issued invoice
// returns the existing one without re-rendering.
func (s *service) Issue(ctx context.Context, saleID uuid.UUID) (*InvoiceDTO, error) {
	sale, shop, err := s.loadSale(ctx, saleID)
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, sale, shop)
}

// Regenerate re-renders the artifact from the sale's current lines under the
// existing number. A sale without an invoice gets one issued.
func (s *service) Regenerate(ctx context.Context, saleID uuid.UUID) (*InvoiceDTO, error) {
	sale, shop, err := s.loadSale(ctx, saleID)
	if err != nil {
		return nil, err
	}
	return s.regenerate(ctx, sale, shop)
}

// Generate is the on-demand entry point for a shop user.
func (s *service) Generate(ctx context.Context, shopID, saleID uuid.UUID) (*InvoiceDTO, error) {
	sale, shop, err := s.loadSale(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if sale.ShopID != shopID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sale not found")
	}
	return s.regenerate(ctx, sale, shop)
}

func (s *service) issue(ctx context.Context, sale *models.Sale, shop *models.Shop) (*InvoiceDTO, error) {
	invoice, err := s.repo.FindBySale(ctx, sale.ID)
	switch {
	case err == nil:
	case errors.Is(err, gorm.ErrRecordNotFound):
		invoice, err = s.allocate(ctx, sale)
		if err != nil {
			return nil, err
		}
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load invoice")
	}

	if invoice.Status == enums.InvoiceStatusIssued {
		invoice.Sale = sale
		dto := s.toDTO(invoice)
		return &dto, nil
	}
	return s.publish(ctx, invoice, sale, shop, false)
}

func (s *service) regenerate(ctx context.Context, sale *models.Sale, shop *models.Shop) (*InvoiceDTO, error) {
	invoice, err := s.repo.FindBySale(ctx, sale.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.issue(ctx, sale, shop)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load invoice")
	}
	return s.publish(ctx, invoice, sale, shop, invoice.Status == enums.InvoiceStatusIssued)
}

// allocate inserts a pending invoice under a fresh number. A number collision
// retries with a new number; a concurrent issuer winning the sale row returns
// that invoice instead.
func (s *service) allocate(ctx context.Context, sale *models.Sale) (*models.Invoice, error) {
	for attempt := 1; attempt <= s.attempts; attempt++ {
		invoice := &models.Invoice{
			SaleID: sale.ID,
			ShopID: sale.ShopID,
			Number: s.newNumber(),
			Status: enums.InvoiceStatusPending,
		}
		err := s.repo.Create(ctx, invoice)
		if err == nil {
			return invoice, nil
		}
		if !db.IsUniqueViolation(err, numberConstraint) && !db.IsUniqueViolation(err, saleConstraint) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "insert invoice")
		}
		if existing, findErr := s.repo.FindBySale(ctx, sale.ID); findErr == nil {
			return existing, nil
		}
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"sale_id": sale.ID.String(),
			"number":  invoice.Number,
			"attempt": attempt,
		}), "invoice number collision")
	}
	return nil, pkgerrors.New(pkgerrors.CodeConflict, "could not allocate a unique invoice number")
}

func (s *service) publish(ctx context.Context, invoice *models.Invoice, sale *models.Sale, shop *models.Shop, regenerated bool) (*InvoiceDTO, error) {
	ctx = s.logg.WithSaleID(s.logg.WithShopID(ctx, sale.ShopID.String()), sale.ID.String())
	mode := modeIssue
	if regenerated {
		mode = modeRegenerate
	}

	start := time.Now()
	uri, err := s.store(ctx, invoice, sale, shop)
	s.metrics.ObserveRender(time.Since(start))
	if err != nil {
		return nil, s.fail(ctx, invoice, err)
	}

	now := time.Now().UTC()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).MarkIssued(ctx, invoice.ID, uri, now, regenerated); err != nil {
			return err
		}
		verb := "generated"
		if regenerated {
			verb = "regenerated"
		}
		if _, err := s.audit.Record(ctx, tx, audit.Entry{
			ShopID:      sale.ShopID,
			Action:      enums.ActionInvoicePDFGenerated,
			ObjectType:  "invoice",
			ObjectID:    invoice.ID.String(),
			Description: fmt.Sprintf("Invoice #%s %s for sale #%s", invoice.Number, verb, sale.ID),
		}); err != nil {
			return err
		}
		if regenerated {
			return nil
		}
		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventInvoiceIssued,
			AggregateType: enums.AggregateInvoice,
			AggregateID:   invoice.ID,
			Version:       1,
			Data: payloads.InvoiceIssuedEvent{
				InvoiceID:   invoice.ID,
				SaleID:      sale.ID,
				ShopID:      sale.ShopID,
				Number:      invoice.Number,
				ArtifactURI: uri,
			},
		})
	})
	if err != nil {
		return nil, s.fail(ctx, invoice, err)
	}

	invoice.Status = enums.InvoiceStatusIssued
	invoice.ArtifactURI = &uri
	invoice.LastError = nil
	if regenerated {
		invoice.RegeneratedAt = &now
	} else {
		invoice.IssuedAt = &now
	}
	invoice.Sale = sale

	s.metrics.IncIssued(mode)
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"invoice_number": invoice.Number,
		"mode":           mode,
	}), "invoice issued")

	dto := s.toDTO(invoice)
	return &dto, nil
}

func (s *service) store(ctx context.Context, invoice *models.Invoice, sale *models.Sale, shop *models.Shop) (string, error) {
	doc := Document{
		Number:   invoice.Number,
		ShopName: shop.Name,
		IssuedAt: time.Now().UTC(),
		Currency: s.currency,
		Total:    sale.TotalAmount,
	}
	for _, item := range sale.Items {
		doc.Lines = append(doc.Lines, DocumentLine{
			Name:      item.ProductName,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Subtotal:  item.Subtotal,
		})
	}
	body, err := s.renderer.Render(doc)
	if err != nil {
		return "", err
	}
	return s.storage.Put(ctx, ObjectKey(invoice.Number), s.renderer.ContentType(), bytes.NewReader(body))
}

// fail records the failure on the invoice row. The sale is left untouched.
func (s *service) fail(ctx context.Context, invoice *models.Invoice, cause error) error {
	s.metrics.IncFailure()
	s.logg.Error(s.logg.WithField(ctx, "invoice_number", invoice.Number), "invoice generation failed", cause)

	message := cause.Error()
	if len(message) > maxErrorLength {
		message = message[:maxErrorLength]
	}
	if err := s.repo.MarkFailed(ctx, invoice.ID, message); err != nil {
		s.logg.Error(ctx, "failed to record invoice failure", err)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, cause, "invoice generation failed")
}

func (s *service) Get(ctx context.Context, shopID, invoiceID uuid.UUID) (*InvoiceDTO, error) {
	invoice, err := s.repo.FindByID(ctx, shopID, invoiceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load invoice")
	}
	dto := s.toDTO(invoice)
	return &dto, nil
}

func (s *service) List(ctx context.Context, shopID uuid.UUID, params ListParams) (*ListResult, error) {
	if params.Start != nil && params.End != nil && params.End.Before(*params.Start) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "end must not be before start")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	filter := Filter{Start: params.Start, End: params.End}

	rows, err := s.repo.List(ctx, shopID, filter, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list invoices")
	}
	page, next := pagination.NextCursor(rows, params.Limit, func(inv models.Invoice) pagination.Cursor {
		return pagination.Cursor{CreatedAt: inv.CreatedAt, ID: inv.ID}
	})

	count, total, err := s.repo.Summary(ctx, shopID, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "summarize invoices")
	}

	result := &ListResult{
		Invoices:    make([]InvoiceDTO, 0, len(page)),
		Count:       count,
		TotalAmount: total,
		NextCursor:  next,
	}
	for i := range page {
		result.Invoices = append(result.Invoices, s.toDTO(&page[i]))
	}
	return result, nil
}

// Backfill issues invoices for sales older than before that still lack an
// issued one. It keeps going past individual failures.
func (s *service) Backfill(ctx context.Context, before time.Time, limit int) (int, error) {
	ids, err := s.repo.SalesMissingInvoice(ctx, before, limit)
	if err != nil {
		return 0, fmt.Errorf("list sales missing invoice: %w", err)
	}
	var (
		issued int
		errs   error
	)
	for _, id := range ids {
		if _, err := s.Issue(ctx, id); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("sale %s: %w", id, err))
			continue
		}
		issued++
	}
	return issued, errs
}

func (s *service) loadSale(ctx context.Context, saleID uuid.UUID) (*models.Sale, *models.Shop, error) {
	sale, shop, err := s.repo.LoadSale(ctx, saleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "sale not found")
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load sale")
	}
	return sale, shop, nil
}

func (s *service) toDTO(invoice *models.Invoice) InvoiceDTO {
	return newInvoiceDTO(invoice, func(number string) string {
		return s.storage.PublicURL(ObjectKey(number))
	})
}
