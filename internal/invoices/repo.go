package invoices

import (
	"context"
	"time"

	"github.com/angelmondragon/shopdesk-backend/pkg/db/models"
	"github.com/angelmondragon/shopdesk-backend/pkg/enums"
	"github.com/angelmondragon/shopdesk-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Repository persists invoices and reads the sales they describe.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	LoadSale(ctx context.Context, saleID uuid.UUID) (*models.Sale, *models.Shop, error)
	FindBySale(ctx context.Context, saleID uuid.UUID) (*models.Invoice, error)
	FindByID(ctx context.Context, shopID, invoiceID uuid.UUID) (*models.Invoice, error)
	Create(ctx context.Context, invoice *models.Invoice) error
	MarkIssued(ctx context.Context, invoiceID uuid.UUID, uri string, at time.Time, regenerated bool) error
	MarkFailed(ctx context.Context, invoiceID uuid.UUID, message string) error
	List(ctx context.Context, shopID uuid.UUID, filter Filter, cursor *pagination.Cursor, limit int) ([]models.Invoice, error)
	Summary(ctx context.Context, shopID uuid.UUID, filter Filter) (int64, decimal.Decimal, error)
	SalesMissingInvoice(ctx context.Context, before time.Time, limit int) ([]uuid.UUID, error)
}

// Filter bounds invoice listings by creation time.
type Filter struct {
	Start *time.Time
	End   *time.Time
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) LoadSale(ctx context.Context, saleID uuid.UUID) (*models.Sale, *models.Shop, error) {
	var sale models.Sale
	if err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&sale, "id = ?", saleID).Error; err != nil {
		return nil, nil, err
	}
	var shop models.Shop
	if err := r.db.WithContext(ctx).First(&shop, "id = ?", sale.ShopID).Error; err != nil {
		return nil, nil, err
	}
	return &sale, &shop, nil
}

func (r *repository) FindBySale(ctx context.Context, saleID uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.WithContext(ctx).Where("sale_id = ?", saleID).First(&invoice).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *repository) FindByID(ctx context.Context, shopID, invoiceID uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.WithContext(ctx).
		Preload("Sale").
		Where("id = ? AND shop_id = ?", invoiceID, shopID).
		First(&invoice).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *repository) Create(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Omit("Sale").Create(invoice).Error
}

func (r *repository) MarkIssued(ctx context.Context, invoiceID uuid.UUID, uri string, at time.Time, regenerated bool) error {
	updates := map[string]any{
		"status":       enums.InvoiceStatusIssued,
		"artifact_uri": uri,
		"last_error":   nil,
		"updated_at":   at,
	}
	if regenerated {
		updates["regenerated_at"] = at
	} else {
		updates["issued_at"] = at
	}
	return r.db.WithContext(ctx).Model(&models.Invoice{}).Where("id = ?", invoiceID).Updates(updates).Error
}

func (r *repository) MarkFailed(ctx context.Context, invoiceID uuid.UUID, message string) error {
	return r.db.WithContext(ctx).Model(&models.Invoice{}).Where("id = ?", invoiceID).Updates(map[string]any{
		"status":     enums.InvoiceStatusFailed,
		"last_error": message,
		"updated_at": time.Now().UTC(),
	}).Error
}

func (r *repository) List(ctx context.Context, shopID uuid.UUID, filter Filter, cursor *pagination.Cursor, limit int) ([]models.Invoice, error) {
	query := applyFilter(r.db.WithContext(ctx).Model(&models.Invoice{}).Preload("Sale"), shopID, filter)
	query = pagination.ApplyDescending(query, "invoices", cursor)

	var invoices []models.Invoice
	if err := query.Limit(limit).Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *repository) Summary(ctx context.Context, shopID uuid.UUID, filter Filter) (int64, decimal.Decimal, error) {
	var row struct {
		Count int64
		Total decimal.Decimal
	}
	query := applyFilter(r.db.WithContext(ctx).Model(&models.Invoice{}), shopID, filter).
		Joins("JOIN sales ON sales.id = invoices.sale_id").
		Select("COUNT(invoices.id) AS count, COALESCE(SUM(sales.total_amount), 0) AS total")
	if err := query.Scan(&row).Error; err != nil {
		return 0, decimal.Zero, err
	}
	return row.Count, row.Total, nil
}

// SalesMissingInvoice returns sales created before the cutoff that have no
// issued invoice, oldest first.
func (r *repository) SalesMissingInvoice(ctx context.Context, before time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Sale{}).
		Joins("LEFT JOIN invoices ON invoices.sale_id = sales.id").
		Where("sales.created_at < ?", before).
		Where("invoices.id IS NULL OR invoices.status <> ?", enums.InvoiceStatusIssued).
		Order("sales.created_at ASC").
		Limit(limit).
		Pluck("sales.id", &ids).Error
	return ids, err
}

func applyFilter(query *gorm.DB, shopID uuid.UUID, filter Filter) *gorm.DB {
	query = query.Where("invoices.shop_id = ?", shopID)
	if filter.Start != nil {
		query = query.Where("invoices.created_at >= ?", *filter.Start)
	}
	if filter.End != nil {
		query = query.Where("invoices.created_at < ?", *filter.End)
	}
	return query
}
