package sales

import (
	"context"
	"sort"
	"time"

	"github.com/angelmondragon/shopdesk-backend/pkg/db/models"
	"github.com/angelmondragon/shopdesk-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists sales and their line items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	LockProducts(ctx context.Context, shopID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
	CreateSale(ctx context.Context, sale *models.Sale) error
	CreateItem(ctx context.Context, item *models.SaleItem) error
	SetTotal(ctx context.Context, saleID uuid.UUID, total decimal.Decimal) error
	FindByClientRef(ctx context.Context, shopID uuid.UUID, clientRef string) (*models.Sale, error)
	FindSale(ctx context.Context, shopID, saleID uuid.UUID) (*models.Sale, error)
	LockSale(ctx context.Context, shopID, saleID uuid.UUID) (*models.Sale, error)
	FindItem(ctx context.Context, saleID, itemID uuid.UUID) (*models.SaleItem, error)
	UpdateItem(ctx context.Context, item *models.SaleItem) error
	SumItems(ctx context.Context, saleID uuid.UUID) (decimal.Decimal, error)
	List(ctx context.Context, shopID uuid.UUID, filter ListFilter, cursor *pagination.Cursor, limit int) ([]models.Sale, error)
	DeleteSale(ctx context.Context, shopID, saleID uuid.UUID) (bool, error)
}

// ListFilter bounds a sales listing by creation time.
type ListFilter struct {
	From *time.Time
	To   *time.Time
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a sales repository bound to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// LockProducts row-locks the live products of the shop among ids. Locks are
// taken in id order so concurrent sales touching the same products queue
// instead of deadlocking.
func (r *repository) LockProducts(ctx context.Context, shopID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	out := make(map[uuid.UUID]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	sorted := append([]uuid.UUID(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].String() < sorted[j].String() })

	var products []models.Product
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("shop_id = ? AND id IN ?", shopID, sorted).
		Order("id").
		Find(&products).Error; err != nil {
		return nil, err
	}
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

func (r *repository) CreateSale(ctx context.Context, sale *models.Sale) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(sale).Error
}

func (r *repository) CreateItem(ctx context.Context, item *models.SaleItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *repository) SetTotal(ctx context.Context, saleID uuid.UUID, total decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&models.Sale{}).
		Where("id = ?", saleID).
		Update("total_amount", total).Error
}

func (r *repository) FindByClientRef(ctx context.Context, shopID uuid.UUID, clientRef string) (*models.Sale, error) {
	var sale models.Sale
	if err := r.db.WithContext(ctx).
		Where("shop_id = ? AND client_ref = ?", shopID, clientRef).
		First(&sale).Error; err != nil {
		return nil, err
	}
	return &sale, nil
}

func (r *repository) FindSale(ctx context.Context, shopID, saleID uuid.UUID) (*models.Sale, error) {
	var sale models.Sale
	if err := r.db.WithContext(ctx).
		Preload("Items", orderedItems).
		Where("id = ? AND shop_id = ?", saleID, shopID).
		First(&sale).Error; err != nil {
		return nil, err
	}
	return &sale, nil
}

func (r *repository) LockSale(ctx context.Context, shopID, saleID uuid.UUID) (*models.Sale, error) {
	var sale models.Sale
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND shop_id = ?", saleID, shopID).
		First(&sale).Error; err != nil {
		return nil, err
	}
	return &sale, nil
}

func (r *repository) FindItem(ctx context.Context, saleID, itemID uuid.UUID) (*models.SaleItem, error) {
	var item models.SaleItem
	if err := r.db.WithContext(ctx).
		Where("id = ? AND sale_id = ?", itemID, saleID).
		First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) UpdateItem(ctx context.Context, item *models.SaleItem) error {
	return r.db.WithContext(ctx).
		Model(&models.SaleItem{}).
		Where("id = ? AND sale_id = ?", item.ID, item.SaleID).
		Updates(map[string]any{
			"quantity":   item.Quantity,
			"unit_price": item.UnitPrice,
			"subtotal":   item.Subtotal,
		}).Error
}

// SumItems recomputes the sale total from its stored line subtotals.
func (r *repository) SumItems(ctx context.Context, saleID uuid.UUID) (decimal.Decimal, error) {
	var items []models.SaleItem
	if err := r.db.WithContext(ctx).
		Select("subtotal").
		Where("sale_id = ?", saleID).
		Find(&items).Error; err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal)
	}
	return total, nil
}

func (r *repository) List(ctx context.Context, shopID uuid.UUID, filter ListFilter, cursor *pagination.Cursor, limit int) ([]models.Sale, error) {
	query := r.db.WithContext(ctx).
		Preload("Items", orderedItems).
		Where("shop_id = ?", shopID)
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("created_at < ?", *filter.To)
	}
	query = pagination.ApplyDescending(query, "", cursor)

	var sales []models.Sale
	if err := query.Limit(pagination.LimitWithBuffer(limit)).Find(&sales).Error; err != nil {
		return nil, err
	}
	return sales, nil
}

// DeleteSale removes the sale with its lines and invoice. Stock movements
// keep their sale_id as history.
func (r *repository) DeleteSale(ctx context.Context, shopID, saleID uuid.UUID) (bool, error) {
	db := r.db.WithContext(ctx)
	if err := db.Where("sale_id = ? AND shop_id = ?", saleID, shopID).Delete(&models.Invoice{}).Error; err != nil {
		return false, err
	}
	if err := db.Where("sale_id IN (?)", db.Model(&models.Sale{}).Select("id").Where("id = ? AND shop_id = ?", saleID, shopID)).
		Delete(&models.SaleItem{}).Error; err != nil {
		return false, err
	}
	res := db.Where("id = ? AND shop_id = ?", saleID, shopID).Delete(&models.Sale{})
	return res.RowsAffected > 0, res.Error
}

func orderedItems(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}
