package shops

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/shopdesk-backend/pkg/db/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Repository handles shop persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to shop operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create persists a new shop row.
func (r *Repository) Create(ctx context.Context, shop *models.Shop) error {
	if shop == nil {
		return fmt.Errorf("shop is required")
	}
	return r.db.WithContext(ctx).Create(shop).Error
}

// FindByID loads a shop by its UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Shop, error) {
	var shop models.Shop
	if err := r.db.WithContext(ctx).First(&shop, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &shop, nil
}

// FindOwned loads id only when ownerID owns it.
func (r *Repository) FindOwned(ctx context.Context, ownerID, id uuid.UUID) (*models.Shop, error) {
	var shop models.Shop
	if err := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		First(&shop).Error; err != nil {
		return nil, err
	}
	return &shop, nil
}

// FindByOwner returns all shops owned by the provided user, oldest first.
func (r *Repository) FindByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Shop, error) {
	var shops []models.Shop
	if err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at ASC").
		Find(&shops).Error; err != nil {
		return nil, err
	}
	return shops, nil
}

// Update saves the profile columns of shop.
func (r *Repository) Update(ctx context.Context, shop *models.Shop) error {
	if shop == nil {
		return fmt.Errorf("shop is required")
	}
	return r.db.WithContext(ctx).
		Model(&models.Shop{}).
		Where("id = ?", shop.ID).
		Updates(map[string]any{
			"name":       shop.Name,
			"address":    shop.Address,
			"phone":      shop.Phone,
			"email":      shop.Email,
			"updated_at": time.Now().UTC(),
		}).Error
}

type shopTotal struct {
	ShopID uuid.UUID
	Total  decimal.Decimal
}

// SalesTotals sums sales per shop for ids.
func (r *Repository) SalesTotals(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	out := make(map[uuid.UUID]decimal.Decimal, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []shopTotal
	if err := r.db.WithContext(ctx).
		Model(&models.Sale{}).
		Select("shop_id, COALESCE(SUM(total_amount), 0) AS total").
		Where("shop_id IN ?", ids).
		Group("shop_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ShopID] = row.Total
	}
	return out, nil
}

// SalesBetween sums the shop's sales created in [from, to).
func (r *Repository) SalesBetween(ctx context.Context, shopID uuid.UUID, from, to time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.WithContext(ctx).
		Model(&models.Sale{}).
		Select("COALESCE(SUM(total_amount), 0)").
		Where("shop_id = ? AND created_at >= ? AND created_at < ?", shopID, from, to).
		Row().
		Scan(&total)
	return total, err
}

// ProductCounts returns the live product count and how many are at or below
// their alert threshold.
func (r *Repository) ProductCounts(ctx context.Context, shopID uuid.UUID) (int64, int64, error) {
	var all, low int64
	if err := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("shop_id = ?", shopID).
		Count(&all).Error; err != nil {
		return 0, 0, err
	}
	if err := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("shop_id = ? AND quantity <= alert_threshold", shopID).
		Count(&low).Error; err != nil {
		return 0, 0, err
	}
	return all, low, nil
}

// RecentSales returns the newest sales of the shop.
func (r *Repository) RecentSales(ctx context.Context, shopID uuid.UUID, limit int) ([]models.Sale, error) {
	var rows []models.Sale
	err := r.db.WithContext(ctx).
		Where("shop_id = ?", shopID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
