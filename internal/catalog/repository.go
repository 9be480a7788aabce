package catalog

import (
	"context"
	"strings"

	"github.com/angelmondragon/shopdesk-backend/pkg/db/models"
	"github.com/angelmondragon/shopdesk-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProductFilter narrows catalog listings.
type ProductFilter struct {
	LowStock   bool
	CategoryID *uuid.UUID
	Query      string
}

// Repository is the GORM-backed catalog store. Every query is scoped to a shop.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a catalog repository bound to db.
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

// LockShop loads the shop row with an update lock so product counts taken
// afterwards cannot race a concurrent create.
func (r *Repository) LockShop(ctx context.Context, shopID uuid.UUID) (*models.Shop, error) {
	var shop models.Shop
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", shopID).
		First(&shop).Error; err != nil {
		return nil, err
	}
	return &shop, nil
}

// CountProducts returns the number of live products in the shop.
func (r *Repository) CountProducts(ctx context.Context, shopID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Product{}).Where("shop_id = ?", shopID).Count(&count).Error
	return count, err
}

func (r *Repository) CreateProduct(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *Repository) FindProduct(ctx context.Context, shopID, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).
		Where("id = ? AND shop_id = ?", productID, shopID).
		First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// LockProduct loads a live product with an update lock.
func (r *Repository) LockProduct(ctx context.Context, shopID, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND shop_id = ?", productID, shopID).
		First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// ProductExists reports whether the product ever existed in the shop,
// including soft-deleted rows whose ledger history is still readable.
func (r *Repository) ProductExists(ctx context.Context, shopID, productID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Unscoped().Model(&models.Product{}).
		Where("id = ? AND shop_id = ?", productID, shopID).
		Count(&count).Error
	return count > 0, err
}

// UpdateProductFields writes the given columns. Quantity is never part of
// fields; it only moves through the stock ledger.
func (r *Repository) UpdateProductFields(ctx context.Context, shopID, productID uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	delete(fields, "quantity")
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND shop_id = ?", productID, shopID).
		Updates(fields).Error
}

func (r *Repository) SoftDeleteProduct(ctx context.Context, shopID, productID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND shop_id = ?", productID, shopID).
		Delete(&models.Product{})
	return res.RowsAffected > 0, res.Error
}

func (r *Repository) ListProducts(ctx context.Context, shopID uuid.UUID, filter ProductFilter, cursor *pagination.Cursor, limit int) ([]models.Product, error) {
	query := r.db.WithContext(ctx).Model(&models.Product{}).Where("shop_id = ?", shopID)
	if filter.LowStock {
		query = query.Where("quantity <= alert_threshold")
	}
	if filter.CategoryID != nil {
		query = query.Where("category_id = ?", *filter.CategoryID)
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(q)+"%")
	}
	query = pagination.ApplyDescending(query, "", cursor)

	var products []models.Product
	if err := query.Limit(pagination.LimitWithBuffer(limit)).Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func (r *Repository) CreateCategory(ctx context.Context, category *models.Category) error {
	return r.db.WithContext(ctx).Create(category).Error
}

func (r *Repository) FindCategory(ctx context.Context, shopID, categoryID uuid.UUID) (*models.Category, error) {
	var category models.Category
	if err := r.db.WithContext(ctx).
		Where("id = ? AND shop_id = ?", categoryID, shopID).
		First(&category).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *Repository) ListCategories(ctx context.Context, shopID uuid.UUID) ([]models.Category, error) {
	var categories []models.Category
	if err := r.db.WithContext(ctx).
		Where("shop_id = ?", shopID).
		Order("name ASC").
		Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

func (r *Repository) UpdateCategory(ctx context.Context, category *models.Category) error {
	return r.db.WithContext(ctx).
		Model(&models.Category{}).
		Where("id = ? AND shop_id = ?", category.ID, category.ShopID).
		Updates(map[string]any{"name": category.Name, "description": category.Description}).Error
}

// DeleteCategory detaches the category from its products then removes it.
func (r *Repository) DeleteCategory(ctx context.Context, shopID, categoryID uuid.UUID) (bool, error) {
	if err := r.db.WithContext(ctx).Unscoped().
		Model(&models.Product{}).
		Where("shop_id = ? AND category_id = ?", shopID, categoryID).
		Update("category_id", nil).Error; err != nil {
		return false, err
	}
	res := r.db.WithContext(ctx).
		Where("id = ? AND shop_id = ?", categoryID, shopID).
		Delete(&models.Category{})
	return res.RowsAffected > 0, res.Error
}
