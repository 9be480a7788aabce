package stockledger

import (
	"context"

	"github.com/angelmondragon/shopdesk-backend/pkg/db/models"
	"github.com/angelmondragon/shopdesk-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists stock movements. Movements are append-only: there is
// deliberately no update or delete, and the database rejects both.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Append(ctx context.Context, movement *models.StockMovement) error
	ApplyDelta(ctx context.Context, shopID, productID uuid.UUID, delta int) (bool, error)
	ListByProduct(ctx context.Context, shopID, productID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.StockMovement, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Append(ctx context.Context, movement *models.StockMovement) error {
	return r.db.WithContext(ctx).Create(movement).Error
}

// ApplyDelta moves the cached on-hand quantity of a live product. Decrements
// are guarded so the row is only touched when enough stock remains; the
// boolean reports whether a row was updated.
func (r *repository) ApplyDelta(ctx context.Context, shopID, productID uuid.UUID, delta int) (bool, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND shop_id = ?", productID, shopID)
	if delta < 0 {
		query = query.Where("quantity >= ?", -delta)
	}
	res := query.Update("quantity", gorm.Expr("quantity + ?", delta))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ListByProduct(ctx context.Context, shopID, productID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.StockMovement, error) {
	var movements []models.StockMovement
	query := r.db.WithContext(ctx).
		Where("shop_id = ? AND product_id = ?", shopID, productID)
	query = pagination.ApplyDescending(query, "", cursor)
	if err := query.Limit(pagination.LimitWithBuffer(limit)).Find(&movements).Error; err != nil {
		return nil, err
	}
	return movements, nil
}
