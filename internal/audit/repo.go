package audit

import (
	"context"

	"github.com/angelmondragon/shopdesk-backend/pkg/db/models"
	"github.com/angelmondragon/shopdesk-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists audit log entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.ActionLog) error
	List(ctx context.Context, shopID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.ActionLog, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an audit repository bound to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, entry *models.ActionLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) List(ctx context.Context, shopID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.ActionLog, error) {
	var entries []models.ActionLog
	query := pagination.ApplyDescending(r.db.WithContext(ctx).Where("shop_id = ?", shopID), "", cursor)
	if err := query.Limit(pagination.LimitWithBuffer(limit)).Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
