package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopdesk-backend/pkg/enums"
)

// StockMovement is an immutable stock ledger entry. SaleID is a plain column
// so deleting a sale never rewrites ledger history.
type StockMovement struct {
	ID        uuid.UUID            `gorm:"type:uuid;primaryKey"`
	ShopID    uuid.UUID            `gorm:"column:shop_id;type:uuid;not null;index"`
	ProductID uuid.UUID            `gorm:"column:product_id;type:uuid;not null;index"`
	Direction enums.StockDirection `gorm:"column:direction;type:stock_direction;not null"`
	Quantity  int                  `gorm:"column:quantity;not null;check:quantity > 0"`
	Reason    string               `gorm:"column:reason;not null"`
	SaleID    *uuid.UUID           `gorm:"column:sale_id;type:uuid;index"`
	ActorID   *uuid.UUID           `gorm:"column:actor_id;type:uuid"`
	CreatedAt time.Time            `gorm:"column:created_at;autoCreateTime"`
}

func (m *StockMovement) BeforeCreate(*gorm.DB) error {
	assignID(&m.ID)
	return nil
}
