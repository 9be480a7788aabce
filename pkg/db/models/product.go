package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is a tenant-scoped catalog item. Quantity only changes through
// paths that append a matching stock movement.
type Product struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey"`
	ShopID         uuid.UUID       `gorm:"column:shop_id;type:uuid;not null;index"`
	CategoryID     *uuid.UUID      `gorm:"column:category_id;type:uuid"`
	Name           string          `gorm:"column:name;not null"`
	Description    *string         `gorm:"column:description"`
	PurchasePrice  decimal.Decimal `gorm:"column:purchase_price;type:numeric(14,2);not null;default:0"`
	SellingPrice   decimal.Decimal `gorm:"column:selling_price;type:numeric(14,2);not null;default:0"`
	Quantity       int             `gorm:"column:quantity;not null;default:0;check:quantity >= 0"`
	AlertThreshold int             `gorm:"column:alert_threshold;not null"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt      gorm.DeletedAt  `gorm:"column:deleted_at;index"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}

// IsLowStock reports whether on-hand quantity reached the alert threshold.
func (p Product) IsLowStock() bool {
	return p.Quantity <= p.AlertThreshold
}
