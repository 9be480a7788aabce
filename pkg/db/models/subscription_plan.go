package models

import (
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopdesk-backend/pkg/enums"
)

// SubscriptionPlan is the public catalogue entry for a tier.
type SubscriptionPlan struct {
	ID        uuid.UUID        `gorm:"type:uuid;primaryKey"`
	Code      enums.PlanTier   `gorm:"column:code;type:plan_tier;not null;uniqueIndex"`
	Name      string           `gorm:"column:name;not null"`
	Price     decimal.Decimal  `gorm:"column:price;type:numeric(14,2);not null"`
	OldPrice  *decimal.Decimal `gorm:"column:old_price;type:numeric(14,2)"`
	Features  pq.StringArray   `gorm:"column:features;type:text[]"`
	IsPopular bool             `gorm:"column:is_popular;not null;default:false"`
}

func (p *SubscriptionPlan) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}
