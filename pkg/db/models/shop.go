package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopdesk-backend/pkg/enums"
)

// Shop is the tenant boundary. Every catalog item, sale, ledger entry and
// non-superuser account belongs to exactly one shop.
type Shop struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey"`
	Name      string         `gorm:"column:name;not null"`
	OwnerID   uuid.UUID      `gorm:"column:owner_id;type:uuid;not null;index"`
	Plan      enums.PlanTier `gorm:"column:plan;type:plan_tier;not null;default:'free'"`
	Address   *string        `gorm:"column:address"`
	Phone     *string        `gorm:"column:phone"`
	Email     *string        `gorm:"column:email"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Shop) BeforeCreate(*gorm.DB) error {
	assignID(&s.ID)
	if s.Plan == "" {
		s.Plan = enums.PlanFree
	}
	return nil
}
