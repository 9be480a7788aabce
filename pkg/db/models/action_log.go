package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopdesk-backend/pkg/enums"
)

// ActionLog is an append-only audit entry.
type ActionLog struct {
	ID          uuid.UUID        `gorm:"type:uuid;primaryKey"`
	ShopID      uuid.UUID        `gorm:"column:shop_id;type:uuid;not null;index"`
	ActorID     *uuid.UUID       `gorm:"column:actor_id;type:uuid"`
	Action      enums.ActionKind `gorm:"column:action;type:action_kind;not null"`
	ObjectType  string           `gorm:"column:object_type;not null;default:''"`
	ObjectID    *string          `gorm:"column:object_id"`
	Description string           `gorm:"column:description;not null"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime"`
}

func (a *ActionLog) BeforeCreate(*gorm.DB) error {
	assignID(&a.ID)
	return nil
}
