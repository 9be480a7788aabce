package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopdesk-backend/pkg/enums"
)

// User represents a shop account. ShopID is nil only for superusers.
type User struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey"`
	Username     string         `gorm:"column:username;not null;uniqueIndex"`
	Email        *string        `gorm:"column:email"`
	Phone        *string        `gorm:"column:phone;uniqueIndex"`
	FirstName    string         `gorm:"column:first_name;not null;default:''"`
	LastName     string         `gorm:"column:last_name;not null;default:''"`
	PasswordHash string         `gorm:"column:password_hash;not null"`
	Role         enums.ShopRole `gorm:"column:role;type:shop_role;not null;default:'cashier'"`
	ShopID       *uuid.UUID     `gorm:"column:shop_id;type:uuid;index"`
	IsSuperuser  bool           `gorm:"column:is_superuser;not null;default:false"`
	IsActive     bool           `gorm:"column:is_active;not null;default:true"`
	LastLoginAt  *time.Time     `gorm:"column:last_login_at"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	assignID(&u.ID)
	return nil
}
