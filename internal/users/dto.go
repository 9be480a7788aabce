package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/shopdesk-backend/pkg/db/models"
	"github.com/angelmondragon/shopdesk-backend/pkg/enums"
)

// UserDTO is the transport shape that omits sensitive credentials.
type UserDTO struct {
	ID          uuid.UUID      `json:"id"`
	Username    string         `json:"username"`
	Email       *string        `json:"email,omitempty"`
	Phone       *string        `json:"phone,omitempty"`
	FirstName   string         `json:"first_name"`
	LastName    string         `json:"last_name"`
	Role        enums.ShopRole `json:"role"`
	ShopID      *uuid.UUID     `json:"shop_id,omitempty"`
	IsSuperuser bool           `json:"is_superuser,omitempty"`
	IsActive    bool           `json:"is_active"`
	LastLoginAt *time.Time     `json:"last_login_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Username     string
	Email        *string
	Phone        *string
	FirstName    string
	LastName     string
	PasswordHash string
	Role         enums.ShopRole
	ShopID       *uuid.UUID
	IsActive     *bool
}

// CreateStaffInput is the admin request to open a staff account.
type CreateStaffInput struct {
	Username  string         `json:"username" validate:"required,min=3,max=150"`
	Password  string         `json:"password" validate:"required,min=6"`
	Email     *string        `json:"email,omitempty" validate:"omitempty,email"`
	Phone     *string        `json:"phone,omitempty"`
	FirstName string         `json:"first_name"`
	LastName  string         `json:"last_name"`
	Role      enums.ShopRole `json:"role"`
}

// UpdateStaffInput edits a staff account. An empty password keeps the old one.
type UpdateStaffInput struct {
	Username  *string         `json:"username,omitempty" validate:"omitempty,min=3,max=150"`
	Password  *string         `json:"password,omitempty" validate:"omitempty,min=6"`
	Email     *string         `json:"email,omitempty" validate:"omitempty,email"`
	Phone     *string         `json:"phone,omitempty"`
	FirstName *string         `json:"first_name,omitempty"`
	LastName  *string         `json:"last_name,omitempty"`
	Role      *enums.ShopRole `json:"role,omitempty"`
	IsActive  *bool           `json:"is_active,omitempty"`
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}

	return &UserDTO{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		Phone:       u.Phone,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Role:        u.Role,
		ShopID:      u.ShopID,
		IsSuperuser: u.IsSuperuser,
		IsActive:    u.IsActive,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

func (c CreateUserDTO) ToModel() *models.User {
	isActive := true
	if c.IsActive != nil {
		isActive = *c.IsActive
	}
	role := c.Role
	if role == "" {
		role = enums.ShopRoleCashier
	}

	return &models.User{
		Username:     c.Username,
		Email:        c.Email,
		Phone:        c.Phone,
		FirstName:    c.FirstName,
		LastName:     c.LastName,
		PasswordHash: c.PasswordHash,
		Role:         role,
		ShopID:       c.ShopID,
		IsActive:     isActive,
	}
}
