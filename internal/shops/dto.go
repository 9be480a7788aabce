package shops

import (
	"time"

	"github.com/angelmondragon/shopdesk-backend/pkg/db/models"
	"github.com/angelmondragon/shopdesk-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ShopDTO is the shop profile returned to clients.
type ShopDTO struct {
	ID        uuid.UUID      `json:"id"`
	Name      string         `json:"name"`
	OwnerID   uuid.UUID      `json:"owner_id"`
	Plan      enums.PlanTier `json:"plan"`
	Address   *string        `json:"address,omitempty"`
	Phone     *string        `json:"phone,omitempty"`
	Email     *string        `json:"email,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// OwnedShop is one row of the owner's shop list.
type OwnedShop struct {
	ShopDTO
	TotalSales decimal.Decimal `json:"total_sales"`
	IsCurrent  bool            `json:"is_current"`
}

// CreateShopInput opens an additional shop for the caller.
type CreateShopInput struct {
	Name    string  `json:"name" validate:"required,max=100"`
	Address *string `json:"address,omitempty"`
	Phone   *string `json:"phone,omitempty" validate:"omitempty,max=20"`
	Email   *string `json:"email,omitempty" validate:"omitempty,email"`
}

// UpdateShopInput edits the profile. Nil fields are left unchanged.
type UpdateShopInput struct {
	Name    *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Address *string `json:"address,omitempty"`
	Phone   *string `json:"phone,omitempty" validate:"omitempty,max=20"`
	Email   *string `json:"email,omitempty" validate:"omitempty,email"`
}

// RecentSale is a compact sale row shown on the dashboard.
type RecentSale struct {
	ID            uuid.UUID           `json:"id"`
	TotalAmount   decimal.Decimal     `json:"total_amount"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	CreatedAt     time.Time           `json:"created_at"`
}

// Dashboard summarizes the shop's day.
type Dashboard struct {
	Shop         ShopDTO         `json:"shop"`
	TodaySales   decimal.Decimal `json:"today_sales"`
	ProductCount int64           `json:"product_count"`
	LowStock     int64           `json:"low_stock_count"`
	RecentSales  []RecentSale    `json:"recent_sales"`
}

func FromModel(m *models.Shop) ShopDTO {
	return ShopDTO{
		ID:        m.ID,
		Name:      m.Name,
		OwnerID:   m.OwnerID,
		Plan:      m.Plan,
		Address:   m.Address,
		Phone:     m.Phone,
		Email:     m.Email,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
