package catalog

import (
	"time"

	"github.com/angelmondragon/shopdesk-backend/pkg/db/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductDTO is the catalog item payload returned to clients.
type ProductDTO struct {
	ID             uuid.UUID       `json:"id"`
	CategoryID     *uuid.UUID      `json:"category_id,omitempty"`
	Name           string          `json:"name"`
	Description    *string         `json:"description,omitempty"`
	PurchasePrice  decimal.Decimal `json:"purchase_price"`
	SellingPrice   decimal.Decimal `json:"selling_price"`
	Quantity       int             `json:"quantity"`
	AlertThreshold int             `json:"alert_threshold"`
	LowStock       bool            `json:"low_stock"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// ProductListResult is a page of products.
type ProductListResult struct {
	Products   []ProductDTO `json:"products"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

// CategoryDTO is the category payload.
type CategoryDTO struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
}

// MovementDTO is one stock ledger entry.
type MovementDTO struct {
	ID        uuid.UUID  `json:"id"`
	Direction string     `json:"direction"`
	Quantity  int        `json:"quantity"`
	Reason    string     `json:"reason"`
	SaleID    *uuid.UUID `json:"sale_id,omitempty"`
	ActorID   *uuid.UUID `json:"actor_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// MovementListResult is a page of stock movements.
type MovementListResult struct {
	Movements  []MovementDTO `json:"movements"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

func NewProductDTO(p *models.Product) ProductDTO {
	return ProductDTO{
		ID:             p.ID,
		CategoryID:     p.CategoryID,
		Name:           p.Name,
		Description:    p.Description,
		PurchasePrice:  p.PurchasePrice,
		SellingPrice:   p.SellingPrice,
		Quantity:       p.Quantity,
		AlertThreshold: p.AlertThreshold,
		LowStock:       p.IsLowStock(),
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func NewCategoryDTO(c *models.Category) CategoryDTO {
	return CategoryDTO{ID: c.ID, Name: c.Name, Description: c.Description}
}

func NewMovementDTO(m models.StockMovement) MovementDTO {
	return MovementDTO{
		ID:        m.ID,
		Direction: string(m.Direction),
		Quantity:  m.Quantity,
		Reason:    m.Reason,
		SaleID:    m.SaleID,
		ActorID:   m.ActorID,
		CreatedAt: m.CreatedAt,
	}
}
