package sales

import (
	"time"

	"github.com/angelmondragon/shopdesk-backend/pkg/db/models"
	"github.com/angelmondragon/shopdesk-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SaleDTO is the sale payload returned to clients.
type SaleDTO struct {
	ID            uuid.UUID       `json:"id"`
	ShopID        uuid.UUID       `json:"shop_id"`
	CashierID     *uuid.UUID      `json:"cashier_id,omitempty"`
	PaymentMethod string          `json:"payment_method"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	ClientRef     *string         `json:"client_ref,omitempty"`
	Items         []SaleItemDTO   `json:"items"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// SaleItemDTO is one line of a sale.
type SaleItemDTO struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   *uuid.UUID      `json:"product_id,omitempty"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// SaleListResult is a page of sales, newest first.
type SaleListResult struct {
	Sales      []SaleDTO `json:"sales"`
	NextCursor string    `json:"next_cursor,omitempty"`
}

// BatchStatus is the outcome of one offline batch operation.
type BatchStatus string

const (
	BatchCreated   BatchStatus = "created"
	BatchDuplicate BatchStatus = "duplicate"
	BatchFailed    BatchStatus = "failed"
)

// BatchResult reports one operation of a batch independently of the others.
type BatchResult struct {
	Index     int             `json:"index"`
	ClientRef string          `json:"client_ref,omitempty"`
	Status    BatchStatus     `json:"status"`
	SaleID    *uuid.UUID      `json:"sale_id,omitempty"`
	Error     *types.APIError `json:"error,omitempty"`
}

func NewSaleDTO(sale *models.Sale) SaleDTO {
	dto := SaleDTO{
		ID:            sale.ID,
		ShopID:        sale.ShopID,
		CashierID:     sale.CashierID,
		PaymentMethod: sale.PaymentMethod.String(),
		TotalAmount:   sale.TotalAmount,
		ClientRef:     sale.ClientRef,
		Items:         make([]SaleItemDTO, 0, len(sale.Items)),
		CreatedAt:     sale.CreatedAt,
		UpdatedAt:     sale.UpdatedAt,
	}
	for _, item := range sale.Items {
		dto.Items = append(dto.Items, SaleItemDTO{
			ID:          item.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Subtotal:    item.Subtotal,
		})
	}
	return dto
}
