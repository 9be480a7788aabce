package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SaleCompletedEvent is queued in the same transaction that commits a sale.
// The invoice worker issues the sale's invoice when it receives it.
type SaleCompletedEvent struct {
	SaleID      uuid.UUID       `json:"sale_id"`
	ShopID      uuid.UUID       `json:"shop_id"`
	CashierID   *uuid.UUID      `json:"cashier_id,omitempty"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	ItemCount   int             `json:"item_count"`
	CompletedAt time.Time       `json:"completed_at"`
}

// SaleItemsChangedEvent asks for the invoice artifact to be regenerated
// under its existing number.
type SaleItemsChangedEvent struct {
	SaleID      uuid.UUID       `json:"sale_id"`
	ShopID      uuid.UUID       `json:"shop_id"`
	ItemID      uuid.UUID       `json:"item_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	ChangedAt   time.Time       `json:"changed_at"`
}

// InvoiceIssuedEvent announces that an invoice artifact is available.
type InvoiceIssuedEvent struct {
	InvoiceID   uuid.UUID `json:"invoice_id"`
	SaleID      uuid.UUID `json:"sale_id"`
	ShopID      uuid.UUID `json:"shop_id"`
	Number      string    `json:"number"`
	ArtifactURI string    `json:"artifact_uri"`
	Regenerated bool      `json:"regenerated"`
}
