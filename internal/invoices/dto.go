package invoices

import (
	"time"

	"github.com/angelmondragon/shopdesk-backend/pkg/db/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type InvoiceDTO struct {
	ID            uuid.UUID        `json:"id"`
	SaleID        uuid.UUID        `json:"sale_id"`
	Number        string           `json:"number"`
	Status        string           `json:"status"`
	TotalAmount   *decimal.Decimal `json:"total_amount,omitempty"`
	ArtifactURI   *string          `json:"artifact_uri,omitempty"`
	DownloadURL   string           `json:"download_url,omitempty"`
	LastError     *string          `json:"last_error,omitempty"`
	IssuedAt      *time.Time       `json:"issued_at,omitempty"`
	RegeneratedAt *time.Time       `json:"regenerated_at,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

// ListResult is a page of invoices plus aggregates over the whole filter.
type ListResult struct {
	Invoices    []InvoiceDTO    `json:"invoices"`
	Count       int64           `json:"count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	NextCursor  string          `json:"next_cursor,omitempty"`
}

func newInvoiceDTO(invoice *models.Invoice, downloadURL func(number string) string) InvoiceDTO {
	dto := InvoiceDTO{
		ID:            invoice.ID,
		SaleID:        invoice.SaleID,
		Number:        invoice.Number,
		Status:        invoice.Status.String(),
		ArtifactURI:   invoice.ArtifactURI,
		LastError:     invoice.LastError,
		IssuedAt:      invoice.IssuedAt,
		RegeneratedAt: invoice.RegeneratedAt,
		CreatedAt:     invoice.CreatedAt,
	}
	if invoice.Sale != nil {
		total := invoice.Sale.TotalAmount
		dto.TotalAmount = &total
	}
	if invoice.ArtifactURI != nil && downloadURL != nil {
		dto.DownloadURL = downloadURL(invoice.Number)
	}
	return dto
}
