package analytics

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
)

// SaleEventRow mirrors the sale_events BigQuery schema. One row per outbox
// event; amounts are NUMERIC.
type SaleEventRow struct {
	EventID       string              `bigquery:"event_id"`
	EventType     string              `bigquery:"event_type"`
	OccurredAt    time.Time           `bigquery:"occurred_at"`
	ShopID        string              `bigquery:"shop_id"`
	SaleID        string              `bigquery:"sale_id"`
	ActorID       bigquery.NullString `bigquery:"actor_id"`
	ActorRole     bigquery.NullString `bigquery:"actor_role"`
	InvoiceNumber bigquery.NullString `bigquery:"invoice_number"`
	TotalAmount   *big.Rat            `bigquery:"total_amount"`
	ItemCount     bigquery.NullInt64  `bigquery:"item_count"`
	Regenerated   bigquery.NullBool   `bigquery:"regenerated"`
	Payload       bigquery.NullJSON   `bigquery:"payload"`
}

// saver keys the streaming insert on the event id so redelivered events are
// deduplicated by BigQuery on a best-effort basis.
func (r *SaleEventRow) saver() *bigquery.StructSaver {
	return &bigquery.StructSaver{Struct: r, InsertID: r.EventID}
}
