package analytics

import (
	"errors"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"

	"github.com/angelmondragon/shopdesk-backend/pkg/enums"
	"github.com/angelmondragon/shopdesk-backend/pkg/outbox"
	"github.com/angelmondragon/shopdesk-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/shopdesk-backend/pkg/outbox/registry"
)

// ErrUnsupportedEvent marks event types the analytics export ignores.
var ErrUnsupportedEvent = errors.New("event type not exported")

// Mapper turns outbox envelopes into sale_events rows.
type Mapper struct {
	decoders *registry.DecoderRegistry
}

func NewMapper() *Mapper {
	decoders := registry.NewDecoderRegistry()
	registry.Register(decoders, enums.EventSaleCompleted, 1, func(p payloads.SaleCompletedEvent) (any, error) {
		row := &SaleEventRow{
			ShopID:      p.ShopID.String(),
			SaleID:      p.SaleID.String(),
			TotalAmount: p.TotalAmount.Rat(),
			ItemCount:   bigquery.NullInt64{Int64: int64(p.ItemCount), Valid: true},
		}
		if p.CashierID != nil {
			row.ActorID = bigquery.NullString{StringVal: p.CashierID.String(), Valid: true}
		}
		return row, nil
	})
	registry.Register(decoders, enums.EventSaleItemsChanged, 1, func(p payloads.SaleItemsChangedEvent) (any, error) {
		return &SaleEventRow{
			ShopID:      p.ShopID.String(),
			SaleID:      p.SaleID.String(),
			TotalAmount: p.TotalAmount.Rat(),
		}, nil
	})
	registry.Register(decoders, enums.EventInvoiceIssued, 1, func(p payloads.InvoiceIssuedEvent) (any, error) {
		return &SaleEventRow{
			ShopID:        p.ShopID.String(),
			SaleID:        p.SaleID.String(),
			InvoiceNumber: bigquery.NullString{StringVal: p.Number, Valid: p.Number != ""},
			Regenerated:   bigquery.NullBool{Bool: p.Regenerated, Valid: true},
		}, nil
	})
	return &Mapper{decoders: decoders}
}

// Row decodes envelope according to eventType.
func (m *Mapper) Row(eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) (*SaleEventRow, error) {
	if !eventType.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEvent, eventType)
	}
	if _, err := uuid.Parse(envelope.EventID); err != nil {
		return nil, fmt.Errorf("event id: %w", err)
	}
	version := envelope.Version
	if version == 0 {
		version = 1
	}
	decoded, err := m.decoders.Decode(eventType, version, envelope.Data)
	if errors.Is(err, registry.ErrNoDecoder) {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedEvent, err)
	}
	if err != nil {
		return nil, err
	}
	row, ok := decoded.(*SaleEventRow)
	if !ok || row.SaleID == uuid.Nil.String() {
		return nil, errors.New("payload missing sale id")
	}

	row.EventID = envelope.EventID
	row.EventType = string(eventType)
	row.OccurredAt = envelope.OccurredAt.UTC()
	if envelope.Actor != nil {
		if !row.ActorID.Valid && envelope.Actor.UserID != uuid.Nil {
			row.ActorID = bigquery.NullString{StringVal: envelope.Actor.UserID.String(), Valid: true}
		}
		if envelope.Actor.Role != "" {
			row.ActorRole = bigquery.NullString{StringVal: envelope.Actor.Role, Valid: true}
		}
	}
	if len(envelope.Data) > 0 {
		row.Payload = bigquery.NullJSON{JSONVal: string(envelope.Data), Valid: true}
	}
	return row, nil
}
