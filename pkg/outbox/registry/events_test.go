package registry

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shopdesk-backend/pkg/config"
	"github.com/angelmondragon/shopdesk-backend/pkg/db/models"
	"github.com/angelmondragon/shopdesk-backend/pkg/enums"
	"github.com/angelmondragon/shopdesk-backend/pkg/outbox"
	"github.com/angelmondragon/shopdesk-backend/pkg/outbox/payloads"
)

func salesRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{SalesTopic: "sales-topic"})
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return reg
}

// outboxRow builds a row whose envelope id matches the row id.
func outboxRow(t *testing.T, eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, data string) models.OutboxEvent {
	t.Helper()
	id := uuid.New()
	raw, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    id.String(),
		OccurredAt: time.Now().UTC(),
		Data:       json.RawMessage(data),
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return models.OutboxEvent{
		ID:            id,
		EventType:     eventType,
		AggregateType: aggregate,
		AggregateID:   uuid.New(),
		Payload:       raw,
	}
}

func TestResolveDecodesTypedPayload(t *testing.T) {
	saleID := uuid.New()
	data, err := json.Marshal(payloads.SaleCompletedEvent{SaleID: saleID, ShopID: uuid.New(), TotalAmount: decimal.NewFromInt(6000), ItemCount: 1})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	row := outboxRow(t, enums.EventSaleCompleted, enums.AggregateSale, string(data))

	resolved, err := salesRegistry(t).Resolve(row)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Descriptor.Topic != "sales-topic" || resolved.Envelope.EventID != row.ID.String() {
		t.Fatalf("unexpected resolution %+v", resolved)
	}
	payload, ok := resolved.Payload.(*payloads.SaleCompletedEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", resolved.Payload)
	}
	if payload.SaleID != saleID || !payload.TotalAmount.Equal(decimal.NewFromInt(6000)) {
		t.Fatalf("payload mismatch %+v", payload)
	}
}

func TestResolveRejectsBadRows(t *testing.T) {
	reg := salesRegistry(t)

	mismatchedID := outboxRow(t, enums.EventSaleCompleted, enums.AggregateSale, `{}`)
	mismatchedID.ID = uuid.New()

	futureVersion := outboxRow(t, enums.EventSaleCompleted, enums.AggregateSale, `{}`)
	futureVersion.Payload = json.RawMessage(strings.Replace(string(futureVersion.Payload), `"version":1`, `"version":2`, 1))

	noAggregate := outboxRow(t, enums.EventSaleCompleted, enums.AggregateSale, `{}`)
	noAggregate.AggregateID = uuid.Nil

	cases := map[string]models.OutboxEvent{
		"unknown type":       outboxRow(t, enums.OutboxEventType("sale_refunded"), enums.AggregateSale, `{}`),
		"aggregate mismatch": outboxRow(t, enums.EventSaleCompleted, enums.AggregateInvoice, `{}`),
		"missing aggregate":  noAggregate,
		"null payload":       outboxRow(t, enums.EventSaleCompleted, enums.AggregateSale, `null`),
		"wrong field type":   outboxRow(t, enums.EventInvoiceIssued, enums.AggregateInvoice, `{"number":7}`),
		"event id mismatch":  mismatchedID,
		"future version":     futureVersion,
	}
	for name, row := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := reg.Resolve(row)
			var nonRetry NonRetryableError
			if !errors.As(err, &nonRetry) {
				t.Fatalf("expected non-retryable error, got %v", err)
			}
		})
	}
}

func TestNewEventRegistryRequiresSalesTopic(t *testing.T) {
	if _, err := NewEventRegistry(config.PubSubConfig{}); err == nil {
		t.Fatal("expected missing sales topic to fail")
	}
	if topics := salesRegistry(t).Topics(); len(topics) != 1 || topics[0] != "sales-topic" {
		t.Fatalf("unexpected topics %v", topics)
	}
}

func TestNonRetryableErrorUnwraps(t *testing.T) {
	cause := errors.New("bad payload")
	err := NewNonRetryableError(cause)
	if !errors.Is(err, cause) || err.Error() != "bad payload" {
		t.Fatalf("unexpected wrapping %v", err)
	}
	if (NonRetryableError{}).Error() != "non-retryable error" {
		t.Fatal("expected fallback message")
	}
}
