package registry

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/shopdesk-backend/pkg/enums"
	"github.com/angelmondragon/shopdesk-backend/pkg/outbox/payloads"
)

func TestDecodeProjectsTypedPayload(t *testing.T) {
	reg := NewDecoderRegistry()
	Register(reg, enums.EventSaleCompleted, 1, func(p payloads.SaleCompletedEvent) (any, error) {
		return p.SaleID, nil
	})

	saleID := uuid.New()
	raw, err := json.Marshal(payloads.SaleCompletedEvent{SaleID: saleID, ShopID: uuid.New()})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	out, err := reg.Decode(enums.EventSaleCompleted, 1, raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got, ok := out.(uuid.UUID); !ok || got != saleID {
		t.Fatalf("expected sale id %s, got %#v", saleID, out)
	}
}

func TestDecodeUnknownVersion(t *testing.T) {
	reg := NewDecoderRegistry()
	Register(reg, enums.EventSaleCompleted, 1, func(p payloads.SaleCompletedEvent) (any, error) { return p, nil })

	_, err := reg.Decode(enums.EventSaleCompleted, 2, json.RawMessage(`{}`))
	if !errors.Is(err, ErrNoDecoder) {
		t.Fatalf("expected ErrNoDecoder, got %v", err)
	}
	_, err = reg.Decode(enums.EventInvoiceIssued, 1, json.RawMessage(`{}`))
	if !errors.Is(err, ErrNoDecoder) {
		t.Fatalf("expected ErrNoDecoder, got %v", err)
	}
}

func TestDecodeMalformedPayload(t *testing.T) {
	reg := NewDecoderRegistry()
	called := false
	Register(reg, enums.EventSaleItemsChanged, 1, func(p payloads.SaleItemsChangedEvent) (any, error) {
		called = true
		return p, nil
	})

	_, err := reg.Decode(enums.EventSaleItemsChanged, 1, json.RawMessage(`{"sale_id":42}`))
	if err == nil {
		t.Fatal("expected decode error")
	}
	if errors.Is(err, ErrNoDecoder) {
		t.Fatalf("malformed payload should not look unregistered: %v", err)
	}
	if called {
		t.Fatal("projection ran on a payload that failed to decode")
	}
}
