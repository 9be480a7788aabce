package invoices

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/angelmondragon/shopdesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopdesk-backend/pkg/errors"
	"github.com/angelmondragon/shopdesk-backend/pkg/logger"
	"github.com/angelmondragon/shopdesk-backend/pkg/outbox"
	"github.com/angelmondragon/shopdesk-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/shopdesk-backend/pkg/outbox/registry"
	"github.com/google/uuid"
)

const invoiceConsumerName = "invoice-worker"

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

type issuer interface {
	Issue(ctx context.Context, saleID uuid.UUID) (*InvoiceDTO, error)
	Regenerate(ctx context.Context, saleID uuid.UUID) (*InvoiceDTO, error)
}

type saleAction func(ctx context.Context, saleID uuid.UUID) (*InvoiceDTO, error)

// Consumer issues invoices from sale events delivered over Pub/Sub:
// sale_completed issues, sale_items_changed regenerates.
type Consumer struct {
	subscription receiver
	manager      idempotencyChecker
	decoders     *registry.DecoderRegistry
	actions      map[enums.OutboxEventType]saleAction
	logg         *logger.Logger
}

func NewConsumer(subscription receiver, svc issuer, manager idempotencyChecker, logg *logger.Logger) (*Consumer, error) {
	switch {
	case subscription == nil:
		return nil, errors.New("sales subscription required")
	case svc == nil:
		return nil, errors.New("invoice service required")
	case manager == nil:
		return nil, errors.New("idempotency manager required")
	case logg == nil:
		return nil, errors.New("logger required")
	}

	decoders := registry.NewDecoderRegistry()
	registry.Register(decoders, enums.EventSaleCompleted, 1, func(p payloads.SaleCompletedEvent) (any, error) {
		return p.SaleID, nil
	})
	registry.Register(decoders, enums.EventSaleItemsChanged, 1, func(p payloads.SaleItemsChangedEvent) (any, error) {
		return p.SaleID, nil
	})

	return &Consumer{
		subscription: subscription,
		manager:      manager,
		decoders:     decoders,
		actions: map[enums.OutboxEventType]saleAction{
			enums.EventSaleCompleted:    svc.Issue,
			enums.EventSaleItemsChanged: svc.Regenerate,
		},
		logg: logg,
	}, nil
}

// Run receives until ctx is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg.ID, msg.Attributes, msg.Data).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

var (
	acked     = processResult{ack: true}
	redeliver = processResult{nack: true}
)

// sale pulls the event id and sale id out of a delivery. Any error here is
// permanent: redelivering the same bytes cannot fix it.
func (c *Consumer) sale(eventType enums.OutboxEventType, data []byte) (eventID, saleID uuid.UUID, err error) {
	var env outbox.PayloadEnvelope
	if err = json.Unmarshal(data, &env); err != nil {
		return eventID, saleID, fmt.Errorf("decode envelope: %w", err)
	}
	if eventID, err = uuid.Parse(env.EventID); err != nil {
		return eventID, saleID, fmt.Errorf("event id: %w", err)
	}
	version := max(env.Version, 1)
	decoded, err := c.decoders.Decode(eventType, version, env.Data)
	if err != nil {
		return eventID, saleID, err
	}
	saleID, _ = decoded.(uuid.UUID)
	if saleID == uuid.Nil {
		return eventID, saleID, errors.New("payload has no sale id")
	}
	return eventID, saleID, nil
}

func (c *Consumer) process(ctx context.Context, messageID string, attributes map[string]string, data []byte) processResult {
	eventType := enums.OutboxEventType(attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": messageID,
		"event_type": eventType,
	})

	action, handled := c.actions[eventType]
	if !handled {
		c.logg.Debug(logCtx, "event ignored by invoice worker")
		return acked
	}
	eventID, saleID, err := c.sale(eventType, data)
	if err != nil {
		c.logg.Error(logCtx, "dropping undecodable sale event", err)
		return acked
	}
	logCtx = c.logg.WithSaleID(c.logg.WithField(logCtx, "event_id", eventID.String()), saleID.String())

	seen, err := c.manager.CheckAndMarkProcessed(ctx, invoiceConsumerName, eventID)
	switch {
	case err != nil:
		c.logg.Error(logCtx, "idempotency check failed", err)
		return redeliver
	case seen:
		c.logg.Info(logCtx, "duplicate sale event")
		return acked
	}

	if _, err := action(ctx, saleID); err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			c.logg.Warn(logCtx, "sale deleted before invoicing")
			return acked
		}
		c.logg.Error(logCtx, "invoice processing failed", err)
		if delErr := c.manager.Delete(ctx, invoiceConsumerName, eventID); delErr != nil {
			c.logg.Warn(logCtx, "failed to release idempotency mark")
		}
		return redeliver
	}
	return acked
}
