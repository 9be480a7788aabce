package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/shopdesk-backend/pkg/enums"
	"github.com/angelmondragon/shopdesk-backend/pkg/logger"
	"github.com/angelmondragon/shopdesk-backend/pkg/outbox"
)

const consumerName = "sales-analytics"

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

type rowWriter interface {
	Write(ctx context.Context, row *SaleEventRow) error
}

// Consumer exports sale and invoice events to BigQuery.
type Consumer struct {
	subscription receiver
	mapper       *Mapper
	writer       rowWriter
	manager      idempotencyChecker
	logg         *logger.Logger
}

func NewConsumer(subscription receiver, writer rowWriter, manager idempotencyChecker, logg *logger.Logger) (*Consumer, error) {
	if subscription == nil {
		return nil, errors.New("analytics subscription is required")
	}
	if writer == nil {
		return nil, errors.New("analytics writer is required")
	}
	if manager == nil {
		return nil, errors.New("idempotency manager is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Consumer{
		subscription: subscription,
		mapper:       NewMapper(),
		writer:       writer,
		manager:      manager,
		logg:         logg,
	}, nil
}

// Run receives until ctx is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg.ID, msg.Attributes, msg.Data) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// process reports whether the message should be acked. Malformed messages
// are acked so they do not loop forever.
func (c *Consumer) process(ctx context.Context, messageID string, attributes map[string]string, data []byte) bool {
	eventType := enums.OutboxEventType(attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": messageID,
		"event_type": eventType,
	})

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return true
	}
	row, err := c.mapper.Row(eventType, envelope)
	if err != nil {
		if errors.Is(err, ErrUnsupportedEvent) {
			c.logg.Debug(logCtx, "skipping event not exported to analytics")
		} else {
			c.logg.Error(logCtx, "failed to map analytics row", err)
		}
		return true
	}
	logCtx = c.logg.WithFields(logCtx, map[string]any{
		"event_id": row.EventID,
		"sale_id":  row.SaleID,
		"shop_id":  row.ShopID,
	})

	eventID := uuid.MustParse(row.EventID)
	already, err := c.manager.CheckAndMarkProcessed(logCtx, consumerName, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return false
	}
	if already {
		c.logg.Info(logCtx, "event already exported")
		return true
	}

	if err := c.writer.Write(logCtx, row); err != nil {
		c.logg.Error(logCtx, "analytics insert failed", fmt.Errorf("%s: %w", eventType, err))
		if delErr := c.manager.Delete(logCtx, consumerName, eventID); delErr != nil {
			c.logg.Warn(logCtx, "failed to clear idempotency mark")
		}
		return false
	}
	c.logg.Debug(logCtx, "analytics row exported")
	return true
}
