package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopdesk-backend/pkg/db/dbtest"
	"github.com/angelmondragon/shopdesk-backend/pkg/db/models"
	"github.com/angelmondragon/shopdesk-backend/pkg/enums"
)

func saleEvent(saleID uuid.UUID) DomainEvent {
	return DomainEvent{
		EventType:     enums.EventSaleCompleted,
		AggregateType: enums.AggregateSale,
		AggregateID:   saleID,
		Data:          map[string]string{"sale_id": saleID.String()},
	}
}

func emit(t *testing.T, conn *gorm.DB, svc *Service, event DomainEvent, once bool) {
	t.Helper()
	err := conn.Transaction(func(tx *gorm.DB) error {
		if once {
			return svc.EmitIfNotExists(context.Background(), tx, event)
		}
		return svc.Emit(context.Background(), tx, event)
	})
	require.NoError(t, err)
}

func allEvents(t *testing.T, conn *gorm.DB) []models.OutboxEvent {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, conn.Order("created_at, id").Find(&rows).Error)
	return rows
}

func TestEmitWritesEnvelopeKeyedByRowID(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewService(NewRepository(conn), nil)
	fixed := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	saleID := uuid.New()
	shopID := uuid.New()
	event := saleEvent(saleID)
	event.Actor = &ActorRef{UserID: uuid.New(), ShopID: &shopID, Role: "cashier"}
	emit(t, conn, svc, event, false)

	rows := allEvents(t, conn)
	require.Len(t, rows, 1)
	var env PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &env))
	require.Equal(t, rows[0].ID.String(), env.EventID)
	require.Equal(t, envelopeVersion, env.Version)
	require.True(t, env.OccurredAt.Equal(fixed))
	require.Equal(t, shopID, *env.Actor.ShopID)
	require.JSONEq(t, `{"sale_id":"`+saleID.String()+`"}`, string(env.Data))
}

func TestEmitRejectsUnroutableEvents(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewService(NewRepository(conn), nil)

	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{EventType: "shop_renamed", AggregateID: uuid.New()})
	})
	require.Error(t, err)
	err = conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{EventType: enums.EventSaleCompleted})
	})
	require.Error(t, err)
	require.ErrorIs(t, svc.Emit(context.Background(), nil, saleEvent(uuid.New())), errNoTx)
	require.Empty(t, allEvents(t, conn))
}

func TestEmitIfNotExistsQueuesOncePerAggregate(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewService(NewRepository(conn), nil)
	saleID := uuid.New()

	emit(t, conn, svc, saleEvent(saleID), true)
	emit(t, conn, svc, saleEvent(saleID), true)
	emit(t, conn, svc, saleEvent(uuid.New()), true)

	require.Len(t, allEvents(t, conn), 2)
}

func TestPublishBookkeeping(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	svc := NewService(repo, nil)
	for i := 0; i < 3; i++ {
		emit(t, conn, svc, saleEvent(uuid.New()), false)
	}
	rows := allEvents(t, conn)

	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		if err := repo.MarkPublishedTx(tx, rows[0].ID); err != nil {
			return err
		}
		if err := repo.MarkFailedTx(tx, rows[1].ID, errors.New("pubsub unavailable")); err != nil {
			return err
		}
		return repo.MarkTerminalTx(tx, rows[2].ID, errors.New("no topic"), 5)
	}))

	var pending []models.OutboxEvent
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		var err error
		pending, err = repo.FetchUnpublishedForPublish(tx, 10, 5)
		return err
	}))
	require.Len(t, pending, 1)
	require.Equal(t, rows[1].ID, pending[0].ID)
	require.Equal(t, 1, pending[0].AttemptCount)
	require.Equal(t, "pubsub unavailable", *pending[0].LastError)

	var pruned int64
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		var err error
		pruned, err = repo.DeletePublishedBefore(context.Background(), tx, time.Now().UTC().Add(time.Hour), 5)
		return err
	}))
	require.Equal(t, int64(2), pruned)
	left := allEvents(t, conn)
	require.Len(t, left, 1)
	require.Equal(t, rows[1].ID, left[0].ID)
}

func deadLetter(t *testing.T, conn *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason) {
	t.Helper()
	msg := "boom"
	require.NoError(t, NewDLQRepository(conn).InsertTx(conn, models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &msg,
		AttemptCount:  5,
	}))
}

func TestDLQListAndRequeue(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	dlq := NewDLQRepository(conn)
	svc := NewService(repo, nil)
	emit(t, conn, svc, saleEvent(uuid.New()), false)
	emit(t, conn, svc, saleEvent(uuid.New()), false)
	rows := allEvents(t, conn)

	require.NoError(t, repo.MarkTerminalTx(conn, rows[0].ID, errors.New("bad payload"), 5))
	deadLetter(t, conn, rows[0], enums.OutboxDLQReasonNonRetryable)
	deadLetter(t, conn, rows[1], enums.OutboxDLQReasonMaxAttempts)
	require.NoError(t, conn.Delete(&models.OutboxEvent{}, "id = ?", rows[1].ID).Error)

	listed, err := dlq.List(context.Background(), DLQFilter{Reason: enums.OutboxDLQReasonNonRetryable})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, rows[0].ID, listed[0].EventID)

	// row still present: reset in place
	require.NoError(t, dlq.Requeue(context.Background(), rows[0].ID))
	// row pruned: recreated under the same id
	require.NoError(t, dlq.Requeue(context.Background(), rows[1].ID))
	require.ErrorIs(t, dlq.Requeue(context.Background(), uuid.New()), ErrDLQEntryNotFound)

	left, err := dlq.List(context.Background(), DLQFilter{})
	require.NoError(t, err)
	require.Empty(t, left)

	var pending []models.OutboxEvent
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		var err error
		pending, err = repo.FetchUnpublishedForPublish(tx, 10, 5)
		return err
	}))
	require.Len(t, pending, 2)
	for _, p := range pending {
		require.Zero(t, p.AttemptCount)
		require.Nil(t, p.LastError)
	}
}

func TestDLQDeleteFailedBefore(t *testing.T) {
	conn := dbtest.Open(t)
	dlq := NewDLQRepository(conn)
	emit(t, conn, NewService(NewRepository(conn), nil), saleEvent(uuid.New()), false)
	row := allEvents(t, conn)[0]
	deadLetter(t, conn, row, enums.OutboxDLQReasonMaxAttempts)

	_, err := dlq.DeleteFailedBefore(context.Background(), nil, time.Now())
	require.ErrorIs(t, err, errNoTx)

	kept, err := dlq.DeleteFailedBefore(context.Background(), conn, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	require.Zero(t, kept)

	pruned, err := dlq.DeleteFailedBefore(context.Background(), conn, time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, pruned)
}
