package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"net/http"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/shopdesk-backend/pkg/enums"
	"github.com/angelmondragon/shopdesk-backend/pkg/logger"
	"github.com/angelmondragon/shopdesk-backend/pkg/outbox"
	"github.com/angelmondragon/shopdesk-backend/pkg/outbox/payloads"
)

func encodeEnvelope(t *testing.T, eventID uuid.UUID, actor *outbox.ActorRef, data any) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	out, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID.String(),
		OccurredAt: time.Date(2026, 6, 1, 9, 30, 0, 0, time.UTC),
		Actor:      actor,
		Data:       raw,
	})
	require.NoError(t, err)
	return out
}

func decodeEnvelope(t *testing.T, raw []byte) outbox.PayloadEnvelope {
	t.Helper()
	var env outbox.PayloadEnvelope
	require.NoError(t, json.Unmarshal(raw, &env))
	return env
}

func TestMapperSaleCompleted(t *testing.T) {
	saleID, shopID, cashierID, eventID := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	raw := encodeEnvelope(t, eventID, &outbox.ActorRef{UserID: cashierID, Role: "cashier"}, payloads.SaleCompletedEvent{
		SaleID:      saleID,
		ShopID:      shopID,
		CashierID:   &cashierID,
		TotalAmount: decimal.RequireFromString("6500.50"),
		ItemCount:   3,
	})

	row, err := NewMapper().Row(enums.EventSaleCompleted, decodeEnvelope(t, raw))
	require.NoError(t, err)
	require.Equal(t, eventID.String(), row.EventID)
	require.Equal(t, "sale_completed", row.EventType)
	require.Equal(t, saleID.String(), row.SaleID)
	require.Equal(t, shopID.String(), row.ShopID)
	require.Equal(t, cashierID.String(), row.ActorID.StringVal)
	require.Equal(t, "cashier", row.ActorRole.StringVal)
	require.Equal(t, int64(3), row.ItemCount.Int64)
	require.Zero(t, row.TotalAmount.Cmp(big.NewRat(13001, 2)))
	require.True(t, row.Payload.Valid)
	require.False(t, row.InvoiceNumber.Valid)
}

func TestMapperInvoiceIssued(t *testing.T) {
	saleID := uuid.New()
	raw := encodeEnvelope(t, uuid.New(), nil, payloads.InvoiceIssuedEvent{
		InvoiceID: uuid.New(),
		SaleID:    saleID,
		ShopID:    uuid.New(),
		Number:    "A1B2C3D4",
	})

	row, err := NewMapper().Row(enums.EventInvoiceIssued, decodeEnvelope(t, raw))
	require.NoError(t, err)
	require.Equal(t, "A1B2C3D4", row.InvoiceNumber.StringVal)
	require.True(t, row.Regenerated.Valid)
	require.False(t, row.Regenerated.Bool)
	require.Nil(t, row.TotalAmount)
	require.False(t, row.ActorID.Valid)
}

func TestMapperRejectsUnknownAndMalformed(t *testing.T) {
	m := NewMapper()
	raw := encodeEnvelope(t, uuid.New(), nil, payloads.SaleCompletedEvent{SaleID: uuid.New()})

	_, err := m.Row(enums.OutboxEventType("shop_renamed"), decodeEnvelope(t, raw))
	require.ErrorIs(t, err, ErrUnsupportedEvent)

	missingSale := encodeEnvelope(t, uuid.New(), nil, payloads.SaleCompletedEvent{ShopID: uuid.New()})
	_, err = m.Row(enums.EventSaleCompleted, decodeEnvelope(t, missingSale))
	require.Error(t, err)

	env := decodeEnvelope(t, raw)
	env.EventID = "not-a-uuid"
	_, err = m.Row(enums.EventSaleCompleted, env)
	require.Error(t, err)
}

type fakeInserter struct {
	errs  []error
	calls int
	rows  []any
}

func (f *fakeInserter) InsertRows(_ context.Context, _ string, rows []any) error {
	f.calls++
	f.rows = rows
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

func newTestWriter(t *testing.T, ins *fakeInserter) *Writer {
	t.Helper()
	w, err := NewWriter(ins, "sale_events", RetryPolicy{MaxAttempts: 3})
	require.NoError(t, err)
	w.sleep = func(context.Context, time.Duration) error { return nil }
	return w
}

func TestWriterRetriesTransientErrors(t *testing.T) {
	ins := &fakeInserter{errs: []error{
		&googleapi.Error{Code: http.StatusServiceUnavailable},
		status.Error(codes.Unavailable, "try later"),
	}}
	w := newTestWriter(t, ins)

	require.NoError(t, w.Write(context.Background(), &SaleEventRow{EventID: "e-1"}))
	require.Equal(t, 3, ins.calls)
	saver, ok := ins.rows[0].(*bigquery.StructSaver)
	require.True(t, ok)
	require.Equal(t, "e-1", saver.InsertID)
}

func TestWriterStopsOnPermanentError(t *testing.T) {
	ins := &fakeInserter{errs: []error{&googleapi.Error{Code: http.StatusBadRequest}}}
	w := newTestWriter(t, ins)

	require.Error(t, w.Write(context.Background(), &SaleEventRow{EventID: "e-2"}))
	require.Equal(t, 1, ins.calls)
}

func TestWriterGivesUpAfterMaxAttempts(t *testing.T) {
	transient := &googleapi.Error{Code: http.StatusTooManyRequests}
	ins := &fakeInserter{errs: []error{transient, transient, transient, transient}}
	w := newTestWriter(t, ins)

	require.Error(t, w.Write(context.Background(), &SaleEventRow{EventID: "e-3"}))
	require.Equal(t, 3, ins.calls)
}

func TestIsRetryableRowErrors(t *testing.T) {
	retryable := bigquery.PutMultiError{{Errors: bigquery.MultiError{&googleapi.Error{Code: http.StatusInternalServerError}}}}
	require.True(t, isRetryable(retryable))

	mixed := bigquery.PutMultiError{
		{Errors: bigquery.MultiError{&googleapi.Error{Code: http.StatusInternalServerError}}},
		{Errors: bigquery.MultiError{&googleapi.Error{Code: http.StatusBadRequest}}},
	}
	require.False(t, isRetryable(mixed))
	require.False(t, isRetryable(errors.New("schema mismatch")))
}

type stubReceiver struct{}

func (stubReceiver) Receive(context.Context, func(context.Context, *pubsub.Message)) error {
	return nil
}

type stubWriter struct {
	rows []*SaleEventRow
	err  error
}

func (s *stubWriter) Write(_ context.Context, row *SaleEventRow) error {
	if s.err != nil {
		return s.err
	}
	s.rows = append(s.rows, row)
	return nil
}

type stubManager struct {
	seen    map[uuid.UUID]bool
	deleted int
	err     error
}

func (m *stubManager) CheckAndMarkProcessed(_ context.Context, _ string, eventID uuid.UUID) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if m.seen[eventID] {
		return true, nil
	}
	m.seen[eventID] = true
	return false, nil
}

func (m *stubManager) Delete(_ context.Context, _ string, eventID uuid.UUID) error {
	delete(m.seen, eventID)
	m.deleted++
	return nil
}

func newTestConsumer(t *testing.T, w *stubWriter, mgr *stubManager) *Consumer {
	t.Helper()
	c, err := NewConsumer(stubReceiver{}, w, mgr, logger.New(logger.Options{ServiceName: "analytics-test", Output: io.Discard}))
	require.NoError(t, err)
	return c
}

func TestConsumerExportsOnceAndSkipsDuplicates(t *testing.T) {
	w := &stubWriter{}
	mgr := &stubManager{seen: map[uuid.UUID]bool{}}
	c := newTestConsumer(t, w, mgr)
	attrs := map[string]string{"event_type": string(enums.EventSaleCompleted)}
	data := encodeEnvelope(t, uuid.New(), nil, payloads.SaleCompletedEvent{SaleID: uuid.New(), ShopID: uuid.New()})

	require.True(t, c.process(context.Background(), "m-1", attrs, data))
	require.True(t, c.process(context.Background(), "m-2", attrs, data))
	require.Len(t, w.rows, 1)
}

func TestConsumerNacksAndClearsMarkOnWriteFailure(t *testing.T) {
	w := &stubWriter{err: errors.New("bigquery down")}
	mgr := &stubManager{seen: map[uuid.UUID]bool{}}
	c := newTestConsumer(t, w, mgr)
	data := encodeEnvelope(t, uuid.New(), nil, payloads.SaleCompletedEvent{SaleID: uuid.New(), ShopID: uuid.New()})

	require.False(t, c.process(context.Background(), "m-1", map[string]string{"event_type": string(enums.EventSaleCompleted)}, data))
	require.Equal(t, 1, mgr.deleted)
	require.Empty(t, mgr.seen)
}

func TestConsumerAcksPoisonMessages(t *testing.T) {
	w := &stubWriter{}
	mgr := &stubManager{seen: map[uuid.UUID]bool{}}
	c := newTestConsumer(t, w, mgr)

	require.True(t, c.process(context.Background(), "m-1", map[string]string{"event_type": "sale_completed"}, []byte("{not json")))
	require.True(t, c.process(context.Background(), "m-2", map[string]string{"event_type": "unknown"}, encodeEnvelope(t, uuid.New(), nil, map[string]string{})))
	require.Empty(t, w.rows)
}

func TestConsumerNacksWhenIdempotencyUnavailable(t *testing.T) {
	mgr := &stubManager{seen: map[uuid.UUID]bool{}, err: errors.New("redis down")}
	c := newTestConsumer(t, &stubWriter{}, mgr)
	data := encodeEnvelope(t, uuid.New(), nil, payloads.SaleItemsChangedEvent{SaleID: uuid.New(), ShopID: uuid.New()})

	require.False(t, c.process(context.Background(), "m-1", map[string]string{"event_type": string(enums.EventSaleItemsChanged)}, data))
}
