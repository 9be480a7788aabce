package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type memStore struct {
	keys map[string]time.Duration
	err  error
}

func newMemStore() *memStore { return &memStore{keys: map[string]time.Duration{}} }

func (m *memStore) SetNX(_ context.Context, key string, _ any, ttl time.Duration) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = ttl
	return true, nil
}

func (m *memStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.keys, k)
	}
	return nil
}

func (m *memStore) IdempotencyKey(scope, id string) string {
	return "sd:idempotency:" + scope + ":" + id
}

func TestMarkThenSkip(t *testing.T) {
	store := newMemStore()
	m, err := NewManager(store, time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	ctx := context.Background()
	id := uuid.New()

	seen, err := m.CheckAndMarkProcessed(ctx, "invoice-worker", id)
	if err != nil || seen {
		t.Fatalf("first delivery: seen=%v err=%v", seen, err)
	}
	seen, err = m.CheckAndMarkProcessed(ctx, "invoice-worker", id)
	if err != nil || !seen {
		t.Fatalf("redelivery: seen=%v err=%v", seen, err)
	}
	// another consumer tracks the same event separately
	seen, err = m.CheckAndMarkProcessed(ctx, "sales-analytics", id)
	if err != nil || seen {
		t.Fatalf("other consumer: seen=%v err=%v", seen, err)
	}

	want := "sd:idempotency:evt:invoice-worker:" + id.String()
	if ttl, ok := store.keys[want]; !ok || ttl != time.Hour {
		t.Fatalf("keys = %v", store.keys)
	}
}

func TestDeleteAllowsRetry(t *testing.T) {
	m, _ := NewManager(newMemStore(), 0)
	ctx := context.Background()
	id := uuid.New()

	if _, err := m.CheckAndMarkProcessed(ctx, "invoice-worker", id); err != nil {
		t.Fatal(err)
	}
	if err := m.Delete(ctx, "invoice-worker", id); err != nil {
		t.Fatal(err)
	}
	seen, err := m.CheckAndMarkProcessed(ctx, "invoice-worker", id)
	if err != nil || seen {
		t.Fatalf("after delete: seen=%v err=%v", seen, err)
	}
}

func TestManagerValidation(t *testing.T) {
	if _, err := NewManager(nil, time.Hour); err == nil {
		t.Fatal("nil store accepted")
	}
	if _, err := NewManager(newMemStore(), -time.Second); err == nil {
		t.Fatal("negative ttl accepted")
	}
	m, _ := NewManager(newMemStore(), 0)
	if m.ttl != DefaultTTL {
		t.Fatalf("ttl = %s", m.ttl)
	}
	if _, err := m.CheckAndMarkProcessed(context.Background(), "", uuid.New()); !errors.Is(err, ErrNoConsumer) {
		t.Fatalf("err = %v", err)
	}
	if err := m.Delete(context.Background(), "x", uuid.Nil); !errors.Is(err, ErrNoEventID) {
		t.Fatalf("err = %v", err)
	}

	failing := newMemStore()
	failing.err = errors.New("redis down")
	m, _ = NewManager(failing, time.Hour)
	if _, err := m.CheckAndMarkProcessed(context.Background(), "x", uuid.New()); err == nil {
		t.Fatal("store error swallowed")
	}
}
