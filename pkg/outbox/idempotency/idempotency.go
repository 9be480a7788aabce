// Package idempotency gives Pub/Sub consumers at-most-once processing per
// event id on top of Redis SETNX. A consumer marks an event before handling
// it and clears the mark if handling fails, so redelivery retries it.
package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL outlives the Pub/Sub retention window so a late redelivery is
// still recognised.
const DefaultTTL = 8 * 24 * time.Hour

var (
	ErrNoConsumer = errors.New("idempotency: consumer name is required")
	ErrNoEventID  = errors.New("idempotency: event id is required")
)

type store interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

type Manager struct {
	store store
	ttl   time.Duration
}

// NewManager uses DefaultTTL when ttl is zero.
func NewManager(s store, ttl time.Duration) (*Manager, error) {
	if s == nil {
		return nil, errors.New("idempotency store is required")
	}
	switch {
	case ttl < 0:
		return nil, errors.New("idempotency ttl must be non-negative")
	case ttl == 0:
		ttl = DefaultTTL
	}
	return &Manager{store: s, ttl: ttl}, nil
}

// CheckAndMarkProcessed reports true when consumer already handled eventID.
// Otherwise it records the event and reports false.
func (m *Manager) CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return false, err
	}
	fresh, err := m.store.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), m.ttl)
	if err != nil {
		return false, err
	}
	return !fresh, nil
}

// Delete clears the mark so a redelivered copy is processed again.
func (m *Manager) Delete(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

// key is sd:idempotency:evt:<consumer>:<event id>.
func (m *Manager) key(consumer string, eventID uuid.UUID) (string, error) {
	if consumer == "" {
		return "", ErrNoConsumer
	}
	if eventID == uuid.Nil {
		return "", ErrNoEventID
	}
	return m.store.IdempotencyKey("evt:"+consumer, eventID.String()), nil
}
