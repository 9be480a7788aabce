package cron

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type memoryStore struct {
	values map[string]string
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func TestRedisLockerIsPerJob(t *testing.T) {
	store := &memoryStore{values: map[string]string{}}
	locker, err := NewRedisLocker(store, func(job string) string { return "lock:" + job }, time.Minute)
	if err != nil {
		t.Fatalf("NewRedisLocker: %v", err)
	}
	ctx := context.Background()

	lease, ok, err := locker.Acquire(ctx, "invoice-backfill")
	if err != nil || !ok {
		t.Fatalf("expected first acquire to succeed, ok=%v err=%v", ok, err)
	}
	if _, ok, _ := locker.Acquire(ctx, "invoice-backfill"); ok {
		t.Fatal("second acquire of the same job must fail")
	}
	if _, ok, _ := locker.Acquire(ctx, "outbox-retention"); !ok {
		t.Fatal("other jobs must not be blocked")
	}

	if err := lease.Release(ctx); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, ok, _ := locker.Acquire(ctx, "invoice-backfill"); !ok {
		t.Fatal("expected acquire after release")
	}
}

func TestRedisLeaseLeavesForeignOwner(t *testing.T) {
	store := &memoryStore{values: map[string]string{}}
	locker, _ := NewRedisLocker(store, func(job string) string { return job }, time.Minute)
	lease, _, _ := locker.Acquire(context.Background(), "job")

	// lock expired and was taken by another replica
	store.values["job"] = "someone-else"
	if err := lease.Release(context.Background()); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if store.values["job"] != "someone-else" {
		t.Fatal("release must not delete a lock held by another owner")
	}
}
