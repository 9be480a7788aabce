package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/shopdesk-backend/pkg/config"
)

type memCommands struct {
	values  map[string]string
	counts  map[string]int64
	ttls    map[string]time.Duration
	failGet error
}

func newMemCommands() *memCommands {
	return &memCommands{
		values: map[string]string{},
		counts: map[string]int64{},
		ttls:   map[string]time.Duration{},
	}
}

func (m *memCommands) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *memCommands) Set(_ context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	m.values[key] = fmt.Sprint(value)
	m.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (m *memCommands) Get(_ context.Context, key string) *redis.StringCmd {
	if m.failGet != nil {
		return redis.NewStringResult("", m.failGet)
	}
	v, ok := m.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memCommands) SetNX(_ context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd {
	if _, ok := m.values[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	m.values[key] = fmt.Sprint(value)
	m.ttls[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (m *memCommands) Incr(_ context.Context, key string) *redis.IntCmd {
	m.counts[key]++
	return redis.NewIntResult(m.counts[key], nil)
}

func (m *memCommands) ExpireNX(_ context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	if _, ok := m.ttls[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	m.ttls[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (m *memCommands) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, key := range keys {
		if _, ok := m.values[key]; ok {
			n++
		}
		delete(m.values, key)
		delete(m.ttls, key)
	}
	return redis.NewIntResult(n, nil)
}

func TestIncrWithTTLKeepsFirstWindow(t *testing.T) {
	ctx := context.Background()
	mem := newMemCommands()
	c := &Client{cmd: mem}
	key := RateLimitKey("login", "ip", "10.0.0.1")

	for want := int64(1); want <= 3; want++ {
		got, err := c.IncrWithTTL(ctx, key, time.Minute)
		if err != nil {
			t.Fatalf("incr: %v", err)
		}
		if got != want {
			t.Fatalf("count = %d, want %d", got, want)
		}
	}
	if ttl := mem.ttls[key]; ttl != time.Minute {
		t.Fatalf("ttl = %s, want 1m", ttl)
	}

	if _, err := c.IncrWithTTL(ctx, key, time.Hour); err != nil {
		t.Fatalf("incr: %v", err)
	}
	if ttl := mem.ttls[key]; ttl != time.Minute {
		t.Fatalf("later calls must not extend the window, ttl = %s", ttl)
	}
}

func TestSetNXThenDel(t *testing.T) {
	ctx := context.Background()
	c := &Client{cmd: newMemCommands()}
	key := c.LockKey("daily-snapshot")

	ok, err := c.SetNX(ctx, key, "owner-a", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first setnx ok=%v err=%v", ok, err)
	}
	ok, err = c.SetNX(ctx, key, "owner-b", time.Minute)
	if err != nil || ok {
		t.Fatalf("second setnx ok=%v err=%v", ok, err)
	}
	if v, _ := c.Get(ctx, key); v != "owner-a" {
		t.Fatalf("owner = %q", v)
	}
	if err := c.Del(ctx, key); err != nil {
		t.Fatalf("del: %v", err)
	}
	if _, err := c.Get(ctx, key); !errors.Is(err, redis.Nil) {
		t.Fatalf("want redis.Nil after delete, got %v", err)
	}
	if err := c.Del(ctx); err != nil {
		t.Fatalf("empty del: %v", err)
	}
}

func TestZeroClientReportsNotReady(t *testing.T) {
	var c Client
	if err := c.Ping(context.Background()); !errors.Is(err, errNotReady) {
		t.Fatalf("ping err = %v", err)
	}
	if _, err := c.IncrWithTTL(context.Background(), "k", time.Second); !errors.Is(err, errNotReady) {
		t.Fatalf("incr err = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close on zero client: %v", err)
	}
}

func TestKeys(t *testing.T) {
	c := &Client{}
	cases := []struct{ got, want string }{
		{c.IdempotencyKey("http", "abc"), "sd:idempotency:http:abc"},
		{c.IdempotencyKey("", "abc"), "sd:idempotency:abc"},
		{c.AccessSessionKey("a1"), "sd:session:access:a1"},
		{c.LockKey("outbox-retention"), "sd:lock:outbox-retention"},
		{RateLimitKey("login", "account", " h1 "), "sd:rate_limit:login:account:h1"},
		{Key(), "sd"},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Fatalf("key = %q, want %q", tc.got, tc.want)
		}
	}
}

func TestOptionsFromConfig(t *testing.T) {
	if _, err := options(config.RedisConfig{}); err == nil {
		t.Fatal("expected error without url or address")
	}

	opts, err := options(config.RedisConfig{URL: "redis://:pw@cache:6380/2", PoolSize: 15, DB: 5})
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if opts.Addr != "cache:6380" || opts.Password != "pw" {
		t.Fatalf("unexpected addr/password %q %q", opts.Addr, opts.Password)
	}
	if opts.DB != 2 {
		t.Fatalf("url db should win, got %d", opts.DB)
	}
	if opts.PoolSize != 15 {
		t.Fatalf("pool size = %d", opts.PoolSize)
	}

	opts, err = options(config.RedisConfig{Address: "localhost:6379", DB: 3, ReadTimeout: time.Second})
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if opts.DB != 3 || opts.ReadTimeout != time.Second {
		t.Fatalf("discrete settings not applied: %+v", opts)
	}
}
