package main

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/angelmondragon/shopdesk-backend/pkg/logger"
)

type fakePinger struct {
	err error
}

func (f fakePinger) Ping(context.Context) error {
	return f.err
}

type fakeRunner struct {
	started chan struct{}
	err     error
}

func (f *fakeRunner) Run(ctx context.Context) error {
	close(f.started)
	if f.err != nil {
		return f.err
	}
	<-ctx.Done()
	return ctx.Err()
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "worker-test", Output: io.Discard})
}

func newTestService(t *testing.T, storage pinger, consumer runner) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Logger:          testLogger(),
		DB:              fakePinger{},
		Redis:           fakePinger{},
		PubSub:          fakePinger{},
		Storage:         storage,
		InvoiceConsumer: consumer,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestNewServiceRequiresConsumer(t *testing.T) {
	_, err := NewService(ServiceParams{
		Logger:  testLogger(),
		DB:      fakePinger{},
		Redis:   fakePinger{},
		PubSub:  fakePinger{},
		Storage: fakePinger{},
	})
	if err == nil {
		t.Fatal("expected error without consumer")
	}
}

func TestRunStopsOnFailedDependency(t *testing.T) {
	consumer := &fakeRunner{started: make(chan struct{})}
	svc := newTestService(t, fakePinger{err: errors.New("bucket missing")}, consumer)

	if err := svc.Run(context.Background()); err == nil {
		t.Fatal("expected readiness error")
	}
	select {
	case <-consumer.started:
		t.Fatal("consumer must not start when a dependency is down")
	default:
	}
}

func TestRunReturnsConsumerError(t *testing.T) {
	boom := errors.New("subscription deleted")
	consumer := &fakeRunner{started: make(chan struct{}), err: boom}
	svc := newTestService(t, fakePinger{}, consumer)

	if err := svc.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected consumer error, got %v", err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	consumer := &fakeRunner{started: make(chan struct{})}
	svc := newTestService(t, fakePinger{}, consumer)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()
	<-consumer.started
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}
