package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopdesk-backend/pkg/config"
	"github.com/angelmondragon/shopdesk-backend/pkg/db/models"
	"github.com/angelmondragon/shopdesk-backend/pkg/enums"
	"github.com/angelmondragon/shopdesk-backend/pkg/logger"
	"github.com/angelmondragon/shopdesk-backend/pkg/metrics"
	"github.com/angelmondragon/shopdesk-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 500 * time.Millisecond
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	maxBackoff            = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type ServiceParams struct {
	Outbox     config.OutboxConfig
	Logger     *logger.Logger
	DB         dbClient
	PubSub     pubSubClient
	Repository outboxRepository
	Registry   registryResolver
	DLQ        dlqRepository
	Metrics    *metrics.OutboxMetrics
	// Publishers overrides the per-topic publisher lookup in tests.
	Publishers func(topic string) publisher
}

// Service drains the outbox table onto Pub/Sub. Each poll claims a batch
// inside one transaction, publishes every row, waits for all results and
// then settles each row as published, retried or dead-lettered.
type Service struct {
	logg     *logger.Logger
	db       dbClient
	pubsub   pubSubClient
	repo     outboxRepository
	registry registryResolver
	dlq      dlqRepository
	metrics  *metrics.OutboxMetrics

	publishers func(topic string) publisher
	topics     map[string]*gcppubsub.Publisher
	topicsMu   sync.Mutex

	batchSize      int
	maxAttempts    int
	pollInterval   time.Duration
	publishTimeout time.Duration
	now            func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	case params.DLQ == nil:
		return nil, errors.New("dlq repository is required")
	}

	s := &Service{
		logg:           params.Logger,
		db:             params.DB,
		pubsub:         params.PubSub,
		repo:           params.Repository,
		registry:       params.Registry,
		dlq:            params.DLQ,
		metrics:        params.Metrics,
		topics:         map[string]*gcppubsub.Publisher{},
		batchSize:      positiveOr(params.Outbox.BatchSize, defaultBatchSize),
		maxAttempts:    positiveOr(params.Outbox.MaxAttempts, defaultMaxAttempts),
		pollInterval:   defaultPollInterval,
		publishTimeout: defaultPublishTimeout,
		now:            time.Now,
	}
	if params.Outbox.PollIntervalMS > 0 {
		s.pollInterval = time.Duration(params.Outbox.PollIntervalMS) * time.Millisecond
	}
	s.publishers = params.Publishers
	if s.publishers == nil {
		s.publishers = s.topicPublisher
	}
	return s, nil
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

// Run polls until ctx is canceled. An empty poll sleeps for the poll
// interval; a failed poll backs off exponentially up to maxBackoff.
func (s *Service) Run(ctx context.Context) error {
	for name, ping := range map[string]func(context.Context) error{"database": s.db.Ping, "pubsub": s.pubsub.Ping} {
		if err := ping(ctx); err != nil {
			s.logg.Error(s.logg.WithField(ctx, "dependency", name), "outbox dependency not ready", err)
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}

	backoff := s.pollInterval
	for {
		if err := ctx.Err(); err != nil {
			s.logg.Info(ctx, "outbox publisher context canceled")
			return err
		}

		claimed, err := s.processBatch(ctx)
		var wait time.Duration
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox publisher batch error", err)
			backoff = nextBackoff(backoff, s.pollInterval, maxBackoff)
			wait = withJitter(backoff)
		case claimed > 0:
			backoff = s.pollInterval
			continue
		default:
			backoff = s.pollInterval
			wait = withJitter(s.pollInterval)
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Close stops the publishers opened by Run.
func (s *Service) Close() {
	s.topicsMu.Lock()
	defer s.topicsMu.Unlock()
	for topic, p := range s.topics {
		p.Stop()
		delete(s.topics, topic)
	}
}

type outcome string

const (
	outcomePublished  outcome = "published"
	outcomeRetry      outcome = "retry"
	outcomeDeadLetter outcome = "dead_letter"
)

// delivery tracks one outbox row through a poll.
type delivery struct {
	event    models.OutboxEvent
	resolved *registry.ResolvedEvent
	result   publishResult
	err      error
}

func (d *delivery) topic() string {
	if d.resolved == nil {
		return ""
	}
	return d.resolved.Descriptor.Topic
}

func (s *Service) processBatch(ctx context.Context) (int, error) {
	claimed := 0
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		claimed = len(events)
		if claimed == 0 {
			return nil
		}
		s.metrics.ObserveBatch(claimed)

		for _, d := range s.dispatch(ctx, events) {
			if err := s.settle(ctx, tx, d); err != nil {
				return err
			}
		}
		return nil
	})
	return claimed, err
}

// dispatch publishes every row before waiting on any result so the client
// can batch them.
func (s *Service) dispatch(ctx context.Context, events []models.OutboxEvent) []*delivery {
	publishCtx, cancel := context.WithTimeout(ctx, s.publishTimeout)
	defer cancel()

	out := make([]*delivery, 0, len(events))
	for _, event := range events {
		d := &delivery{event: event}
		out = append(out, d)

		resolved, err := s.registry.Resolve(event)
		if err != nil {
			d.err = registry.NewNonRetryableError(err)
			continue
		}
		d.resolved = resolved
		pub := s.publishers(resolved.Descriptor.Topic)
		if pub == nil {
			d.err = registry.NewNonRetryableError(fmt.Errorf("publisher not configured for topic %s", resolved.Descriptor.Topic))
			continue
		}
		if d.result = pub.Publish(publishCtx, message(event, resolved)); d.result == nil {
			d.err = registry.NewNonRetryableError(fmt.Errorf("publisher returned nil for topic %s", resolved.Descriptor.Topic))
		}
	}

	for _, d := range out {
		if d.result != nil {
			_, d.err = d.result.Get(publishCtx)
		}
	}
	return out
}

// message builds the Pub/Sub message for an outbox row. Rows of the same
// aggregate share an ordering key so a sale's events arrive in order.
func message(event models.OutboxEvent, resolved *registry.ResolvedEvent) *gcppubsub.Message {
	attrs := map[string]string{
		"event_id":       resolved.Envelope.EventID,
		"event_type":     string(event.EventType),
		"aggregate_type": string(event.AggregateType),
		"aggregate_id":   event.AggregateID.String(),
		"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if actor := resolved.Envelope.Actor; actor != nil && actor.ShopID != nil {
		attrs["shop_id"] = actor.ShopID.String()
	}
	return &gcppubsub.Message{
		Data:        event.Payload,
		Attributes:  attrs,
		OrderingKey: event.AggregateID.String(),
	}
}

func (s *Service) classify(d *delivery) (outcome, enums.OutboxDLQErrorReason, error) {
	if d.err == nil {
		return outcomePublished, "", nil
	}
	var nonRetry registry.NonRetryableError
	if errors.As(d.err, &nonRetry) {
		return outcomeDeadLetter, enums.OutboxDLQReasonNonRetryable, d.err
	}
	if d.event.AttemptCount+1 >= s.maxAttempts {
		return outcomeDeadLetter, enums.OutboxDLQReasonMaxAttempts, fmt.Errorf("max publish attempts reached: %w", d.err)
	}
	return outcomeRetry, "", d.err
}

func (s *Service) settle(ctx context.Context, tx *gorm.DB, d *delivery) error {
	result, reason, err := s.classify(d)
	s.metrics.IncEvent(string(d.event.EventType), string(result))
	logCtx := s.logg.WithFields(ctx, s.logFields(d, result))

	switch result {
	case outcomePublished:
		if markErr := s.repo.MarkPublishedTx(tx, d.event.ID); markErr != nil {
			return fmt.Errorf("mark published %s: %w", d.event.ID, markErr)
		}
		s.logg.Info(logCtx, "outbox event published")
	case outcomeRetry:
		s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "outbox publish failed")
		if markErr := s.repo.MarkFailedTx(tx, d.event.ID, err); markErr != nil {
			return fmt.Errorf("mark failure %s: %w", d.event.ID, markErr)
		}
	case outcomeDeadLetter:
		s.logg.Warn(s.logg.WithFields(logCtx, map[string]any{"error": err.Error(), "error_reason": reason}), "outbox event will not be retried")
		msg := err.Error()
		entry := models.OutboxDLQ{
			EventID:       d.event.ID,
			EventType:     d.event.EventType,
			AggregateType: d.event.AggregateType,
			AggregateID:   d.event.AggregateID,
			Payload:       d.event.Payload,
			ErrorReason:   reason,
			ErrorMessage:  &msg,
			AttemptCount:  d.event.AttemptCount,
			FailedAt:      s.now().UTC(),
		}
		if dlqErr := s.dlq.InsertTx(tx, entry); dlqErr != nil {
			return fmt.Errorf("insert dlq %s: %w", d.event.ID, dlqErr)
		}
		if markErr := s.repo.MarkTerminalTx(tx, d.event.ID, err, s.maxAttempts); markErr != nil {
			return fmt.Errorf("mark terminal %s: %w", d.event.ID, markErr)
		}
	}
	return nil
}

func (s *Service) logFields(d *delivery, result outcome) map[string]any {
	fields := map[string]any{
		"outbox_id":      d.event.ID.String(),
		"event_type":     d.event.EventType,
		"aggregate_type": d.event.AggregateType,
		"aggregate_id":   d.event.AggregateID.String(),
		"attempt_count":  d.event.AttemptCount,
		"outcome":        result,
	}
	if result != outcomePublished {
		fields["attempt_count"] = d.event.AttemptCount + 1
	}
	if topic := d.topic(); topic != "" {
		fields["topic"] = topic
	}
	if d.resolved != nil && d.resolved.Envelope.EventID != "" {
		fields["event_id"] = d.resolved.Envelope.EventID
		fields["occurred_at"] = d.resolved.Envelope.OccurredAt.Format(time.RFC3339Nano)
	}
	if d.event.LastError != nil {
		fields["last_error"] = *d.event.LastError
	}
	return fields
}

// topicPublisher returns a cached ordered publisher for topic.
func (s *Service) topicPublisher(topic string) publisher {
	s.topicsMu.Lock()
	defer s.topicsMu.Unlock()
	p, ok := s.topics[topic]
	if !ok {
		if p = s.pubsub.Publisher(topic); p == nil {
			return nil
		}
		p.EnableMessageOrdering = true
		s.topics[topic] = p
	}
	return orderedPublisher{p}
}

type orderedPublisher struct {
	p *gcppubsub.Publisher
}

func (o orderedPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return orderedResult{res: o.p.Publish(ctx, msg), p: o.p, key: msg.OrderingKey}
}

// orderedResult resumes the ordering key after a failure; Pub/Sub pauses a
// key on the first error and rejects every later message for it.
type orderedResult struct {
	res *gcppubsub.PublishResult
	p   *gcppubsub.Publisher
	key string
}

func (r orderedResult) Get(ctx context.Context) (string, error) {
	id, err := r.res.Get(ctx)
	if err != nil && r.key != "" {
		r.p.ResumePublish(r.key)
	}
	return id, err
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, limit time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	return min(current*2, limit)
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + rand.N(jitterWindow)
}
