package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/shopdesk-backend/pkg/logger"
)

const (
	defaultOutboxRetention = 30 * 24 * time.Hour
	defaultDLQRetention    = 90 * 24 * time.Hour
	defaultMinAttempts     = 10
)

type publishedEventPruner interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error)
}

type deadLetterPruner interface {
	DeleteFailedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type OutboxRetentionJobParams struct {
	Logger      *logger.Logger
	DB          txRunner
	Events      publishedEventPruner
	DeadLetters deadLetterPruner

	Retention    time.Duration
	DLQRetention time.Duration
	// MinAttempts is the attempt count after which an unpublished row counts
	// as abandoned and is pruned with the published ones.
	MinAttempts int
}

type outboxRetentionJob struct {
	logg         *logger.Logger
	db           txRunner
	events       publishedEventPruner
	deadLetters  deadLetterPruner
	retention    time.Duration
	dlqRetention time.Duration
	minAttempts  int
	now          func() time.Time
}

// NewOutboxRetentionJob prunes old outbox rows and, when DeadLetters is set,
// old dead letters, in one transaction.
func NewOutboxRetentionJob(p OutboxRetentionJobParams) (Job, error) {
	switch {
	case p.Logger == nil:
		return nil, errors.New("logger required")
	case p.DB == nil:
		return nil, errors.New("db runner required")
	case p.Events == nil:
		return nil, errors.New("outbox repository required")
	}
	return &outboxRetentionJob{
		logg:         p.Logger,
		db:           p.DB,
		events:       p.Events,
		deadLetters:  p.DeadLetters,
		retention:    orDefault(p.Retention, defaultOutboxRetention),
		dlqRetention: orDefault(p.DLQRetention, defaultDLQRetention),
		minAttempts:  p.MinAttempts,
		now:          time.Now,
	}, nil
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	cutoff := now.Add(-j.retention)
	dlqCutoff := now.Add(-j.dlqRetention)
	minAttempts := j.minAttempts
	if minAttempts <= 0 {
		minAttempts = defaultMinAttempts
	}

	var events, deadLetters int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		n, err := j.events.DeletePublishedBefore(ctx, tx, cutoff, minAttempts)
		if err != nil {
			return fmt.Errorf("outbox events: %w", err)
		}
		events = n
		if j.deadLetters == nil {
			return nil
		}
		if deadLetters, err = j.deadLetters.DeleteFailedBefore(ctx, tx, dlqCutoff); err != nil {
			return fmt.Errorf("dead letters: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("outbox retention: %w", err)
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":           cutoff,
		"events_deleted":   events,
		"dlq_cutoff":       dlqCutoff,
		"dlq_rows_deleted": deadLetters,
	}), "outbox retention cleanup complete")
	return nil
}
