package main

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// OutboxRelay moves staged domain events from the relational store to the
// events queue. Delivery is at-least-once: an event pushed but not marked
// is pushed again on the next round.
type OutboxRelay struct {
	logger  *zap.Logger
	config  *OutboxConfig
	clock   TickerClocker
	storage OutboxStorage
	queue   Queuer
}

func NewOutboxRelay(logger *zap.Logger, config *OutboxConfig, clock TickerClocker, storage OutboxStorage, queue Queuer) *OutboxRelay {
	return &OutboxRelay{
		logger:  logger,
		config:  config,
		clock:   clock,
		storage: storage,
		queue:   queue,
	}
}

// Run publishes pending events on every tick until the context is done.
// Published events past the retention are purged once per round.
func (or *OutboxRelay) Run(ctx context.Context) error {
	ticker := or.clock.NewTicker(or.config.PollInterval)
	defer ticker.Stop()
	or.logger.Info("outbox relay started",
		zap.Duration("outbox.interval", or.config.PollInterval),
		zap.Int("outbox.batch", or.config.BatchSize),
	)
	for {
		select {
		case <-ctx.Done():
			or.logger.Info("outbox relay stopped", zap.String("reason", ctx.Err().Error()))
			return nil
		case <-ticker.C:
			if _, err := or.PublishPending(ctx); err != nil && ctx.Err() == nil {
				or.logger.Error("outbox: failed to publish pending events", zap.Error(err))
			}
			if _, err := or.Purge(ctx); err != nil && ctx.Err() == nil {
				or.logger.Error("outbox: failed to purge published events", zap.Error(err))
			}
		}
	}
}

// PublishPending runs one relay round and returns the number of published events.
func (or *OutboxRelay) PublishPending(ctx context.Context) (int, error) {
	events, err := or.storage.FetchUnpublished(ctx, or.config.BatchSize)
	if err != nil {
		return 0, err
	}
	published := 0
	for _, event := range events {
		if err = or.queue.Push(ctx, EventsQueue, event); err != nil {
			outboxFailures.Inc()
			or.logger.Error("outbox: failed to push event",
				zap.String("event.id", event.ID),
				zap.String("event.name", event.Name()),
				zap.Int("event.attempts", event.Attempts+1),
				zap.Error(err),
			)
			if ierr := or.storage.IncrementAttempts(ctx, event.ID); ierr != nil {
				or.logger.Error("outbox: failed to count attempt", zap.String("event.id", event.ID), zap.Error(ierr))
			}
			continue
		}
		if err = or.storage.MarkPublished(ctx, event.ID, or.clock.Now().UTC()); err != nil {
			or.logger.Error("outbox: failed to mark event published", zap.String("event.id", event.ID), zap.Error(err))
			continue
		}
		outboxPublished.Inc()
		published++
	}
	return published, nil
}

// Purge removes published events older than the retention.
func (or *OutboxRelay) Purge(ctx context.Context) (int64, error) {
	if or.config.Retention <= 0 {
		return 0, nil
	}
	n, err := or.storage.PurgePublished(ctx, or.clock.Now().UTC().Add(-or.config.Retention))
	if err == nil && n > 0 {
		or.logger.Info("outbox: purged published events", zap.Int64("count", n))
	}
	return n, err
}

// pendingSince is used by the ops statistics to expose the relay lag.
func (or *OutboxRelay) pendingSince(ctx context.Context) (int, time.Duration, error) {
	events, err := or.storage.FetchUnpublished(ctx, or.config.BatchSize)
	if err != nil || len(events) == 0 {
		return 0, 0, err
	}
	return len(events), or.clock.Now().Sub(events[0].CreatedAt), nil
}
