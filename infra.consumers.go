package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type Consumer interface {
	Consume(ctx context.Context, qids ...string) error
}

// consumeLoop pops items from the queues and hands them to process until
// the context is done. Processing errors are logged and never stop the loop.
func consumeLoop(ctx context.Context, logger *zap.Logger, q Queuer, process func(ctx context.Context, qid string, data []byte) error, qids ...string) error {
	for {
		qid, data, err := q.Pop(ctx, qids...)
		if ctx.Err() != nil {
			logger.Info("consumer: queue pop call: context is done: exit", zap.String("reason", ctx.Err().Error()))
			return nil
		}
		if errors.Is(err, ErrQueueEmpty) {
			continue
		}
		if err != nil {
			logger.Error("consumer: error on queue pop call", zap.Strings("qids", qids), zap.Error(err))
			// avoid a hot loop while the broker is unreachable.
			select {
			case <-ctx.Done():
			case <-time.After(popTimeout):
			}
			continue
		}
		if err = process(ctx, qid, data); err != nil {
			logger.Error("consumer: failed to process item", zap.String("qid", qid), zap.Error(err))
		}
	}
}

type boltDBConsumer struct {
	logger *zap.Logger
	queue  Queuer
	repo   BookStorage
}

// NewBoltDBConsumer provides the consumer replaying book mutations into the bolt replica.
func NewBoltDBConsumer(logger *zap.Logger, q Queuer, repo BookStorage) Consumer {
	return &boltDBConsumer{logger, q, repo}
}

func (bc *boltDBConsumer) Consume(ctx context.Context, qids ...string) error {
	return consumeLoop(ctx, bc.logger, bc.queue, bc.process, qids...)
}

func (bc *boltDBConsumer) process(ctx context.Context, qid string, data []byte) error {
	var book Book
	if err := json.Unmarshal(data, &book); err != nil {
		return fmt.Errorf("decode book: %w", err)
	}
	var err error
	switch qid {
	case CreateQueue:
		if err = bc.repo.Add(ctx, book.ID, book); err != nil {
			bc.logger.Error("consumer: failed to create", zap.String("book.id", book.ID), zap.Error(err))
		}
	case UpdateQueue:
		if _, err = bc.repo.Update(ctx, book.ID, book); err != nil {
			bc.logger.Error("consumer: failed to update", zap.String("book.id", book.ID), zap.Error(err))
		}
	case DeleteQueue:
		if err = bc.repo.Delete(ctx, book.ID); err != nil {
			bc.logger.Error("consumer: failed to delete", zap.String("book.id", book.ID), zap.Error(err))
		}
	default:
		bc.logger.Warn("consumer: received book on unknow queue id", zap.String("qid", qid), zap.String("book.id", book.ID))
	}
	return err
}

type notificationConsumer struct {
	logger  *zap.Logger
	queue   Queuer
	service NotificationServiceProvider
}

// NewNotificationConsumer provides the consumer delivering queued notifications.
func NewNotificationConsumer(logger *zap.Logger, q Queuer, ns NotificationServiceProvider) Consumer {
	return &notificationConsumer{logger, q, ns}
}

func (nc *notificationConsumer) Consume(ctx context.Context, qids ...string) error {
	return consumeLoop(ctx, nc.logger, nc.queue, nc.process, qids...)
}

func (nc *notificationConsumer) process(ctx context.Context, _ string, data []byte) error {
	var n Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode notification: %w", err)
	}
	_, err := nc.service.Deliver(ctx, n)
	return err
}

type eventsConsumer struct {
	logger  *zap.Logger
	queue   Queuer
	service NotificationServiceProvider
}

// NewEventsConsumer provides the consumer turning published domain events
// into notifications for the administrator.
func NewEventsConsumer(logger *zap.Logger, q Queuer, ns NotificationServiceProvider) Consumer {
	return &eventsConsumer{logger, q, ns}
}

func (ec *eventsConsumer) Consume(ctx context.Context, qids ...string) error {
	return consumeLoop(ctx, ec.logger, ec.queue, ec.process, qids...)
}

func (ec *eventsConsumer) process(ctx context.Context, _ string, data []byte) error {
	var event OutboxEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	ec.logger.Info("consumer: domain event received",
		zap.String("event.id", event.ID),
		zap.String("event.name", event.Name()),
		zap.String("event.aggregate", event.AggregateID),
	)
	return ec.service.NotifyEvent(ctx, event)
}
