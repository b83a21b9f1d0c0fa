package main

import (
	"context"
	"time"
)

// Aggregate types and event types carried by outbox events.
const (
	AggregateBook     = "book"
	AggregateProduct  = "product"
	AggregateCategory = "category"
	AggregateReview   = "review"

	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// OutboxEvent is a domain event staged in the relational store until the
// relay publishes it to the broker.
type OutboxEvent struct {
	ID            string     `json:"id"`
	AggregateType string     `json:"aggregateType"`
	AggregateID   string     `json:"aggregateId"`
	EventType     string     `json:"eventType"`
	Payload       string     `json:"payload"`
	Attempts      int        `json:"attempts"`
	CreatedAt     time.Time  `json:"createdAt"`
	PublishedAt   *time.Time `json:"publishedAt,omitempty"`
}

// Name returns the qualified event name, e.g. `product.created`.
func (e OutboxEvent) Name() string {
	return e.AggregateType + "." + e.EventType
}

// OutboxStorage gives the relay access to staged events.
type OutboxStorage interface {
	FetchUnpublished(ctx context.Context, limit int) ([]OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, at time.Time) error
	IncrementAttempts(ctx context.Context, id string) error
	PurgePublished(ctx context.Context, before time.Time) (int64, error)
}
