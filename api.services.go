package main

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// timestamp formats the current clock time the way entities store it.
func timestamp(clock Clocker) string {
	return clock.Now().UTC().Format(time.RFC3339)
}

// NewOutboxEvent builds a domain event about an aggregate. The payload is the
// json encoding of v.
func NewOutboxEvent(ids UIDHandler, clock Clocker, aggregateType, aggregateID, eventType string, v interface{}) OutboxEvent {
	payload, _ := json.Marshal(v)
	return OutboxEvent{
		ID:            ids.Generate(EventIDPrefix),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       string(payload),
		CreatedAt:     clock.Now().UTC(),
	}
}

type BookServiceProvider interface {
	Add(ctx context.Context, book Book) (Book, error)
	GetOne(ctx context.Context, id string) (Book, error)
	Delete(ctx context.Context, id string) (Book, error)
	Update(ctx context.Context, id string, book Book) (Book, error)
	GetAll(ctx context.Context) ([]Book, error)
	Search(ctx context.Context, filter BookFilter) ([]Book, error)
}

type BookService struct {
	logger  *zap.Logger
	config  *Config
	clock   Clocker
	ids     UIDHandler
	storage BookStorage
	queue   Queuer
}

func NewBookService(logger *zap.Logger, config *Config, clock Clocker, ids UIDHandler, storage BookStorage, queue Queuer) BookServiceProvider {
	return &BookService{
		logger:  logger,
		config:  config,
		clock:   clock,
		ids:     ids,
		storage: storage,
		queue:   queue,
	}
}

// publish forwards a successful mutation to the replica queue and emits the
// matching domain event. Failures are only logged since the primary store
// already holds the change.
func (bs *BookService) publish(ctx context.Context, qid, eventType string, book Book) {
	if err := bs.queue.Push(ctx, qid, book); err != nil {
		bs.logger.Error("service: failed to push book to queue", zap.String("qid", qid), zap.String("book.id", book.ID), zap.Error(err))
	}
	event := NewOutboxEvent(bs.ids, bs.clock, AggregateBook, book.ID, eventType, book)
	if err := bs.queue.Push(ctx, EventsQueue, event); err != nil {
		bs.logger.Error("service: failed to push book event", zap.String("event.name", event.Name()), zap.String("book.id", book.ID), zap.Error(err))
	}
}

// Add stores a new book with a generated id and timestamps.
func (bs *BookService) Add(ctx context.Context, book Book) (Book, error) {
	book.ID = bs.ids.Generate(BookIDPrefix)
	book.CreatedAt = timestamp(bs.clock)
	book.UpdatedAt = book.CreatedAt
	if err := bs.storage.Add(ctx, book.ID, book); err != nil {
		return book, err
	}
	bs.publish(ctx, CreateQueue, EventCreated, book)
	return book, nil
}

func (bs *BookService) GetOne(ctx context.Context, id string) (Book, error) {
	book, err := bs.storage.GetOne(ctx, id)
	return book, err
}

// Delete removes the book and returns its last known state.
func (bs *BookService) Delete(ctx context.Context, id string) (Book, error) {
	book, err := bs.storage.GetOne(ctx, id)
	if err != nil {
		return book, err
	}
	if err = bs.storage.Delete(ctx, id); err != nil {
		return book, err
	}
	bs.publish(ctx, DeleteQueue, EventDeleted, book)
	return book, nil
}

// Update replaces an existing book. The path id wins over any id in the payload
// and the creation date is preserved.
func (bs *BookService) Update(ctx context.Context, id string, book Book) (Book, error) {
	existing, err := bs.storage.GetOne(ctx, id)
	if err != nil {
		return book, err
	}
	book.ID = id
	book.CreatedAt = existing.CreatedAt
	book.UpdatedAt = timestamp(bs.clock)
	book, err = bs.storage.Update(ctx, id, book)
	if err != nil {
		return book, err
	}
	bs.publish(ctx, UpdateQueue, EventUpdated, book)
	return book, nil
}

func (bs *BookService) GetAll(ctx context.Context) ([]Book, error) {
	books, err := bs.storage.GetAll(ctx)
	return books, err
}

// Search lists the books matching every criteria of the filter.
func (bs *BookService) Search(ctx context.Context, filter BookFilter) ([]Book, error) {
	books, err := bs.storage.GetAll(ctx)
	if err != nil || filter.IsEmpty() {
		return books, err
	}
	found := []Book{}
	for _, book := range books {
		if filter.Match(book) {
			found = append(found, book)
		}
	}
	return found, nil
}
