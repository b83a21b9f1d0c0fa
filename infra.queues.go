package main

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Predefinied Queue IDs. The first three feed the bolt replica of books.
const (
	CreateQueue       = "creation"
	UpdateQueue       = "updating"
	DeleteQueue       = "deletion"
	EventsQueue       = "events"
	NotificationQueue = "notifications"
)

// popTimeout bounds each blocking pop so consumers can observe cancellation.
const popTimeout = time.Second

// ErrQueueEmpty is returned by Pop when nothing arrived before the timeout.
var ErrQueueEmpty = errors.New("queue: no item available")

// Ensure *redisQueue implements Queuer.
var _ Queuer = (*redisQueue)(nil)

// Queuer describes a set of named fifo queues carrying json documents.
type Queuer interface {
	Push(ctx context.Context, qid string, v interface{}) error
	Pop(ctx context.Context, qids ...string) (string, []byte, error)
	Len(ctx context.Context, qid string) (int64, error)
}

// redisQueue represents a queue which implements the Queuer interface.
type redisQueue struct {
	client *redis.Client
}

func NewRedisQueue(client *redis.Client) Queuer {
	return &redisQueue{client: client}
}

// Push enqueues the json encoding of v onto the queue identified by qid.
func (q *redisQueue) Push(ctx context.Context, qid string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return q.client.RPush(ctx, qid, data).Err()
}

// Pop returns the first dequeued item from the list of queue ids
// along with the id of the queue it came from.
func (q *redisQueue) Pop(ctx context.Context, qids ...string) (string, []byte, error) {
	infos, err := q.client.BLPop(ctx, popTimeout, qids...).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil, ErrQueueEmpty
	}
	if err != nil {
		return "", nil, err
	}
	return infos[0], []byte(infos[1]), nil
}

// Len returns the number of items waiting in a queue.
func (q *redisQueue) Len(ctx context.Context, qid string) (int64, error) {
	return q.client.LLen(ctx, qid).Result()
}
