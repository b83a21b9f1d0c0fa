package main

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisReviewCache struct {
	client *redis.Client
	prefix string
}

// NewRedisReviewCache provides a redis-based cache of reviews lists keyed by product id.
func NewRedisReviewCache(client *redis.Client, prefix string) ReviewCache {
	return &redisReviewCache{client: client, prefix: prefix}
}

func (rc *redisReviewCache) key(productID string) string {
	return rc.prefix + productID
}

// Get returns the cached reviews of the product or nil on cache miss.
func (rc *redisReviewCache) Get(ctx context.Context, productID string) ([]Review, error) {
	data, err := rc.client.Get(ctx, rc.key(productID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	reviews := []Review{}
	if err = json.Unmarshal(data, &reviews); err != nil {
		return nil, err
	}
	return reviews, nil
}

// Set stores the reviews of the product for ttl.
func (rc *redisReviewCache) Set(ctx context.Context, productID string, reviews []Review, ttl time.Duration) error {
	if reviews == nil {
		reviews = []Review{}
	}
	data, err := json.Marshal(reviews)
	if err != nil {
		return err
	}
	return rc.client.Set(ctx, rc.key(productID), data, ttl).Err()
}

// Invalidate drops the cached reviews of the product.
func (rc *redisReviewCache) Invalidate(ctx context.Context, productID string) error {
	return rc.client.Del(ctx, rc.key(productID)).Err()
}
