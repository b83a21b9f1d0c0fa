package main

import (
	"context"
	"time"
)

// Review is a customer opinion about a product.
type Review struct {
	ID        string `json:"id"`
	ProductID string `json:"productId"`
	Author    string `json:"author"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
	CreatedAt string `json:"createdAt"`
}

// ReviewStorage defines possible operations on review entity.
type ReviewStorage interface {
	AddReview(ctx context.Context, review Review, event OutboxEvent) error
	GetReviewsByProduct(ctx context.Context, productID string) ([]Review, error)
}

// ReviewCache keeps the list of reviews of a product for a limited time.
// Get returns a nil slice and no error on cache miss.
type ReviewCache interface {
	Get(ctx context.Context, productID string) ([]Review, error)
	Set(ctx context.Context, productID string, reviews []Review, ttl time.Duration) error
	Invalidate(ctx context.Context, productID string) error
}
