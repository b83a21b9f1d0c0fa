package main

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type ReviewServiceProvider interface {
	AddReview(ctx context.Context, review Review) (Review, error)
	GetReviews(ctx context.Context, productID string) ([]Review, error)
}

type ReviewService struct {
	logger  *zap.Logger
	clock   Clocker
	ids     UIDHandler
	storage ReviewStorage
	cache   ReviewCache
	ttl     time.Duration

	mu     sync.Mutex
	writes map[string]uint64
}

func NewReviewService(logger *zap.Logger, config *Config, clock Clocker, ids UIDHandler, storage ReviewStorage, cache ReviewCache) ReviewServiceProvider {
	return &ReviewService{
		logger:  logger,
		clock:   clock,
		ids:     ids,
		storage: storage,
		cache:   cache,
		ttl:     config.Cache.ReviewsTTL,
		writes:  make(map[string]uint64),
	}
}

// writeSeq returns the number of reviews added to the product by this instance.
func (rs *ReviewService) writeSeq(productID string) uint64 {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.writes[productID]
}

func (rs *ReviewService) markWrite(productID string) {
	rs.mu.Lock()
	rs.writes[productID]++
	rs.mu.Unlock()
}

// AddReview stores the review and drops the cached list of its product.
func (rs *ReviewService) AddReview(ctx context.Context, r Review) (Review, error) {
	r.ID = rs.ids.Generate(ReviewIDPrefix)
	r.CreatedAt = timestamp(rs.clock)
	event := NewOutboxEvent(rs.ids, rs.clock, AggregateReview, r.ID, EventCreated, r)
	if err := rs.storage.AddReview(ctx, r, event); err != nil {
		return r, err
	}
	rs.markWrite(r.ProductID)
	if err := rs.cache.Invalidate(ctx, r.ProductID); err != nil {
		rs.logger.Error("service: failed to invalidate reviews cache", zap.String("product.id", r.ProductID), zap.Error(err))
	}
	return r, nil
}

// GetReviews serves the reviews of a product from the cache and loads them
// from the database on miss. A failing cache never fails the call. A list
// loaded before a concurrent AddReview is not left in the cache.
func (rs *ReviewService) GetReviews(ctx context.Context, productID string) ([]Review, error) {
	reviews, err := rs.cache.Get(ctx, productID)
	if err != nil {
		rs.logger.Warn("service: reviews cache unavailable", zap.String("product.id", productID), zap.Error(err))
	}
	if reviews != nil {
		return reviews, nil
	}

	seq := rs.writeSeq(productID)
	reviews, err = rs.storage.GetReviewsByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if reviews == nil {
		reviews = []Review{}
	}
	if err = rs.cache.Set(ctx, productID, reviews, rs.ttl); err != nil {
		rs.logger.Warn("service: failed to cache reviews", zap.String("product.id", productID), zap.Error(err))
		return reviews, nil
	}
	// a review added while loading may have invalidated before the set above.
	if rs.writeSeq(productID) != seq {
		if err = rs.cache.Invalidate(ctx, productID); err != nil {
			rs.logger.Error("service: failed to invalidate reviews cache", zap.String("product.id", productID), zap.Error(err))
		}
	}
	return reviews, nil
}
