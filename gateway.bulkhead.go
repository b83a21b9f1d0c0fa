package main

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"golang.org/x/sync/semaphore"
)

// Bulkhead bounds the number of concurrent upstream calls.
type Bulkhead struct {
	sem    *semaphore.Weighted
	config *BulkheadConfig
}

func NewBulkhead(config *BulkheadConfig) *Bulkhead {
	return &Bulkhead{sem: semaphore.NewWeighted(config.MaxConcurrent), config: config}
}

// Acquire waits at most the configured time for a free slot. The returned
// function releases the slot.
func (b *Bulkhead) Acquire(ctx context.Context) (func(), bool) {
	if b.sem.TryAcquire(1) {
		return func() { b.sem.Release(1) }, true
	}
	if b.config.MaxWait <= 0 {
		return nil, false
	}
	wctx, cancel := context.WithTimeout(ctx, b.config.MaxWait)
	defer cancel()
	if err := b.sem.Acquire(wctx, 1); err != nil {
		return nil, false
	}
	return func() { b.sem.Release(1) }, true
}

// BulkheadMiddleware rejects with 503 the requests that found no free slot in time.
func (gw *Gateway) BulkheadMiddleware(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		release, ok := gw.bulkhead.Acquire(r.Context())
		if !ok {
			bulkheadRejects.Inc()
			gw.sendError(w, r, http.StatusServiceUnavailable, "too many concurrent requests")
			return
		}
		defer release()
		next(w, r, ps)
	}
}
