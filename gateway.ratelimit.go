package main

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// visitor is the token bucket of one client key.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client key. Buckets idle for longer
// than the configured ttl are dropped by the janitor.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	config   *RateLimitConfig
	clock    TickerClocker
	recorder RateLimitRecorder
	logger   *zap.Logger
}

// RateLimitRecorder tracks allowed and rejected requests.
type RateLimitRecorder interface {
	Record(ctx context.Context, allowed bool) error
}

func NewRateLimiter(logger *zap.Logger, config *RateLimitConfig, clock TickerClocker, recorder RateLimitRecorder) *RateLimiter {
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		config:   config,
		clock:    clock,
		recorder: recorder,
		logger:   logger,
	}
}

// Allow consumes one token of the key bucket. It returns whether the request
// may proceed and the tokens left.
func (rl *RateLimiter) Allow(key string) (bool, int) {
	now := rl.clock.Now()
	rl.mu.Lock()
	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Limit(rl.config.RPS), rl.config.Burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = now
	rl.mu.Unlock()

	allowed := v.limiter.AllowN(now, 1)
	remaining := int(math.Max(0, math.Floor(v.limiter.TokensAt(now))))
	return allowed, remaining
}

// Len returns the number of tracked keys.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.visitors)
}

// Cleanup drops the buckets not used since the idle ttl and returns their count.
func (rl *RateLimiter) Cleanup(now time.Time) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	removed := 0
	for key, v := range rl.visitors {
		if now.Sub(v.lastSeen) > rl.config.IdleTTL {
			delete(rl.visitors, key)
			removed++
		}
	}
	return removed
}

// RunJanitor periodically removes idle buckets until the context is done.
func (rl *RateLimiter) RunJanitor(ctx context.Context) error {
	ticker := rl.clock.NewTicker(rl.config.CleanupEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			rl.logger.Info("rate limiter janitor stopped", zap.String("reason", ctx.Err().Error()))
			return nil
		case <-ticker.C:
			if n := rl.Cleanup(rl.clock.Now()); n > 0 {
				rl.logger.Debug("rate limiter janitor removed idle keys", zap.Int("count", n))
			}
		}
	}
}

// KeyFor identifies the client of the request: the configured header when
// present, the source ip otherwise.
func (rl *RateLimiter) KeyFor(r *http.Request) string {
	if rl.config.KeyHeader != "" {
		if key := r.Header.Get(rl.config.KeyHeader); key != "" {
			return "key:" + key
		}
	}
	if rl.config.TrustXFF {
		return "ip:" + GetRequestSourceIP(r)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

// RateLimitMiddleware rejects with 429 the requests exceeding the key bucket.
func (gw *Gateway) RateLimitMiddleware(next httprouter.Handle) httprouter.Handle {
	rl := gw.limiter
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if rl == nil || !rl.config.Enable {
			next(w, r, ps)
			return
		}
		allowed, remaining := rl.Allow(rl.KeyFor(r))
		if rl.recorder != nil && rl.config.StatsEnable {
			if err := rl.recorder.Record(r.Context(), allowed); err != nil {
				gw.logger.Debug("gateway: failed to record rate limit stats", zap.Error(err))
			}
		}
		if rl.config.AddHeaders {
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.config.Burst))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		}
		if !allowed {
			rateLimitRejects.Inc()
			retryAfter := int(math.Ceil(rl.config.RetryAfter.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			gw.sendError(w, r, http.StatusTooManyRequests, "too many requests")
			return
		}
		next(w, r, ps)
	}
}

// redisRateLimitStats counts decisions per minute in redis.
type redisRateLimitStats struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	clock  Clocker
}

func NewRedisRateLimitStats(client *redis.Client, config *RateLimitConfig, clock Clocker) RateLimitRecorder {
	return &redisRateLimitStats{client: client, prefix: config.StatsPrefix, ttl: config.StatsTTL, clock: clock}
}

// Record increments the counter of the current minute bucket.
func (rs *redisRateLimitStats) Record(ctx context.Context, allowed bool) error {
	outcome := "rejected"
	if allowed {
		outcome = "allowed"
	}
	key := rs.prefix + ":" + outcome + ":" + rs.clock.Now().UTC().Format("200601021504")
	_, err := rs.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, rs.ttl)
		return nil
	})
	return err
}
