// Package ratelimit implements a fixed-window attempt counter backed by
// Redis. Counters are keyed by endpoint+client so two endpoints never share
// a window, and the atomic INCR keeps the count correct across concurrent
// requests and across multiple server processes.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces rate limit counters in Redis.
const keyPrefix = "ratelimit:"

// Limiter counts attempts per key within a time window.
type Limiter struct {
	rdb *redis.Client
}

// NewLimiter creates a limiter backed by the given Redis client.
func NewLimiter(rdb *redis.Client) *Limiter {
	return &Limiter{rdb: rdb}
}

// Allow increments the counter for key and reports whether the attempt is
// within limit. The window TTL is set only when the counter is created
// (EXPIRE NX), so the window runs from the first attempt and expires
// naturally -- exceeding the limit blocks every further attempt for that key
// until then, regardless of what the attempt would have done.
func (l *Limiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	redisKey := keyPrefix + key

	pipe := l.rdb.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.ExpireNX(ctx, redisKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("incrementing rate limit counter: %w", err)
	}

	return incr.Val() <= int64(limit), nil
}
