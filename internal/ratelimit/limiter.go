// Package ratelimit throttles requests per client key. The Redis limiter
// shares counters between instances; the local one keeps them in process.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

type Limiter interface {
	// Allow reports whether one more request for key fits in the budget.
	Allow(ctx context.Context, key string) (bool, error)
}

// RedisLimiter counts requests in fixed windows with INCR and EXPIRE.
type RedisLimiter struct {
	rdb    redis.Cmdable
	prefix string
	limit  int
	window time.Duration
}

func NewRedisLimiter(rdb redis.Cmdable, prefix string, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, prefix: prefix, limit: limit, window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if l.rdb == nil {
		return false, fmt.Errorf("redis client is nil")
	}

	redisKey := fmt.Sprintf("rl:%s:%s", l.prefix, key)

	cnt, err := l.rdb.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, err
	}
	if cnt == 1 {
		if err := l.rdb.Expire(ctx, redisKey, l.window).Err(); err != nil {
			return false, err
		}
	}
	return cnt <= int64(l.limit), nil
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LocalLimiter keeps a token bucket per key. Buckets idle for longer than
// the window are dropped on the next call.
type LocalLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	idle     time.Duration
	now      func() time.Time
}

func NewLocalLimiter(limit int, window time.Duration) *LocalLimiter {
	return &LocalLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(float64(limit) / window.Seconds()),
		burst:    limit,
		idle:     window,
		now:      time.Now,
	}
}

func (l *LocalLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for k, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.idle {
			delete(l.visitors, k)
		}
	}

	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now

	return v.limiter.AllowN(now, 1), nil
}
