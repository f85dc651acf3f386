// Package ratelimit implements a fixed window request limiter keyed by
// caller. Redis backs the counter when available so limits hold across
// replicas; a local map covers single node and test runs.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter answers whether a caller still has budget in the current window.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RedisLimiter counts requests with INCR and lets the window expire.
type RedisLimiter struct {
	client *redis.Client
	window time.Duration
	budget int
}

func NewRedisLimiter(addr, password string, window time.Duration, budget int) *RedisLimiter {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisLimiter{client: c, window: window, budget: budget}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	k := "ratelimit:" + key
	n, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return false, err
	}
	if n == 1 {
		// First hit in the window sets the expiry.
		if err := l.client.Expire(ctx, k, l.window).Err(); err != nil {
			return false, err
		}
	}
	return n <= int64(l.budget), nil
}

// MemoryLimiter is the in-process fallback.
type MemoryLimiter struct {
	mu     sync.Mutex
	counts map[string]*windowCount
	window time.Duration
	budget int
	now    func() time.Time
}

type windowCount struct {
	start time.Time
	n     int
}

func NewMemoryLimiter(window time.Duration, budget int) *MemoryLimiter {
	return &MemoryLimiter{
		counts: map[string]*windowCount{},
		window: window,
		budget: budget,
		now:    time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	wc, ok := l.counts[key]
	if !ok || now.Sub(wc.start) >= l.window {
		l.counts[key] = &windowCount{start: now, n: 1}
		return l.budget >= 1, nil
	}
	wc.n++
	return wc.n <= l.budget, nil
}
