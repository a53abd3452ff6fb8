// Package ratelimit provides a per-key fixed-window limiter for the
// login and refresh endpoints: Redis-backed when Redis is configured,
// otherwise an in-process token bucket per key.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"todoapi/pkg/logger"
)

type Limiter interface {
	// Allow reports whether the caller identified by key may proceed.
	Allow(ctx context.Context, key string) bool
}

// New picks the Redis limiter when a client is available and the
// in-process fallback otherwise.
func New(client *redis.Client, limit int, window time.Duration) Limiter {
	if client != nil {
		return &RedisLimiter{client: client, limit: limit, window: window}
	}
	return NewMemoryLimiter(limit, window)
}

// RedisLimiter counts requests per key in a fixed window shared across
// replicas. Fails open: a Redis error never rejects a request.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) bool {
	rkey := "ratelimit:" + key
	n, err := l.client.Incr(ctx, rkey).Result()
	if err != nil {
		logger.Debug(ctx, "Rate limit incr failed", "error", err)
		return true
	}
	if n == 1 {
		if err := l.client.Expire(ctx, rkey, l.window).Err(); err != nil {
			logger.Debug(ctx, "Rate limit expire failed", "error", err)
		}
	}
	return n <= int64(l.limit)
}

// MemoryLimiter keeps a token bucket per key with idle-key cleanup.
type MemoryLimiter struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	rps     rate.Limit
	burst   int
	idleTTL time.Duration
}

type memoryEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		entries: make(map[string]*memoryEntry),
		rps:     rate.Limit(float64(limit) / window.Seconds()),
		burst:   limit,
		idleTTL: 15 * time.Minute,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	ent, ok := l.entries[key]
	if !ok {
		ent = &memoryEntry{lim: rate.NewLimiter(l.rps, l.burst)}
		l.entries[key] = ent
	}
	ent.lastSeen = now
	return ent.lim.Allow()
}

// Cleanup drops keys not seen within the idle TTL.
func (l *MemoryLimiter) Cleanup() {
	cutoff := time.Now().Add(-l.idleTTL)

	l.mu.Lock()
	defer l.mu.Unlock()

	for k, ent := range l.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(l.entries, k)
		}
	}
}

// StartJanitor periodically cleans idle keys until ctx is done.
func (l *MemoryLimiter) StartJanitor(ctx context.Context, every time.Duration) {
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.Cleanup()
			}
		}
	}()
}
