// Package ratelimit throttles the public reservation endpoints per client.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Limiter decides whether one more request from key fits in the window.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RedisLimiter counts requests in fixed windows shared by every instance.
type RedisLimiter struct {
	client redis.Cmdable
	prefix string
}

func NewRedisLimiter(client redis.Cmdable) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: "cafeteria:ratelimit:"}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	bucket := time.Now().UnixNano() / int64(window)
	redisKey := fmt.Sprintf("%s%s:%d", l.prefix, key, bucket)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return incr.Val() <= int64(limit), nil
}

// MemoryLimiter keeps one token bucket per key in process memory.
// A key idle for a whole window has a full bucket again, so it is dropped
// on the next sweep and recreated on demand.
type MemoryLimiter struct {
	mu        sync.Mutex
	entries   map[string]*memoryEntry
	lastSweep time.Time
	now       func() time.Time
}

type memoryEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{entries: make(map[string]*memoryEntry), now: time.Now}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := l.now()
	l.mu.Lock()
	if now.Sub(l.lastSweep) >= window {
		l.sweep(now, window)
		l.lastSweep = now
	}
	e, ok := l.entries[key]
	if !ok {
		e = &memoryEntry{limiter: rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit)}
		l.entries[key] = e
	}
	e.lastSeen = now
	l.mu.Unlock()
	return e.limiter.AllowN(now, 1), nil
}

// sweep drops keys not seen during the last window. Callers hold mu.
func (l *MemoryLimiter) sweep(now time.Time, window time.Duration) {
	for key, e := range l.entries {
		if now.Sub(e.lastSeen) >= window {
			delete(l.entries, key)
		}
	}
}

// Len returns the number of tracked keys.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Failover uses primary until it fails, then fallback, probing primary again
// once per retry interval.
type Failover struct {
	primary       Limiter
	fallback      Limiter
	logger        *zerolog.Logger
	retryInterval time.Duration

	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
}

func NewFailover(primary, fallback Limiter, logger *zerolog.Logger) *Failover {
	return &Failover{
		primary:       primary,
		fallback:      fallback,
		logger:        logger,
		retryInterval: time.Minute,
	}
}

func (f *Failover) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if f.shouldUsePrimary() {
		ok, err := f.primary.Allow(ctx, key, limit, window)
		if err == nil {
			if f.isDown.Swap(false) {
				f.logger.Info().Msg("rate limiter primary recovered")
			}
			return ok, nil
		}
		f.markDown(err)
	}
	return f.fallback.Allow(ctx, key, limit, window)
}

func (f *Failover) shouldUsePrimary() bool {
	if !f.isDown.Load() {
		return true
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if time.Since(f.lastCheck) >= f.retryInterval {
		f.lastCheck = time.Now()
		return true
	}
	return false
}

func (f *Failover) markDown(err error) {
	f.mu.Lock()
	f.lastCheck = time.Now()
	f.mu.Unlock()
	if !f.isDown.Swap(true) {
		f.logger.Warn().Err(err).Msg("rate limiter primary failed, using in-memory fallback")
	}
}
