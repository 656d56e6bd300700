// Package throttle counts failed attempts per key in Redis and blocks the
// key once a limit is reached within a window.
package throttle

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Limiter struct {
	rdb         *redis.Client
	prefix      string
	maxFailures int64
	window      time.Duration
	logger      *zap.Logger
}

func NewLimiter(rdb *redis.Client, prefix string, maxFailures int, window time.Duration, logger *zap.Logger) *Limiter {
	return &Limiter{
		rdb:         rdb,
		prefix:      prefix,
		maxFailures: int64(maxFailures),
		window:      window,
		logger:      logger,
	}
}

func (l *Limiter) key(id string) string {
	return fmt.Sprintf("%s:%s", l.prefix, id)
}

// Allow reports whether another attempt may be made. Redis errors allow the
// attempt so an outage never locks users out.
func (l *Limiter) Allow(ctx context.Context, id string) bool {
	count, err := l.rdb.Get(ctx, l.key(id)).Int64()
	if err == redis.Nil {
		return true
	}
	if err != nil {
		l.logger.Warn("throttle check failed, allowing attempt",
			zap.String("key", l.key(id)),
			zap.Error(err),
		)
		return true
	}
	return count < l.maxFailures
}

// failScript increments the counter and gives it a TTL in one step. A key
// left without a TTL is repaired on the next failure.
var failScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if redis.call('PTTL', KEYS[1]) < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

// Fail records one failed attempt. The window is fixed and starts at the
// first failure; later failures do not extend it.
func (l *Limiter) Fail(ctx context.Context, id string) {
	key := l.key(id)
	count, err := failScript.Run(ctx, l.rdb, []string{key}, l.window.Milliseconds()).Int64()
	if err != nil {
		l.logger.Warn("throttle increment failed", zap.String("key", key), zap.Error(err))
		return
	}
	if count == l.maxFailures {
		l.logger.Info("throttle limit reached",
			zap.String("key", key),
			zap.Duration("window", l.window),
		)
	}
}

// Reset clears the counter after a successful attempt.
func (l *Limiter) Reset(ctx context.Context, id string) {
	if err := l.rdb.Del(ctx, l.key(id)).Err(); err != nil {
		l.logger.Warn("throttle reset failed", zap.String("key", l.key(id)), zap.Error(err))
	}
}
