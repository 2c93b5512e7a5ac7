package rate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter maintains fixed-window counters in Redis, keyed by
// (scope, identifier, window index). It does not decide budgets; callers
// compare the returned counts against their own thresholds.
type Limiter struct {
	redis  redis.UniversalClient
	prefix string
}

// New creates a [Limiter] backed by the given Redis client. All keys are
// namespaced under prefix.
func New(redisClient redis.UniversalClient, prefix string) *Limiter {
	return &Limiter{
		redis:  redisClient,
		prefix: prefix,
	}
}

// Increment bumps the counter for the window containing now and returns the
// new count.
func (l *Limiter) Increment(ctx context.Context, scope, identifier string, window time.Duration, now time.Time) (int64, error) {
	key := l.key(scope, identifier, window, now)

	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	// Two windows of life keeps the key readable until well past rollover.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, 2*window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}

// Check returns the counter for the window containing now without
// incrementing it. Missing keys read as zero.
func (l *Limiter) Check(ctx context.Context, scope, identifier string, window time.Duration, now time.Time) (int64, error) {
	count, err := l.redis.Get(ctx, l.key(scope, identifier, window, now)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return count, nil
}

// Reset clears the counter for the window containing now.
func (l *Limiter) Reset(ctx context.Context, scope, identifier string, window time.Duration, now time.Time) error {
	if err := l.redis.Del(ctx, l.key(scope, identifier, window, now)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (l *Limiter) key(scope, identifier string, window time.Duration, now time.Time) string {
	idx := now.UnixMilli() / window.Milliseconds()

	var b strings.Builder
	b.Grow(len(l.prefix) + len(scope) + len(identifier) + 24)
	b.WriteString(l.prefix)
	b.WriteString(":rl:")
	b.WriteString(scope)
	b.WriteByte(':')
	b.WriteString(identifier)
	b.WriteByte(':')
	b.WriteString(strconv.FormatInt(idx, 10))
	return b.String()
}
