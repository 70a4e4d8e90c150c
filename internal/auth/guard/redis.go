package guard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultMaxAttempts = 5
	defaultWindow      = 10 * time.Minute
	defaultPrefix      = "acctly:"
)

// AttemptsConfig holds the thresholds for RedisAttempts. Zero values fall
// back to 5 attempts per 10 minutes.
type AttemptsConfig struct {
	MaxAttempts int
	Window      time.Duration
	Prefix      string
}

// RedisAttempts is a fixed window failure counter: the window opens at the
// first failure and the counter expires with it.
type RedisAttempts struct {
	redis       redis.UniversalClient
	maxAttempts int64
	window      time.Duration
	prefix      string
}

func NewRedisAttempts(client redis.UniversalClient, cfg AttemptsConfig) *RedisAttempts {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	window := cfg.Window
	if window <= 0 {
		window = defaultWindow
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &RedisAttempts{
		redis:       client,
		maxAttempts: int64(maxAttempts),
		window:      window,
		prefix:      prefix,
	}
}

func (a *RedisAttempts) key(k string) string { return a.prefix + "att:" + k }

func (a *RedisAttempts) Check(ctx context.Context, key string) error {
	count, err := a.redis.Get(ctx, a.key(key)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count >= a.maxAttempts {
		return ErrTooManyAttempts
	}
	return nil
}

func (a *RedisAttempts) RecordFailure(ctx context.Context, key string) error {
	count, err := a.redis.Incr(ctx, a.key(key)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count == 1 {
		if err := a.redis.Expire(ctx, a.key(key), a.window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	if count >= a.maxAttempts {
		return ErrTooManyAttempts
	}
	return nil
}

func (a *RedisAttempts) Reset(ctx context.Context, key string) error {
	if err := a.redis.Del(ctx, a.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// RedisDenylist stores revoked ids as keys expiring with the token.
type RedisDenylist struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewRedisDenylist(client redis.UniversalClient, prefix string) *RedisDenylist {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &RedisDenylist{redis: client, prefix: prefix, now: time.Now}
}

// WithClock returns a copy reading time from now.
func (d *RedisDenylist) WithClock(now func() time.Time) *RedisDenylist {
	cp := *d
	cp.now = now
	return &cp
}

func (d *RedisDenylist) key(id string) string { return d.prefix + "deny:" + id }

func (d *RedisDenylist) Revoke(ctx context.Context, id string, until time.Time) error {
	ttl := until.Sub(d.now())
	if ttl <= 0 {
		// Already expired, nothing can replay it.
		return nil
	}
	// Redis expiry has millisecond resolution; round up so the entry never
	// disappears before the token does.
	ttl = ttl.Truncate(time.Millisecond) + time.Millisecond
	if err := d.redis.Set(ctx, d.key(id), 1, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (d *RedisDenylist) Revoked(ctx context.Context, id string) (bool, error) {
	n, err := d.redis.Exists(ctx, d.key(id)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n > 0, nil
}

var (
	_ Attempts = (*RedisAttempts)(nil)
	_ Denylist = (*RedisDenylist)(nil)
)
