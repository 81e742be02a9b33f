package lock

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	redis "github.com/redis/go-redis/v9"
)

const retryInterval = 50 * time.Millisecond

// RedisLocker holds keys in Redis for at most ttl.
type RedisLocker struct {
	client *redislock.Client
	prefix string
	ttl    time.Duration
}

func NewRedisLocker(client *redis.Client, prefix string, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{
		client: redislock.New(client),
		prefix: prefix,
		ttl:    ttl,
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (Unlock, error) {
	retries := int(l.ttl / retryInterval)
	held, err := l.client.Obtain(ctx, l.prefix+key, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(retryInterval), retries),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrNotObtained
	}
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context) error {
		err := held.Release(ctx)
		if errors.Is(err, redislock.ErrLockNotHeld) {
			return nil
		}
		return err
	}, nil
}
