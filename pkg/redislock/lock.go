package redislock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	rd "github.com/redis/go-redis/v9"
)

// luaReleaseIfMatch deletes the lock only when its value still matches the
// holder token, so an expired lock reacquired by another instance is never
// released by the old holder.
const luaReleaseIfMatch = `
local lockKey = KEYS[1]
local token = ARGV[1]
if redis.call('GET', lockKey) == token then
  return redis.call('DEL', lockKey)
end
return 0
`

// Locker acquires short-lived named locks shared across service instances.
type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (release func(ctx context.Context) error, ok bool, err error)
}

// RedisLocker implements Locker on top of a redis SET NX with TTL.
type RedisLocker struct {
	rdb *rd.Client
}

// NewRedisLocker creates a Locker backed by the given redis client
func NewRedisLocker(rdb *rd.Client) *RedisLocker {
	return &RedisLocker{rdb: rdb}
}

func lockKey(name string) string {
	return fmt.Sprintf("order_service:lock:%s", name)
}

// Acquire takes the named lock if it is free. ok is false when another holder
// owns it. The returned release func is safe to call after the TTL elapsed.
func (l *RedisLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (func(ctx context.Context) error, bool, error) {
	token := uuid.New().String()
	key := lockKey(name)

	ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	release := func(ctx context.Context) error {
		_, err := l.rdb.Eval(ctx, luaReleaseIfMatch, []string{key}, token).Int()
		return err
	}
	return release, true, nil
}
