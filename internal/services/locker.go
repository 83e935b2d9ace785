package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"eventhub/utils"

	"github.com/redis/go-redis/v9"
)

// Locker serialises work on a key across instances.
type Locker interface {
	// Acquire returns ok=false when another holder has the key. release is always safe to call.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// releaseScript deletes the lock only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisLocker struct {
	redis redis.Cmdable
	token func() (string, error)
}

func NewRedisLocker(client redis.Cmdable) *RedisLocker {
	return &RedisLocker{
		redis: client,
		token: func() (string, error) { return utils.GenerateToken(16) },
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	token, err := l.token()
	if err != nil {
		return func() {}, false, err
	}

	ok, err := l.redis.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return func() {}, false, fmt.Errorf("locker: acquire %s: %w", key, err)
	}
	if !ok {
		return func() {}, false, nil
	}

	release := func() {
		// the caller's ctx may already be done
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, l.redis, []string{key}, token).Err(); err != nil {
			slog.Warn("locker: release failed", "key", key, "error", err)
		}
	}
	return release, true, nil
}

func webhookLockKey(externalID string) string {
	return fmt.Sprintf("webhook:lock:%s", externalID)
}
