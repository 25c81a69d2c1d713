package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// releaseScript deletes the lock only if it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLock is a best-effort mutual exclusion lock shared by replicas
type RedisLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisLock creates a lock on key that expires after ttl
func NewRedisLock(client *redis.Client, key string, ttl time.Duration) *RedisLock {
	return &RedisLock{client: client, key: key, ttl: ttl}
}

// TryLock takes the lock if it is free. The returned token is needed to unlock.
func (l *RedisLock) TryLock(ctx context.Context) (string, bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

// Unlock releases the lock if it is still held with token
func (l *RedisLock) Unlock(ctx context.Context, token string) error {
	err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}
