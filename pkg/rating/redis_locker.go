package rating

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace/pkg/metrics"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockExpired - блокировка истекла до освобождения и, возможно, уже занята другим
var ErrLockExpired = errors.New("rating lock expired before release")

// Снимаем ключ только если он все еще принадлежит нам
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker распределенная блокировка на SET NX PX
type RedisLocker struct {
	client        *redis.Client
	ttl           time.Duration
	wait          time.Duration
	retryInterval time.Duration
	service       string
}

// NewRedisLocker создает блокировку. ttl - время жизни ключа,
// wait - сколько ждать освобождения чужой блокировки.
func NewRedisLocker(client *redis.Client, ttl, wait time.Duration, service string) *RedisLocker {
	return &RedisLocker{
		client:        client,
		ttl:           ttl,
		wait:          wait,
		retryInterval: 50 * time.Millisecond,
		service:       service,
	}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (Unlocker, error) {
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		timer := metrics.NewRedisTimer(l.service, metrics.RedisOpSetNX)
		acquired, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		timer.ObserveDuration()
		if err != nil {
			metrics.RecordRedisError(l.service, metrics.RedisOpSetNX)
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}

		if acquired {
			return func(ctx context.Context) error {
				return l.release(ctx, key, token)
			}, nil
		}

		if !time.Now().Before(deadline) {
			return nil, ErrLockNotAcquired
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retryInterval):
		}
	}
}

func (l *RedisLocker) release(ctx context.Context, key, token string) error {
	timer := metrics.NewRedisTimer(l.service, metrics.RedisOpRelease)
	deleted, err := releaseScript.Run(ctx, l.client, []string{key}, token).Int()
	timer.ObserveDuration()
	if err != nil {
		metrics.RecordRedisError(l.service, metrics.RedisOpRelease)
		return fmt.Errorf("failed to release lock %s: %w", key, err)
	}
	if deleted == 0 {
		return ErrLockExpired
	}
	return nil
}
