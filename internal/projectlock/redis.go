package projectlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/progresspay/internal/observability/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

const redisRetryInterval = 20 * time.Millisecond

// ErrLockTTLExpired is returned when the transaction outlived the lock TTL and
// another holder may have run concurrently. The transaction is rolled back.
var ErrLockTTLExpired = errors.New("project lock expired before commit")

// redisLocker holds a SET NX lock across replicas that share a Redis but not
// a PostgreSQL server.
type redisLocker struct {
	runner txRunner
	client redis.UniversalClient
	script *redis.Script
	ttl    time.Duration
}

func newRedisLocker(runner txRunner, client redis.UniversalClient, ttl time.Duration) *redisLocker {
	return &redisLocker{
		runner: runner,
		client: client,
		script: redis.NewScript(lockReleaseScript),
		ttl:    ttl,
	}
}

func (l *redisLocker) Backend() string { return metrics.LockBackendRedis }

func (l *redisLocker) RunLocked(ctx context.Context, projectID snowflake.ID, fn func(tx *gorm.DB) error) error {
	key := fmt.Sprintf("progresspay:lock:project:%s", projectID)

	start := time.Now()
	token, err := l.acquire(ctx, key)
	l.runner.metrics.ObserveLockWait(metrics.LockBackendRedis, time.Since(start))
	if err != nil {
		return err
	}
	acquiredAt := time.Now()
	defer func() {
		if err := l.script.Run(context.WithoutCancel(ctx), l.client, []string{key}, token).Err(); err != nil {
			l.runner.log.Warn("release project lock", zap.String("key", key), zap.Error(err))
		}
	}()

	return l.runner.run(ctx, nil, func(tx *gorm.DB) error {
		if err := fn(tx); err != nil {
			return err
		}
		if time.Since(acquiredAt) >= l.ttl {
			return ErrLockTTLExpired
		}
		return nil
	})
}

func (l *redisLocker) acquire(ctx context.Context, key string) (string, error) {
	token := uuid.NewString()
	ticker := time.NewTicker(redisRetryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return "", err
		}
		if ok {
			return token, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}
