package projectlock

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/progresspay/internal/config"
	"github.com/smallbiznis/progresspay/internal/observability/metrics"
	"github.com/smallbiznis/progresspay/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("projectlock",
	fx.Provide(New),
)

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle `optional:"true"`
	Config    config.Config
	DB        *gorm.DB
	Log       *zap.Logger
	Metrics   *metrics.BillingMetrics `optional:"true"`
}

// New picks the lock backend from config. auto selects advisory locks on
// PostgreSQL, Redis when an address is configured, and an in-process lock otherwise.
func New(p Params) (Locker, error) {
	runner := txRunner{db: p.DB, log: p.Log.Named("projectlock"), metrics: p.Metrics}

	backend := p.Config.Lock.Backend
	if backend == config.LockBackendAuto || backend == "" {
		switch {
		case db.IsPostgres(p.DB):
			backend = config.LockBackendAdvisory
		case p.Config.Lock.RedisAddr != "":
			backend = config.LockBackendRedis
		default:
			backend = config.LockBackendLocal
		}
	}

	var locker Locker
	switch backend {
	case config.LockBackendAdvisory:
		if !db.IsPostgres(p.DB) {
			return nil, fmt.Errorf("advisory project lock requires postgres, got %s", p.DB.Dialector.Name())
		}
		locker = newAdvisoryLocker(runner)
	case config.LockBackendRedis:
		if p.Config.Lock.RedisAddr == "" {
			return nil, fmt.Errorf("redis project lock requires REDIS_ADDR")
		}
		client := redis.NewClient(&redis.Options{
			Addr:     p.Config.Lock.RedisAddr,
			Password: p.Config.Lock.RedisPassword,
			DB:       p.Config.Lock.RedisDB,
		})
		if p.Lifecycle != nil {
			p.Lifecycle.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					return client.Ping(ctx).Err()
				},
				OnStop: func(context.Context) error {
					return client.Close()
				},
			})
		}
		ttl := time.Duration(p.Config.Lock.TTLSeconds) * time.Second
		if ttl <= 0 {
			ttl = 30 * time.Second
		}
		locker = newRedisLocker(runner, client, ttl)
	default:
		locker = newLocalLocker(runner)
	}

	runner.log.Info("project lock configured", zap.String("backend", locker.Backend()))
	return locker, nil
}

// NewLocal returns an in-process locker over database.
func NewLocal(database *gorm.DB, log *zap.Logger) Locker {
	if log == nil {
		log = zap.NewNop()
	}
	return newLocalLocker(txRunner{db: database, log: log})
}
