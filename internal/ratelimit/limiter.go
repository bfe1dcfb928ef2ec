package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/progresspay/internal/config"
	"go.uber.org/fx"
)

const keyWriteOrg = "ratelimit:write:org:%s"

type bucket interface {
	Allow(ctx context.Context, key string, rate float64, burst int) (*Result, error)
}

// WriteLimiter throttles mutating requests per organization. A nil limiter
// allows everything.
type WriteLimiter struct {
	bucket bucket
	rate   float64
	burst  int
}

// NewWriteLimiter returns nil when rate limiting is disabled.
func NewWriteLimiter(lc fx.Lifecycle, cfg config.Config) (*WriteLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.Rate <= 0 || limitCfg.Burst <= 0 {
		return nil, errors.New("rate limit rate and burst must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: limitCfg.RedisPassword,
		DB:       limitCfg.RedisDB,
	})
	if lc != nil {
		lc.Append(fx.StopHook(client.Close))
	}

	return &WriteLimiter{
		bucket: NewTokenBucket(client),
		rate:   limitCfg.Rate,
		burst:  limitCfg.Burst,
	}, nil
}

func (l *WriteLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// AllowOrg draws one write token for orgID.
func (l *WriteLimiter) AllowOrg(ctx context.Context, orgID string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyWriteOrg, strings.TrimSpace(orgID)), l.rate, l.burst)
}
