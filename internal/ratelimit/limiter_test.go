package ratelimit

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/progresspay/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingBucket struct {
	keys    []string
	allowed bool
}

func (b *recordingBucket) Allow(_ context.Context, key string, _ float64, burst int) (*Result, error) {
	b.keys = append(b.keys, key)
	return &Result{Allowed: b.allowed, Limit: burst}, nil
}

func TestDisabledLimiterAllows(t *testing.T) {
	limiter, err := NewWriteLimiter(nil, config.Config{})
	require.NoError(t, err)
	assert.Nil(t, limiter)
	assert.False(t, limiter.Enabled())

	res, err := limiter.AllowOrg(context.Background(), "10")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestEnabledLimiterRequiresRedis(t *testing.T) {
	_, err := NewWriteLimiter(nil, config.Config{RateLimit: config.RateLimitConfig{Enabled: true, Rate: 1, Burst: 1}})
	assert.Error(t, err)

	_, err = NewWriteLimiter(nil, config.Config{RateLimit: config.RateLimitConfig{Enabled: true, RedisAddr: "localhost:6379"}})
	assert.Error(t, err)
}

func TestAllowOrgKeysByOrganization(t *testing.T) {
	b := &recordingBucket{allowed: true}
	limiter := &WriteLimiter{bucket: b, rate: 1, burst: 3}

	_, err := limiter.AllowOrg(context.Background(), " 10 ")
	require.NoError(t, err)
	_, err = limiter.AllowOrg(context.Background(), "11")
	require.NoError(t, err)

	assert.Equal(t, []string{"ratelimit:write:org:10", "ratelimit:write:org:11"}, b.keys)
}

func TestRetryAfterSecondsRoundsUp(t *testing.T) {
	assert.Equal(t, "1", (&Result{}).RetryAfterSeconds())
	assert.Equal(t, "2", (&Result{RetryAfter: 1200 * time.Millisecond}).RetryAfterSeconds())
}

func TestTokenBucketExhausts(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	bucket := NewTokenBucket(client)
	key := fmt.Sprintf("ratelimit:test:%d", time.Now().UnixNano())
	t.Cleanup(func() { _ = client.Del(context.Background(), key).Err() })

	for i := 0; i < 3; i++ {
		res, err := bucket.Allow(context.Background(), key, 0.01, 3)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}

	res, err := bucket.Allow(context.Background(), key, 0.01, 3)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Positive(t, res.RetryAfter)
}
