package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/workdesk/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestLoginLimiterDisabledAllowsEverything(t *testing.T) {
	limiter := NewLoginLimiter(config.Config{}, nil)
	assert.False(t, limiter.Enabled())

	for i := 0; i < 20; i++ {
		allowed, err := limiter.Allow(context.Background(), "admin:root@example.com")
		require.NoError(t, err)
		assert.True(t, allowed)
	}
}

func TestLoginLimiterExhaustsBurst(t *testing.T) {
	_, client := newRedis(t)
	cfg := config.Config{RateLimit: config.RateLimitConfig{Enabled: true, LoginRate: 0.01, LoginBurst: 3}}
	limiter := NewLoginLimiter(cfg, client)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(ctx, "company:ops@acme.test")
		require.NoError(t, err)
		assert.True(t, allowed, "attempt %d", i+1)
	}
	allowed, err := limiter.Allow(ctx, "company:ops@acme.test")
	require.NoError(t, err)
	assert.False(t, allowed)

	// Buckets are per key.
	allowed, err = limiter.Allow(ctx, "company:other@acme.test")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestTokenBucketRejectsBadInput(t *testing.T) {
	_, client := newRedis(t)
	bucket := NewTokenBucket(client)

	_, err := bucket.Allow(context.Background(), "", 1, 1)
	require.ErrorIs(t, err, ErrEmptyKey)
	_, err = bucket.Allow(context.Background(), "k", 0, 1)
	require.ErrorIs(t, err, ErrInvalidLimit)

	var nilBucket *TokenBucket
	_, err = nilBucket.Allow(context.Background(), "k", 1, 1)
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestLockerOnlyOwnerReleases(t *testing.T) {
	mr, client := newRedis(t)
	locker := NewLocker(client)
	ctx := context.Background()

	lease, err := locker.TryLock(ctx, "lock:a", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, lease)

	contender, err := locker.TryLock(ctx, "lock:a", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, contender)

	stale := &Lease{locker: locker, key: "lock:a", token: "someone-else"}
	require.NoError(t, stale.Release(ctx))
	assert.True(t, mr.Exists("lock:a"))

	require.NoError(t, lease.Release(ctx))
	assert.False(t, mr.Exists("lock:a"))
}

func TestLockerAcquireTimesOut(t *testing.T) {
	_, client := newRedis(t)
	locker := NewLocker(client)
	ctx := context.Background()

	held, err := locker.TryLock(ctx, "lock:b", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, held)

	_, err = locker.Acquire(ctx, "lock:b", time.Minute, 80*time.Millisecond)
	require.ErrorIs(t, err, ErrLockTimeout)

	require.NoError(t, held.Release(ctx))
	lease, err := locker.Acquire(ctx, "lock:b", time.Minute, 80*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, lease)
}

func TestCompletionLockerSerializes(t *testing.T) {
	_, client := newRedis(t)
	cfg := config.Config{RateLimit: config.RateLimitConfig{LockTTL: time.Minute}}
	locker := NewCompletionLocker(cfg, client, zap.NewNop(), nil)
	locker.wait = 100 * time.Millisecond
	ctx := context.Background()

	release, err := locker.Acquire(ctx, snowflake.ID(42))
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, snowflake.ID(42))
	require.ErrorIs(t, err, ErrLockHeld)

	other, err := locker.Acquire(ctx, snowflake.ID(43))
	require.NoError(t, err)
	other()

	release()
	again, err := locker.Acquire(ctx, snowflake.ID(42))
	require.NoError(t, err)
	again()
}

func TestCompletionLockerWithoutRedisIsNoop(t *testing.T) {
	locker := NewCompletionLocker(config.Config{}, nil, zap.NewNop(), nil)

	release, err := locker.Acquire(context.Background(), snowflake.ID(1))
	require.NoError(t, err)
	release()
}
