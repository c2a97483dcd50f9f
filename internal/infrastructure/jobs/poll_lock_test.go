package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"memberhub.backend/pkg/redis"
)

func setupLockRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	srv, err := miniredis.Run()
	if err != nil {
		t.Skipf("skip: miniredis unavailable in this environment: %v", err)
	}
	t.Cleanup(srv.Close)
	redis.SetClient(goredis.NewClient(&goredis.Options{Addr: srv.Addr()}))
	return srv
}

func TestRedisPollLock_AcquireRefreshRelease(t *testing.T) {
	srv := setupLockRedis(t)
	ctx := context.Background()

	a, err := NewRedisPollLock()
	require.NoError(t, err)
	b, err := NewRedisPollLock()
	require.NoError(t, err)

	ok, err := a.Acquire(ctx, "pay_1", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Acquire(ctx, "pay_1", 30*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, a.Refresh(ctx, "pay_1", time.Minute))
	assert.Equal(t, time.Minute, srv.TTL(PollKey("pay_1")))
	assert.ErrorIs(t, b.Refresh(ctx, "pay_1", time.Minute), ErrLockLost)

	// release by a non-owner leaves the key in place
	require.NoError(t, b.Release(ctx, "pay_1"))
	assert.True(t, srv.Exists(PollKey("pay_1")))

	require.NoError(t, a.Release(ctx, "pay_1"))
	assert.False(t, srv.Exists(PollKey("pay_1")))
}

func TestRedisPollLock_RevokeFailsOwnerRefresh(t *testing.T) {
	srv := setupLockRedis(t)
	ctx := context.Background()

	owner, err := NewRedisPollLock()
	require.NoError(t, err)
	other, err := NewRedisPollLock()
	require.NoError(t, err)

	ok, err := owner.Acquire(ctx, "pay_2", 30*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, other.Revoke(ctx, "pay_2"))
	assert.False(t, srv.Exists(PollKey("pay_2")))
	assert.ErrorIs(t, owner.Refresh(ctx, "pay_2", 30*time.Second), ErrLockLost)
}

func TestRedisPollLock_ExpiredLockIsLost(t *testing.T) {
	srv := setupLockRedis(t)
	ctx := context.Background()

	l, err := NewRedisPollLock()
	require.NoError(t, err)
	ok, err := l.Acquire(ctx, "pay_3", 30*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	srv.FastForward(31 * time.Second)
	assert.ErrorIs(t, l.Refresh(ctx, "pay_3", 30*time.Second), ErrLockLost)
}

func TestRedisStartLock_OneHolderPerIdentity(t *testing.T) {
	srv := setupLockRedis(t)
	ctx := context.Background()
	lock := NewRedisStartLock(0)
	identity := uuid.New()

	release, ok, err := lock.Acquire(ctx, identity)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, DefaultStartLockTTL, srv.TTL(StartKey(identity)))

	_, ok, err = lock.Acquire(ctx, identity)
	require.NoError(t, err)
	assert.False(t, ok, "a second start for the same identity must wait")

	_, ok, err = lock.Acquire(ctx, uuid.New())
	require.NoError(t, err)
	assert.True(t, ok)

	release()
	assert.False(t, srv.Exists(StartKey(identity)))

	release2, ok, err := lock.Acquire(ctx, identity)
	require.NoError(t, err)
	require.True(t, ok)
	release2()
}

func TestRedisStartLock_StaleReleaseKeepsNewHolder(t *testing.T) {
	srv := setupLockRedis(t)
	ctx := context.Background()
	lock := NewRedisStartLock(time.Second)
	identity := uuid.New()

	stale, ok, err := lock.Acquire(ctx, identity)
	require.NoError(t, err)
	require.True(t, ok)

	srv.FastForward(2 * time.Second)
	_, ok, err = lock.Acquire(ctx, identity)
	require.NoError(t, err)
	require.True(t, ok)

	stale()
	assert.True(t, srv.Exists(StartKey(identity)))
}

func TestRedisStartLock_RedisError(t *testing.T) {
	srv := setupLockRedis(t)
	srv.Close()

	_, ok, err := NewRedisStartLock(0).Acquire(context.Background(), uuid.New())
	require.Error(t, err)
	assert.False(t, ok)
}
