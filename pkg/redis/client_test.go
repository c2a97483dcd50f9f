package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitInvalidURL(t *testing.T) {
	err := Init("://invalid-url", "")
	assert.Error(t, err)
}

func TestInit_WithMiniredis(t *testing.T) {
	srv, err := miniredis.Run()
	if err != nil {
		t.Skipf("skip: miniredis unavailable in this environment: %v", err)
	}
	defer srv.Close()

	require.NoError(t, Init("redis://"+srv.Addr(), "ignored-by-miniredis"))
	assert.NotNil(t, GetClient())
}

func TestSetClientAndBasicOpsWithUnreachableRedis(t *testing.T) {
	cli := goredis.NewClient(&goredis.Options{
		Addr:         "127.0.0.1:0",
		DialTimeout:  50 * time.Millisecond,
		ReadTimeout:  50 * time.Millisecond,
		WriteTimeout: 50 * time.Millisecond,
	})
	SetClient(cli)
	assert.NotNil(t, GetClient())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	assert.Error(t, Set(ctx, "k", "v", time.Second))
	_, err := Get(ctx, "k")
	assert.Error(t, err)
	assert.Error(t, Del(ctx, "k"))
	_, err = SetNX(ctx, "k", "v", time.Second)
	assert.Error(t, err)
}

func TestBasicOps_Miniredis(t *testing.T) {
	srv, err := miniredis.Run()
	if err != nil {
		t.Skipf("skip: miniredis unavailable in this environment: %v", err)
	}
	defer srv.Close()

	cli := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	SetClient(cli)
	defer cli.Close()
	ctx := context.Background()

	ok, err := SetNX(ctx, "poll:pay_1", "owner", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = SetNX(ctx, "poll:pay_1", "other", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, Expire(ctx, "poll:pay_1", 2*time.Minute))
	assert.Equal(t, 2*time.Minute, srv.TTL("poll:pay_1"))

	_, err = Get(ctx, "missing")
	assert.True(t, IsNil(err))

	require.NoError(t, SAdd(ctx, "set", "a", "b"))
	members, err := SMembers(ctx, "set")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, members)

	require.NoError(t, Del(ctx, "poll:pay_1", "set"))
	assert.False(t, srv.Exists("poll:pay_1"))
}

func TestPingClient_WrapperExecutes(t *testing.T) {
	c := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:0"})
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if err := pingClient(ctx, c); err == nil {
		t.Fatal("expected ping error for invalid redis endpoint")
	}
}

func TestCompareAndDeleteAndExpire_Miniredis(t *testing.T) {
	srv, err := miniredis.Run()
	if err != nil {
		t.Skipf("skip: miniredis unavailable in this environment: %v", err)
	}
	defer srv.Close()

	cli := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	SetClient(cli)
	defer cli.Close()
	ctx := context.Background()

	require.NoError(t, Set(ctx, "poll:pay_2", "owner-a", time.Minute))

	ok, err := CompareAndExpire(ctx, "poll:pay_2", "owner-b", 5*time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = CompareAndExpire(ctx, "poll:pay_2", "owner-a", 5*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 5*time.Minute, srv.TTL("poll:pay_2"))

	ok, err = CompareAndDelete(ctx, "poll:pay_2", "owner-b")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, srv.Exists("poll:pay_2"))

	ok, err = CompareAndDelete(ctx, "poll:pay_2", "owner-a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, srv.Exists("poll:pay_2"))
}
