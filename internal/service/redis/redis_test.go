package redis_test

import (
	"context"
	"testing"
	"time"

	"e2e_transport/internal/service/redis"
	"e2e_transport/internal/service/redis/redistest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetNX(t *testing.T) {
	ctx := context.Background()
	svc := redis.NewRedis(redistest.New())

	ok, err := svc.SetNX(ctx, "k", "1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.SetNX(ctx, "k", "2", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	v, err := svc.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "1", v)

	_, err = svc.Get(ctx, "missing")
	assert.ErrorIs(t, err, redis.Nil)
}

func TestListOps(t *testing.T) {
	ctx := context.Background()
	fake := redistest.New()
	svc := redis.NewRedis(fake)

	require.NoError(t, svc.RPushExpire(ctx, "l", time.Hour, "a", "b", "c", "d"))
	assert.Equal(t, time.Hour, fake.TTL("l"))

	all, err := svc.LRange(ctx, "l")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, all)

	tail, err := svc.LRangeFrom(ctx, "l", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "d"}, tail)

	require.NoError(t, svc.LTrimTail(ctx, "l", 3))
	all, err = svc.LRange(ctx, "l")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "d"}, all)

	require.NoError(t, svc.Del(ctx, "l"))
	all, err = svc.LRange(ctx, "l")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestIncr(t *testing.T) {
	ctx := context.Background()
	svc := redis.NewRedis(redistest.New())
	for want := int64(1); want <= 3; want++ {
		n, err := svc.Incr(ctx, "seq")
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}
}
