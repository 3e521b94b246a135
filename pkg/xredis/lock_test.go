package xredis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestLocker_Exclusive(t *testing.T) {
	mr, rdb := newTestRedis(t)
	ctx := context.Background()
	const key = "ledger:reconciler:lock"

	a := NewLocker(rdb)
	b := NewLocker(rdb)

	unlockA, ok, err := a.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = b.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "别的节点持有时抢不到")

	// 自己再抢一次是续期
	_, ok, err = a.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	unlockA(ctx)
	assert.False(t, mr.Exists(key))

	_, ok, err = b.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocker_UnlockDoesNotDeleteOthersLock(t *testing.T) {
	mr, rdb := newTestRedis(t)
	ctx := context.Background()
	const key = "ledger:reconciler:lock"

	a := NewLocker(rdb)
	unlockA, ok, err := a.TryLock(ctx, key, time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	// 锁过期后被 b 拿走
	mr.FastForward(2 * time.Second)
	b := NewLocker(rdb)
	_, ok, err = b.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	unlockA(ctx)
	got, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, b.ID(), got)
}

func TestNewRedis_EmptyAddr(t *testing.T) {
	rdb, err := NewRedis(context.Background(), &Config{})
	assert.NoError(t, err)
	assert.Nil(t, rdb)
}
