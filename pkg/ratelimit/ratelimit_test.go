package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
	"usdtinr.com/pkg/xerr"
)

func TestStore_AllowPerKey(t *testing.T) {
	s := NewStore(rate.Every(time.Hour), 2, time.Minute)

	assert.True(t, s.Allow("1.1.1.1:/deposits"))
	assert.True(t, s.Allow("1.1.1.1:/deposits"))
	assert.False(t, s.Allow("1.1.1.1:/deposits"), "桶里只有 2 个令牌")
	assert.True(t, s.Allow("2.2.2.2:/deposits"), "不同 key 互不影响")
	assert.Equal(t, 2, s.size())
}

func TestStore_WaitHonoursContext(t *testing.T) {
	s := NewStore(rate.Every(time.Hour), 1, time.Minute)
	require.NoError(t, s.Wait(context.Background(), "indexer"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, s.Wait(ctx, "indexer"))
}

func TestStore_Cleanup(t *testing.T) {
	s := NewStore(rate.Inf, 1, time.Nanosecond)
	s.Allow("a")
	time.Sleep(time.Millisecond)
	s.cleanup()
	assert.Equal(t, 0, s.size())
}

func TestManager_TripsOnConsecutiveFailures(t *testing.T) {
	m := NewManager(Rule{TripConsecutiveFailures: 3, Timeout: time.Minute}, nil)
	down := xerr.New(xerr.ExternalServiceError, "indexer 502")

	calls := 0
	for i := 0; i < 3; i++ {
		err := m.Execute("gettransactionbyid", func() error { calls++; return down })
		assert.ErrorIs(t, err, down)
	}

	err := m.Execute("gettransactionbyid", func() error { calls++; return nil })
	assert.True(t, xerr.Is(err, xerr.ExternalServiceError))
	assert.Equal(t, 3, calls, "熔断打开后不再调用下游")

	// 其他接口独立计数
	assert.NoError(t, m.Execute("getnowblock", func() error { return nil }))
}

func TestManager_BusinessErrorsDoNotTrip(t *testing.T) {
	m := NewManager(Rule{TripConsecutiveFailures: 1, Timeout: time.Minute}, nil)
	notFound := xerr.NewErrCode(xerr.RecordNotFound)

	for i := 0; i < 5; i++ {
		err := m.Execute("gettransactioninfobyid", func() error { return notFound })
		assert.True(t, errors.Is(err, notFound))
	}
	assert.NoError(t, m.Execute("gettransactioninfobyid", func() error { return nil }))
}
