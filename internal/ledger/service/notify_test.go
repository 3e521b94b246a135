package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"usdtinr.com/internal/ledger/domain"
	"usdtinr.com/pkg/codec"
)

func TestStreamNotifier_XAdd(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	ctx := context.Background()

	n := NewStreamNotifier(rdb, "", 0)
	e := domain.Event{
		Type:   "deposit.confirmed",
		UserID: 7,
		RefID:  3,
		Ref:    hashA,
		Status: "confirmed",
		Amount: "50.000000",
		At:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, n.Notify(ctx, e))

	msgs, err := rdb.XRange(ctx, "ledger:events", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "deposit.confirmed", msgs[0].Values["type"])
	assert.Equal(t, "7", msgs[0].Values["user_id"])

	var got domain.Event
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Values["payload"].(string)), &got))
	assert.Equal(t, e.Ref, got.Ref)
	assert.Equal(t, e.Amount, got.Amount)
}

type failingNotifier struct{ calls int }

func (f *failingNotifier) Notify(context.Context, domain.Event) error {
	f.calls++
	return errors.New("broker down")
}

// 通知失败不回滚已提交的账务
func TestNotifyFailureDoesNotAffectLedger(t *testing.T) {
	e := newTestEnv(t)
	fn := &failingNotifier{}
	e.withdrawals = NewWithdrawalService(e.repo, e.mutator, fn, e.clock, cur,
		WithdrawalConfig{Fee: 1 * usdt, MinAmount: 1 * usdt})
	e.fund(t, 1, 30*usdt)

	w, err := e.withdrawals.RequestWithdrawal(context.Background(), 1, 20*usdt, treasuryAddr)
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalStatusUnderReview, w.Status)
	assert.Equal(t, 1, fn.calls)
	assert.Equal(t, [2]codec.Amount{9, 21}, e.balance(t, 1))
}
