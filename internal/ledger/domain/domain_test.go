package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// 转移表必须覆盖每个状态，并且和 CanTransit 的行为一致
func TestDepositTransitions(t *testing.T) {
	all := []DepositStatus{DepositStatusPending, DepositStatusConfirmed, DepositStatusFailed}
	assert.Len(t, depositTransitions, len(all))

	allowed := map[[2]DepositStatus]bool{
		{DepositStatusPending, DepositStatusConfirmed}: true,
		{DepositStatusPending, DepositStatusFailed}:    true,
	}
	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]DepositStatus{from, to}], from.CanTransit(to), "%s -> %s", from, to)
		}
	}
	assert.True(t, DepositStatusFailed.Terminal(), "failed 永久终态")
	assert.True(t, DepositStatusConfirmed.Terminal())
	assert.False(t, DepositStatusPending.Terminal())
}

func TestWithdrawalTransitions(t *testing.T) {
	all := []WithdrawalStatus{
		WithdrawalStatusUnderReview, WithdrawalStatusApproved, WithdrawalStatusSent,
		WithdrawalStatusCompleted, WithdrawalStatusRejected,
	}
	assert.Len(t, withdrawalTransitions, len(all))

	allowed := map[[2]WithdrawalStatus]bool{
		{WithdrawalStatusUnderReview, WithdrawalStatusApproved}: true,
		{WithdrawalStatusUnderReview, WithdrawalStatusRejected}: true,
		{WithdrawalStatusApproved, WithdrawalStatusSent}:        true,
		{WithdrawalStatusApproved, WithdrawalStatusRejected}:    true,
		{WithdrawalStatusSent, WithdrawalStatusCompleted}:       true,
	}
	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]WithdrawalStatus{from, to}], from.CanTransit(to), "%s -> %s", from, to)
		}
		assert.Equal(t, from.Reserving(), !from.Terminal(), from.String())
	}
}

func TestAdTransitions(t *testing.T) {
	all := []AdStatus{AdStatusActive, AdStatusPaused, AdStatusCompleted}
	assert.Len(t, adTransitions, len(all))

	allowed := map[[2]AdStatus]bool{
		{AdStatusActive, AdStatusPaused}:    true,
		{AdStatusPaused, AdStatusActive}:    true,
		{AdStatusActive, AdStatusCompleted}: true,
		{AdStatusPaused, AdStatusCompleted}: true,
	}
	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]AdStatus{from, to}], from.CanTransit(to), "%s -> %s", from, to)
		}
		got, ok := ParseAdStatus(from.String())
		assert.True(t, ok)
		assert.Equal(t, from, got)
	}
	_, ok := ParseAdStatus("active")
	assert.False(t, ok, "状态名区分大小写")
}

func TestWithdrawalReserved(t *testing.T) {
	w := &Withdrawal{Amount: 20_000_000, Fee: 1_000_000}
	got, err := w.Reserved()
	assert.NoError(t, err)
	assert.EqualValues(t, 21_000_000, got)
}
