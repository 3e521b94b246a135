package domain

import (
	"time"

	"usdtinr.com/pkg/codec"
)

type WithdrawalStatus uint8

const (
	WithdrawalStatusUnderReview WithdrawalStatus = iota // 0: 审核中（已冻结 amount+fee）
	WithdrawalStatusApproved                            // 1: 审核通过，待广播
	WithdrawalStatusSent                                // 2: 已广播
	WithdrawalStatusCompleted                           // 3: 完成，冻结资金出账（终态）
	WithdrawalStatusRejected                            // 4: 驳回，冻结资金退回（终态）
)

// 广播之后不能再驳回：链上资金已经出去了
var withdrawalTransitions = transitions[WithdrawalStatus]{
	WithdrawalStatusUnderReview: {WithdrawalStatusApproved, WithdrawalStatusRejected},
	WithdrawalStatusApproved:    {WithdrawalStatusSent, WithdrawalStatusRejected},
	WithdrawalStatusSent:        {WithdrawalStatusCompleted},
	WithdrawalStatusCompleted:   {},
	WithdrawalStatusRejected:    {},
}

func (s WithdrawalStatus) String() string {
	switch s {
	case WithdrawalStatusUnderReview:
		return "under_review"
	case WithdrawalStatusApproved:
		return "approved"
	case WithdrawalStatusSent:
		return "sent"
	case WithdrawalStatusCompleted:
		return "completed"
	case WithdrawalStatusRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

func (s WithdrawalStatus) CanTransit(to WithdrawalStatus) bool {
	return withdrawalTransitions.allowed(s, to)
}
func (s WithdrawalStatus) Terminal() bool { return withdrawalTransitions.terminal(s) }

// Reserving 该状态下 amount+fee 处于冻结中
func (s WithdrawalStatus) Reserving() bool {
	return s == WithdrawalStatusUnderReview || s == WithdrawalStatusApproved || s == WithdrawalStatusSent
}

func (s WithdrawalStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// ReservingWithdrawalStatuses 参与冻结对账的状态
var ReservingWithdrawalStatuses = []WithdrawalStatus{
	WithdrawalStatusUnderReview, WithdrawalStatusApproved, WithdrawalStatusSent,
}

// Withdrawal 提现单
type Withdrawal struct {
	ID              int64            `json:"id"`
	UserID          int64            `gorm:"index:idx_withdrawal_user_status,priority:1;not null" json:"user_id"`
	Amount          codec.Amount     `gorm:"not null" json:"-"`
	Fee             codec.Amount     `gorm:"not null;default:0" json:"-"`
	Address         string           `gorm:"size:64;not null" json:"address"`
	Status          WithdrawalStatus `gorm:"index:idx_withdrawal_user_status,priority:2;not null;default:0" json:"status"`
	TxHash          string           `gorm:"size:64" json:"tx_hash,omitempty"`
	RejectionReason string           `gorm:"size:255" json:"rejection_reason,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// Reserved 冻结金额 = 提现金额 + 手续费
func (w *Withdrawal) Reserved() (codec.Amount, error) {
	return w.Amount.Add(w.Fee)
}
