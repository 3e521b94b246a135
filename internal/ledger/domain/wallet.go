package domain

import (
	"time"

	"usdtinr.com/pkg/codec"
)

// Wallet 每个用户一条，只能通过 BalanceMutator 修改
type Wallet struct {
	ID        int64        `json:"-"`
	UserID    int64        `gorm:"uniqueIndex;not null" json:"user_id"`
	Available codec.Amount `gorm:"not null;default:0" json:"-"`
	Locked    codec.Amount `gorm:"not null;default:0" json:"-"`
	Version   int64        `gorm:"not null;default:0" json:"version"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Total 派生值，不落库
func (w *Wallet) Total() (codec.Amount, error) {
	return w.Available.Add(w.Locked)
}

// Reservations 对账视图：钱包冻结金额应由这些记录解释
type Reservations struct {
	ActiveAds           codec.Amount // ACTIVE 广告 amount_remaining 之和
	ActiveAdCount       int64
	OpenWithdrawals     codec.Amount // under_review/approved/sent 的 amount+fee 之和
	OpenWithdrawalCount int64
}

func (r Reservations) Total() (codec.Amount, error) {
	return r.ActiveAds.Add(r.OpenWithdrawals)
}
