package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"usdtinr.com/pkg/codec"
)

type AdStatus uint8

const (
	AdStatusActive    AdStatus = iota + 1 // 上架，amount_remaining 冻结中
	AdStatusPaused                        // 暂停，未冻结
	AdStatusCompleted                     // 完成（终态），剩余冻结已扣除
)

var adTransitions = transitions[AdStatus]{
	AdStatusActive:    {AdStatusPaused, AdStatusCompleted},
	AdStatusPaused:    {AdStatusActive, AdStatusCompleted},
	AdStatusCompleted: {},
}

func (s AdStatus) String() string {
	switch s {
	case AdStatusActive:
		return "ACTIVE"
	case AdStatusPaused:
		return "PAUSED"
	case AdStatusCompleted:
		return "COMPLETED"
	default:
		return "UNKNOWN"
	}
}

func ParseAdStatus(s string) (AdStatus, bool) {
	for st := range adTransitions {
		if st.String() == s {
			return st, true
		}
	}
	return 0, false
}

func (s AdStatus) CanTransit(to AdStatus) bool { return adTransitions.allowed(s, to) }
func (s AdStatus) Terminal() bool              { return adTransitions.terminal(s) }

func (s AdStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Ad 挂单广告对钱包的冻结
type Ad struct {
	ID              int64           `json:"id"`
	UserID          int64           `gorm:"index:idx_ad_user_status,priority:1;not null" json:"user_id"`
	AmountTotal     codec.Amount    `gorm:"not null" json:"-"`
	AmountRemaining codec.Amount    `gorm:"not null" json:"-"`
	Price           decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"price"` // INR / USDT
	Status          AdStatus        `gorm:"index:idx_ad_user_status,priority:2;not null" json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
