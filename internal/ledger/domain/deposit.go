package domain

import (
	"time"

	"usdtinr.com/pkg/codec"
)

type DepositStatus uint8

// 充值状态枚举
const (
	DepositStatusPending   DepositStatus = iota // 待确认
	DepositStatusConfirmed                      // 已入账（终态）
	DepositStatusFailed                         // 超时未确认（终态，需人工对账）
)

var depositTransitions = transitions[DepositStatus]{
	DepositStatusPending:   {DepositStatusConfirmed, DepositStatusFailed},
	DepositStatusConfirmed: {},
	DepositStatusFailed:    {},
}

func (s DepositStatus) String() string {
	switch s {
	case DepositStatusPending:
		return "pending"
	case DepositStatusConfirmed:
		return "confirmed"
	case DepositStatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s DepositStatus) CanTransit(to DepositStatus) bool { return depositTransitions.allowed(s, to) }
func (s DepositStatus) Terminal() bool                   { return depositTransitions.terminal(s) }

func (s DepositStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Deposit 用户提交的一笔链上充值
// tx_hash 全局唯一：同一笔链上转账只能记给一个用户
type Deposit struct {
	ID            int64         `json:"id"`
	UserID        int64         `gorm:"index;not null" json:"user_id"`
	TxHash        string        `gorm:"uniqueIndex;size:64;not null" json:"tx_hash"`
	Amount        codec.Amount  `gorm:"not null;default:0" json:"-"`
	Status        DepositStatus `gorm:"index:idx_deposit_status_created,priority:1;index:idx_deposit_status_checked,priority:1;not null;default:0" json:"status"`
	Confirmations int64         `gorm:"not null;default:0" json:"confirmations"`
	FromAddress   string        `gorm:"size:64" json:"from_address"`
	ToAddress     string        `gorm:"size:64" json:"to_address"`
	BlockNumber   int64         `json:"block_number"`
	FailReason    string        `gorm:"size:255" json:"fail_reason,omitempty"`
	ConfirmedAt   *time.Time    `json:"confirmed_at,omitempty"`
	CheckedAt     *time.Time    `gorm:"index:idx_deposit_status_checked,priority:2" json:"-"` // 对账上次核对时间
	CreatedAt     time.Time     `gorm:"index:idx_deposit_status_created,priority:2" json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// DepositObservation 链上核对时看到的信息，pending 期间也会落库方便用户查询
type DepositObservation struct {
	Amount        codec.Amount
	Confirmations int64
	FromAddress   string
	ToAddress     string
	BlockNumber   int64
}

// DepositOutcome 一次核对的结果
type DepositOutcome string

const (
	OutcomeConfirmed      DepositOutcome = "confirmed"       // 本次入账
	OutcomeAlreadySettled DepositOutcome = "already_settled" // 条件更新 0 行，别的路径已处理
	OutcomeUnconfirmed    DepositOutcome = "unconfirmed"     // 链上有，但还没确认
	OutcomeNotFound       DepositOutcome = "not_found"       // 链上还查不到，未超时
	OutcomeFailed         DepositOutcome = "failed"          // 超时置为失败
	OutcomeError          DepositOutcome = "error"           // 索引器/数据库异常，下轮重试
)
