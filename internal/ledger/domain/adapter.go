package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"usdtinr.com/pkg/codec"
)

// TransferRecord 链上一笔代币转账的标准化结果
type TransferRecord struct {
	TxHash        string
	From          codec.Address
	To            codec.Address
	Amount        decimal.Decimal // 已按代币精度缩放
	Confirmed     bool
	Confirmations int64
	BlockNumber   int64
}

// ChainVerifier 查不到返回 (nil, nil)，只有网络/超时等才返回 ExternalServiceError
type ChainVerifier interface {
	Verify(ctx context.Context, txHash string) (*TransferRecord, error)
}

// Event 推给协作方（推送/审计）的事件
type Event struct {
	Type   string    `json:"type"` // deposit.confirmed / deposit.failed / withdrawal.* / ad.*
	UserID int64     `json:"user_id"`
	RefID  int64     `json:"ref_id"`
	Ref    string    `json:"ref,omitempty"`
	Status string    `json:"status"`
	Amount string    `json:"amount,omitempty"`
	Reason string    `json:"reason,omitempty"`
	At     time.Time `json:"at"`
}

type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
