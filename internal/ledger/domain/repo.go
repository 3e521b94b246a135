package domain

import (
	"context"
	"time"

	"usdtinr.com/pkg/codec"
)

// TxRunner 事务放在 ctx 里向下传递，仓储方法自动复用
type TxRunner interface {
	Transaction(ctx context.Context, fn func(txCtx context.Context) error) error
}

// WalletStore 钱包持久化，不含业务逻辑
type WalletStore interface {
	TxRunner
	// CreateWallet 幂等：已存在时返回已有记录，created=false
	CreateWallet(ctx context.Context, userID int64) (w *Wallet, created bool, err error)
	GetWallet(ctx context.Context, userID int64) (*Wallet, error)
	// LoadForUpdate 行锁，必须在事务内调用；同一用户的其他变更会阻塞到本事务结束
	LoadForUpdate(ctx context.Context, userID int64) (*Wallet, error)
	SaveWallet(ctx context.Context, w *Wallet) error
	LoadReservations(ctx context.Context, userID int64) (*Reservations, error)
}

// DepositPatch 状态迁移时一起写的字段
type DepositPatch struct {
	Observation *DepositObservation
	FailReason  string
	ConfirmedAt *time.Time
}

type DepositStore interface {
	CreateDeposit(ctx context.Context, d *Deposit) error
	GetDepositByHash(ctx context.Context, txHash string) (*Deposit, error)
	// ListPendingDeposits 从没核对过的优先，其次是最久没核对的
	ListPendingDeposits(ctx context.Context, limit int) ([]*Deposit, error)
	// MarkDepositChecked 记录 pending 记录的核对时间
	MarkDepositChecked(ctx context.Context, id int64, at time.Time) error
	ListDeposits(ctx context.Context, userID int64, page, limit int) ([]*Deposit, int64, error)
	// ObserveDeposit 只更新 pending 记录的链上观测信息
	ObserveDeposit(ctx context.Context, id int64, obs DepositObservation) error
	// TransitDeposit 条件更新 status=from -> to，返回是否命中
	TransitDeposit(ctx context.Context, id int64, from, to DepositStatus, patch DepositPatch) (bool, error)
}

type WithdrawalPatch struct {
	TxHash          string
	RejectionReason string
}

type WithdrawalStore interface {
	CreateWithdrawal(ctx context.Context, w *Withdrawal) error
	GetWithdrawal(ctx context.Context, id int64) (*Withdrawal, error)
	TransitWithdrawal(ctx context.Context, id int64, from, to WithdrawalStatus, patch WithdrawalPatch) (bool, error)
}

type AdStore interface {
	CreateAd(ctx context.Context, ad *Ad) error
	GetAd(ctx context.Context, id int64) (*Ad, error)
	// UpdateAd 以 (status, amount_remaining) 作为乐观条件写回
	UpdateAd(ctx context.Context, ad *Ad, expectStatus AdStatus, expectRemaining codec.Amount) (bool, error)
}

// LedgerStore 账本存储全集，mysql.Repo 实现
type LedgerStore interface {
	WalletStore
	DepositStore
	WithdrawalStore
	AdStore
}
