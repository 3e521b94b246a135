package service

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"usdtinr.com/internal/ledger/domain"
	"usdtinr.com/pkg/codec"
	"usdtinr.com/pkg/logger"
	"usdtinr.com/pkg/xerr"
)

type WithdrawalConfig struct {
	Fee       codec.Amount // 固定手续费，和金额一起冻结
	MinAmount codec.Amount
}

type withdrawalStore interface {
	domain.TxRunner
	domain.WithdrawalStore
}

type WithdrawalService struct {
	store    withdrawalStore
	mutator  *BalanceMutator
	notifier domain.Notifier
	clock    domain.Clock
	cur      codec.Currency
	cfg      WithdrawalConfig
}

func NewWithdrawalService(store withdrawalStore, mutator *BalanceMutator, notifier domain.Notifier,
	clock domain.Clock, cur codec.Currency, cfg WithdrawalConfig) *WithdrawalService {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &WithdrawalService{store: store, mutator: mutator, notifier: notifier, clock: clock, cur: cur, cfg: cfg}
}

// RequestWithdrawal 创建 under_review 提现单，同一事务冻结 amount+fee
func (s *WithdrawalService) RequestWithdrawal(ctx context.Context, userID int64, amount codec.Amount, address string) (*domain.Withdrawal, error) {
	if userID <= 0 {
		return nil, xerr.New(xerr.RequestParamsError, "invalid user id")
	}
	if !amount.IsPositive() {
		return nil, xerr.New(xerr.RequestParamsError, "withdrawal amount must be positive")
	}
	if amount < s.cfg.MinAmount {
		return nil, xerr.Newf(xerr.RequestParamsError, "withdrawal amount below minimum %s", s.cur.Format(s.cfg.MinAmount))
	}
	addr, err := codec.ParseAddress(strings.TrimSpace(address))
	if err != nil {
		return nil, xerr.Wrap(err, xerr.RequestParamsError, "invalid withdrawal address")
	}

	w := &domain.Withdrawal{
		UserID:  userID,
		Amount:  amount,
		Fee:     s.cfg.Fee,
		Address: addr.String(),
		Status:  domain.WithdrawalStatusUnderReview,
	}
	reserved, err := w.Reserved()
	if err != nil {
		return nil, rangeErr(err)
	}

	res := Reservation{Kind: "withdrawal", Apply: func(txCtx context.Context) error {
		return s.store.CreateWithdrawal(txCtx, w)
	}}
	if _, err := s.mutator.Lock(ctx, userID, reserved, res); err != nil {
		return nil, err
	}

	logger.Info(ctx, "withdrawal requested",
		zap.Int64("withdrawal_id", w.ID), zap.Int64("user_id", userID), zap.String("reserved", s.cur.Format(reserved)))
	s.emit(ctx, w, "")
	return w, nil
}

// ApproveWithdrawal 只改状态，资金继续冻结到广播完成
func (s *WithdrawalService) ApproveWithdrawal(ctx context.Context, id int64) (*domain.Withdrawal, error) {
	return s.transit(ctx, id, domain.WithdrawalStatusApproved, domain.WithdrawalPatch{}, nil)
}

// RejectWithdrawal under_review/approved 可驳回，冻结的 amount+fee 退回可用
func (s *WithdrawalService) RejectWithdrawal(ctx context.Context, id int64, reason string) (*domain.Withdrawal, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, xerr.New(xerr.RequestParamsError, "rejection reason required")
	}
	return s.transit(ctx, id, domain.WithdrawalStatusRejected, domain.WithdrawalPatch{RejectionReason: reason}, (*BalanceMutator).Unlock)
}

// MarkSent 广播之后记录链上 tx_hash
func (s *WithdrawalService) MarkSent(ctx context.Context, id int64, txHash string) (*domain.Withdrawal, error) {
	hash, err := normalizeHash(txHash)
	if err != nil {
		return nil, err
	}
	return s.transit(ctx, id, domain.WithdrawalStatusSent, domain.WithdrawalPatch{TxHash: hash}, nil)
}

// CompleteWithdrawal 链上已到账，冻结资金离开系统
func (s *WithdrawalService) CompleteWithdrawal(ctx context.Context, id int64) (*domain.Withdrawal, error) {
	return s.transit(ctx, id, domain.WithdrawalStatusCompleted, domain.WithdrawalPatch{}, (*BalanceMutator).Debit)
}

type mutateFunc func(m *BalanceMutator, ctx context.Context, userID int64, amount codec.Amount, res Reservation) (*domain.Wallet, error)

// transit 校验转移表后做条件更新；op 不为空时状态迁移和余额变化在同一事务
func (s *WithdrawalService) transit(ctx context.Context, id int64, to domain.WithdrawalStatus, patch domain.WithdrawalPatch, op mutateFunc) (*domain.Withdrawal, error) {
	w, err := s.store.GetWithdrawal(ctx, id)
	if err != nil {
		return nil, err
	}
	from := w.Status
	if !from.CanTransit(to) {
		return nil, transitionErr("withdrawal", from, to)
	}

	apply := func(txCtx context.Context) error {
		ok, err := s.store.TransitWithdrawal(txCtx, w.ID, from, to, patch)
		if err != nil {
			return err
		}
		if !ok {
			return conflictErr("withdrawal", w.ID)
		}
		return nil
	}

	if op == nil {
		err = s.store.Transaction(ctx, apply)
	} else {
		var reserved codec.Amount
		if reserved, err = w.Reserved(); err != nil {
			return nil, rangeErr(err)
		}
		_, err = op(s.mutator, ctx, w.UserID, reserved, Reservation{Kind: "withdrawal", ID: w.ID, Apply: apply})
	}
	if err != nil {
		return nil, err
	}

	w.Status = to
	if patch.TxHash != "" {
		w.TxHash = patch.TxHash
	}
	if patch.RejectionReason != "" {
		w.RejectionReason = patch.RejectionReason
	}
	logger.Info(ctx, "withdrawal status changed",
		zap.Int64("withdrawal_id", w.ID), zap.String("from", from.String()), zap.String("to", to.String()))
	s.emit(ctx, w, patch.RejectionReason)
	return w, nil
}

func (s *WithdrawalService) emit(ctx context.Context, w *domain.Withdrawal, reason string) {
	notify(ctx, s.notifier, domain.Event{
		Type:   "withdrawal." + w.Status.String(),
		UserID: w.UserID,
		RefID:  w.ID,
		Ref:    w.TxHash,
		Status: w.Status.String(),
		Amount: s.cur.Format(w.Amount),
		Reason: reason,
		At:     s.clock.Now(),
	})
}
