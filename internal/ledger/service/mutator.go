package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"usdtinr.com/internal/ledger/domain"
	"usdtinr.com/pkg/codec"
	"usdtinr.com/pkg/logger"
	"usdtinr.com/pkg/metrics"
	"usdtinr.com/pkg/xerr"
)

type Op string

const (
	OpLock   Op = "lock"   // available -> locked
	OpUnlock Op = "unlock" // locked -> available
	OpCredit Op = "credit" // 入金：available 增加
	OpDebit  Op = "debit"  // 出金：locked 减少
)

// Reservation 引起这次余额变化的记录 (广告/提现/充值)
// Apply 在同一个事务里迁移它的状态，返回错误则整个事务回滚
type Reservation struct {
	Kind  string
	ID    int64
	Apply func(txCtx context.Context) error
}

// BalanceMutator 唯一允许修改钱包余额的路径
//  1. 开事务，行锁读钱包
//  2. 校验前置条件
//  3. 改余额 + 迁移关联记录状态
//  4. 重读校验不变量，不满足则整体回滚
type BalanceMutator struct {
	store domain.WalletStore
	cache BalanceCache
}

func NewBalanceMutator(store domain.WalletStore, cache BalanceCache) *BalanceMutator {
	return &BalanceMutator{store: store, cache: cache}
}

func (m *BalanceMutator) Lock(ctx context.Context, userID int64, amount codec.Amount, res Reservation) (*domain.Wallet, error) {
	return m.mutate(ctx, OpLock, userID, amount, res)
}

func (m *BalanceMutator) Unlock(ctx context.Context, userID int64, amount codec.Amount, res Reservation) (*domain.Wallet, error) {
	return m.mutate(ctx, OpUnlock, userID, amount, res)
}

func (m *BalanceMutator) Credit(ctx context.Context, userID int64, amount codec.Amount, res Reservation) (*domain.Wallet, error) {
	return m.mutate(ctx, OpCredit, userID, amount, res)
}

func (m *BalanceMutator) Debit(ctx context.Context, userID int64, amount codec.Amount, res Reservation) (*domain.Wallet, error) {
	return m.mutate(ctx, OpDebit, userID, amount, res)
}

func (m *BalanceMutator) mutate(ctx context.Context, op Op, userID int64, amount codec.Amount, res Reservation) (*domain.Wallet, error) {
	if !amount.IsPositive() {
		return nil, xerr.Newf(xerr.RequestParamsError, "%s amount must be positive", op)
	}

	var after *domain.Wallet
	err := m.store.Transaction(ctx, func(txCtx context.Context) error {
		w, err := m.store.LoadForUpdate(txCtx, userID)
		if err != nil {
			return err
		}
		before := *w

		if err := m.applyDelta(txCtx, op, w, amount, res); err != nil {
			return err
		}
		want := *w

		if err := m.store.SaveWallet(txCtx, w); err != nil {
			return err
		}
		if res.Apply != nil {
			if err := res.Apply(txCtx); err != nil {
				return err
			}
		}

		after, err = m.verify(txCtx, op, userID, before, want, amount, res)
		return err
	})

	metrics.MutationTotal.WithLabelValues(string(op), resultLabel(err)).Inc()
	if err != nil {
		return nil, err
	}

	// 提交之后再失效缓存，失败只影响读，TTL 兜底
	if m.cache != nil {
		if cerr := m.cache.Invalidate(ctx, userID, after.Version); cerr != nil {
			logger.Warn(ctx, "invalidate wallet cache failed", zap.Int64("user_id", userID), zap.Error(cerr))
		}
	}
	return after, nil
}

// applyDelta 校验前置条件并修改 w
func (m *BalanceMutator) applyDelta(ctx context.Context, op Op, w *domain.Wallet, amount codec.Amount, res Reservation) error {
	var err error
	switch op {
	case OpLock:
		if w.Available < amount {
			return xerr.NewErrCode(xerr.InsufficientFunds)
		}
		if w.Available, err = w.Available.Sub(amount); err != nil {
			return rangeErr(err)
		}
		w.Locked, err = w.Locked.Add(amount)
	case OpUnlock:
		if w.Locked < amount {
			return m.violation(ctx, op, w.UserID, res, "unlock exceeds locked balance",
				zap.Int64("locked", int64(w.Locked)), zap.Int64("amount", int64(amount)))
		}
		if w.Locked, err = w.Locked.Sub(amount); err != nil {
			return rangeErr(err)
		}
		w.Available, err = w.Available.Add(amount)
	case OpCredit:
		w.Available, err = w.Available.Add(amount)
	case OpDebit:
		if w.Locked < amount {
			return m.violation(ctx, op, w.UserID, res, "debit exceeds locked balance",
				zap.Int64("locked", int64(w.Locked)), zap.Int64("amount", int64(amount)))
		}
		w.Locked, err = w.Locked.Sub(amount)
	default:
		return fmt.Errorf("unknown balance op %q", op)
	}
	return rangeErr(err)
}

// verify 事务内重读：非负 + 与预期一致 + locked 能被冻结记录解释
func (m *BalanceMutator) verify(ctx context.Context, op Op, userID int64, before, want domain.Wallet, amount codec.Amount, res Reservation) (*domain.Wallet, error) {
	got, err := m.store.GetWallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	fields := []zap.Field{
		zap.Int64("amount", int64(amount)),
		zap.Int64("before_available", int64(before.Available)),
		zap.Int64("before_locked", int64(before.Locked)),
		zap.Int64("want_available", int64(want.Available)),
		zap.Int64("want_locked", int64(want.Locked)),
		zap.Int64("got_available", int64(got.Available)),
		zap.Int64("got_locked", int64(got.Locked)),
	}

	if got.Available < 0 || got.Locked < 0 {
		return nil, m.violation(ctx, op, userID, res, "negative balance", fields...)
	}
	if got.Available != want.Available || got.Locked != want.Locked {
		return nil, m.violation(ctx, op, userID, res, "post-state mismatch", fields...)
	}

	rs, err := m.store.LoadReservations(ctx, userID)
	if err != nil {
		return nil, err
	}
	reserved, err := rs.Total()
	if err != nil {
		return nil, rangeErr(err)
	}
	if reserved != got.Locked {
		fields = append(fields,
			zap.Int64("reserved_ads", int64(rs.ActiveAds)),
			zap.Int64("reserved_withdrawals", int64(rs.OpenWithdrawals)))
		return nil, m.violation(ctx, op, userID, res, "locked balance does not match reservations", fields...)
	}
	return got, nil
}

// violation 记录细节，对调用方只返回不带余额信息的错误
func (m *BalanceMutator) violation(ctx context.Context, op Op, userID int64, res Reservation, reason string, fields ...zap.Field) error {
	fields = append(fields,
		zap.String("op", string(op)),
		zap.Int64("user_id", userID),
		zap.String("reservation_kind", res.Kind),
		zap.Int64("reservation_id", res.ID),
		zap.String("reason", reason),
	)
	logger.Critical(ctx, "ledger integrity violation, rolled back", fields...)
	metrics.IntegrityViolationTotal.Inc()
	return xerr.NewErrCode(xerr.IntegrityViolation)
}

func rangeErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, codec.ErrAmountRange) {
		return xerr.Wrap(err, xerr.RequestParamsError, "amount out of range")
	}
	return err
}

func resultLabel(err error) string {
	switch xerr.CodeOf(err) {
	case xerr.OK:
		return "ok"
	case xerr.InsufficientFunds:
		return "insufficient"
	case xerr.IntegrityViolation:
		return "integrity"
	default:
		return "error"
	}
}
