package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"usdtinr.com/internal/ledger/domain"
	"usdtinr.com/pkg/codec"
	"usdtinr.com/pkg/logger"
	"usdtinr.com/pkg/xerr"
)

type DepositConfig struct {
	PendingTimeout time.Duration // 链上一直查不到，超过这个时长置为 failed
	VerifyTimeout  time.Duration // 单次链上核对超时
}

type depositStore interface {
	domain.TxRunner
	domain.DepositStore
}

type DepositService struct {
	store    depositStore
	mutator  *BalanceMutator
	verifier domain.ChainVerifier
	notifier domain.Notifier
	clock    domain.Clock
	cur      codec.Currency
	cfg      DepositConfig
}

func NewDepositService(store depositStore, mutator *BalanceMutator, verifier domain.ChainVerifier,
	notifier domain.Notifier, clock domain.Clock, cur codec.Currency, cfg DepositConfig) *DepositService {
	if cfg.PendingTimeout <= 0 {
		cfg.PendingTimeout = 2 * time.Hour
	}
	if cfg.VerifyTimeout <= 0 {
		cfg.VerifyTimeout = 15 * time.Second
	}
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &DepositService{
		store:    store,
		mutator:  mutator,
		verifier: verifier,
		notifier: notifier,
		clock:    clock,
		cur:      cur,
		cfg:      cfg,
	}
}

// SubmitDeposit 用户提交一笔链上转账
//  1. 规范化 tx_hash，同一个 hash 已被别人提交过直接拒绝
//  2. 先落一条 pending，再链上核对一次
//  3. 已确认就直接入账，否则交给 Reconciler 继续跟
func (s *DepositService) SubmitDeposit(ctx context.Context, userID int64, txHash string) (*domain.Deposit, error) {
	hash, err := normalizeHash(txHash)
	if err != nil {
		return nil, err
	}
	if userID <= 0 {
		return nil, xerr.New(xerr.RequestParamsError, "invalid user id")
	}

	d := &domain.Deposit{UserID: userID, TxHash: hash, Status: domain.DepositStatusPending, CreatedAt: s.clock.Now()}
	err = s.store.CreateDeposit(ctx, d)
	if errors.Is(err, domain.ErrDuplicate) {
		// 重复提交：自己的就当作一次状态查询
		existing, gerr := s.store.GetDepositByHash(ctx, hash)
		if gerr != nil {
			return nil, gerr
		}
		if existing.UserID != userID {
			return nil, xerr.New(xerr.RequestParamsError, "transaction already claimed")
		}
		return s.refresh(ctx, existing)
	}
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "deposit submitted", zap.Int64("user_id", userID), zap.String("tx_hash", hash))
	return s.refresh(ctx, d)
}

// CheckDepositStatus pending 的记录会顺便再核对一次
func (s *DepositService) CheckDepositStatus(ctx context.Context, userID int64, txHash string) (*domain.Deposit, error) {
	hash, err := normalizeHash(txHash)
	if err != nil {
		return nil, err
	}
	d, err := s.store.GetDepositByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	// 别人的记录按不存在处理
	if d.UserID != userID {
		return nil, xerr.New(xerr.RecordNotFound, "deposit not found")
	}
	return s.refresh(ctx, d)
}

func (s *DepositService) ListDeposits(ctx context.Context, userID int64, page, limit int) ([]*domain.Deposit, int64, error) {
	if userID <= 0 {
		return nil, 0, xerr.New(xerr.RequestParamsError, "invalid user id")
	}
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	return s.store.ListDeposits(ctx, userID, page, limit)
}

// refresh 交互路径：链上服务异常时吞掉错误，按 pending 返回
func (s *DepositService) refresh(ctx context.Context, d *domain.Deposit) (*domain.Deposit, error) {
	if d.Status != domain.DepositStatusPending {
		return d, nil
	}
	rec, err := s.Verify(ctx, d.TxHash)
	if err != nil {
		logger.Warn(ctx, "chain verify failed, deposit stays pending",
			zap.String("tx_hash", d.TxHash), zap.Error(err))
		return d, nil
	}
	if _, err := s.Apply(ctx, d, rec, s.clock.Now()); err != nil {
		return nil, err
	}
	return s.store.GetDepositByHash(ctx, d.TxHash)
}

// Verify 带超时的链上核对，Reconciler 也走这里
func (s *DepositService) Verify(ctx context.Context, txHash string) (*domain.TransferRecord, error) {
	vctx, cancel := context.WithTimeout(ctx, s.cfg.VerifyTimeout)
	defer cancel()
	rec, err := s.verifier.Verify(vctx, txHash)
	if err != nil && xerr.CodeOf(err) != xerr.ExternalServiceError {
		err = xerr.Wrap(err, xerr.ExternalServiceError, "chain verify failed")
	}
	return rec, err
}

// Apply 根据一次链上核对结果推进充值状态，交互查询和 Reconciler 共用
func (s *DepositService) Apply(ctx context.Context, d *domain.Deposit, rec *domain.TransferRecord, now time.Time) (domain.DepositOutcome, error) {
	if d.Status != domain.DepositStatusPending {
		return domain.OutcomeAlreadySettled, nil
	}

	switch {
	case rec == nil:
		if now.Sub(d.CreatedAt) <= s.cfg.PendingTimeout {
			return domain.OutcomeNotFound, nil
		}
		return s.fail(ctx, d, nil, fmt.Sprintf("not found on chain within %s", s.cfg.PendingTimeout))

	case !rec.Confirmed:
		obs, err := s.observation(rec)
		if err != nil {
			return domain.OutcomeError, err
		}
		// 回滚的交易永远不会确认，和查不到一样按超时失败
		if now.Sub(d.CreatedAt) > s.cfg.PendingTimeout {
			return s.fail(ctx, d, &obs, fmt.Sprintf("not confirmed within %s", s.cfg.PendingTimeout))
		}
		if err := s.store.ObserveDeposit(ctx, d.ID, obs); err != nil {
			return domain.OutcomeError, err
		}
		return domain.OutcomeUnconfirmed, nil
	}

	obs, err := s.observation(rec)
	if err != nil {
		return domain.OutcomeError, err
	}
	if !obs.Amount.IsPositive() {
		return s.fail(ctx, d, &obs, "zero amount transfer")
	}

	confirmedAt := now
	_, err = s.mutator.Credit(ctx, d.UserID, obs.Amount, Reservation{
		Kind: "deposit",
		ID:   d.ID,
		Apply: func(txCtx context.Context) error {
			ok, err := s.store.TransitDeposit(txCtx, d.ID, domain.DepositStatusPending, domain.DepositStatusConfirmed,
				domain.DepositPatch{Observation: &obs, ConfirmedAt: &confirmedAt})
			if err != nil {
				return err
			}
			if !ok {
				return errSettled
			}
			return nil
		},
	})
	if errors.Is(err, errSettled) {
		return domain.OutcomeAlreadySettled, nil
	}
	if err != nil {
		return domain.OutcomeError, err
	}

	logger.Info(ctx, "deposit confirmed",
		zap.Int64("user_id", d.UserID), zap.String("tx_hash", d.TxHash), zap.String("amount", s.cur.Format(obs.Amount)))
	notify(ctx, s.notifier, domain.Event{
		Type:   "deposit.confirmed",
		UserID: d.UserID,
		RefID:  d.ID,
		Ref:    d.TxHash,
		Status: domain.DepositStatusConfirmed.String(),
		Amount: s.cur.Format(obs.Amount),
		At:     now,
	})
	return domain.OutcomeConfirmed, nil
}

func (s *DepositService) fail(ctx context.Context, d *domain.Deposit, obs *domain.DepositObservation, reason string) (domain.DepositOutcome, error) {
	ok, err := s.store.TransitDeposit(ctx, d.ID, domain.DepositStatusPending, domain.DepositStatusFailed,
		domain.DepositPatch{Observation: obs, FailReason: reason})
	if err != nil {
		return domain.OutcomeError, err
	}
	if !ok {
		return domain.OutcomeAlreadySettled, nil
	}
	logger.Warn(ctx, "deposit failed",
		zap.Int64("user_id", d.UserID), zap.String("tx_hash", d.TxHash), zap.String("reason", reason))
	notify(ctx, s.notifier, domain.Event{
		Type:   "deposit.failed",
		UserID: d.UserID,
		RefID:  d.ID,
		Ref:    d.TxHash,
		Status: domain.DepositStatusFailed.String(),
		Reason: reason,
		At:     s.clock.Now(),
	})
	return domain.OutcomeFailed, nil
}

func (s *DepositService) observation(rec *domain.TransferRecord) (domain.DepositObservation, error) {
	amount, err := s.cur.FromDecimal(rec.Amount)
	if err != nil {
		return domain.DepositObservation{}, xerr.Wrap(err, xerr.ServerCommonError, "transfer amount out of range")
	}
	return domain.DepositObservation{
		Amount:        amount,
		Confirmations: rec.Confirmations,
		FromAddress:   rec.From.String(),
		ToAddress:     rec.To.String(),
		BlockNumber:   rec.BlockNumber,
	}, nil
}

func normalizeHash(txHash string) (string, error) {
	hash, err := codec.NormalizeTxHash(txHash)
	if err != nil {
		return "", xerr.Wrap(err, xerr.RequestParamsError, "invalid tx hash")
	}
	return hash, nil
}
