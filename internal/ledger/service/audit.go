package service

import (
	"context"

	"go.uber.org/zap"
	"usdtinr.com/internal/ledger/domain"
	"usdtinr.com/pkg/codec"
	"usdtinr.com/pkg/logger"
	"usdtinr.com/pkg/metrics"
)

// AuditReport 钱包冻结对账结果
type AuditReport struct {
	UserID              int64
	Available           codec.Amount
	Locked              codec.Amount
	ReservedAds         codec.Amount
	ActiveAdCount       int64
	ReservedWithdrawals codec.Amount
	OpenWithdrawalCount int64
	Consistent          bool
}

type AuditService struct {
	store domain.WalletStore
}

func NewAuditService(store domain.WalletStore) *AuditService {
	return &AuditService{store: store}
}

// CheckWallet 加行锁读一个一致的快照，核对 locked 与冻结记录之和
func (s *AuditService) CheckWallet(ctx context.Context, userID int64) (*AuditReport, error) {
	var report *AuditReport
	err := s.store.Transaction(ctx, func(txCtx context.Context) error {
		w, err := s.store.LoadForUpdate(txCtx, userID)
		if err != nil {
			return err
		}
		rs, err := s.store.LoadReservations(txCtx, userID)
		if err != nil {
			return err
		}
		reserved, err := rs.Total()
		if err != nil {
			return rangeErr(err)
		}
		report = &AuditReport{
			UserID:              userID,
			Available:           w.Available,
			Locked:              w.Locked,
			ReservedAds:         rs.ActiveAds,
			ActiveAdCount:       rs.ActiveAdCount,
			ReservedWithdrawals: rs.OpenWithdrawals,
			OpenWithdrawalCount: rs.OpenWithdrawalCount,
			Consistent:          w.Available >= 0 && w.Locked >= 0 && reserved == w.Locked,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !report.Consistent {
		metrics.IntegrityViolationTotal.Inc()
		logger.Critical(ctx, "wallet audit mismatch",
			zap.Int64("user_id", userID),
			zap.Int64("available", int64(report.Available)),
			zap.Int64("locked", int64(report.Locked)),
			zap.Int64("reserved_ads", int64(report.ReservedAds)),
			zap.Int64("reserved_withdrawals", int64(report.ReservedWithdrawals)),
		)
	}
	return report, nil
}
