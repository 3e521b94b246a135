package mysql

import (
	"context"

	"usdtinr.com/internal/ledger/domain"
)

func (r *Repo) CreateWithdrawal(ctx context.Context, w *domain.Withdrawal) error {
	return wrapErr(r.getDb(ctx).Create(w).Error, "withdrawal")
}

func (r *Repo) GetWithdrawal(ctx context.Context, id int64) (*domain.Withdrawal, error) {
	var w domain.Withdrawal
	if err := r.getDb(ctx).First(&w, id).Error; err != nil {
		return nil, wrapErr(err, "withdrawal")
	}
	return &w, nil
}

// TransitWithdrawal 条件更新，审核并发点击时只有一个能命中
func (r *Repo) TransitWithdrawal(ctx context.Context, id int64, from, to domain.WithdrawalStatus, patch domain.WithdrawalPatch) (bool, error) {
	cols := map[string]interface{}{"status": to}
	if patch.TxHash != "" {
		cols["tx_hash"] = patch.TxHash
	}
	if patch.RejectionReason != "" {
		cols["rejection_reason"] = patch.RejectionReason
	}
	res := r.getDb(ctx).Model(&domain.Withdrawal{}).
		Where("id = ? AND status = ?", id, from).
		Updates(cols)
	if res.Error != nil {
		return false, wrapErr(res.Error, "withdrawal")
	}
	return res.RowsAffected == 1, nil
}
