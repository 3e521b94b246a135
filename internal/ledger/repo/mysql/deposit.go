package mysql

import (
	"context"
	"time"

	"gorm.io/gorm"
	"usdtinr.com/internal/ledger/domain"
	"usdtinr.com/pkg/orm"
)

func (r *Repo) CreateDeposit(ctx context.Context, d *domain.Deposit) error {
	return wrapErr(r.getDb(ctx).Create(d).Error, "deposit")
}

func (r *Repo) GetDepositByHash(ctx context.Context, txHash string) (*domain.Deposit, error) {
	var d domain.Deposit
	if err := r.getDb(ctx).Where("tx_hash = ?", txHash).First(&d).Error; err != nil {
		return nil, wrapErr(err, "deposit")
	}
	return &d, nil
}

// ListPendingDeposits 走 idx_deposit_status_checked
// checked_at 为 NULL 的 (新提交) 排在最前，MySQL 和 SQLite 升序都是 NULL 在前
func (r *Repo) ListPendingDeposits(ctx context.Context, limit int) ([]*domain.Deposit, error) {
	var list []*domain.Deposit
	err := r.getDb(ctx).
		Where("status = ?", domain.DepositStatusPending).
		Order("checked_at ASC, created_at ASC, id ASC").
		Limit(limit).
		Find(&list).Error
	if err != nil {
		return nil, wrapErr(err, "pending deposits")
	}
	return list, nil
}

// ListDeposits 用户充值记录，新的在前
func (r *Repo) ListDeposits(ctx context.Context, userID int64, page, limit int) ([]*domain.Deposit, int64, error) {
	var (
		list  []*domain.Deposit
		total int64
	)
	q := r.getDb(ctx).Model(&domain.Deposit{}).Where("user_id = ?", userID)
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, wrapErr(err, "deposits")
	}
	err := orm.ApplyPagination(q.Session(&gorm.Session{}).Order("created_at DESC, id DESC"), page, limit).Find(&list).Error
	if err != nil {
		return nil, 0, wrapErr(err, "deposits")
	}
	return list, total, nil
}

func (r *Repo) MarkDepositChecked(ctx context.Context, id int64, at time.Time) error {
	err := r.getDb(ctx).Model(&domain.Deposit{}).
		Where("id = ? AND status = ?", id, domain.DepositStatusPending).
		Update("checked_at", at).Error
	return wrapErr(err, "deposit")
}

// ObserveDeposit 只动 pending 行；已终态的记录不会被链上新观测覆盖
func (r *Repo) ObserveDeposit(ctx context.Context, id int64, obs domain.DepositObservation) error {
	err := r.getDb(ctx).Model(&domain.Deposit{}).
		Where("id = ? AND status = ?", id, domain.DepositStatusPending).
		Updates(observationColumns(obs)).Error
	return wrapErr(err, "deposit")
}

// TransitDeposit UPDATE ... WHERE id=? AND status=from
// 0 行说明别的路径已经迁移过，调用方据此判断是否重复入账
func (r *Repo) TransitDeposit(ctx context.Context, id int64, from, to domain.DepositStatus, patch domain.DepositPatch) (bool, error) {
	cols := map[string]interface{}{"status": to}
	if patch.Observation != nil {
		for k, v := range observationColumns(*patch.Observation) {
			cols[k] = v
		}
	}
	if patch.FailReason != "" {
		cols["fail_reason"] = patch.FailReason
	}
	if patch.ConfirmedAt != nil {
		cols["confirmed_at"] = *patch.ConfirmedAt
	}

	res := r.getDb(ctx).Model(&domain.Deposit{}).
		Where("id = ? AND status = ?", id, from).
		Updates(cols)
	if res.Error != nil {
		return false, wrapErr(res.Error, "deposit")
	}
	return res.RowsAffected == 1, nil
}

func observationColumns(obs domain.DepositObservation) map[string]interface{} {
	return map[string]interface{}{
		"amount":        obs.Amount,
		"confirmations": obs.Confirmations,
		"from_address":  obs.FromAddress,
		"to_address":    obs.ToAddress,
		"block_number":  obs.BlockNumber,
	}
}
