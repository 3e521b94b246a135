package mysql

import (
	"context"

	"gorm.io/gorm/clause"
	"usdtinr.com/internal/ledger/domain"
	"usdtinr.com/pkg/codec"
	"usdtinr.com/pkg/xerr"
)

// CreateWallet INSERT ... ON CONFLICT DO NOTHING，重复开户返回已有钱包
func (r *Repo) CreateWallet(ctx context.Context, userID int64) (*domain.Wallet, bool, error) {
	w := &domain.Wallet{UserID: userID}
	res := r.getDb(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(w)
	if res.Error != nil {
		return nil, false, wrapErr(res.Error, "wallet")
	}
	if res.RowsAffected == 1 {
		return w, true, nil
	}
	existing, err := r.GetWallet(ctx, userID)
	return existing, false, err
}

func (r *Repo) GetWallet(ctx context.Context, userID int64) (*domain.Wallet, error) {
	var w domain.Wallet
	err := r.getDb(ctx).Where("user_id = ?", userID).First(&w).Error
	if err != nil {
		return nil, wrapErr(err, "wallet")
	}
	return &w, nil
}

// LoadForUpdate SELECT ... FOR UPDATE
func (r *Repo) LoadForUpdate(ctx context.Context, userID int64) (*domain.Wallet, error) {
	if !inTx(ctx) {
		return nil, xerr.Wrap(domain.ErrNotInTx, xerr.ServerCommonError, "wallet lock")
	}
	var w domain.Wallet
	err := r.getDb(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&w).Error
	if err != nil {
		return nil, wrapErr(err, "wallet")
	}
	return &w, nil
}

// SaveWallet 写回余额，version 兜底校验：行锁之外任何绕过 Mutator 的写都会被发现
func (r *Repo) SaveWallet(ctx context.Context, w *domain.Wallet) error {
	res := r.getDb(ctx).Model(&domain.Wallet{}).
		Where("id = ? AND version = ?", w.ID, w.Version).
		Updates(map[string]interface{}{
			"available": w.Available,
			"locked":    w.Locked,
			"version":   w.Version + 1,
		})
	if res.Error != nil {
		return wrapErr(res.Error, "wallet")
	}
	if res.RowsAffected == 0 {
		return xerr.Newf(xerr.DbError, "wallet %d version %d changed concurrently", w.UserID, w.Version)
	}
	w.Version++
	return nil
}

// LoadReservations 对账：ACTIVE 广告剩余 + 未完结提现 (amount+fee)
func (r *Repo) LoadReservations(ctx context.Context, userID int64) (*domain.Reservations, error) {
	type agg struct {
		Total int64
		Cnt   int64
	}
	var ads, wds agg

	err := r.getDb(ctx).Model(&domain.Ad{}).
		Select("COALESCE(SUM(amount_remaining), 0) AS total, COUNT(*) AS cnt").
		Where("user_id = ? AND status = ?", userID, domain.AdStatusActive).
		Scan(&ads).Error
	if err != nil {
		return nil, wrapErr(err, "ads")
	}

	err = r.getDb(ctx).Model(&domain.Withdrawal{}).
		Select("COALESCE(SUM(amount + fee), 0) AS total, COUNT(*) AS cnt").
		Where("user_id = ? AND status IN ?", userID, domain.ReservingWithdrawalStatuses).
		Scan(&wds).Error
	if err != nil {
		return nil, wrapErr(err, "withdrawals")
	}

	return &domain.Reservations{
		ActiveAds:           codec.Amount(ads.Total),
		ActiveAdCount:       ads.Cnt,
		OpenWithdrawals:     codec.Amount(wds.Total),
		OpenWithdrawalCount: wds.Cnt,
	}, nil
}
