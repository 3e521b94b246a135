package mysql

import (
	"context"

	"usdtinr.com/internal/ledger/domain"
	"usdtinr.com/pkg/codec"
)

func (r *Repo) CreateAd(ctx context.Context, ad *domain.Ad) error {
	return wrapErr(r.getDb(ctx).Create(ad).Error, "ad")
}

func (r *Repo) GetAd(ctx context.Context, id int64) (*domain.Ad, error) {
	var ad domain.Ad
	if err := r.getDb(ctx).First(&ad, id).Error; err != nil {
		return nil, wrapErr(err, "ad")
	}
	return &ad, nil
}

// UpdateAd 状态和剩余量一起写回
// 条件里带上读到的 (status, amount_remaining)，中间被改过就返回 false
func (r *Repo) UpdateAd(ctx context.Context, ad *domain.Ad, expectStatus domain.AdStatus, expectRemaining codec.Amount) (bool, error) {
	res := r.getDb(ctx).Model(&domain.Ad{}).
		Where("id = ? AND status = ? AND amount_remaining = ?", ad.ID, expectStatus, expectRemaining).
		Updates(map[string]interface{}{
			"status":           ad.Status,
			"amount_remaining": ad.AmountRemaining,
		})
	if res.Error != nil {
		return false, wrapErr(res.Error, "ad")
	}
	return res.RowsAffected == 1, nil
}
