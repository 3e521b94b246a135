package service

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"usdtinr.com/internal/ledger/domain"
	"usdtinr.com/pkg/logger"
	"usdtinr.com/pkg/xerr"
)

type WalletService struct {
	store domain.WalletStore
	cache BalanceCache // 可为 nil
	sf    singleflight.Group
	ttl   time.Duration
}

func NewWalletService(store domain.WalletStore, cache BalanceCache, ttl time.Duration) *WalletService {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &WalletService{store: store, cache: cache, ttl: ttl}
}

// OpenWallet 开户时调用，余额为 0；重复调用返回已有钱包
func (s *WalletService) OpenWallet(ctx context.Context, userID int64) (*domain.Wallet, error) {
	if userID <= 0 {
		return nil, xerr.New(xerr.RequestParamsError, "invalid user id")
	}
	w, created, err := s.store.CreateWallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	if created {
		logger.Info(ctx, "wallet opened", zap.Int64("user_id", userID))
	}
	return w, nil
}

// GetWallet 先读缓存，miss 时 singleflight 回源，防止击穿
func (s *WalletService) GetWallet(ctx context.Context, userID int64) (*domain.Wallet, error) {
	if userID <= 0 {
		return nil, xerr.New(xerr.RequestParamsError, "invalid user id")
	}
	if s.cache != nil {
		if w, ok, err := s.cache.GetWallet(ctx, userID); err == nil && ok {
			return w, nil
		} else if err != nil {
			logger.Warn(ctx, "wallet cache read failed", zap.Int64("user_id", userID), zap.Error(err))
		}
	}

	v, err, _ := s.sf.Do(strconv.FormatInt(userID, 10), func() (interface{}, error) {
		w, err := s.store.GetWallet(ctx, userID)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			stored, err := s.cache.SetWallet(ctx, w, s.ttl)
			if err != nil {
				logger.Warn(ctx, "wallet cache write failed", zap.Int64("user_id", userID), zap.Error(err))
			} else if !stored {
				logger.Debug(ctx, "wallet snapshot older than committed version, not cached",
					zap.Int64("user_id", userID), zap.Int64("version", w.Version))
			}
		}
		return w, nil
	})
	if err != nil {
		return nil, err
	}
	// 拷贝一份，调用方改了也不影响同一批 singleflight 的其他请求
	w := *v.(*domain.Wallet)
	return &w, nil
}
