package service

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"usdtinr.com/internal/ledger/domain"
	"usdtinr.com/pkg/codec"
	"usdtinr.com/pkg/logger"
	"usdtinr.com/pkg/xerr"
)

type adStore interface {
	domain.TxRunner
	domain.AdStore
	GetWallet(ctx context.Context, userID int64) (*domain.Wallet, error)
}

type AdService struct {
	store    adStore
	mutator  *BalanceMutator
	notifier domain.Notifier
	clock    domain.Clock
}

func NewAdService(store adStore, mutator *BalanceMutator, notifier domain.Notifier, clock domain.Clock) *AdService {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &AdService{store: store, mutator: mutator, notifier: notifier, clock: clock}
}

// CreateAdReq UserID 即 reservationTarget：冻结记在广告主钱包上
type CreateAdReq struct {
	UserID      int64
	Amount      codec.Amount
	Price       decimal.Decimal
	StartActive bool
}

// CreateAd ACTIVE 广告创建时冻结全部数量，PAUSED 不冻结
func (s *AdService) CreateAd(ctx context.Context, req CreateAdReq) (*domain.Ad, error) {
	if req.UserID <= 0 {
		return nil, xerr.New(xerr.RequestParamsError, "invalid user id")
	}
	if !req.Amount.IsPositive() {
		return nil, xerr.New(xerr.RequestParamsError, "ad amount must be positive")
	}
	if req.Price.IsNegative() {
		return nil, xerr.New(xerr.RequestParamsError, "ad price must not be negative")
	}

	ad := &domain.Ad{
		UserID:          req.UserID,
		AmountTotal:     req.Amount,
		AmountRemaining: req.Amount,
		Price:           req.Price,
		Status:          domain.AdStatusPaused,
	}

	if !req.StartActive {
		if _, err := s.store.GetWallet(ctx, req.UserID); err != nil {
			return nil, err
		}
		if err := s.store.CreateAd(ctx, ad); err != nil {
			return nil, err
		}
		s.emit(ctx, "ad.created", ad)
		return ad, nil
	}

	ad.Status = domain.AdStatusActive
	res := Reservation{Kind: "ad", Apply: func(txCtx context.Context) error {
		return s.store.CreateAd(txCtx, ad)
	}}
	if _, err := s.mutator.Lock(ctx, req.UserID, req.Amount, res); err != nil {
		return nil, err
	}
	logger.Info(ctx, "ad created", zap.Int64("ad_id", ad.ID), zap.Int64("user_id", ad.UserID), zap.Int64("amount", int64(ad.AmountTotal)))
	s.emit(ctx, "ad.created", ad)
	return ad, nil
}

// SetAdStatus 状态迁移对应的余额变化：
//
//	ACTIVE -> PAUSED     Unlock 剩余
//	PAUSED -> ACTIVE     Lock 剩余
//	ACTIVE -> COMPLETED  Debit 剩余
//	PAUSED -> COMPLETED  无
func (s *AdService) SetAdStatus(ctx context.Context, userID, adID int64, to domain.AdStatus) (*domain.Ad, error) {
	ad, err := s.store.GetAd(ctx, adID)
	if err != nil {
		return nil, err
	}
	if ad.UserID != userID {
		return nil, xerr.New(xerr.RecordNotFound, "ad not found")
	}
	from := ad.Status
	if !from.CanTransit(to) {
		return nil, transitionErr("ad", from, to)
	}

	prevRemaining := ad.AmountRemaining
	next := *ad
	next.Status = to
	if to == domain.AdStatusCompleted {
		next.AmountRemaining = 0
	}

	res := Reservation{Kind: "ad", ID: ad.ID, Apply: func(txCtx context.Context) error {
		ok, err := s.store.UpdateAd(txCtx, &next, from, prevRemaining)
		if err != nil {
			return err
		}
		if !ok {
			return conflictErr("ad", ad.ID)
		}
		return nil
	}}

	switch {
	case prevRemaining == 0 || (from == domain.AdStatusPaused && to == domain.AdStatusCompleted):
		err = s.store.Transaction(ctx, res.Apply)
	case to == domain.AdStatusPaused:
		_, err = s.mutator.Unlock(ctx, ad.UserID, prevRemaining, res)
	case to == domain.AdStatusActive:
		_, err = s.mutator.Lock(ctx, ad.UserID, prevRemaining, res)
	case to == domain.AdStatusCompleted:
		_, err = s.mutator.Debit(ctx, ad.UserID, prevRemaining, res)
	}
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "ad status changed",
		zap.Int64("ad_id", ad.ID), zap.String("from", from.String()), zap.String("to", to.String()))
	s.emit(ctx, "ad.status", &next)
	return &next, nil
}

// FillAd 成交结算：从冻结里扣掉成交数量，剩余为 0 时广告完成
func (s *AdService) FillAd(ctx context.Context, adID int64, amount codec.Amount) (*domain.Ad, error) {
	if !amount.IsPositive() {
		return nil, xerr.New(xerr.RequestParamsError, "fill amount must be positive")
	}
	ad, err := s.store.GetAd(ctx, adID)
	if err != nil {
		return nil, err
	}
	if ad.Status != domain.AdStatusActive {
		return nil, xerr.Newf(xerr.RequestParamsError, "ad %d is %s, only ACTIVE ads can be filled", ad.ID, ad.Status)
	}
	if amount > ad.AmountRemaining {
		return nil, xerr.Newf(xerr.RequestParamsError, "fill amount exceeds ad remaining")
	}

	next := *ad
	next.AmountRemaining = ad.AmountRemaining - amount
	if next.AmountRemaining == 0 {
		next.Status = domain.AdStatusCompleted
	}

	res := Reservation{Kind: "ad", ID: ad.ID, Apply: func(txCtx context.Context) error {
		ok, err := s.store.UpdateAd(txCtx, &next, ad.Status, ad.AmountRemaining)
		if err != nil {
			return err
		}
		if !ok {
			return conflictErr("ad", ad.ID)
		}
		return nil
	}}
	if _, err := s.mutator.Debit(ctx, ad.UserID, amount, res); err != nil {
		return nil, err
	}

	logger.Info(ctx, "ad filled",
		zap.Int64("ad_id", ad.ID), zap.Int64("amount", int64(amount)), zap.Int64("remaining", int64(next.AmountRemaining)))
	s.emit(ctx, "ad.filled", &next)
	return &next, nil
}

func (s *AdService) emit(ctx context.Context, typ string, ad *domain.Ad) {
	notify(ctx, s.notifier, domain.Event{
		Type:   typ,
		UserID: ad.UserID,
		RefID:  ad.ID,
		Status: ad.Status.String(),
		At:     s.clock.Now(),
	})
}
