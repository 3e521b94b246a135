package handler

import (
	"time"

	"usdtinr.com/internal/ledger/domain"
	"usdtinr.com/internal/ledger/service"
	"usdtinr.com/pkg/codec"
)

// 金额在 HTTP 边界上一律是十进制字符串

type WalletResp struct {
	UserID    int64  `json:"user_id"`
	Available string `json:"available"`
	Locked    string `json:"locked"`
	Total     string `json:"total"`
	Currency  string `json:"currency"`
}

type DepositResp struct {
	ID            int64      `json:"id"`
	TxHash        string     `json:"tx_hash"`
	Status        string     `json:"status"`
	Amount        string     `json:"amount"`
	Confirmations int64      `json:"confirmations"`
	FromAddress   string     `json:"from_address,omitempty"`
	BlockNumber   int64      `json:"block_number,omitempty"`
	FailReason    string     `json:"fail_reason,omitempty"`
	ConfirmedAt   *time.Time `json:"confirmed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type DepositListResp struct {
	List  []DepositResp `json:"list"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

type AdResp struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"user_id"`
	AmountTotal     string    `json:"amount_total"`
	AmountRemaining string    `json:"amount_remaining"`
	Price           string    `json:"price"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
}

type WithdrawalResp struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"user_id"`
	Amount          string    `json:"amount"`
	Fee             string    `json:"fee"`
	Address         string    `json:"address"`
	Status          string    `json:"status"`
	TxHash          string    `json:"tx_hash,omitempty"`
	RejectionReason string    `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

type AuditResp struct {
	UserID              int64  `json:"user_id"`
	Available           string `json:"available"`
	Locked              string `json:"locked"`
	ReservedAds         string `json:"reserved_ads"`
	ActiveAdCount       int64  `json:"active_ad_count"`
	ReservedWithdrawals string `json:"reserved_withdrawals"`
	OpenWithdrawalCount int64  `json:"open_withdrawal_count"`
	Consistent          bool   `json:"consistent"`
}

type SubmitDepositReq struct {
	TxHash string `json:"tx_hash" binding:"required"`
}

type CreateAdReq struct {
	Amount      string `json:"amount" binding:"required"`
	Price       string `json:"price" binding:"required"`
	StartActive *bool  `json:"start_active"` // 不传默认 ACTIVE
}

type SetAdStatusReq struct {
	Status string `json:"status" binding:"required"`
}

type RequestWithdrawalReq struct {
	Amount  string `json:"amount" binding:"required"`
	Address string `json:"address" binding:"required"`
}

type FillAdReq struct {
	Amount string `json:"amount" binding:"required"`
}

type RejectWithdrawalReq struct {
	Reason string `json:"reason" binding:"required"`
}

type MarkSentReq struct {
	TxHash string `json:"tx_hash" binding:"required"`
}

func toWallet(cur codec.Currency, w *domain.Wallet) WalletResp {
	total, _ := w.Total()
	return WalletResp{
		UserID:    w.UserID,
		Available: cur.Format(w.Available),
		Locked:    cur.Format(w.Locked),
		Total:     cur.Format(total),
		Currency:  cur.Symbol,
	}
}

func toDeposit(cur codec.Currency, d *domain.Deposit) DepositResp {
	return DepositResp{
		ID:            d.ID,
		TxHash:        d.TxHash,
		Status:        d.Status.String(),
		Amount:        cur.Format(d.Amount),
		Confirmations: d.Confirmations,
		FromAddress:   d.FromAddress,
		BlockNumber:   d.BlockNumber,
		FailReason:    d.FailReason,
		ConfirmedAt:   d.ConfirmedAt,
		CreatedAt:     d.CreatedAt,
	}
}

func toAd(cur codec.Currency, a *domain.Ad) AdResp {
	return AdResp{
		ID:              a.ID,
		UserID:          a.UserID,
		AmountTotal:     cur.Format(a.AmountTotal),
		AmountRemaining: cur.Format(a.AmountRemaining),
		Price:           a.Price.String(),
		Status:          a.Status.String(),
		CreatedAt:       a.CreatedAt,
	}
}

func toWithdrawal(cur codec.Currency, w *domain.Withdrawal) WithdrawalResp {
	return WithdrawalResp{
		ID:              w.ID,
		UserID:          w.UserID,
		Amount:          cur.Format(w.Amount),
		Fee:             cur.Format(w.Fee),
		Address:         w.Address,
		Status:          w.Status.String(),
		TxHash:          w.TxHash,
		RejectionReason: w.RejectionReason,
		CreatedAt:       w.CreatedAt,
	}
}

func toAudit(cur codec.Currency, r *service.AuditReport) AuditResp {
	return AuditResp{
		UserID:              r.UserID,
		Available:           cur.Format(r.Available),
		Locked:              cur.Format(r.Locked),
		ReservedAds:         cur.Format(r.ReservedAds),
		ActiveAdCount:       r.ActiveAdCount,
		ReservedWithdrawals: cur.Format(r.ReservedWithdrawals),
		OpenWithdrawalCount: r.OpenWithdrawalCount,
		Consistent:          r.Consistent,
	}
}
