package handler

import (
	"github.com/gin-gonic/gin"
	"usdtinr.com/internal/ledger/domain"
	"usdtinr.com/pkg/common"
)

// 运营后台 / 撮合结算调用

func (h *Handler) FillAd(c *gin.Context) {
	adID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req FillAdReq
	if !bind(c, &req) {
		return
	}
	amount, ok := h.amount(c, req.Amount)
	if !ok {
		return
	}
	ad, err := h.ads.FillAd(c.Request.Context(), adID, amount)
	if err != nil {
		common.FailFromErr(c, err)
		return
	}
	common.Success(c, toAd(h.cur, ad))
}

func (h *Handler) ApproveWithdrawal(c *gin.Context) {
	h.withdrawalAction(c, func(c *gin.Context, id int64) (*domain.Withdrawal, error) {
		return h.withdrawals.ApproveWithdrawal(c.Request.Context(), id)
	})
}

func (h *Handler) RejectWithdrawal(c *gin.Context) {
	h.withdrawalAction(c, func(c *gin.Context, id int64) (*domain.Withdrawal, error) {
		var req RejectWithdrawalReq
		if !bind(c, &req) {
			return nil, nil
		}
		return h.withdrawals.RejectWithdrawal(c.Request.Context(), id, req.Reason)
	})
}

func (h *Handler) MarkWithdrawalSent(c *gin.Context) {
	h.withdrawalAction(c, func(c *gin.Context, id int64) (*domain.Withdrawal, error) {
		var req MarkSentReq
		if !bind(c, &req) {
			return nil, nil
		}
		return h.withdrawals.MarkSent(c.Request.Context(), id, req.TxHash)
	})
}

func (h *Handler) CompleteWithdrawal(c *gin.Context) {
	h.withdrawalAction(c, func(c *gin.Context, id int64) (*domain.Withdrawal, error) {
		return h.withdrawals.CompleteWithdrawal(c.Request.Context(), id)
	})
}

// withdrawalAction fn 返回 (nil, nil) 表示已经写过响应
func (h *Handler) withdrawalAction(c *gin.Context, fn func(*gin.Context, int64) (*domain.Withdrawal, error)) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	w, err := fn(c, id)
	if err != nil {
		common.FailFromErr(c, err)
		return
	}
	if w == nil {
		return
	}
	common.Success(c, toWithdrawal(h.cur, w))
}

func (h *Handler) AuditWallet(c *gin.Context) {
	uid, ok := pathID(c, "user_id")
	if !ok {
		return
	}
	report, err := h.audit.CheckWallet(c.Request.Context(), uid)
	if err != nil {
		common.FailFromErr(c, err)
		return
	}
	common.Success(c, toAudit(h.cur, report))
}
