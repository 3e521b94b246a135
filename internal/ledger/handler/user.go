package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"usdtinr.com/internal/ledger/domain"
	"usdtinr.com/internal/ledger/service"
	"usdtinr.com/pkg/common"
	"usdtinr.com/pkg/xerr"
)

func (h *Handler) OpenWallet(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	w, err := h.wallets.OpenWallet(c.Request.Context(), uid)
	if err != nil {
		common.FailFromErr(c, err)
		return
	}
	common.Success(c, toWallet(h.cur, w))
}

func (h *Handler) GetWallet(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	w, err := h.wallets.GetWallet(c.Request.Context(), uid)
	if err != nil {
		common.FailFromErr(c, err)
		return
	}
	common.Success(c, toWallet(h.cur, w))
}

func (h *Handler) SubmitDeposit(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	var req SubmitDepositReq
	if !bind(c, &req) {
		return
	}
	d, err := h.deposits.SubmitDeposit(c.Request.Context(), uid, req.TxHash)
	if err != nil {
		common.FailFromErr(c, err)
		return
	}
	common.Success(c, toDeposit(h.cur, d))
}

func (h *Handler) CheckDeposit(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	d, err := h.deposits.CheckDepositStatus(c.Request.Context(), uid, c.Param("tx_hash"))
	if err != nil {
		common.FailFromErr(c, err)
		return
	}
	common.Success(c, toDeposit(h.cur, d))
}

func (h *Handler) ListDeposits(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	page, limit := queryInt(c, "page", 1), queryInt(c, "limit", 20)
	list, total, err := h.deposits.ListDeposits(c.Request.Context(), uid, page, limit)
	if err != nil {
		common.FailFromErr(c, err)
		return
	}
	resp := DepositListResp{List: make([]DepositResp, 0, len(list)), Total: total, Page: page, Limit: limit}
	for _, d := range list {
		resp.List = append(resp.List, toDeposit(h.cur, d))
	}
	common.Success(c, resp)
}

func (h *Handler) CreateAd(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	var req CreateAdReq
	if !bind(c, &req) {
		return
	}
	amount, ok := h.amount(c, req.Amount)
	if !ok {
		return
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		common.FailFromErr(c, xerr.Wrap(err, xerr.RequestParamsError, "invalid price"))
		return
	}
	active := req.StartActive == nil || *req.StartActive

	ad, err := h.ads.CreateAd(c.Request.Context(), service.CreateAdReq{
		UserID:      uid,
		Amount:      amount,
		Price:       price,
		StartActive: active,
	})
	if err != nil {
		common.FailFromErr(c, err)
		return
	}
	common.Success(c, toAd(h.cur, ad))
}

func (h *Handler) SetAdStatus(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	adID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req SetAdStatusReq
	if !bind(c, &req) {
		return
	}
	to, ok := domain.ParseAdStatus(req.Status)
	if !ok {
		common.FailFromErr(c, xerr.Newf(xerr.RequestParamsError, "unknown ad status %q", req.Status))
		return
	}
	ad, err := h.ads.SetAdStatus(c.Request.Context(), uid, adID, to)
	if err != nil {
		common.FailFromErr(c, err)
		return
	}
	common.Success(c, toAd(h.cur, ad))
}

func (h *Handler) RequestWithdrawal(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	var req RequestWithdrawalReq
	if !bind(c, &req) {
		return
	}
	amount, ok := h.amount(c, req.Amount)
	if !ok {
		return
	}
	w, err := h.withdrawals.RequestWithdrawal(c.Request.Context(), uid, amount, req.Address)
	if err != nil {
		common.FailFromErr(c, err)
		return
	}
	common.Success(c, toWithdrawal(h.cur, w))
}
