package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"usdtinr.com/internal/ledger/service"
	"usdtinr.com/pkg/codec"
	"usdtinr.com/pkg/common"
	"usdtinr.com/pkg/xerr"
)

// HeaderUserID 身份由前置网关鉴权后透传
const HeaderUserID = "X-User-Id"

type Handler struct {
	wallets     *service.WalletService
	deposits    *service.DepositService
	ads         *service.AdService
	withdrawals *service.WithdrawalService
	audit       *service.AuditService
	cur         codec.Currency
}

type Services struct {
	Wallets     *service.WalletService
	Deposits    *service.DepositService
	Ads         *service.AdService
	Withdrawals *service.WithdrawalService
	Audit       *service.AuditService
}

func New(s Services, cur codec.Currency) *Handler {
	return &Handler{
		wallets:     s.Wallets,
		deposits:    s.Deposits,
		ads:         s.Ads,
		withdrawals: s.Withdrawals,
		audit:       s.Audit,
		cur:         cur,
	}
}

// userID 从请求头取当前用户
func userID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(c.GetHeader(HeaderUserID)), 10, 64)
	if err != nil || id <= 0 {
		common.FailFromErr(c, xerr.New(xerr.RequestParamsError, "missing or invalid "+HeaderUserID))
		return 0, false
	}
	return id, true
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		common.FailFromErr(c, xerr.Newf(xerr.RequestParamsError, "invalid %s", name))
		return 0, false
	}
	return id, true
}

func bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		common.FailFromErr(c, xerr.Wrap(err, xerr.RequestParamsError, "invalid request body"))
		return false
	}
	return true
}

func (h *Handler) amount(c *gin.Context, s string) (codec.Amount, bool) {
	a, err := h.cur.Parse(s)
	if err != nil {
		common.FailFromErr(c, xerr.Wrap(err, xerr.RequestParamsError, "invalid amount"))
		return 0, false
	}
	return a, true
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}
