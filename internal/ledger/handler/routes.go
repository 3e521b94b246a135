package handler

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"usdtinr.com/pkg/common"
)

const HeaderAdminToken = "X-Admin-Token"

// Register 挂载 /api/v1 下的所有路由
func (h *Handler) Register(api *gin.RouterGroup, adminToken string) {
	wallet := api.Group("/wallet")
	{
		wallet.POST("", h.OpenWallet)
		wallet.GET("", h.GetWallet)
	}
	deposits := api.Group("/deposits")
	{
		deposits.POST("", h.SubmitDeposit)
		deposits.GET("", h.ListDeposits)
		deposits.GET("/:tx_hash", h.CheckDeposit)
	}
	ads := api.Group("/ads")
	{
		ads.POST("", h.CreateAd)
		ads.PUT("/:id/status", h.SetAdStatus)
	}
	api.POST("/withdrawals", h.RequestWithdrawal)

	admin := api.Group("/admin", AdminAuth(adminToken))
	{
		admin.POST("/ads/:id/fill", h.FillAd)
		admin.POST("/withdrawals/:id/approve", h.ApproveWithdrawal)
		admin.POST("/withdrawals/:id/reject", h.RejectWithdrawal)
		admin.POST("/withdrawals/:id/sent", h.MarkWithdrawalSent)
		admin.POST("/withdrawals/:id/complete", h.CompleteWithdrawal)
		admin.GET("/wallets/:user_id/audit", h.AuditWallet)
	}
}

// AdminAuth 静态 token，未配置时不校验（本地开发）
func AdminAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		got := c.GetHeader(HeaderAdminToken)
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			common.Fail(c, http.StatusUnauthorized, http.StatusUnauthorized, "未授权")
			c.Abort()
			return
		}
		c.Next()
	}
}
