package app

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	ginprom "github.com/zsais/go-gin-prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"
	"usdtinr.com/internal/ledger"
	"usdtinr.com/internal/ledger/handler"
	"usdtinr.com/pkg/middleware"
	"usdtinr.com/pkg/ratelimit"
)

func NewRouter(ctx context.Context, cfg *ledger.Cfg, h *handler.Handler) *gin.Engine {
	// 限流
	store := ratelimit.NewStore(rate.Limit(cfg.HTTP.RPS), cfg.HTTP.Burst, 10*time.Minute)
	store.StartJanitor(ctx, time.Minute)

	r := gin.New()
	// 监控
	p := ginprom.NewPrometheus("usdtinr")
	p.Use(r)
	r.Use(
		otelgin.Middleware(cfg.Name),
		middleware.ReqId(),
		cors.Default(),
		middleware.Recover(),
		middleware.RateLimit(store),
	)
	r.GET("/healthz", func(c *gin.Context) { c.String(200, "ok") })

	h.Register(r.Group("/api/v1"), cfg.HTTP.AdminToken)
	return r
}
