package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"usdtinr.com/internal/ledger"
	"usdtinr.com/internal/ledger/chain/tron"
	"usdtinr.com/internal/ledger/domain"
	"usdtinr.com/internal/ledger/handler"
	"usdtinr.com/internal/ledger/reconciler"
	"usdtinr.com/internal/ledger/repo/mysql"
	"usdtinr.com/internal/ledger/service"
	"usdtinr.com/pkg/codec"
	"usdtinr.com/pkg/logger"
	"usdtinr.com/pkg/metrics"
	"usdtinr.com/pkg/orm"
	"usdtinr.com/pkg/ratelimit"
	"usdtinr.com/pkg/safe"
	"usdtinr.com/pkg/trace"
	"usdtinr.com/pkg/xredis"
)

// App 持有所有长连接和后台任务，Run 返回前全部关闭
type App struct {
	cfg        *ledger.Cfg
	db         *gorm.DB
	rdb        *redis.Client
	reconciler *reconciler.Reconciler
	handler    *handler.Handler
}

// Build 组装依赖：连接在这里创建，service 只消费依赖
func Build(ctx context.Context, cfg *ledger.Cfg) (*App, error) {
	cur, err := codec.NewCurrency(cfg.Ledger.Symbol, cfg.Ledger.Precision)
	if err != nil {
		return nil, err
	}
	fee, err := cur.Parse(cfg.Ledger.WithdrawalFee)
	if err != nil {
		return nil, fmt.Errorf("ledger.withdrawal_fee: %w", err)
	}
	minWithdrawal, err := cur.Parse(cfg.Ledger.MinWithdrawal)
	if err != nil {
		return nil, fmt.Errorf("ledger.min_withdrawal: %w", err)
	}

	db, err := orm.Open(&cfg.Db)
	if err != nil {
		return nil, fmt.Errorf("init db: %w", err)
	}
	repo := mysql.New(db)
	if err := repo.AutoMigrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	rdb, err := xredis.NewRedis(ctx, &cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}

	// Redis 可选：没配就不用缓存、事件只打日志、单实例对账
	var (
		cache    service.BalanceCache
		notifier domain.Notifier = service.LogNotifier{}
		locker   reconciler.Locker
	)
	if rdb != nil {
		cache = service.NewRedisCache(rdb)
		notifier = service.NewStreamNotifier(rdb, cfg.Ledger.EventStream, cfg.Ledger.EventMaxLen)
		locker = xredis.NewLocker(rdb)
	}

	breakers := ratelimit.NewManager(cfg.Chain.Breaker, nil)
	verifier, err := tron.NewVerifier(tron.NewClient(cfg.Chain.Client, breakers), cfg.Chain.Verifier)
	if err != nil {
		return nil, fmt.Errorf("init verifier: %w", err)
	}

	clock := domain.SystemClock{}
	mutator := service.NewBalanceMutator(repo, cache)
	deposits := service.NewDepositService(repo, mutator, verifier, notifier, clock, cur, service.DepositConfig{
		PendingTimeout: cfg.Ledger.PendingTimeout,
		VerifyTimeout:  cfg.Ledger.VerifyTimeout,
	})
	h := handler.New(handler.Services{
		Wallets:  service.NewWalletService(repo, cache, cfg.Ledger.CacheTTL),
		Deposits: deposits,
		Ads:      service.NewAdService(repo, mutator, notifier, clock),
		Withdrawals: service.NewWithdrawalService(repo, mutator, notifier, clock, cur, service.WithdrawalConfig{
			Fee:       fee,
			MinAmount: minWithdrawal,
		}),
		Audit: service.NewAuditService(repo),
	}, cur)

	return &App{
		cfg:        cfg,
		db:         db,
		rdb:        rdb,
		reconciler: reconciler.New(cfg.Reconciler, repo, deposits, clock, locker),
		handler:    h,
	}, nil
}

// Run 阻塞到 ctx 取消或 HTTP 服务出错
//  1. trace / 指标 / pprof
//  2. 对账后台任务
//  3. HTTP 服务
//  4. 先停接入，再等对账手上那一条结束，最后关连接
func (a *App) Run(ctx context.Context) error {
	cfg := a.cfg
	defer a.close()

	if cfg.OTel.Enabled {
		shutdownTracer, err := trace.InitTrace(ctx, cfg.Name, cfg.OTel.Addr, cfg.OTel.SampleRatio)
		if err != nil {
			return fmt.Errorf("init tracer: %w", err)
		}
		defer func() {
			// 最多给 5 秒时间 flush trace
			c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracer(c); err != nil {
				logger.Error(ctx, "shutdown tracer error", zap.Error(err))
			}
		}()
	}

	metrics.MustRegister()
	if sqlDB, err := a.db.DB(); err == nil {
		safe.GoCtx(ctx, func(ctx context.Context) { metrics.WatchPools(ctx, sqlDB, a.rdb, 5*time.Second) })
	}
	a.serveAux(ctx)

	a.reconciler.Start(ctx)

	srv := &http.Server{
		Addr:           cfg.Addr,
		Handler:        NewRouter(ctx, cfg, a.handler),
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}
	errCh := make(chan error, 1)
	safe.Go(func() {
		logger.Info(ctx, "http listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	})

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info(ctx, "shutdown signal received")
	case runErr = <-errCh:
		logger.Error(ctx, "http server error", zap.Error(runErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "http shutdown error", zap.Error(err))
	}
	// 对账只等手上那一条做完，单条核对受 verify_timeout 约束
	stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.Ledger.VerifyTimeout+5*time.Second)
	defer stopCancel()
	if err := a.reconciler.Stop(stopCtx); err != nil {
		logger.Error(ctx, "reconciler stop timeout", zap.Error(err))
	}
	logger.Info(ctx, "service stopped")
	return runErr
}

// serveAux /metrics 和 pprof 单独端口，不走业务中间件
func (a *App) serveAux(ctx context.Context) {
	if addr := a.cfg.Metrics.Addr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		listen(ctx, "metrics", &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 3 * time.Second})
	}
	if addr := a.cfg.Metrics.PprofAddr; addr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
		listen(ctx, "pprof", &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 3 * time.Second})
	}
}

func listen(ctx context.Context, name string, srv *http.Server) {
	safe.Go(func() {
		logger.Info(ctx, name+" listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, name+" listen error", zap.Error(err))
		}
	})
	safe.Go(func() {
		<-ctx.Done()
		c, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(c)
	})
}

func (a *App) close() {
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
