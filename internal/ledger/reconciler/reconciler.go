package reconciler

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"usdtinr.com/internal/ledger/domain"
	"usdtinr.com/pkg/logger"
	"usdtinr.com/pkg/metrics"
	"usdtinr.com/pkg/safe"
)

const lockKey = "ledger:reconciler:lock"

// ErrCycleInProgress 上一轮还没结束
var ErrCycleInProgress = errors.New("reconciler: cycle already in progress")

type Config struct {
	Interval  time.Duration `mapstructure:"interval"`
	BatchSize int           `mapstructure:"batch_size"`
	RPS       float64       `mapstructure:"rps"` // 一轮内链上核对的节奏
	LockTTL   time.Duration `mapstructure:"lock_ttl"`
}

type pendingSource interface {
	ListPendingDeposits(ctx context.Context, limit int) ([]*domain.Deposit, error)
	MarkDepositChecked(ctx context.Context, id int64, at time.Time) error
}

// Settler 链上核对 + 推进充值状态，由 DepositService 实现
type Settler interface {
	Verify(ctx context.Context, txHash string) (*domain.TransferRecord, error)
	Apply(ctx context.Context, d *domain.Deposit, rec *domain.TransferRecord, now time.Time) (domain.DepositOutcome, error)
}

// Locker 多实例部署时只让一个节点对账，单实例可以不传
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context), bool, error)
}

type Stats struct {
	Skipped        bool // 锁在别的节点手里
	Stopped        bool // 收到停止信号，本批剩下的留给下一次启动
	Scanned        int
	Confirmed      int
	Unconfirmed    int
	NotFound       int
	Failed         int
	AlreadySettled int
	Errors         int
}

func (s *Stats) add(out domain.DepositOutcome) {
	s.Scanned++
	switch out {
	case domain.OutcomeConfirmed:
		s.Confirmed++
	case domain.OutcomeUnconfirmed:
		s.Unconfirmed++
	case domain.OutcomeNotFound:
		s.NotFound++
	case domain.OutcomeFailed:
		s.Failed++
	case domain.OutcomeAlreadySettled:
		s.AlreadySettled++
	default:
		s.Errors++
	}
}

// Reconciler 定时扫 pending 充值，交给 Settler 核对
// 和交互查询并发安全：入账靠 pending -> confirmed 的条件更新保证只发生一次
type Reconciler struct {
	cfg     Config
	store   pendingSource
	settler Settler
	clock   domain.Clock
	locker  Locker
	limiter *rate.Limiter

	running atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(cfg Config, store pendingSource, settler Settler, clock domain.Clock, locker Locker) *Reconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Minute
	}
	limit := rate.Inf
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
	}
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &Reconciler{
		cfg:     cfg,
		store:   store,
		settler: settler,
		clock:   clock,
		locker:  locker,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Start 启动后台循环，不阻塞
func (r *Reconciler) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	logger.Info(ctx, "reconciler started",
		zap.Duration("interval", r.cfg.Interval), zap.Int("batch_size", r.cfg.BatchSize))
	safe.GoCtx(ctx, r.loop)
}

// Stop 不再开始新一轮；进行中的一轮做完手上这一条就退出
func (r *Reconciler) Stop(ctx context.Context) error {
	if r.cancel == nil {
		return nil
	}
	r.cancel()
	select {
	case <-r.done:
		logger.Info(ctx, "reconciler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Reconciler) loop(ctx context.Context) {
	defer close(r.done)
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// ctx.Done 和 ticker 同时就绪时 select 随机选，这里再看一次
			if ctx.Err() != nil {
				return
			}
			stats, err := r.RunOnce(ctx)
			if err != nil {
				if !errors.Is(err, ErrCycleInProgress) {
					logger.Error(ctx, "reconcile cycle failed", zap.Error(err))
				}
				continue
			}
			if stats.Scanned > 0 {
				logger.Info(ctx, "reconcile cycle done",
					zap.Int("scanned", stats.Scanned),
					zap.Int("confirmed", stats.Confirmed),
					zap.Int("failed", stats.Failed),
					zap.Int("errors", stats.Errors))
			}
		}
	}
}

// RunOnce 跑一轮
//  1. 同一进程内不重叠，多实例靠分布式锁
//  2. 取最久没核对过的 BatchSize 条 pending
//  3. 逐条核对，单条出错/panic 不影响其它记录
//
// ctx 取消只在两条之间生效：正在核对的那条用脱离取消的 ctx 做完，剩下的不再开始
func (r *Reconciler) RunOnce(ctx context.Context) (Stats, error) {
	var stats Stats
	if !r.running.CompareAndSwap(false, true) {
		metrics.ReconcileCycleTotal.WithLabelValues("skipped").Inc()
		return stats, ErrCycleInProgress
	}
	defer r.running.Store(false)

	stop := ctx
	ctx = context.WithoutCancel(ctx)
	if stop.Err() != nil {
		metrics.ReconcileCycleTotal.WithLabelValues("stopped").Inc()
		stats.Stopped = true
		return stats, nil
	}
	if r.locker != nil {
		unlock, ok, err := r.locker.TryLock(ctx, lockKey, r.cfg.LockTTL)
		if err != nil {
			metrics.ReconcileCycleTotal.WithLabelValues("error").Inc()
			return stats, err
		}
		if !ok {
			metrics.ReconcileCycleTotal.WithLabelValues("skipped").Inc()
			stats.Skipped = true
			return stats, nil
		}
		defer unlock(ctx)
	}

	pending, err := r.store.ListPendingDeposits(ctx, r.cfg.BatchSize)
	if err != nil {
		metrics.ReconcileCycleTotal.WithLabelValues("error").Inc()
		return stats, err
	}
	for _, d := range pending {
		if err := r.limiter.Wait(stop); err != nil || stop.Err() != nil {
			stats.Stopped = true
			break
		}
		out := r.reconcile(ctx, d)
		metrics.ReconcileDepositTotal.WithLabelValues(string(out)).Inc()
		stats.add(out)
		// 核对过的排到队尾，一直卡住的记录不会占满每一批
		if err := r.store.MarkDepositChecked(ctx, d.ID, r.clock.Now()); err != nil {
			logger.Warn(ctx, "mark deposit checked failed", zap.Int64("deposit_id", d.ID), zap.Error(err))
		}
	}
	if stats.Stopped {
		logger.Info(ctx, "reconcile cycle stopped early",
			zap.Int("scanned", stats.Scanned), zap.Int("remaining", len(pending)-stats.Scanned))
		metrics.ReconcileCycleTotal.WithLabelValues("stopped").Inc()
		return stats, nil
	}
	metrics.ReconcileCycleTotal.WithLabelValues("ok").Inc()
	return stats, nil
}

func (r *Reconciler) reconcile(ctx context.Context, d *domain.Deposit) domain.DepositOutcome {
	out := domain.OutcomeError
	err := safe.Run(ctx, "reconcile deposit", func() error {
		rec, err := r.settler.Verify(ctx, d.TxHash)
		if err != nil {
			// 查询失败不算查不到，不能推进超时
			return err
		}
		out, err = r.settler.Apply(ctx, d, rec, r.clock.Now())
		return err
	})
	if err != nil {
		logger.Warn(ctx, "reconcile deposit failed, retry next cycle",
			zap.Int64("deposit_id", d.ID), zap.String("tx_hash", d.TxHash), zap.Error(err))
		return domain.OutcomeError
	}
	return out
}
