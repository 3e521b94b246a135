package reconciler_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"usdtinr.com/internal/ledger/domain"
	"usdtinr.com/internal/ledger/reconciler"
	"usdtinr.com/internal/ledger/repo/mysql"
	"usdtinr.com/internal/ledger/service"
	"usdtinr.com/pkg/codec"
	"usdtinr.com/pkg/orm"
	"usdtinr.com/pkg/xerr"
	"usdtinr.com/pkg/xredis"
)

const (
	usdt  codec.Amount = 1_000_000
	hashA              = "aaaa000000000000000000000000000000000000000000000000000000000001"
	hashB              = "bbbb000000000000000000000000000000000000000000000000000000000002"
	hashC              = "cccc000000000000000000000000000000000000000000000000000000000003"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeVerifier struct {
	mu    sync.Mutex
	recs  map[string]*domain.TransferRecord
	errs  map[string]error
	calls map[string]int
}

func (f *fakeVerifier) Verify(_ context.Context, txHash string) (*domain.TransferRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[txHash]++
	if err := f.errs[txHash]; err != nil {
		return nil, err
	}
	return f.recs[txHash], nil
}

func (f *fakeVerifier) set(txHash, amount string, confirmed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs[txHash] = &domain.TransferRecord{
		TxHash:        txHash,
		Amount:        decimal.RequireFromString(amount),
		Confirmed:     confirmed,
		Confirmations: 1,
		BlockNumber:   7,
	}
}

func (f *fakeVerifier) count(txHash string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[txHash]
}

// hookSettler 在 DepositService 外面加一层，方便制造 panic 和阻塞
type hookSettler struct {
	*service.DepositService
	panicOn string
	entered chan struct{}
	gate    chan struct{}
}

func (h *hookSettler) Verify(ctx context.Context, txHash string) (*domain.TransferRecord, error) {
	if txHash == h.panicOn {
		panic("indexer sdk bug")
	}
	if h.gate != nil {
		select {
		case h.entered <- struct{}{}:
		default:
		}
		<-h.gate
	}
	return h.DepositService.Verify(ctx, txHash)
}

type env struct {
	repo     *mysql.Repo
	clock    *fakeClock
	verifier *fakeVerifier
	deposits *service.DepositService
	settler  *hookSettler
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db, err := orm.NewSQLite("")
	require.NoError(t, err)
	repo := mysql.New(db)
	require.NoError(t, repo.AutoMigrate())

	e := &env{
		repo:     repo,
		clock:    &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		verifier: &fakeVerifier{recs: map[string]*domain.TransferRecord{}, errs: map[string]error{}, calls: map[string]int{}},
	}
	mutator := service.NewBalanceMutator(repo, nil)
	e.deposits = service.NewDepositService(repo, mutator, e.verifier, service.LogNotifier{}, e.clock,
		codec.MustCurrency("USDT", 6), service.DepositConfig{PendingTimeout: 2 * time.Hour, VerifyTimeout: time.Second})
	e.settler = &hookSettler{DepositService: e.deposits}

	_, err = service.NewWalletService(repo, nil, time.Minute).OpenWallet(context.Background(), 1)
	require.NoError(t, err)
	return e
}

// submit 链上还查不到时提交，落一条 pending
func (e *env) submit(t *testing.T, hash string) {
	t.Helper()
	d, err := e.deposits.SubmitDeposit(context.Background(), 1, hash)
	require.NoError(t, err)
	require.Equal(t, domain.DepositStatusPending, d.Status)
	e.clock.Advance(time.Second)
}

func (e *env) status(t *testing.T, hash string) domain.DepositStatus {
	t.Helper()
	d, err := e.repo.GetDepositByHash(context.Background(), hash)
	require.NoError(t, err)
	return d.Status
}

func (e *env) available(t *testing.T) codec.Amount {
	t.Helper()
	w, err := e.repo.GetWallet(context.Background(), 1)
	require.NoError(t, err)
	return w.Available
}

func (e *env) reconciler(locker reconciler.Locker) *reconciler.Reconciler {
	return reconciler.New(reconciler.Config{Interval: 10 * time.Millisecond, BatchSize: 10}, e.repo, e.settler, e.clock, locker)
}

func TestRunOnce_Outcomes(t *testing.T) {
	e := newEnv(t)
	e.submit(t, hashA)
	e.submit(t, hashB)
	e.submit(t, hashC)

	e.verifier.set(hashA, "50", true)
	e.verifier.set(hashB, "7", false)

	r := e.reconciler(nil)
	stats, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, reconciler.Stats{Scanned: 3, Confirmed: 1, Unconfirmed: 1, NotFound: 1}, stats)
	assert.Equal(t, 50*usdt, e.available(t))
	assert.Equal(t, domain.DepositStatusConfirmed, e.status(t, hashA))
	assert.Equal(t, domain.DepositStatusPending, e.status(t, hashB))

	b, err := e.repo.GetDepositByHash(context.Background(), hashB)
	require.NoError(t, err)
	assert.Equal(t, 7*usdt, b.Amount, "未确认时记录观测金额")

	// 第二轮只剩两条 pending，已确认的不再入账
	stats, err = r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Scanned)
	assert.Equal(t, 50*usdt, e.available(t))
	assert.Equal(t, 2, e.verifier.count(hashA), "提交一次 + 第一轮一次")
}

func TestRunOnce_TimeoutAndVerifierErrors(t *testing.T) {
	e := newEnv(t)
	e.submit(t, hashA)
	e.submit(t, hashB)
	e.verifier.errs[hashB] = xerr.New(xerr.ExternalServiceError, "indexer down")

	e.clock.Advance(3 * time.Hour)
	stats, err := e.reconciler(nil).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Errors)

	assert.Equal(t, domain.DepositStatusFailed, e.status(t, hashA))
	// 查询失败不等于查不到，超时了也保持 pending
	assert.Equal(t, domain.DepositStatusPending, e.status(t, hashB))
}

func TestRunOnce_PanicIsolated(t *testing.T) {
	e := newEnv(t)
	e.submit(t, hashA)
	e.submit(t, hashB)
	e.verifier.set(hashB, "3", true)
	e.settler.panicOn = hashA

	stats, err := e.reconciler(nil).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Errors)
	assert.Equal(t, 1, stats.Confirmed)
	assert.Equal(t, 3*usdt, e.available(t))
	assert.Equal(t, domain.DepositStatusPending, e.status(t, hashA))
}

func TestRunOnce_NoOverlap(t *testing.T) {
	e := newEnv(t)
	e.submit(t, hashA)
	e.verifier.set(hashA, "10", true)
	e.settler.entered = make(chan struct{}, 1)
	e.settler.gate = make(chan struct{})
	r := e.reconciler(nil)

	done := make(chan reconciler.Stats, 1)
	go func() {
		stats, err := r.RunOnce(context.Background())
		assert.NoError(t, err)
		done <- stats
	}()
	<-e.settler.entered

	_, err := r.RunOnce(context.Background())
	assert.ErrorIs(t, err, reconciler.ErrCycleInProgress)

	close(e.settler.gate)
	stats := <-done
	assert.Equal(t, 1, stats.Confirmed)
	assert.Equal(t, 10*usdt, e.available(t))
}

func TestRunOnce_DistributedLock(t *testing.T) {
	e := newEnv(t)
	e.submit(t, hashA)
	e.verifier.set(hashA, "10", true)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	ctx := context.Background()

	// 另一个节点正持有锁
	unlock, ok, err := xredis.NewLocker(rdb).TryLock(ctx, "ledger:reconciler:lock", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	r := e.reconciler(xredis.NewLocker(rdb))
	stats, err := r.RunOnce(ctx)
	require.NoError(t, err)
	assert.True(t, stats.Skipped)
	assert.Equal(t, 1, e.verifier.count(hashA), "只有提交时查过一次")

	unlock(ctx)
	stats, err = r.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Confirmed)
	assert.False(t, mr.Exists("ledger:reconciler:lock"), "一轮结束释放锁")
}

func TestStartStop(t *testing.T) {
	e := newEnv(t)
	e.submit(t, hashA)
	e.verifier.set(hashA, "42", true)

	r := e.reconciler(nil)
	r.Start(context.Background())
	assert.Eventually(t, func() bool {
		d, err := e.repo.GetDepositByHash(context.Background(), hashA)
		return err == nil && d.Status == domain.DepositStatusConfirmed
	}, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, r.Stop(ctx))
	assert.Equal(t, 42*usdt, e.available(t))
}

func (e *env) verifyCalls() int {
	return e.verifier.count(hashA) + e.verifier.count(hashB) + e.verifier.count(hashC)
}

// 停止信号只让手上这一条做完，本批剩下的和后面的 tick 都不再核对
func TestStop_FinishesCurrentItemOnly(t *testing.T) {
	e := newEnv(t)
	e.submit(t, hashA)
	e.submit(t, hashB)
	e.submit(t, hashC)
	e.settler.entered = make(chan struct{}, 1)
	e.settler.gate = make(chan struct{})
	r := reconciler.New(reconciler.Config{Interval: time.Millisecond, BatchSize: 10}, e.repo, e.settler, e.clock, nil)

	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)
	<-e.settler.entered
	cancel()
	close(e.settler.gate)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	require.NoError(t, r.Stop(stopCtx))

	assert.Equal(t, 4, e.verifyCalls(), "提交时 3 次 + 停止前正在核对的 1 条")
	assert.Equal(t, 2, e.verifier.count(hashA))

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 4, e.verifyCalls(), "Stop 返回后没有新的一轮")
}

func TestRunOnce_StoppedBeforeStart(t *testing.T) {
	e := newEnv(t)
	e.submit(t, hashA)
	e.verifier.set(hashA, "10", true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stats, err := e.reconciler(nil).RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, reconciler.Stats{Stopped: true}, stats)
	assert.Equal(t, 1, e.verifier.count(hashA), "只有提交时查过一次")
	assert.Equal(t, domain.DepositStatusPending, e.status(t, hashA))
}

// 一直查询失败的记录核对后排到队尾，不会占满每一批
func TestRunOnce_StuckRowsDoNotStarve(t *testing.T) {
	e := newEnv(t)
	e.submit(t, hashA)
	e.submit(t, hashB)
	e.verifier.errs[hashA] = xerr.New(xerr.ExternalServiceError, "indexer 500 for this tx")
	e.verifier.set(hashB, "8", true)

	r := reconciler.New(reconciler.Config{Interval: time.Minute, BatchSize: 1}, e.repo, e.settler, e.clock, nil)
	stats, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Errors)

	e.clock.Advance(time.Second)
	stats, err = r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Confirmed)
	assert.Equal(t, domain.DepositStatusConfirmed, e.status(t, hashB))
	assert.Equal(t, 8*usdt, e.available(t))

	e.clock.Advance(time.Second)
	_, err = r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, e.verifier.count(hashA), "提交一次 + 两轮各一次")
}
