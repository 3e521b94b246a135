package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"usdtinr.com/internal/ledger/domain"
	"usdtinr.com/internal/ledger/repo/mysql"
	"usdtinr.com/pkg/codec"
	"usdtinr.com/pkg/orm"
)

// 1 USDT = 10^6 最小单位
const usdt codec.Amount = 1_000_000

const (
	treasuryAddr = "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"
	hashA        = "aaaa000000000000000000000000000000000000000000000000000000000001"
	hashB        = "bbbb000000000000000000000000000000000000000000000000000000000002"
)

var cur = codec.MustCurrency("USDT", 6)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
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
	err   error
	calls int
}

func newFakeVerifier() *fakeVerifier {
	return &fakeVerifier{recs: map[string]*domain.TransferRecord{}}
}

func (f *fakeVerifier) Verify(_ context.Context, txHash string) (*domain.TransferRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.recs[txHash], nil
}

func (f *fakeVerifier) set(txHash string, amount string, confirmed bool) {
	addr, _ := codec.ParseAddress(treasuryAddr)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs[txHash] = &domain.TransferRecord{
		TxHash:        txHash,
		From:          addr,
		To:            addr,
		Amount:        decimal.RequireFromString(amount),
		Confirmed:     confirmed,
		Confirmations: 1,
		BlockNumber:   100,
	}
}

func (f *fakeVerifier) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.Event
}

func (n *recordingNotifier) Notify(_ context.Context, e domain.Event) error {
	n.mu.Lock()
	n.events = append(n.events, e)
	n.mu.Unlock()
	return nil
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.Type)
	}
	return out
}

type testEnv struct {
	repo        *mysql.Repo
	clock       *fakeClock
	verifier    *fakeVerifier
	notifier    *recordingNotifier
	mutator     *BalanceMutator
	wallets     *WalletService
	deposits    *DepositService
	ads         *AdService
	withdrawals *WithdrawalService
	audit       *AuditService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := orm.NewSQLite("")
	require.NoError(t, err)
	repo := mysql.New(db)
	require.NoError(t, repo.AutoMigrate())

	e := &testEnv{
		repo:     repo,
		clock:    newFakeClock(),
		verifier: newFakeVerifier(),
		notifier: &recordingNotifier{},
	}
	e.mutator = NewBalanceMutator(repo, nil)
	e.wallets = NewWalletService(repo, nil, time.Minute)
	e.deposits = NewDepositService(repo, e.mutator, e.verifier, e.notifier, e.clock, cur,
		DepositConfig{PendingTimeout: 2 * time.Hour, VerifyTimeout: time.Second})
	e.ads = NewAdService(repo, e.mutator, e.notifier, e.clock)
	e.withdrawals = NewWithdrawalService(repo, e.mutator, e.notifier, e.clock, cur,
		WithdrawalConfig{Fee: 1 * usdt, MinAmount: 1 * usdt})
	e.audit = NewAuditService(repo)
	return e
}

// fund 开户并入金，只用于准备数据
func (e *testEnv) fund(t *testing.T, userID int64, available codec.Amount) {
	t.Helper()
	ctx := context.Background()
	_, err := e.wallets.OpenWallet(ctx, userID)
	require.NoError(t, err)
	if available > 0 {
		_, err = e.mutator.Credit(ctx, userID, available, Reservation{Kind: "fixture"})
		require.NoError(t, err)
	}
}

// balance 返回 {available, locked}，单位 USDT
func (e *testEnv) balance(t *testing.T, userID int64) [2]codec.Amount {
	t.Helper()
	w, err := e.repo.GetWallet(context.Background(), userID)
	require.NoError(t, err)
	return [2]codec.Amount{w.Available / usdt, w.Locked / usdt}
}

func (e *testEnv) requireConsistent(t *testing.T, userID int64) {
	t.Helper()
	report, err := e.audit.CheckWallet(context.Background(), userID)
	require.NoError(t, err)
	require.True(t, report.Consistent, "%+v", report)
}
