package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"usdtinr.com/internal/ledger"
	"usdtinr.com/internal/ledger/chain/tron"
	"usdtinr.com/internal/ledger/handler"
	"usdtinr.com/pkg/orm"
)

func testCfg() *ledger.Cfg {
	return &ledger.Cfg{
		Name: "ledger-test",
		Db:   orm.Config{Type: "sqlite"},
		Chain: ledger.Chain{
			Client: tron.ClientConfig{BaseURL: "http://127.0.0.1:1"},
			Verifier: tron.VerifierConfig{
				TokenContract: "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t",
				Treasury:      "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t",
			},
		},
		Ledger: ledger.Ledger{Symbol: "USDT", Precision: 6, WithdrawalFee: "1", MinWithdrawal: "10"},
		HTTP:   ledger.HTTP{RPS: 100, Burst: 100, AdminToken: "t"},
	}
}

func TestBuild_AndRoute(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := Build(ctx, testCfg())
	require.NoError(t, err)
	defer a.close()
	r := NewRouter(ctx, a.cfg, a.handler)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/wallet", nil)
	req.Header.Set(handler.HeaderUserID, "3")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `"available":"0.000000"`), w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/admin/wallets/3/audit", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBuild_BadConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ledger.Cfg)
	}{
		{"手续费格式错误", func(c *ledger.Cfg) { c.Ledger.WithdrawalFee = "1.0000001" }},
		{"金库地址为空", func(c *ledger.Cfg) { c.Chain.Verifier.Treasury = "" }},
		{"精度非法", func(c *ledger.Cfg) { c.Ledger.Precision = 30 }},
		{"未知数据库", func(c *ledger.Cfg) { c.Db.Type = "oracle" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testCfg()
			tt.mutate(cfg)
			_, err := Build(context.Background(), cfg)
			assert.Error(t, err)
		})
	}
}
