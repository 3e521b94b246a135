package ledger

import (
	"time"

	"usdtinr.com/internal/ledger/chain/tron"
	"usdtinr.com/internal/ledger/reconciler"
	"usdtinr.com/pkg/orm"
	"usdtinr.com/pkg/ratelimit"
	"usdtinr.com/pkg/xredis"
)

type Cfg struct {
	Name       string            `yaml:"name" mapstructure:"name"`
	Addr       string            `yaml:"addr" mapstructure:"addr"`
	LogLevel   string            `yaml:"log_level" mapstructure:"log_level"`
	LogFile    string            `yaml:"log_file" mapstructure:"log_file"`
	Db         orm.Config        `yaml:"db" mapstructure:"db"`
	Redis      xredis.Config     `yaml:"redis" mapstructure:"redis"`
	OTel       OTel              `yaml:"otel" mapstructure:"otel"`
	Chain      Chain             `yaml:"chain" mapstructure:"chain"`
	Reconciler reconciler.Config `yaml:"reconciler" mapstructure:"reconciler"`
	Ledger     Ledger            `yaml:"ledger" mapstructure:"ledger"`
	HTTP       HTTP              `yaml:"http" mapstructure:"http"`
	Metrics    Metrics           `yaml:"metrics" mapstructure:"metrics"`
}

type OTel struct {
	Enabled     bool    `yaml:"enabled" mapstructure:"enabled"`
	Addr        string  `yaml:"addr" mapstructure:"addr"`
	SampleRatio float64 `yaml:"sample_ratio" mapstructure:"sample_ratio"`
}

type Chain struct {
	Client   tron.ClientConfig   `yaml:",inline" mapstructure:",squash"`
	Verifier tron.VerifierConfig `yaml:",inline" mapstructure:",squash"`
	Breaker  ratelimit.Rule      `yaml:"breaker" mapstructure:"breaker"`
}

type Ledger struct {
	Symbol         string        `yaml:"symbol" mapstructure:"symbol"`
	Precision      int           `yaml:"precision" mapstructure:"precision"`
	WithdrawalFee  string        `yaml:"withdrawal_fee" mapstructure:"withdrawal_fee"` // 十进制字符串
	MinWithdrawal  string        `yaml:"min_withdrawal" mapstructure:"min_withdrawal"`
	CacheTTL       time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
	PendingTimeout time.Duration `yaml:"pending_timeout" mapstructure:"pending_timeout"`
	VerifyTimeout  time.Duration `yaml:"verify_timeout" mapstructure:"verify_timeout"`
	EventStream    string        `yaml:"event_stream" mapstructure:"event_stream"`
	EventMaxLen    int64         `yaml:"event_max_len" mapstructure:"event_max_len"`
}

type HTTP struct {
	AdminToken      string        `yaml:"admin_token" mapstructure:"admin_token"`
	RPS             float64       `yaml:"rps" mapstructure:"rps"` // 每个 ip+路由
	Burst           int           `yaml:"burst" mapstructure:"burst"`
	ReadTimeout     time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

type Metrics struct {
	Addr      string `yaml:"addr" mapstructure:"addr"`
	PprofAddr string `yaml:"pprof_addr" mapstructure:"pprof_addr"`
}

// Defaults 配置文件没写时的值
func Defaults() map[string]any {
	return map[string]any{
		"name":                                    "ledger-service",
		"addr":                                    "0.0.0.0:8080",
		"log_level":                               "info",
		"db.type":                                 "mysql",
		"db.max_idle":                             10,
		"db.max_open":                             50,
		"db.max_lifetime":                         3600,
		"chain.base_url":                          "https://api.trongrid.io",
		"chain.timeout":                           "15s",
		"chain.rps":                               10,
		"chain.burst":                             5,
		"chain.token_contract":                    "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t",
		"chain.token_decimals":                    6,
		"chain.required_confirmations":            19,
		"chain.breaker.timeout":                   "30s",
		"chain.breaker.interval":                  "60s",
		"chain.breaker.trip_consecutive_failures": 5,
		"reconciler.interval":                     "30s",
		"reconciler.batch_size":                   100,
		"reconciler.rps":                          5,
		"reconciler.lock_ttl":                     "5m",
		"ledger.symbol":                           "USDT",
		"ledger.precision":                        6,
		"ledger.withdrawal_fee":                   "1",
		"ledger.min_withdrawal":                   "10",
		"ledger.cache_ttl":                        "10m",
		"ledger.pending_timeout":                  "2h",
		"ledger.verify_timeout":                   "15s",
		"ledger.event_stream":                     "ledger:events",
		"ledger.event_max_len":                    100000,
		"http.rps":                                50,
		"http.burst":                              100,
		"http.read_timeout":                       "10s",
		"http.write_timeout":                      "30s",
		"http.shutdown_timeout":                   "15s",
		"metrics.addr":                            "0.0.0.0:9091",
	}
}
