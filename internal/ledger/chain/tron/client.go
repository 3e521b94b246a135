package tron

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"usdtinr.com/pkg/metrics"
	"usdtinr.com/pkg/ratelimit"
	"usdtinr.com/pkg/xerr"
)

const (
	defaultBaseURL = "https://api.trongrid.io"
	defaultTimeout = 15 * time.Second
	apiKeyHeader   = "TRON-PRO-API-KEY"

	pathTxByID     = "/wallet/gettransactionbyid"
	pathTxInfoByID = "/wallet/gettransactioninfobyid"
	pathNowBlock   = "/wallet/getnowblock"

	maxBodySize = 4 << 20
)

type ClientConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
	RPS     float64       `mapstructure:"rps"` // TronGrid 免费额度按秒限流
	Burst   int           `mapstructure:"burst"`
}

// Client TronGrid HTTP API，只用到三个只读接口
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	breakers   *ratelimit.Manager
}

func NewClient(cfg ClientConfig, breakers *ratelimit.Manager) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 10
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
		breakers:   breakers,
	}
}

type Transaction struct {
	TxID string `json:"txID"`
	Ret  []struct {
		ContractRet string `json:"contractRet"`
	} `json:"ret"`
}

type Log struct {
	Address string   `json:"address"`
	Topics  []string `json:"topics"`
	Data    string   `json:"data"`
}

type TransactionInfo struct {
	ID              string `json:"id"`
	BlockNumber     int64  `json:"blockNumber"`
	BlockTimeStamp  int64  `json:"blockTimeStamp"`
	ContractAddress string `json:"contract_address"`
	Result          string `json:"result"` // 失败时为 FAILED，成功时不返回
	Receipt         struct {
		Result string `json:"result"`
	} `json:"receipt"`
	Log []Log `json:"log"`
}

type block struct {
	BlockID     string `json:"blockID"`
	BlockHeader struct {
		RawData struct {
			Number int64 `json:"number"`
		} `json:"raw_data"`
	} `json:"block_header"`
}

type byIDReq struct {
	Value string `json:"value"`
}

// GetTransactionByID 查不到时索引器返回 {}，这里返回 nil
func (c *Client) GetTransactionByID(ctx context.Context, txID string) (*Transaction, error) {
	var tx Transaction
	if err := c.post(ctx, pathTxByID, byIDReq{Value: txID}, &tx); err != nil {
		return nil, err
	}
	if tx.TxID == "" {
		return nil, nil
	}
	return &tx, nil
}

// GetTransactionInfoByID 还没打包进区块时返回 {}，这里返回 nil
func (c *Client) GetTransactionInfoByID(ctx context.Context, txID string) (*TransactionInfo, error) {
	var info TransactionInfo
	if err := c.post(ctx, pathTxInfoByID, byIDReq{Value: txID}, &info); err != nil {
		return nil, err
	}
	if info.ID == "" {
		return nil, nil
	}
	return &info, nil
}

func (c *Client) GetNowBlock(ctx context.Context) (int64, error) {
	var b block
	if err := c.post(ctx, pathNowBlock, struct{}{}, &b); err != nil {
		return 0, err
	}
	if b.BlockHeader.RawData.Number <= 0 {
		return 0, xerr.New(xerr.ExternalServiceError, "tron: getnowblock returned no block number")
	}
	return b.BlockHeader.RawData.Number, nil
}

// post 限流 -> 熔断 -> HTTP，所有失败统一成 ExternalServiceError
func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return xerr.Wrap(err, xerr.ExternalServiceError, "tron: rate limiter")
	}
	call := func() error { return c.do(ctx, path, body, out) }
	if c.breakers == nil {
		return call()
	}
	return c.breakers.Execute("tron"+path, call)
}

func (c *Client) do(ctx context.Context, path string, body, out interface{}) error {
	start := time.Now()
	status := "error"
	defer func() {
		metrics.IndexerRequestDuration.WithLabelValues(path, status).Observe(time.Since(start).Seconds())
	}()

	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return xerr.Wrap(err, xerr.ExternalServiceError, "tron: build request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set(apiKeyHeader, c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			status = "canceled"
			return err
		}
		return xerr.Wrap(err, xerr.ExternalServiceError, "tron: "+path+" request failed")
	}
	defer resp.Body.Close()
	status = strconv.Itoa(resp.StatusCode)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return xerr.Wrap(err, xerr.ExternalServiceError, "tron: read body")
	}
	if resp.StatusCode != http.StatusOK {
		return xerr.Newf(xerr.ExternalServiceError, "tron: %s status %d: %s", path, resp.StatusCode, truncate(raw, 200))
	}

	// 参数错误时 TronGrid 也是 200，body 里带 Error 字段
	var apiErr struct {
		Error string `json:"Error"`
	}
	if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
		return xerr.Newf(xerr.ExternalServiceError, "tron: %s: %s", path, apiErr.Error)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return xerr.Wrap(fmt.Errorf("decode %s: %w", path, err), xerr.ExternalServiceError, "tron: bad response body")
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
