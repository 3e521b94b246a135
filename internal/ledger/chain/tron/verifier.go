package tron

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
	"usdtinr.com/internal/ledger/domain"
	"usdtinr.com/pkg/codec"
	"usdtinr.com/pkg/logger"
)

// TransferTopic TRC-20 与 ERC-20 使用同一个事件签名
var TransferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

const resultSuccess = "SUCCESS"

type VerifierConfig struct {
	TokenContract         string `mapstructure:"token_contract"`   // base58，USDT-TRC20 主网 TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t
	Treasury              string `mapstructure:"treasury_address"` // 充值收款地址
	Decimals              int32  `mapstructure:"token_decimals"`
	RequiredConfirmations int64  `mapstructure:"required_confirmations"`
}

type indexer interface {
	GetTransactionByID(ctx context.Context, txID string) (*Transaction, error)
	GetTransactionInfoByID(ctx context.Context, txID string) (*TransactionInfo, error)
	GetNowBlock(ctx context.Context) (int64, error)
}

// Verifier 按 tx_hash 核对一笔转入金库的 USDT
// 无副作用，可并发、可重复调用
type Verifier struct {
	client   indexer
	token    codec.Address
	treasury codec.Address
	decimals int32
	required int64
}

var _ domain.ChainVerifier = (*Verifier)(nil)

func NewVerifier(client indexer, cfg VerifierConfig) (*Verifier, error) {
	token, err := codec.ParseAddress(cfg.TokenContract)
	if err != nil {
		return nil, fmt.Errorf("token contract: %w", err)
	}
	treasury, err := codec.ParseAddress(cfg.Treasury)
	if err != nil {
		return nil, fmt.Errorf("treasury address: %w", err)
	}
	if cfg.Decimals <= 0 {
		cfg.Decimals = 6
	}
	if cfg.RequiredConfirmations <= 0 {
		cfg.RequiredConfirmations = 1
	}
	return &Verifier{
		client:   client,
		token:    token,
		treasury: treasury,
		decimals: cfg.Decimals,
		required: cfg.RequiredConfirmations,
	}, nil
}

// Verify 返回 (nil, nil) 表示目前无法确认这是一笔转入金库的转账
//  1. 交易本身：查不到即 nil
//  2. 交易回执：未打包即 nil
//  3. 找 Transfer 日志：合约 = USDT，to = 金库
//  4. 成功标志 + 确认数
func (v *Verifier) Verify(ctx context.Context, txHash string) (*domain.TransferRecord, error) {
	hash, err := codec.NormalizeTxHash(txHash)
	if err != nil {
		return nil, nil
	}

	tx, err := v.client.GetTransactionByID(ctx, hash)
	if err != nil || tx == nil {
		return nil, err
	}
	info, err := v.client.GetTransactionInfoByID(ctx, hash)
	if err != nil || info == nil {
		return nil, err
	}

	rec := v.matchTransfer(ctx, hash, info)
	if rec == nil {
		return nil, nil
	}
	rec.BlockNumber = info.BlockNumber

	success := len(tx.Ret) > 0 && tx.Ret[0].ContractRet == resultSuccess &&
		(info.Receipt.Result == "" || info.Receipt.Result == resultSuccess)

	rec.Confirmations = 1
	if v.required > 1 && info.BlockNumber > 0 {
		head, err := v.client.GetNowBlock(ctx)
		if err != nil {
			return nil, err
		}
		rec.Confirmations = head - info.BlockNumber + 1
		if rec.Confirmations < 0 {
			rec.Confirmations = 0
		}
	}
	rec.Confirmed = success && rec.Confirmations >= v.required
	return rec, nil
}

func (v *Verifier) matchTransfer(ctx context.Context, hash string, info *TransactionInfo) *domain.TransferRecord {
	for i, l := range info.Log {
		if len(l.Topics) < 3 || common.HexToHash(l.Topics[0]) != TransferTopic {
			continue
		}
		contract, err := codec.AddressFromHex(l.Address)
		if err != nil || contract != v.token {
			continue
		}
		to, err := codec.AddressFromTopic(l.Topics[2])
		if err != nil || to != v.treasury {
			continue
		}
		from, err := codec.AddressFromTopic(l.Topics[1])
		if err != nil {
			logger.Warn(ctx, "tron: bad from topic", zap.String("tx_hash", hash), zap.Int("log", i), zap.Error(err))
			continue
		}
		raw, err := codec.DecodeUint256(l.Data)
		if err != nil {
			logger.Warn(ctx, "tron: bad transfer amount", zap.String("tx_hash", hash), zap.Int("log", i), zap.Error(err))
			continue
		}
		return &domain.TransferRecord{
			TxHash: hash,
			From:   from,
			To:     to,
			Amount: codec.TokenAmount(raw, v.decimals),
		}
	}
	return nil
}
