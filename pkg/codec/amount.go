package codec

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrAmountRange   = errors.New("amount out of range")
)

// Amount 最小单位 (10^-Precision) 的整数金额，账本里只用它做加减
type Amount int64

func (a Amount) IsPositive() bool { return a > 0 }

// Add 溢出时报错，而不是悄悄回绕
func (a Amount) Add(b Amount) (Amount, error) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, ErrAmountRange
	}
	return a + b, nil
}

func (a Amount) Sub(b Amount) (Amount, error) {
	if b == math.MinInt64 {
		return 0, ErrAmountRange
	}
	return a.Add(-b)
}

// Currency 币种精度元数据
type Currency struct {
	Symbol    string
	Precision int32
	Scale     int64 // 10^Precision（预计算）
}

func NewCurrency(symbol string, precision int) (Currency, error) {
	// 超过 18 位 int64 放不下有意义的余额
	if symbol == "" || precision < 0 || precision > 18 {
		return Currency{}, fmt.Errorf("bad currency meta: %q/%d", symbol, precision)
	}
	scale, err := pow10i64(precision)
	if err != nil {
		return Currency{}, err
	}
	return Currency{Symbol: symbol, Precision: int32(precision), Scale: scale}, nil
}

func MustCurrency(symbol string, precision int) Currency {
	c, err := NewCurrency(symbol, precision)
	if err != nil {
		panic(err)
	}
	return c
}

// Parse 解析用户输入的十进制字符串 ("12.5")
// 不接受负数、科学计数法、超过精度的小数位
func (c Currency) Parse(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, "eE") {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("%w: negative %q", ErrInvalidAmount, s)
	}
	if !d.Equal(d.Truncate(c.Precision)) {
		return 0, fmt.Errorf("%w: more than %d decimals in %q", ErrInvalidAmount, c.Precision, s)
	}
	return c.toAmount(d)
}

// FromDecimal 链上金额换算成账本单位，超出精度的部分向零截断 (宁少记不多记)
func (c Currency) FromDecimal(d decimal.Decimal) (Amount, error) {
	return c.toAmount(d.Truncate(c.Precision))
}

func (c Currency) toAmount(d decimal.Decimal) (Amount, error) {
	bi := d.Shift(c.Precision).BigInt()
	if !bi.IsInt64() {
		return 0, fmt.Errorf("%w: %s", ErrAmountRange, d.String())
	}
	return Amount(bi.Int64()), nil
}

func (c Currency) Decimal(a Amount) decimal.Decimal {
	return decimal.New(int64(a), -c.Precision)
}

// Format 固定小数位输出，例如 precision=6 时 "30.000000"
func (c Currency) Format(a Amount) string {
	return c.Decimal(a).StringFixed(c.Precision)
}

// DecodeUint256 事件 data 段里的 uint256
func DecodeUint256(data string) (*big.Int, error) {
	b, err := DecodeHex(data)
	if err != nil {
		return nil, err
	}
	if len(b) > 32 {
		return nil, fmt.Errorf("%w: uint256 longer than 32 bytes", ErrInvalidAmount)
	}
	return new(big.Int).SetBytes(b), nil
}

// TokenAmount 原始整数按代币精度缩放 (USDT-TRC20 为 6)
func TokenAmount(raw *big.Int, decimals int32) decimal.Decimal {
	return decimal.NewFromBigInt(raw, -decimals)
}

func pow10i64(p int) (int64, error) {
	var v int64 = 1
	for i := 0; i < p; i++ {
		if v > math.MaxInt64/10 {
			return 0, ErrAmountRange
		}
		v *= 10
	}
	return v, nil
}
