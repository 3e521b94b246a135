package codec

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidTxHash = errors.New("invalid tx hash")

const txHashHexLen = 64

// NormalizeTxHash 统一成不带 0x 的 64 位小写 hex，作为 deposits.tx_hash 的唯一键
func NormalizeTxHash(s string) (string, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
	}
	if len(s) != txHashHexLen {
		return "", fmt.Errorf("%w: length %d", ErrInvalidTxHash, len(s))
	}
	if _, err := DecodeHex(s); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidTxHash, err)
	}
	return strings.ToLower(s), nil
}
