package codec

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/ethereum/go-ethereum/common"
)

const (
	// AddressPrefix TRON 主网地址的版本字节，base58 之后以 T 开头
	AddressPrefix byte = 0x41
	AddressLength      = 1 + common.AddressLength
)

var (
	ErrInvalidAddress = errors.New("invalid address")
	ErrInvalidHex     = errors.New("invalid hex")
)

// Address 带版本前缀的 21 字节地址
type Address [AddressLength]byte

// ParseAddress 解析 base58-check 地址 (T 开头)
func ParseAddress(s string) (Address, error) {
	payload, version, err := base58.CheckDecode(strings.TrimSpace(s))
	if err != nil {
		return Address{}, fmt.Errorf("%w: %q: %v", ErrInvalidAddress, s, err)
	}
	if version != AddressPrefix || len(payload) != common.AddressLength {
		return Address{}, fmt.Errorf("%w: %q: bad version or length", ErrInvalidAddress, s)
	}
	var a Address
	a[0] = version
	copy(a[1:], payload)
	return a, nil
}

// AddressFromBytes 接受 20 字节裸地址或带 0x41 前缀的 21 字节
func AddressFromBytes(b []byte) (Address, error) {
	var a Address
	switch len(b) {
	case common.AddressLength:
		a[0] = AddressPrefix
		copy(a[1:], b)
	case AddressLength:
		if b[0] != AddressPrefix {
			return Address{}, fmt.Errorf("%w: prefix %#x", ErrInvalidAddress, b[0])
		}
		copy(a[:], b)
	default:
		return Address{}, fmt.Errorf("%w: length %d", ErrInvalidAddress, len(b))
	}
	return a, nil
}

// AddressFromHex 索引器返回的合约地址：41 开头 / 0x 开头 / 裸 40 位，大小写都可以
func AddressFromHex(h string) (Address, error) {
	b, err := DecodeHex(h)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return AddressFromBytes(b)
}

// AddressFromTopic 事件 indexed 参数是左补零的 32 字节
func AddressFromTopic(topic string) (Address, error) {
	b, err := DecodeHex(topic)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(b) != common.HashLength {
		return Address{}, fmt.Errorf("%w: topic length %d", ErrInvalidAddress, len(b))
	}
	if !bytes.Equal(b[:common.HashLength-common.AddressLength], make([]byte, common.HashLength-common.AddressLength)) {
		return Address{}, fmt.Errorf("%w: topic is not an address", ErrInvalidAddress)
	}
	return AddressFromBytes(common.BytesToAddress(b).Bytes())
}

func (a Address) String() string {
	return base58.CheckEncode(a[1:], a[0])
}

// Hex 41 开头的 42 位小写 hex
func (a Address) Hex() string {
	return hex.EncodeToString(a[:])
}

func (a Address) IsZero() bool {
	return a == Address{}
}

// DecodeHex 去掉可选的 0x 前缀再解码，奇数长度或非法字符报错
func DecodeHex(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
	}
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidHex)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHex, err)
	}
	return b, nil
}
