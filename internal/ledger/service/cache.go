package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"usdtinr.com/internal/ledger/domain"
	"usdtinr.com/pkg/codec"
)

// BalanceCache 钱包读缓存，写路径 (BalanceMutator) 提交后失效
// 回源写入带 version：比已提交版本旧的快照不会写进缓存
type BalanceCache interface {
	GetWallet(ctx context.Context, userID int64) (*domain.Wallet, bool, error)
	// SetWallet stored=false 表示快照已过期，没有写入
	SetWallet(ctx context.Context, w *domain.Wallet, ttl time.Duration) (stored bool, err error)
	// Invalidate 记下提交后的 version 并删除缓存
	Invalidate(ctx context.Context, userID int64, version int64) error
}

// 版本标记保留的时间，要比任何一次回源读库都长
const versionMarkTTL = 24 * time.Hour

// KEYS[1] 缓存 KEYS[2] 版本标记；ARGV[1] 值 ARGV[2] 快照 version ARGV[3] ttl(ms)
var setIfNotStaleScript = redis.NewScript(`
local v = redis.call("GET", KEYS[2])
if v and tonumber(v) > tonumber(ARGV[2]) then
	return 0
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[3])
return 1
`)

// KEYS[1] 缓存 KEYS[2] 版本标记；ARGV[1] 提交后的 version ARGV[2] 标记 ttl(ms)
var invalidateScript = redis.NewScript(`
local v = redis.call("GET", KEYS[2])
if (not v) or tonumber(v) < tonumber(ARGV[1]) then
	redis.call("SET", KEYS[2], ARGV[1], "PX", ARGV[2])
end
redis.call("DEL", KEYS[1])
return 1
`)

type redisCache struct {
	client *redis.Client
}

func NewRedisCache(c *redis.Client) BalanceCache {
	return &redisCache{client: c}
}

// cachedWallet Wallet 的金额字段不输出 json，缓存单独定义
type cachedWallet struct {
	UserID    int64     `json:"u"`
	Available int64     `json:"a"`
	Locked    int64     `json:"l"`
	Version   int64     `json:"v"`
	CreatedAt time.Time `json:"c"`
	UpdatedAt time.Time `json:"t"`
}

func (r *redisCache) GetWallet(ctx context.Context, userID int64) (*domain.Wallet, bool, error) {
	key := r.getKey(userID)

	b, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var cw cachedWallet
	if err := json.Unmarshal(b, &cw); err != nil {
		// 缓存脏了就删掉，避免持续命中错误
		_ = r.client.Del(ctx, key).Err()
		return nil, false, err
	}
	return &domain.Wallet{
		UserID:    cw.UserID,
		Available: codec.Amount(cw.Available),
		Locked:    codec.Amount(cw.Locked),
		Version:   cw.Version,
		CreatedAt: cw.CreatedAt,
		UpdatedAt: cw.UpdatedAt,
	}, true, nil
}

func (r *redisCache) SetWallet(ctx context.Context, w *domain.Wallet, ttl time.Duration) (bool, error) {
	b, err := json.Marshal(cachedWallet{
		UserID:    w.UserID,
		Available: int64(w.Available),
		Locked:    int64(w.Locked),
		Version:   w.Version,
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	})
	if err != nil {
		return false, err
	}
	// 加入随机时间 防止同时过期
	ttl = withJitter(ttl, 300*time.Millisecond)
	stored, err := setIfNotStaleScript.Run(ctx, r.client,
		[]string{r.getKey(w.UserID), r.versionKey(w.UserID)},
		b, w.Version, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return stored == 1, nil
}

func (r *redisCache) Invalidate(ctx context.Context, userID int64, version int64) error {
	return invalidateScript.Run(ctx, r.client,
		[]string{r.getKey(userID), r.versionKey(userID)},
		version, versionMarkTTL.Milliseconds()).Err()
}

func (r *redisCache) getKey(userID int64) string {
	return fmt.Sprintf("ledger:wallet:%d", userID)
}

func (r *redisCache) versionKey(userID int64) string {
	return fmt.Sprintf("ledger:wallet:%d:ver", userID)
}

func withJitter(ttl time.Duration, jitter time.Duration) time.Duration {
	if ttl <= 0 || jitter <= 0 {
		return ttl
	}
	// [0, jitter) 的随机
	return ttl + time.Duration(rand.Int63n(int64(jitter)))
}
