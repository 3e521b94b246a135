package xredis

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// 只删除自己持有的锁
// KEYS[1]: 锁的 key  ARGV[1]: 持有者 token
var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
else
    return 0
end
`)

// 自己持有时续期
var renewScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("pexpire", KEYS[1], ARGV[2])
else
    return 0
end
`)

// Locker 多实例部署时保证同一时刻只有一个节点在跑某个任务
type Locker struct {
	rdb *redis.Client
	id  string // 当前节点的唯一ID（hostname + uuid）
}

func NewLocker(rdb *redis.Client) *Locker {
	host, _ := os.Hostname()
	return &Locker{
		rdb: rdb,
		id:  fmt.Sprintf("%s-%s", host, uuid.NewString()),
	}
}

func (l *Locker) ID() string { return l.id }

// TryLock 非阻塞抢锁，成功时返回释放函数
// ttl 兜底：持有者挂掉后锁自动过期
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context), bool, error) {
	ok, err := l.rdb.SetNX(ctx, key, l.id, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		// 锁是自己的 (上一轮没释放干净) 就续期
		renewed, err := renewScript.Run(ctx, l.rdb, []string{key}, l.id, ttl.Milliseconds()).Int64()
		if err != nil || renewed != 1 {
			return nil, false, err
		}
	}
	return func(ctx context.Context) {
		_ = unlockScript.Run(ctx, l.rdb, []string{key}, l.id).Err()
	}, true, nil
}
