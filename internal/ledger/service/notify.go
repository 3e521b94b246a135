package service

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"usdtinr.com/internal/ledger/domain"
	"usdtinr.com/pkg/logger"
)

// LogNotifier 没有配置 Redis 时只打日志
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, e domain.Event) error {
	logger.Info(ctx, "ledger event",
		zap.String("type", e.Type),
		zap.Int64("user_id", e.UserID),
		zap.Int64("ref_id", e.RefID),
		zap.String("status", e.Status),
	)
	return nil
}

// StreamNotifier 事件写入 Redis Stream，推送/审计服务用消费组读取
type StreamNotifier struct {
	rdb    *redis.Client
	stream string
	maxLen int64
}

func NewStreamNotifier(rdb *redis.Client, stream string, maxLen int64) *StreamNotifier {
	if stream == "" {
		stream = "ledger:events"
	}
	if maxLen <= 0 {
		maxLen = 100_000
	}
	return &StreamNotifier{rdb: rdb, stream: stream, maxLen: maxLen}
}

func (n *StreamNotifier) Notify(ctx context.Context, e domain.Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return n.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: n.stream,
		MaxLen: n.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"type":    e.Type,
			"user_id": e.UserID,
			"payload": b,
		},
	}).Err()
}

// notify 通知失败不影响已提交的账务，只记日志
func notify(ctx context.Context, n domain.Notifier, e domain.Event) {
	if n == nil {
		return
	}
	if err := n.Notify(ctx, e); err != nil {
		logger.Warn(ctx, "notify collaborator failed",
			zap.String("type", e.Type), zap.Int64("ref_id", e.RefID), zap.Error(err))
	}
}
