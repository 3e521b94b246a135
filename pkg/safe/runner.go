package safe

import (
	"context"
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"
	"usdtinr.com/pkg/logger"
)

// Go 安全启动协程，panic 会被记录而不是打挂进程
func Go(fn func()) {
	GoCtx(context.Background(), func(context.Context) { fn() })
}

// GoCtx 安全启动携带 context 的协程，日志里保留链路信息
func GoCtx(ctx context.Context, fn func(ctx context.Context)) {
	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		defer Recover(ctx, "goroutine")
		fn(ctx)
	}()
}

// Run 同步执行 fn，把 panic 转成 error 返回 (单条记录处理失败不影响整批)
func Run(ctx context.Context, name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logPanic(ctx, name, r)
			err = fmt.Errorf("%s panic: %v", name, r)
		}
	}()
	return fn()
}

// Recover 必须直接 defer 调用
func Recover(ctx context.Context, name string) {
	if r := recover(); r != nil {
		logPanic(ctx, name, r)
	}
}

func logPanic(ctx context.Context, name string, r any) {
	logger.Error(ctx, "🚨 PANIC RECOVERED",
		zap.String("where", name),
		zap.Any("panic", r),
		zap.String("stack", string(debug.Stack())),
	)
}
