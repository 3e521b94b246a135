package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"usdtinr.com/internal/ledger"
	"usdtinr.com/internal/ledger/app"
	"usdtinr.com/pkg/config"
	"usdtinr.com/pkg/logger"
)

func main() {
	configName := flag.String("config", "ledger-service", "config/{name}.yaml")
	flag.Parse()

	// SIGINT/SIGTERM 时取消，触发 shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := &ledger.Cfg{}
	if _, err := config.LoadAndWatch(*configName, cfg, config.WithDefaults(ledger.Defaults())); err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger.InitWithFile(cfg.Name, cfg.LogLevel, cfg.LogFile)
	defer logger.Sync()
	logger.Info(ctx, "服务开始启动", zap.String("addr", cfg.Addr))

	a, err := app.Build(ctx, cfg)
	if err != nil {
		logger.Fatal(ctx, "build app", zap.Error(err))
	}
	if err := a.Run(ctx); err != nil {
		logger.Fatal(ctx, "run app", zap.Error(err))
	}
}
