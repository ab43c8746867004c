package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"okra/internal/app"
	"okra/internal/config"
	"okra/internal/logger"
)

// 入口程序：
// 1) 加载 TOML 配置（路径可由 OKRA_CONFIG 指定）
// 2) 组装应用（行情源、AI、模拟盘、通知、归档、HTTP）
// 3) 按调度配置运行分析循环，Ctrl+C 优雅退出
func main() {
	cfgPath := os.Getenv("OKRA_CONFIG")
	if cfgPath == "" {
		cfgPath = "configs/config.toml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("读取配置失败: %v", err)
	}

	application, err := app.NewApp(cfg)
	if err != nil {
		log.Fatalf("初始化失败: %v", err)
	}
	logger.Infof("✓ 配置加载成功（环境=%s，行情源=%s）", cfg.App.Env, cfg.Exchange.Name)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Errorf("运行异常退出: %v", err)
		os.Exit(1)
	}
	logger.Infof("已退出")
}
