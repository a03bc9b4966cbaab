package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"rebalance-backtest/internal/app"
	"rebalance-backtest/internal/config"
	"rebalance-backtest/internal/log"
	"rebalance-backtest/internal/store"
)

func main() {
	var (
		configPath string
		outputDir  string
	)
	flag.StringVar(&configPath, "config", "", "配置文件路径，默认使用 configs/config.yaml")
	flag.StringVar(&outputDir, "output", "", "报告输出目录，覆盖 report.output_dir")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	if outputDir != "" {
		cfg.Report.OutputDir = outputDir
	}

	logger, err := log.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer func(logger *zap.Logger) {
		_ = logger.Sync()
	}(logger)

	sqliteStore, err := store.NewSQLite(cfg.Database)
	if err != nil {
		logger.Error("初始化数据库失败", zap.Error(err))
		os.Exit(1)
	}
	defer func() {
		if closeErr := sqliteStore.Close(); closeErr != nil {
			logger.Warn("关闭数据库失败", zap.Error(closeErr))
		}
	}()

	logger.Info("开始回测",
		zap.String("config", configPath),
		zap.String("output_dir", cfg.Report.OutputDir),
	)

	backtestApp := app.New(cfg, logger, sqliteStore)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := backtestApp.Run(ctx); err != nil {
		logger.Error("回测运行失败", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("回测完成")
}
