package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"rebalance-backtest/internal/config"
	"rebalance-backtest/internal/store"
)

// App 聚合核心依赖并驱动系统生命周期。
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *store.Store
}

// New 创建 App 实例。
func New(cfg *config.Config, logger *zap.Logger, store *store.Store) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{
		cfg:    cfg,
		logger: logger,
		store:  store,
	}
}

// Run 执行一次回测并输出报告；配置了 server.port 时继续提供查询接口直到收到退出信号。
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("回测系统已初始化",
		zap.String("environment", a.cfg.App.Environment),
		zap.String("source", a.cfg.Data.Source),
		zap.Strings("assets", a.cfg.Data.Assets),
		zap.Int("strategies", len(a.cfg.Strategies)),
	)

	orch, err := newOrchestrator(a.cfg, a.logger, a.store)
	if err != nil {
		return err
	}

	out, err := orch.Execute(ctx)
	if err != nil {
		return err
	}

	if err := writeOutputs(a.cfg.Report, out, a.logger); err != nil {
		return fmt.Errorf("输出报告失败: %w", err)
	}

	if a.cfg.Server.Port <= 0 {
		return nil
	}

	if err := startMonitorServer(ctx, orch.Monitor(), a.cfg.Server.Port, a.logger); err != nil {
		return err
	}

	<-ctx.Done()
	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("系统异常退出: %w", err)
	}
	a.logger.Info("系统收到退出信号，正在停止")
	return nil
}
