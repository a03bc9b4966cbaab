package app

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/multierr"

	"rebalance-backtest/internal/allocation"
	"rebalance-backtest/internal/backtest"
	"rebalance-backtest/internal/config"
	"rebalance-backtest/internal/portfolio"
	"rebalance-backtest/internal/schedule"
)

// buildStrategies 将配置转换为可运行的策略，所有配置错误合并返回。
func buildStrategies(cfgs []config.StrategyConfig) ([]backtest.Strategy, error) {
	var (
		out  = make([]backtest.Strategy, 0, len(cfgs))
		errs error
	)
	for _, c := range cfgs {
		s, err := buildStrategy(c)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("策略 %s: %w", c.Name, err))
			continue
		}
		out = append(out, s)
	}
	if errs != nil {
		return nil, errs
	}
	return out, nil
}

func buildStrategy(c config.StrategyConfig) (backtest.Strategy, error) {
	hold, err := schedule.ParsePeriodicity(c.Hold)
	if err != nil {
		return backtest.Strategy{}, err
	}

	window, err := parseWindow(c.Fit, hold)
	if err != nil {
		return backtest.Strategy{}, err
	}

	var allocate allocation.Func
	switch strings.ToLower(c.Allocator) {
	case "constant":
		allocate = allocation.Constant(portfolio.Weights(c.Weights))
	case "equal":
		allocate = allocation.EqualWeight()
	case "inverse_volatility":
		allocate = allocation.InverseVolatility()
	case "momentum":
		allocate = allocation.Momentum(c.TopN)
	default:
		return backtest.Strategy{}, fmt.Errorf("未知分配方式 %q", c.Allocator)
	}

	return backtest.Strategy{
		Name:     c.Name,
		Hold:     hold,
		Offset:   c.Offset,
		Window:   window,
		Allocate: allocate,
		Options:  backtest.Options{CostRate: c.Cost},
	}, nil
}

// parseWindow 解析 fit：整数为固定行数窗口，否则为日历周期，留空沿用调仓周期。
func parseWindow(fit string, hold schedule.Periodicity) (allocation.Window, error) {
	fit = strings.TrimSpace(fit)
	if fit == "" {
		return allocation.CalendarWindow(hold), nil
	}
	if n, err := strconv.Atoi(fit); err == nil {
		if n <= 0 {
			return nil, fmt.Errorf("fit 窗口必须为正数，当前 %d", n)
		}
		return allocation.FixedWindow(n), nil
	}
	unit, err := schedule.ParsePeriodicity(fit)
	if err != nil {
		return nil, err
	}
	return allocation.CalendarWindow(unit), nil
}
