package backtest

import (
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"rebalance-backtest/internal/allocation"
	"rebalance-backtest/internal/market"
	"rebalance-backtest/internal/portfolio"
	"rebalance-backtest/internal/schedule"
)

// Strategy 描述一个定期调仓策略。
type Strategy struct {
	Name     string
	Hold     schedule.Periodicity
	Offset   int
	Window   allocation.Window
	Allocate allocation.Func
	Options  Options
}

// Outcome 为策略运行结果。
type Outcome struct {
	Strategy string
	Weights  *portfolio.WeightSchedule
	Result
}

// Run 依次执行调仓日计算、窗口分组与复利计算。
// 在整个计划中权重始终为0的资产列会在复利前剔除。
func (e *Engine) Run(returns market.Table, s Strategy) (Outcome, error) {
	if s.Window == nil || s.Allocate == nil {
		return Outcome{}, fmt.Errorf("backtest: 策略 %s 缺少窗口或分配函数", s.Name)
	}
	logger := e.logger.With(zap.String("strategy", s.Name))

	dates, skipped := schedule.Plan(returns.Dates, s.Hold, s.Offset)
	if skipped != nil {
		logger.Debug("部分周期没有调仓日",
			zap.Int("skipped", len(multierr.Errors(skipped))),
			zap.Error(skipped),
		)
	}

	weights, err := allocation.NewGrouper(s.Window, logger).Group(returns, dates, s.Allocate)
	if err != nil {
		return Outcome{}, fmt.Errorf("策略 %s: %w", s.Name, err)
	}
	if weights.Len() == 0 {
		return Outcome{}, fmt.Errorf("策略 %s: %w", s.Name, ErrEmptySchedule)
	}

	held, err := returns.Select(weights.Assets())
	if err != nil {
		return Outcome{}, fmt.Errorf("策略 %s: %w: %v", s.Name, ErrInputShape, err)
	}

	result, err := e.Compound(held, weights, s.Options)
	if err != nil {
		return Outcome{}, fmt.Errorf("策略 %s: %w", s.Name, err)
	}

	logger.Info("策略回测完成",
		zap.Int("rebalances", weights.Len()),
		zap.Strings("assets", held.Assets),
		zap.Float64("final", result.Series.Final()),
		zap.Float64("turnover", result.TotalTurnover()),
	)

	return Outcome{Strategy: s.Name, Weights: weights, Result: result}, nil
}
