package backtest

import "errors"

var (
	// ErrInputShape 表示权重计划与收益表的日期或资产不匹配。
	ErrInputShape = errors.New("backtest: 权重计划与收益表不匹配")
	// ErrEmptyPeriod 表示某个调仓周期没有任何交易日。
	ErrEmptyPeriod = errors.New("backtest: 调仓周期为空")
	// ErrEmptySchedule 表示权重计划中没有可用的调仓日。
	ErrEmptySchedule = errors.New("backtest: 权重计划为空")
	// ErrInvalidWeights 表示非零权重之和不为正。
	ErrInvalidWeights = errors.New("backtest: 权重之和必须为正")
	// ErrMissingData 表示持仓资产的收益存在缺失值。
	ErrMissingData = errors.New("backtest: 持仓资产收益缺失")
)
