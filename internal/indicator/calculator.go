package indicator

import (
	"fmt"

	talib "github.com/markcheno/go-talib"
)

// Result 为单个资产在一个窗口内的统计。
type Result struct {
	// Volatility 为窗口内日收益的总体标准差。
	Volatility float64
	// Momentum 为窗口内的累计收益（小数）。
	Momentum float64
	// Observations 为窗口长度。
	Observations int
}

// Compute 计算一段日收益的波动率与动量，窗口至少需要两个观测值。
func Compute(returns []float64) (Result, error) {
	n := len(returns)
	if n < 2 {
		return Result{}, fmt.Errorf("计算指标失败: 需要至少 2 个观测值，实际 %d", n)
	}
	if !finite(returns) {
		return Result{}, fmt.Errorf("计算指标失败: 收益序列包含非有限值")
	}

	return Result{
		Volatility:   Volatility(returns),
		Momentum:     Momentum(returns),
		Observations: n,
	}, nil
}

// Volatility 返回整段收益的标准差（总体口径）。
func Volatility(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	std := talib.StdDev(returns, len(returns), 1)
	return Last(std)
}

// Momentum 返回整段收益复利后的累计涨跌幅。
func Momentum(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	roc := talib.Roc(Index(returns), len(returns))
	return Last(roc) / 100
}
