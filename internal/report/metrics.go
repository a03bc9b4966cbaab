package report

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"rebalance-backtest/internal/portfolio"
)

// DefaultTradingDays 为年份不足时使用的年化交易日数。
const DefaultTradingDays = 250

// Report 记录单个组合的绩效指标与派生序列。
type Report struct {
	Name        string    `json:"name"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	TradingDays float64   `json:"trading_days"`

	Compound    float64 `json:"compound_return"`
	Simple      float64 `json:"simple_return"`
	CAGR        float64 `json:"cagr"`
	Sharpe      float64 `json:"sharpe"`
	MaxDrawdown float64 `json:"mdd"`

	Dates          []time.Time `json:"-"`
	Returns        []float64   `json:"-"`
	CompoundSeries []float64   `json:"-"`
	SimpleSeries   []float64   `json:"-"`
	Drawdown       []float64   `json:"-"`
}

// Compute 由组合净值序列计算报告。
func Compute(name string, series portfolio.ValueSeries) (Report, error) {
	n := len(series)
	if n == 0 {
		return Report{}, fmt.Errorf("report: %s 净值序列为空", name)
	}

	dates := series.Dates()
	values := series.Values()
	returns := pctChange(values)

	r := Report{
		Name:           name,
		Start:          dates[0],
		End:            dates[n-1],
		TradingDays:    TradingDaysPerYear(dates),
		Dates:          dates,
		Returns:        returns,
		CompoundSeries: make([]float64, n),
		SimpleSeries:   make([]float64, n),
		Drawdown:       Drawdown(values),
	}

	compound, simple := 1.0, 1.0
	for i, ret := range returns {
		compound *= 1 + ret
		simple += ret
		r.CompoundSeries[i] = compound
		r.SimpleSeries[i] = simple
	}

	r.Compound = compound
	r.Simple = simple
	r.CAGR = math.Pow(compound, r.TradingDays/float64(n)) - 1
	r.Sharpe = sharpe(returns, r.TradingDays)
	r.MaxDrawdown = minOf(r.Drawdown)
	return r, nil
}

// TradingDaysPerYear 返回年化交易日数：取首尾年份之外各年交易日数的均值，
// 覆盖不超过两个自然年时返回 DefaultTradingDays。
func TradingDaysPerYear(dates []time.Time) float64 {
	var (
		years  []int
		counts = make(map[int]int)
	)
	for _, d := range dates {
		y := d.Year()
		if _, ok := counts[y]; !ok {
			years = append(years, y)
		}
		counts[y]++
	}
	if len(years) <= 2 {
		return DefaultTradingDays
	}

	interior := make([]float64, 0, len(years)-2)
	for _, y := range years[1 : len(years)-1] {
		interior = append(interior, float64(counts[y]))
	}
	return stat.Mean(interior, nil)
}

// Drawdown 返回相对历史最高点的回撤序列（非正数）。
func Drawdown(values []float64) []float64 {
	out := make([]float64, len(values))
	peak := math.Inf(-1)
	for i, v := range values {
		if v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		out[i] = v/peak - 1
	}
	return out
}

// pctChange 计算逐点收益，首个值为0。
func pctChange(values []float64) []float64 {
	out := make([]float64, len(values))
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			continue
		}
		out[i] = values[i]/values[i-1] - 1
	}
	return out
}

// sharpe 为 ((1+均值)^N - 1) / (样本标准差 * sqrt(N))。
func sharpe(returns []float64, tradingDays float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean, std := stat.MeanStdDev(returns, nil)
	if std == 0 || math.IsNaN(std) {
		return 0
	}
	return (math.Pow(1+mean, tradingDays) - 1) / (std * math.Sqrt(tradingDays))
}

func minOf(values []float64) float64 {
	out := 0.0
	for _, v := range values {
		if v < out {
			out = v
		}
	}
	return out
}
