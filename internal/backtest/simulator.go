package backtest

import (
	"fmt"
	"math"
	"time"

	"rebalance-backtest/internal/portfolio"
)

// drift 跟踪一个周期内各持仓资产自周期起点的复利净值。
type drift struct {
	assets  []string
	cols    []int
	weights []float64
	cum     []float64
}

func newDrift(weights portfolio.Weights, col func(string) int) (*drift, error) {
	assets := weights.Live()
	d := &drift{
		assets:  assets,
		cols:    make([]int, len(assets)),
		weights: make([]float64, len(assets)),
		cum:     make([]float64, len(assets)),
	}
	for k, asset := range assets {
		j := col(asset)
		if j < 0 {
			return nil, fmt.Errorf("%w: 收益表中没有资产 %s", ErrInputShape, asset)
		}
		d.cols[k] = j
		d.weights[k] = weights[asset]
		d.cum[k] = 1
	}
	return d, nil
}

// step 推进一个交易日，返回加权后的组合净值 S(t)。无持仓时恒为1。
func (d *drift) step(date time.Time, row []float64) (float64, error) {
	if len(d.assets) == 0 {
		return 1, nil
	}
	total := 0.0
	for k, j := range d.cols {
		r := row[j]
		if math.IsNaN(r) || math.IsInf(r, 0) {
			return 0, fmt.Errorf("%w: %s %s", ErrMissingData, d.assets[k], date.Format(time.DateOnly))
		}
		d.cum[k] *= 1 + r
		total += d.weights[k] * d.cum[k]
	}
	return total, nil
}

// realized 返回周期末按市值计算的实际权重。
func (d *drift) realized() portfolio.Weights {
	out := make(portfolio.Weights, len(d.assets))
	total := 0.0
	for k := range d.assets {
		total += d.weights[k] * d.cum[k]
	}
	if total <= 0 {
		return out
	}
	for k, asset := range d.assets {
		out[asset] = d.weights[k] * d.cum[k] / total
	}
	return out
}

// Turnover 返回两组权重绝对差之和。
func Turnover(from, to portfolio.Weights) float64 {
	total := 0.0
	for asset, w := range from {
		total += math.Abs(w - to[asset])
	}
	for asset, w := range to {
		if _, ok := from[asset]; !ok {
			total += math.Abs(w)
		}
	}
	return total
}
