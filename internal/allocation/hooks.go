package allocation

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"rebalance-backtest/internal/indicator"
	"rebalance-backtest/internal/market"
	"rebalance-backtest/internal/portfolio"
)

// Constant 无论窗口如何都返回固定权重。键按资产名匹配，大小写不敏感。
func Constant(weights portfolio.Weights) Func {
	fixed := weights.Clone()
	return func(window market.Table) (portfolio.Weights, error) {
		return resolve(fixed, window.Assets)
	}
}

// EqualWeight 对窗口内所有资产等权分配。
func EqualWeight() Func {
	return func(window market.Table) (portfolio.Weights, error) {
		if len(window.Assets) == 0 {
			return nil, fmt.Errorf("窗口内没有资产")
		}
		out := make(portfolio.Weights, len(window.Assets))
		w := 1 / float64(len(window.Assets))
		for _, asset := range window.Assets {
			out[asset] = w
		}
		return out, nil
	}
}

// InverseVolatility 按窗口内波动率的倒数分配，波动率为0的资产不参与。
func InverseVolatility() Func {
	return func(window market.Table) (portfolio.Weights, error) {
		stats, err := compute(window)
		if err != nil {
			return nil, err
		}
		out := make(portfolio.Weights, len(stats))
		total := 0.0
		for asset, res := range stats {
			if res.Volatility <= 0 {
				continue
			}
			out[asset] = 1 / res.Volatility
			total += out[asset]
		}
		if total == 0 {
			return EqualWeight()(window)
		}
		for asset := range out {
			out[asset] /= total
		}
		return out, nil
	}
}

// Momentum 选取窗口累计收益最高的 topN 个资产等权持有。
func Momentum(topN int) Func {
	return func(window market.Table) (portfolio.Weights, error) {
		if topN <= 0 {
			return nil, fmt.Errorf("topN 必须为正数，当前 %d", topN)
		}
		stats, err := compute(window)
		if err != nil {
			return nil, err
		}

		ranked := make([]string, 0, len(stats))
		for asset := range stats {
			ranked = append(ranked, asset)
		}
		sort.Slice(ranked, func(i, j int) bool {
			mi, mj := stats[ranked[i]].Momentum, stats[ranked[j]].Momentum
			if mi != mj {
				return mi > mj
			}
			return ranked[i] < ranked[j]
		})
		if len(ranked) > topN {
			ranked = ranked[:topN]
		}

		out := make(portfolio.Weights, len(ranked))
		for _, asset := range ranked {
			out[asset] = 1 / float64(len(ranked))
		}
		return out, nil
	}
}

func compute(window market.Table) (map[string]indicator.Result, error) {
	out := make(map[string]indicator.Result, len(window.Assets))
	for _, asset := range window.Assets {
		values, err := window.Column(asset)
		if err != nil {
			return nil, err
		}
		res, err := indicator.Compute(values)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", asset, err)
		}
		out[asset] = res
	}
	return out, nil
}

// resolve 将配置中的权重键映射为窗口中的资产名。
func resolve(weights portfolio.Weights, assets []string) (portfolio.Weights, error) {
	out := make(portfolio.Weights, len(weights))
	for key, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("资产 %s 的权重非法", key)
		}
		name, ok := match(key, assets)
		if !ok {
			return nil, fmt.Errorf("%w: %s", market.ErrUnknownAsset, key)
		}
		out[name] += w
	}
	return out, nil
}

func match(key string, assets []string) (string, bool) {
	for _, asset := range assets {
		if asset == key {
			return asset, true
		}
	}
	for _, asset := range assets {
		if strings.EqualFold(asset, key) {
			return asset, true
		}
	}
	return "", false
}
