package backtest

import (
	"fmt"
	"math"
	"time"

	"rebalance-backtest/internal/market"
	"rebalance-backtest/internal/portfolio"
)

// HoldingProfile 返回调仓后第 n 个交易日的平均对数累计收益。
// 统计所有完整周期（不含最后一个）中的持仓资产。调仓日当天收益记为0，
// 因此第0天恒为0，第 n 天累计调仓后第 1..n 天的收益。
// 各天数分别对能覆盖到该天的周期取平均，长度取最长的完整周期。
func HoldingProfile(returns market.Table, schedule *portfolio.WeightSchedule) ([]float64, error) {
	if schedule == nil || schedule.Len() < 2 {
		return nil, nil
	}

	dates := schedule.Dates()
	idx := make([]int, len(dates))
	for i, d := range dates {
		k, ok := returns.Index(d)
		if !ok {
			return nil, fmt.Errorf("%w: 调仓日 %s 不在收益表中", ErrInputShape, d.Format(time.DateOnly))
		}
		idx[i] = k
	}

	var (
		sums   []float64
		counts []int
	)
	for i := 0; i < len(dates)-1; i++ {
		w, _ := schedule.At(dates[i])
		for _, asset := range w.Live() {
			j := returns.Col(asset)
			if j < 0 {
				return nil, fmt.Errorf("%w: 收益表中没有资产 %s", ErrInputShape, asset)
			}
			cum := 1.0
			for n, r := 0, idx[i]; r < idx[i+1]; n, r = n+1, r+1 {
				if r > idx[i] {
					cum *= 1 + returns.Rows[r][j]
				}
				logCum := math.Log(cum)
				if math.IsNaN(logCum) || math.IsInf(logCum, 0) {
					break
				}
				if n == len(sums) {
					sums = append(sums, 0)
					counts = append(counts, 0)
				}
				sums[n] += logCum
				counts[n]++
			}
		}
	}

	out := make([]float64, len(sums))
	for n := range sums {
		out[n] = sums[n] / float64(counts[n])
	}
	return out, nil
}
