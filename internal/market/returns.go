package market

import (
	"fmt"
	"math"
	"sort"
	"time"

	"rebalance-backtest/internal/portfolio"
)

// DailyReturns 由价格表计算逐日百分比收益，首行约定为0。
// 前一日价格为0时该格为 NaN，由调用方决定是否使用该资产。
func DailyReturns(prices Table) Table {
	rows := make([][]float64, prices.Len())
	for i := range prices.Rows {
		row := make([]float64, len(prices.Assets))
		if i > 0 {
			prev := prices.Rows[i-1]
			cur := prices.Rows[i]
			for j := range row {
				if prev[j] == 0 {
					row[j] = math.NaN()
					continue
				}
				row[j] = cur[j]/prev[j] - 1
			}
		}
		rows[i] = row
	}
	return Table{
		Dates:  prices.Dates,
		Assets: prices.Assets,
		Rows:   rows,
		cols:   prices.cols,
	}
}

// Series 为单个资产的收盘价序列。
type Series struct {
	Asset  string
	Dates  []time.Time
	Values []float64
}

// Len 返回序列长度。
func (s Series) Len() int {
	return len(s.Values)
}

// Between 过滤出 [start, end] 范围内的点，零值表示不限制。
func (s Series) Between(start, end time.Time) Series {
	out := Series{Asset: s.Asset}
	for i, d := range s.Dates {
		if !start.IsZero() && d.Before(start) {
			continue
		}
		if !end.IsZero() && d.After(end) {
			continue
		}
		out.Dates = append(out.Dates, d)
		out.Values = append(out.Values, s.Values[i])
	}
	return out
}

// normalize 按日期排序、去重（同一日保留最后一条）并丢弃非正或非有限价格。
func (s Series) normalize() Series {
	type point struct {
		date  time.Time
		value float64
	}
	points := make([]point, 0, len(s.Values))
	for i, v := range s.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			continue
		}
		points = append(points, point{date: portfolio.Day(s.Dates[i]), value: v})
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].date.Before(points[j].date) })

	out := Series{Asset: s.Asset}
	for _, p := range points {
		if n := len(out.Dates); n > 0 && out.Dates[n-1].Equal(p.date) {
			out.Values[n-1] = p.value
			continue
		}
		out.Dates = append(out.Dates, p.date)
		out.Values = append(out.Values, p.value)
	}
	return out
}

// Align 以日期交集合并多条序列为价格表，列顺序与入参一致。
func Align(series ...Series) (Table, error) {
	if len(series) == 0 {
		return Table{}, fmt.Errorf("market: 没有可合并的序列")
	}

	cleaned := make([]Series, len(series))
	lookups := make([]map[time.Time]float64, len(series))
	assets := make([]string, len(series))
	for k, s := range series {
		cleaned[k] = s.normalize()
		assets[k] = s.Asset
		m := make(map[time.Time]float64, cleaned[k].Len())
		for i, d := range cleaned[k].Dates {
			m[d] = cleaned[k].Values[i]
		}
		lookups[k] = m
	}

	var (
		dates []time.Time
		rows  [][]float64
	)
	for i, d := range cleaned[0].Dates {
		row := make([]float64, len(series))
		row[0] = cleaned[0].Values[i]
		complete := true
		for k := 1; k < len(series); k++ {
			v, ok := lookups[k][d]
			if !ok {
				complete = false
				break
			}
			row[k] = v
		}
		if complete {
			dates = append(dates, d)
			rows = append(rows, row)
		}
	}

	if len(dates) == 0 {
		return Table{}, fmt.Errorf("market: 序列之间没有共同交易日")
	}
	return NewTable(dates, assets, rows)
}
