package portfolio

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

// ErrUnorderedDate 表示调仓日期未严格递增。
var ErrUnorderedDate = errors.New("portfolio: 调仓日期必须严格递增")

// Weights 为单次调仓的目标权重，键为资产代码。
type Weights map[string]float64

// Live 返回非零权重的资产，按代码排序。
func (w Weights) Live() []string {
	assets := make([]string, 0, len(w))
	for asset, v := range w {
		if v != 0 && !math.IsNaN(v) {
			assets = append(assets, asset)
		}
	}
	sort.Strings(assets)
	return assets
}

// Sum 返回非零权重之和。
func (w Weights) Sum() float64 {
	total := 0.0
	for _, asset := range w.Live() {
		total += w[asset]
	}
	return total
}

// Normalized 返回仅包含非零资产且和为1的副本，和不为正时返回 false。
func (w Weights) Normalized() (Weights, bool) {
	live := w.Live()
	if len(live) == 0 {
		return Weights{}, true
	}
	total := w.Sum()
	if total <= 0 {
		return nil, false
	}
	out := make(Weights, len(live))
	for _, asset := range live {
		out[asset] = w[asset] / total
	}
	return out, true
}

// Clone 返回权重副本。
func (w Weights) Clone() Weights {
	out := make(Weights, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

// WeightSchedule 保存有序的调仓日期及对应目标权重。
type WeightSchedule struct {
	dates   []time.Time
	weights map[time.Time]Weights
}

// NewWeightSchedule 创建空的权重计划。
func NewWeightSchedule() *WeightSchedule {
	return &WeightSchedule{weights: make(map[time.Time]Weights)}
}

// Add 追加一个调仓日期，日期必须晚于已有的最后一个日期。
func (s *WeightSchedule) Add(date time.Time, w Weights) error {
	date = Day(date)
	if n := len(s.dates); n > 0 && !date.After(s.dates[n-1]) {
		return fmt.Errorf("%w: %s 不晚于 %s", ErrUnorderedDate, date.Format(time.DateOnly), s.dates[n-1].Format(time.DateOnly))
	}
	s.dates = append(s.dates, date)
	s.weights[date] = w.Clone()
	return nil
}

// Dates 返回调仓日期副本。
func (s *WeightSchedule) Dates() []time.Time {
	return append([]time.Time(nil), s.dates...)
}

// At 返回指定调仓日的权重。
func (s *WeightSchedule) At(date time.Time) (Weights, bool) {
	w, ok := s.weights[Day(date)]
	return w, ok
}

// Len 返回调仓次数。
func (s *WeightSchedule) Len() int {
	return len(s.dates)
}

// Assets 返回计划中出现过非零权重的资产。
func (s *WeightSchedule) Assets() []string {
	set := make(map[string]struct{})
	for _, w := range s.weights {
		for _, asset := range w.Live() {
			set[asset] = struct{}{}
		}
	}
	assets := make([]string, 0, len(set))
	for asset := range set {
		assets = append(assets, asset)
	}
	sort.Strings(assets)
	return assets
}

// Point 为净值序列中的一个点。
type Point struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// ValueSeries 为按日期升序的组合净值，首值为1。
type ValueSeries []Point

// Values 返回净值数组。
func (s ValueSeries) Values() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Value
	}
	return out
}

// Dates 返回日期数组。
func (s ValueSeries) Dates() []time.Time {
	out := make([]time.Time, len(s))
	for i, p := range s {
		out[i] = p.Date
	}
	return out
}

// Final 返回最后一个净值，序列为空时返回 NaN。
func (s ValueSeries) Final() float64 {
	if len(s) == 0 {
		return math.NaN()
	}
	return s[len(s)-1].Value
}

// Day 将时间截断到 UTC 零点，作为交易日的统一键。
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
