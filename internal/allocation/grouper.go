package allocation

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"rebalance-backtest/internal/market"
	"rebalance-backtest/internal/portfolio"
	"rebalance-backtest/internal/schedule"
)

// ErrUnknownDate 表示调仓日不在收益表索引中。
var ErrUnknownDate = errors.New("allocation: 调仓日不在收益表中")

// Func 根据窗口数据给出目标权重，实现不得修改窗口内容。
type Func func(window market.Table) (portfolio.Weights, error)

// Bound 为某个调仓日对应的窗口行区间 [From, To)。
type Bound struct {
	Date time.Time
	From int
	To   int
}

// Window 决定每个调仓日使用哪些历史行。
type Window interface {
	Bounds(table market.Table, dates []time.Time) ([]Bound, error)
}

type calendarWindow struct {
	unit schedule.Periodicity
}

// CalendarWindow 以上一个调仓日之后到当前调仓日（含）为窗口。
// 距表头不足一个周期单位的调仓日被丢弃。
func CalendarWindow(unit schedule.Periodicity) Window {
	return calendarWindow{unit: unit}
}

func (w calendarWindow) Bounds(table market.Table, dates []time.Time) ([]Bound, error) {
	if table.Len() == 0 {
		return nil, nil
	}
	warmup := w.unit.Add(table.Dates[0], 1)

	var (
		out  []Bound
		prev = -1
	)
	for _, d := range dates {
		idx, ok := table.Index(d)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownDate, d.Format(time.DateOnly))
		}
		from := prev + 1
		prev = idx
		if !table.Dates[idx].After(warmup) {
			continue
		}
		out = append(out, Bound{Date: table.Dates[idx], From: from, To: idx + 1})
	}
	return out, nil
}

type fixedWindow struct {
	size int
}

// FixedWindow 以调仓日（含）结尾的最近 size 行为窗口，历史不足时丢弃。
func FixedWindow(size int) Window {
	return fixedWindow{size: size}
}

func (w fixedWindow) Bounds(table market.Table, dates []time.Time) ([]Bound, error) {
	if w.size <= 0 {
		return nil, fmt.Errorf("allocation: 窗口长度必须为正数，当前 %d", w.size)
	}
	var out []Bound
	for _, d := range dates {
		idx, ok := table.Index(d)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownDate, d.Format(time.DateOnly))
		}
		from := idx + 1 - w.size
		if from < 0 {
			continue
		}
		out = append(out, Bound{Date: table.Dates[idx], From: from, To: idx + 1})
	}
	return out, nil
}

// Grouper 将收益表切分为调仓窗口并调用分配函数。
type Grouper struct {
	window Window
	logger *zap.Logger
}

// NewGrouper 创建 Grouper。
func NewGrouper(window Window, logger *zap.Logger) *Grouper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Grouper{window: window, logger: logger}
}

// Group 为每个可用调仓日生成目标权重。窗口是收益表的切片视图，不复制数据。
func (g *Grouper) Group(returns market.Table, dates []time.Time, fn Func) (*portfolio.WeightSchedule, error) {
	if fn == nil {
		return nil, fmt.Errorf("allocation: 分配函数不能为空")
	}
	bounds, err := g.window.Bounds(returns, dates)
	if err != nil {
		return nil, err
	}
	if dropped := len(dates) - len(bounds); dropped > 0 {
		g.logger.Debug("历史不足的调仓日已丢弃", zap.Int("dropped", dropped))
	}

	out := portfolio.NewWeightSchedule()
	for _, b := range bounds {
		weights, err := fn(returns.Slice(b.From, b.To))
		if err != nil {
			return nil, fmt.Errorf("allocation: %s 计算权重失败: %w", b.Date.Format(time.DateOnly), err)
		}
		if err := out.Add(b.Date, weights); err != nil {
			return nil, err
		}
	}
	return out, nil
}
