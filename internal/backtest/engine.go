package backtest

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"rebalance-backtest/internal/market"
	"rebalance-backtest/internal/portfolio"
)

// PeriodStat 记录单个调仓周期的统计。
type PeriodStat struct {
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Rows       int       `json:"rows"`
	Turnover   float64   `json:"turnover"`
	CostFactor float64   `json:"cost_factor"`
	Return     float64   `json:"return"`
}

// Result 汇总一次复利计算。
type Result struct {
	Series  portfolio.ValueSeries
	Periods []PeriodStat
}

// TotalTurnover 返回全部调仓的换手率之和。
func (r Result) TotalTurnover() float64 {
	total := 0.0
	for _, p := range r.Periods {
		total += p.Turnover
	}
	return total
}

// Engine 按权重计划对日收益做分段复利。
type Engine struct {
	logger *zap.Logger
}

// NewEngine 构建复利引擎。
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

type period struct {
	date     time.Time
	from, to int
}

// Compound 计算组合净值序列。
//
// 第 i 个周期覆盖 [d_i, d_{i+1}) 行，最后一个周期延续到表尾；首个调仓日之前的行不输出。
// 周期内权重只在起点归一化，之后随价格漂移。开启成本时，从第二个周期起，
// 首日因子乘以 1 - 换手率*成本比例，换手率为上一周期末实际权重与新目标权重的绝对差之和。
// 输出除以首值，首值恒为1。
func (e *Engine) Compound(returns market.Table, schedule *portfolio.WeightSchedule, opts Options) (Result, error) {
	if err := opts.validate(); err != nil {
		return Result{}, err
	}
	if schedule == nil || schedule.Len() == 0 {
		return Result{}, ErrEmptySchedule
	}

	periods, err := e.segment(returns, schedule.Dates())
	if err != nil {
		return Result{}, err
	}

	var (
		series   = make(portfolio.ValueSeries, 0, returns.Len())
		stats    = make([]PeriodStat, 0, len(periods))
		value    = 1.0
		previous portfolio.Weights
		started  bool
	)

	for _, p := range periods {
		if p.from >= p.to {
			e.logger.Debug("跳过空周期", zap.Error(fmt.Errorf("%w: %s", ErrEmptyPeriod, p.date.Format(time.DateOnly))))
			continue
		}

		target, _ := schedule.At(p.date)
		weights, ok := target.Normalized()
		if !ok {
			return Result{}, fmt.Errorf("%w: %s", ErrInvalidWeights, p.date.Format(time.DateOnly))
		}

		sim, err := newDrift(weights, returns.Col)
		if err != nil {
			return Result{}, fmt.Errorf("%s: %w", p.date.Format(time.DateOnly), err)
		}

		stat := PeriodStat{
			Start:      returns.Dates[p.from],
			End:        returns.Dates[p.to-1],
			Rows:       p.to - p.from,
			CostFactor: 1,
		}
		if opts.CostRate != nil && started {
			stat.Turnover = Turnover(previous, weights)
			stat.CostFactor = 1 - stat.Turnover*(*opts.CostRate)
		}

		periodStart := value
		prev := 1.0
		for r := p.from; r < p.to; r++ {
			level, err := sim.step(returns.Dates[r], returns.Rows[r])
			if err != nil {
				return Result{}, err
			}

			factor := 1.0
			if prev != 0 {
				factor = level / prev
			}
			if r == p.from {
				factor *= stat.CostFactor
			}
			prev = level

			value *= factor
			series = append(series, portfolio.Point{Date: returns.Dates[r], Value: value})
		}

		stat.Return = value/periodStart - 1
		stats = append(stats, stat)
		previous = sim.realized()
		started = true
	}

	if len(series) == 0 {
		return Result{}, ErrEmptySchedule
	}

	if base := series[0].Value; base != 0 {
		for i := range series {
			series[i].Value /= base
		}
	}

	e.logger.Debug("复利计算完成",
		zap.Int("periods", len(stats)),
		zap.Int("rows", len(series)),
		zap.Float64("final", series.Final()),
	)

	return Result{Series: series, Periods: stats}, nil
}

func (e *Engine) segment(returns market.Table, dates []time.Time) ([]period, error) {
	periods := make([]period, len(dates))
	for i, d := range dates {
		idx, ok := returns.Index(d)
		if !ok {
			return nil, fmt.Errorf("%w: 调仓日 %s 不在收益表中", ErrInputShape, d.Format(time.DateOnly))
		}
		periods[i] = period{date: returns.Dates[idx], from: idx}
		if i > 0 {
			periods[i-1].to = idx
		}
	}
	periods[len(periods)-1].to = returns.Len()
	return periods, nil
}
