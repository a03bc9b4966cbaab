package backtest

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"rebalance-backtest/internal/allocation"
	"rebalance-backtest/internal/market"
	"rebalance-backtest/internal/portfolio"
	"rebalance-backtest/internal/schedule"
)

// dailyReturns 生成 2024-01-01 起连续 n 个自然日的三资产收益表。
func dailyReturns(t *testing.T, n int) market.Table {
	t.Helper()
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = []float64{
			0.001 * float64(i%7-3),
			0.0005 * float64(i%4-1),
			0.002 * float64(i%5-2),
		}
	}
	return mustTable(t, []string{"SPY", "TLT", "GLD"}, rows)
}

func TestEngineRun_ConstantStrategyDropsUnusedAssets(t *testing.T) {
	returns := dailyReturns(t, 120)
	s := Strategy{
		Name:     "balanced",
		Hold:     schedule.Monthly,
		Offset:   -1,
		Window:   allocation.CalendarWindow(schedule.Monthly),
		Allocate: allocation.Constant(portfolio.Weights{"spy": 0.6, "tlt": 0.4, "gld": 0}),
		Options:  Options{CostRate: CostRate(0.001)},
	}

	out, err := NewEngine(nil).Run(returns, s)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if out.Strategy != "balanced" {
		t.Errorf("unexpected strategy name %s", out.Strategy)
	}
	// 1 月末历史不足被丢弃，剩余 2、3、4 月末
	if out.Weights.Len() != 3 {
		t.Fatalf("expected 3 rebalances, got %d", out.Weights.Len())
	}
	if assets := out.Weights.Assets(); len(assets) != 2 {
		t.Errorf("zero-weight asset should be dropped, got %v", assets)
	}
	if out.Series[0].Value != 1 || !out.Series[0].Date.Equal(date(2024, 2, 29)) {
		t.Errorf("series should start at first rebalance, got %+v", out.Series[0])
	}
	if len(out.Periods) != 3 {
		t.Errorf("expected 3 periods, got %d", len(out.Periods))
	}
}

func TestEngineRun_RequiresHook(t *testing.T) {
	if _, err := NewEngine(nil).Run(dailyReturns(t, 10), Strategy{Name: "empty"}); err == nil {
		t.Fatalf("expected error for strategy without hook")
	}
}

func TestEngineRun_NoUsableDates(t *testing.T) {
	s := Strategy{
		Name:     "too-short",
		Hold:     schedule.Yearly,
		Offset:   -1,
		Window:   allocation.FixedWindow(500),
		Allocate: allocation.EqualWeight(),
	}
	_, err := NewEngine(nil).Run(dailyReturns(t, 30), s)
	if !errors.Is(err, ErrEmptySchedule) {
		t.Fatalf("expected ErrEmptySchedule, got %v", err)
	}
}

func TestRunBatch_PreservesOrder(t *testing.T) {
	returns := dailyReturns(t, 200)
	strategies := []Strategy{
		{Name: "equal", Hold: schedule.Monthly, Offset: -1, Window: allocation.FixedWindow(20), Allocate: allocation.EqualWeight()},
		{Name: "invvol", Hold: schedule.Monthly, Offset: -1, Window: allocation.FixedWindow(30), Allocate: allocation.InverseVolatility()},
		{Name: "mom", Hold: schedule.Quarterly, Offset: 0, Window: allocation.FixedWindow(40), Allocate: allocation.Momentum(1), Options: Options{CostRate: CostRate(0.002)}},
	}

	outcomes, err := NewEngine(nil).RunBatch(context.Background(), returns, strategies, 2)
	if err != nil {
		t.Fatalf("RunBatch returned error: %v", err)
	}
	if len(outcomes) != len(strategies) {
		t.Fatalf("expected %d outcomes, got %d", len(strategies), len(outcomes))
	}
	for i, o := range outcomes {
		if o.Strategy != strategies[i].Name {
			t.Errorf("outcome %d: expected %s, got %s", i, strategies[i].Name, o.Strategy)
		}
		if len(o.Series) == 0 || o.Series[0].Value != 1 {
			t.Errorf("outcome %s not normalized", o.Strategy)
		}
	}

	single, err := NewEngine(nil).Run(returns, strategies[1])
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if single.Series.Final() != outcomes[1].Series.Final() {
		t.Errorf("batch result differs from sequential run")
	}
}

func TestRunBatch_PropagatesError(t *testing.T) {
	strategies := []Strategy{
		{Name: "ok", Hold: schedule.Monthly, Offset: -1, Window: allocation.FixedWindow(5), Allocate: allocation.EqualWeight()},
		{Name: "bad", Hold: schedule.Monthly, Offset: -1, Window: allocation.FixedWindow(5), Allocate: allocation.Constant(portfolio.Weights{"XYZ": 1})},
	}
	_, err := NewEngine(nil).RunBatch(context.Background(), dailyReturns(t, 90), strategies, 4)
	if !errors.Is(err, market.ErrUnknownAsset) {
		t.Fatalf("expected ErrUnknownAsset, got %v", err)
	}
}

func TestHoldingProfile_ExcludesLastPeriod(t *testing.T) {
	returns := mustTable(t, []string{"A", "B"}, [][]float64{
		{0.1, 0.5}, {0.1, 0.5}, {0.2, 0.5}, {0.5, 0.5}, {0.5, 0.5},
	})
	d := returns.Dates
	sched := mustSchedule(t, map[time.Time]portfolio.Weights{
		d[0]: {"A": 1},
		d[2]: {"A": 1},
		d[3]: {"A": 1, "B": 1},
	}, d[0], d[2], d[3])

	profile, err := HoldingProfile(returns, sched)
	if err != nil {
		t.Fatalf("HoldingProfile returned error: %v", err)
	}
	if len(profile) != 2 {
		t.Fatalf("expected 2 horizons, got %d", len(profile))
	}
	if profile[0] != 0 {
		t.Errorf("day 0: expected 0, got %f", profile[0])
	}
	// 仅第一个周期覆盖到第1天
	if math.Abs(profile[1]-math.Log(1.1)) > 1e-12 {
		t.Errorf("day 1: expected %f, got %f", math.Log(1.1), profile[1])
	}
}

func TestHoldingProfile_IgnoresRebalanceDayReturn(t *testing.T) {
	returns := mustTable(t, []string{"A"}, [][]float64{{0}, {0.1}, {0.2}, {0.3}, {0.4}})
	d := returns.Dates
	sched := mustSchedule(t, map[time.Time]portfolio.Weights{
		d[1]: {"A": 1},
		d[3]: {"A": 1},
	}, d[1], d[3])

	profile, err := HoldingProfile(returns, sched)
	if err != nil {
		t.Fatalf("HoldingProfile returned error: %v", err)
	}
	if len(profile) != 2 {
		t.Fatalf("expected 2 horizons, got %d", len(profile))
	}
	if profile[0] != 0 {
		t.Errorf("rebalance day should contribute nothing, got %f", profile[0])
	}
	if math.Abs(profile[1]-math.Log(1.2)) > 1e-12 {
		t.Errorf("day 1: expected %f, got %f", math.Log(1.2), profile[1])
	}
}
