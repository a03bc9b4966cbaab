package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"rebalance-backtest/internal/backtest"
	"rebalance-backtest/internal/config"
	"rebalance-backtest/internal/market"
	"rebalance-backtest/internal/report"
	"rebalance-backtest/internal/store"
)

func newService(t *testing.T) *Service {
	t.Helper()
	s, err := store.NewSQLite(config.DatabaseConfig{InMemory: true})
	if err != nil {
		t.Fatalf("NewSQLite returned error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	svc, err := NewService(s, nil)
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}
	return svc
}

func TestService_SaveAndListRuns(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	started := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	for i, name := range []string{"first", "second"} {
		run := Run{
			StartedAt: started.Add(time.Duration(i) * time.Minute),
			Source:    "yahoo",
			Assets:    []string{"SPY", "TLT"},
			Reports:   []report.Report{{Name: name, CAGR: 0.1, MaxDrawdown: -0.2}},
		}
		if _, err := svc.SaveRun(ctx, run); err != nil {
			t.Fatalf("SaveRun returned error: %v", err)
		}
	}

	runs, err := svc.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns returned error: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].Reports[0].Name != "second" {
		t.Errorf("runs should be newest first, got %s", runs[0].Reports[0].Name)
	}
	if !runs[1].StartedAt.Equal(started) || len(runs[1].Assets) != 2 {
		t.Errorf("unexpected run %+v", runs[1])
	}
}

func TestService_RecordEvents(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	table, err := market.NewTable([]time.Time{time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)}, []string{"SPY"}, [][]float64{{470}})
	if err != nil {
		t.Fatalf("NewTable returned error: %v", err)
	}
	svc.RecordPrices(ctx, "yahoo", table)
	svc.RecordStrategy(ctx, report.Report{Name: "Q"}, []backtest.PeriodStat{{Rows: 20, Turnover: 0.1, CostFactor: 0.9999}})
	svc.RecordError(ctx, "加载失败", errors.New("boom"), nil)

	events, err := svc.ListEvents(ctx, EventStrategy, 10)
	if err != nil {
		t.Fatalf("ListEvents returned error: %v", err)
	}
	if len(events) != 1 || events[0].Type != EventStrategy {
		t.Fatalf("unexpected events %+v", events)
	}

	var payload StrategyPayload
	raw, ok := events[0].Payload.(json.RawMessage)
	if !ok {
		t.Fatalf("payload should be raw json, got %T", events[0].Payload)
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Report.Name != "Q" || payload.Periods[0].Rows != 20 {
		t.Errorf("unexpected payload %+v", payload)
	}

	all, err := svc.ListEvents(ctx, "", 10)
	if err != nil {
		t.Fatalf("ListEvents returned error: %v", err)
	}
	if len(all) != 3 || all[0].Type != EventError {
		t.Errorf("expected 3 events newest first, got %+v", all)
	}
}
