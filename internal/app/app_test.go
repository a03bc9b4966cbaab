package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"rebalance-backtest/internal/allocation"
	"rebalance-backtest/internal/config"
	"rebalance-backtest/internal/monitor"
	"rebalance-backtest/internal/schedule"
	"rebalance-backtest/internal/store"
)

func cost(v float64) *float64 { return &v }

func TestBuildStrategies_ParsesConfig(t *testing.T) {
	strategies, err := buildStrategies([]config.StrategyConfig{
		{Name: "Q", Hold: "Q", Offset: -1, Fit: "M", Allocator: "constant", Weights: map[string]float64{"spy": 0.6, "tlt": 0.4}, Cost: cost(0.001)},
		{Name: "mom", Hold: "m", Offset: 0, Fit: "60", Allocator: "momentum", TopN: 1},
		{Name: "equal", Hold: "W", Allocator: "equal"},
	})
	if err != nil {
		t.Fatalf("buildStrategies returned error: %v", err)
	}
	if len(strategies) != 3 {
		t.Fatalf("expected 3 strategies, got %d", len(strategies))
	}
	if strategies[0].Hold != schedule.Quarterly || strategies[0].Offset != -1 {
		t.Errorf("unexpected schedule for %s: %+v", strategies[0].Name, strategies[0])
	}
	if strategies[0].Options.CostRate == nil || *strategies[0].Options.CostRate != 0.001 {
		t.Errorf("cost rate not propagated")
	}
	if strategies[1].Window != allocation.FixedWindow(60) {
		t.Errorf("numeric fit should build fixed window, got %#v", strategies[1].Window)
	}
	if strategies[2].Window != allocation.CalendarWindow(schedule.Weekly) {
		t.Errorf("empty fit should follow hold periodicity, got %#v", strategies[2].Window)
	}
}

func TestBuildStrategies_CollectsErrors(t *testing.T) {
	_, err := buildStrategies([]config.StrategyConfig{
		{Name: "bad-hold", Hold: "X", Allocator: "equal"},
		{Name: "bad-fit", Hold: "M", Fit: "-5", Allocator: "equal"},
		{Name: "bad-alloc", Hold: "M", Allocator: "random"},
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	for _, name := range []string{"bad-hold", "bad-fit", "bad-alloc"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error should mention %s: %v", name, err)
		}
	}
}

// writePrices 写入从 2023-01-02 起的工作日价格 CSV。
func writePrices(t *testing.T, dir string, days int) string {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("Date,SPY,TLT\n")
	d := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := 0; i < days; {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			spy := 100 * math.Exp(0.0004*float64(i)+0.01*math.Sin(float64(i)/5))
			tlt := 80 * math.Exp(0.0001*float64(i)+0.005*math.Cos(float64(i)/7))
			fmt.Fprintf(&buf, "%s,%.4f,%.4f\n", d.Format(time.DateOnly), spy, tlt)
			i++
		}
		d = d.AddDate(0, 0, 1)
	}
	path := filepath.Join(dir, "prices.csv")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		App:  config.AppConfig{Environment: "test"},
		Data: config.DataConfig{Source: config.SourceCSV, CSVPath: writePrices(t, dir, 300)},
		Strategies: []config.StrategyConfig{
			{Name: "balanced", Hold: "M", Offset: -1, Fit: "M", Allocator: "constant", Weights: map[string]float64{"SPY": 0.6, "TLT": 0.4}, Cost: cost(0.001)},
			{Name: "invvol", Hold: "Q", Offset: 0, Fit: "40", Allocator: "inverse_volatility"},
		},
		Batch:  config.BatchConfig{Workers: 2},
		Report: config.ReportConfig{OutputDir: filepath.Join(dir, "out"), Charts: true, Width: 600, Height: 300},
	}
}

func newStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.NewSQLite(config.DatabaseConfig{InMemory: true})
	if err != nil {
		t.Fatalf("NewSQLite returned error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAppRun_WritesReports(t *testing.T) {
	cfg := testConfig(t)
	st := newStore(t)

	if err := New(cfg, nil, st).Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	md, err := os.ReadFile(filepath.Join(cfg.Report.OutputDir, "report.md"))
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	for _, want := range []string{"| balanced |", "| invvol |", "Compound_Return"} {
		if !strings.Contains(string(md), want) {
			t.Errorf("report missing %q:\n%s", want, md)
		}
	}
	for _, name := range []string{"returns.png", "drawdown.png"} {
		info, err := os.Stat(filepath.Join(cfg.Report.OutputDir, name))
		if err != nil || info.Size() == 0 {
			t.Errorf("expected chart %s, err=%v", name, err)
		}
	}

	svc, err := monitor.NewService(st, nil)
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}
	runs, err := svc.ListRuns(context.Background(), 5)
	if err != nil {
		t.Fatalf("ListRuns returned error: %v", err)
	}
	if len(runs) != 1 || len(runs[0].Reports) != 2 || runs[0].Source != "csv" {
		t.Fatalf("unexpected runs %+v", runs)
	}
	if len(runs[0].Assets) != 2 {
		t.Errorf("csv source should discover assets, got %v", runs[0].Assets)
	}
}

func TestOrchestratorExecute_RejectsBadDate(t *testing.T) {
	cfg := testConfig(t)
	cfg.Data.Start = "2023/01/01"

	orch, err := newOrchestrator(cfg, nil, newStore(t))
	if err != nil {
		t.Fatalf("newOrchestrator returned error: %v", err)
	}
	if _, err := orch.Execute(context.Background()); err == nil {
		t.Fatalf("expected error for malformed start date")
	}
}

func TestMonitorMux_ServesRuns(t *testing.T) {
	st := newStore(t)
	svc, err := monitor.NewService(st, nil)
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}
	if _, err := svc.SaveRun(context.Background(), monitor.Run{StartedAt: time.Now().UTC(), Source: "yahoo"}); err != nil {
		t.Fatalf("SaveRun returned error: %v", err)
	}

	srv := httptest.NewServer(newMonitorMux(svc, zap.NewNop()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/runs?limit=5")
	if err != nil {
		t.Fatalf("GET /runs: %v", err)
	}
	defer resp.Body.Close()

	var runs []monitor.Run
	if err := json.NewDecoder(resp.Body).Decode(&runs); err != nil {
		t.Fatalf("decode runs: %v", err)
	}
	if len(runs) != 1 || runs[0].Source != "yahoo" {
		t.Errorf("unexpected runs %+v", runs)
	}
}

func TestParseLimit(t *testing.T) {
	cases := map[string]int{"": 20, "abc": 20, "-1": 20, "50": 50, "5000": 1000}
	for raw, want := range cases {
		if got := parseLimit(raw, 20); got != want {
			t.Errorf("parseLimit(%q) = %d, want %d", raw, got, want)
		}
	}
}
