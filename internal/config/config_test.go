package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimalYAML = `
data:
  source: csv
  csv_path: testdata/prices.csv
strategies:
  - name: sixty_forty
    hold: Q
    offset: -5
    fit: Q
    allocator: constant
    weights:
      SPY: 0.6
      TLT: 0.4
    cost: 0.001
  - name: equal
    hold: M
    offset: -1
    fit: "20"
    allocator: equal
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("写入配置失败: %v", err)
	}
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.App.Environment != "development" {
		t.Errorf("unexpected environment %q", cfg.App.Environment)
	}
	if cfg.Data.Retry.MaxAttempts != 5 {
		t.Errorf("expected default retry attempts 5, got %d", cfg.Data.Retry.MaxAttempts)
	}
	if cfg.Data.Retry.MinDelay != 500*time.Millisecond {
		t.Errorf("expected default min delay 500ms, got %s", cfg.Data.Retry.MinDelay)
	}
	if cfg.Batch.Workers != 4 {
		t.Errorf("expected default workers 4, got %d", cfg.Batch.Workers)
	}
	if len(cfg.Strategies) != 2 {
		t.Fatalf("expected 2 strategies, got %d", len(cfg.Strategies))
	}
	first := cfg.Strategies[0]
	if first.Cost == nil || *first.Cost != 0.001 {
		t.Errorf("expected cost 0.001, got %v", first.Cost)
	}
	// viper 会将 map 键统一转为小写
	if got := first.Weights["spy"]; got != 0.6 {
		t.Errorf("expected spy weight 0.6, got %v", first.Weights)
	}
	if cfg.Strategies[1].Cost != nil {
		t.Errorf("expected nil cost for second strategy, got %v", *cfg.Strategies[1].Cost)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestValidate_AggregatesErrors(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	cost := 1.5
	cfg.Data.Source = "ftp"
	cfg.Batch.Workers = 0
	cfg.Strategies[1].Allocator = "magic"
	cfg.Strategies[0].Cost = &cost

	err = cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{"data.source", "batch.workers", "allocator", "cost"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected %q in error, got %s", want, msg)
		}
	}
}

func TestValidate_MomentumNeedsTopN(t *testing.T) {
	s := StrategyConfig{Name: "m", Hold: "M", Fit: "20", Allocator: "momentum"}
	if err := s.validate(0); err == nil || !strings.Contains(err.Error(), "top_n") {
		t.Fatalf("expected top_n error, got %v", err)
	}
	s.TopN = 2
	if err := s.validate(0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
