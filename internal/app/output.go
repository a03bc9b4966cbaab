package app

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"rebalance-backtest/internal/backtest"
	"rebalance-backtest/internal/config"
	"rebalance-backtest/internal/report"
)

// writeOutputs 将报告表格、持有期统计与图表写入输出目录。
func writeOutputs(cfg config.ReportConfig, out *outcome, logger *zap.Logger) error {
	dir := cfg.OutputDir
	if dir == "" {
		dir = "reports"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("创建输出目录 %q 失败: %w", dir, err)
	}

	var buf bytes.Buffer
	buf.WriteString("# Rebalance Backtest\n\n")
	if err := report.WriteTable(&buf, out.reports); err != nil {
		return err
	}
	for _, res := range out.results {
		profile, err := backtest.HoldingProfile(out.returns, res.Weights)
		if err != nil {
			logger.Warn("计算持有期收益失败", zap.String("strategy", res.Strategy), zap.Error(err))
			continue
		}
		if err := report.WriteProfile(&buf, res.Strategy, profile); err != nil {
			return err
		}
	}
	if out.commentary != nil {
		buf.WriteString(out.commentary.Markdown())
	}

	files := map[string][]byte{"report.md": buf.Bytes()}

	if cfg.Charts && len(out.reports) > 0 {
		mode := report.ChartCompound
		switch {
		case cfg.LogScale:
			mode = report.ChartLog
		case cfg.Simple:
			mode = report.ChartSimple
		}
		opts := report.ChartOptions{Mode: mode, Width: cfg.Width, Height: cfg.Height}

		returnsPNG, err := report.ReturnChart(out.reports, opts)
		if err != nil {
			return err
		}
		drawdownPNG, err := report.DrawdownChart(out.reports, opts)
		if err != nil {
			return err
		}
		files["returns.png"] = returnsPNG
		files["drawdown.png"] = drawdownPNG
	}

	for name, data := range files {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("写入 %s 失败: %w", path, err)
		}
		logger.Info("报告已输出", zap.String("path", path))
	}
	return nil
}
