package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"rebalance-backtest/internal/ai"
	"rebalance-backtest/internal/backtest"
	"rebalance-backtest/internal/config"
	"rebalance-backtest/internal/market"
	"rebalance-backtest/internal/monitor"
	"rebalance-backtest/internal/report"
	"rebalance-backtest/internal/store"
)

// assetLister 由能够自行枚举资产的数据源实现（如 CSV）。
type assetLister interface {
	Assets() ([]string, error)
}

type orchestrator struct {
	cfg        *config.Config
	provider   market.Provider
	market     *market.Service
	engine     *backtest.Engine
	strategies []backtest.Strategy
	ai         *ai.Client
	monitor    *monitor.Service
	logger     *zap.Logger
}

// outcome 为一次完整回测的产物。
type outcome struct {
	run        monitor.Run
	returns    market.Table
	results    []backtest.Outcome
	reports    []report.Report
	commentary *ai.Commentary
}

func newOrchestrator(cfg *config.Config, logger *zap.Logger, st *store.Store) (*orchestrator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	strategies, err := buildStrategies(cfg.Strategies)
	if err != nil {
		return nil, fmt.Errorf("解析策略失败: %w", err)
	}

	provider, err := market.NewProvider(cfg.Data, cfg.Exchange, logger)
	if err != nil {
		return nil, fmt.Errorf("初始化数据源失败: %w", err)
	}

	var cache market.Cache
	if cfg.Data.Cache && !strings.EqualFold(cfg.Data.Source, config.SourceCSV) {
		priceCache, err := store.NewPriceCache(st)
		if err != nil {
			return nil, fmt.Errorf("初始化价格缓存失败: %w", err)
		}
		cache = priceCache
	}

	monitorSvc, err := monitor.NewService(st, logger)
	if err != nil {
		return nil, fmt.Errorf("初始化监控服务失败: %w", err)
	}

	var aiClient *ai.Client
	if cfg.Report.Commentary {
		aiClient, err = ai.NewClient(cfg.OpenAI, logger)
		if err != nil {
			return nil, fmt.Errorf("初始化AI客户端失败: %w", err)
		}
	}

	return &orchestrator{
		cfg:        cfg,
		provider:   provider,
		market:     market.NewService(provider, cache, logger),
		engine:     backtest.NewEngine(logger),
		strategies: strategies,
		ai:         aiClient,
		monitor:    monitorSvc,
		logger:     logger,
	}, nil
}

func (o *orchestrator) Monitor() *monitor.Service {
	return o.monitor
}

// Execute 加载价格、运行全部策略并生成报告。
func (o *orchestrator) Execute(ctx context.Context) (*outcome, error) {
	started := time.Now().UTC()

	req, err := o.request()
	if err != nil {
		return nil, err
	}

	prices, err := o.market.LoadPrices(ctx, req)
	if err != nil {
		o.monitor.RecordError(ctx, "加载价格失败", err, map[string]interface{}{"source": o.provider.Name()})
		return nil, fmt.Errorf("加载价格失败: %w", err)
	}
	o.monitor.RecordPrices(ctx, o.provider.Name(), prices)

	returns := market.DailyReturns(prices)
	results, err := o.engine.RunBatch(ctx, returns, o.strategies, o.cfg.Batch.Workers)
	if err != nil {
		o.monitor.RecordError(ctx, "策略回测失败", err, nil)
		return nil, fmt.Errorf("策略回测失败: %w", err)
	}

	out := &outcome{returns: returns, results: results}
	for _, res := range results {
		rep, err := report.Compute(res.Strategy, res.Series)
		if err != nil {
			return nil, err
		}
		out.reports = append(out.reports, rep)
		o.monitor.RecordStrategy(ctx, rep, res.Periods)

		o.logger.Info("策略绩效",
			zap.String("strategy", rep.Name),
			zap.String("cagr", report.Percent(rep.CAGR)),
			zap.Float64("sharpe", rep.Sharpe),
			zap.String("mdd", report.Percent(rep.MaxDrawdown)),
		)
	}

	if o.ai != nil {
		commentary, err := o.ai.Comment(ctx, out.reports)
		if err != nil {
			// 点评失败不影响回测结果
			o.logger.Warn("生成点评失败", zap.Error(err))
			o.monitor.RecordError(ctx, "生成点评失败", err, nil)
		} else {
			out.commentary = &commentary
			o.monitor.RecordCommentary(ctx, commentary)
		}
	}

	out.run = monitor.Run{
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
		Source:     o.provider.Name(),
		Assets:     prices.Assets,
		Reports:    out.reports,
	}
	if out.commentary != nil {
		out.run.Commentary = out.commentary.Summary
	}
	id, err := o.monitor.SaveRun(ctx, out.run)
	if err != nil {
		o.logger.Warn("保存回测记录失败", zap.Error(err))
	}
	out.run.ID = id

	return out, nil
}

func (o *orchestrator) request() (market.Request, error) {
	req := market.Request{Assets: o.cfg.Data.Assets}
	if o.cfg.Data.Start != "" {
		start, err := time.Parse(time.DateOnly, o.cfg.Data.Start)
		if err != nil {
			return market.Request{}, fmt.Errorf("解析 data.start 失败: %w", err)
		}
		req.Start = start
	}
	if o.cfg.Data.End != "" {
		end, err := time.Parse(time.DateOnly, o.cfg.Data.End)
		if err != nil {
			return market.Request{}, fmt.Errorf("解析 data.end 失败: %w", err)
		}
		req.End = end
	}

	if len(req.Assets) == 0 {
		lister, ok := o.provider.(assetLister)
		if !ok {
			return market.Request{}, fmt.Errorf("数据源 %s 需要配置 data.assets", o.provider.Name())
		}
		assets, err := lister.Assets()
		if err != nil {
			return market.Request{}, err
		}
		req.Assets = assets
	}
	return req, nil
}
