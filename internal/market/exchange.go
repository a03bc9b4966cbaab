package market

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	ccxt "github.com/ccxt/ccxt/go/v4"
	"go.uber.org/zap"

	"rebalance-backtest/internal/config"
)

const dailyTimeframe = "1d"

type ohlcvFetcher interface {
	FetchOHLCV(symbol string, options ...ccxt.FetchOHLCVOptions) ([]ccxt.OHLCV, error)
}

// ExchangeProvider 通过 ccxt 获取加密货币日线收盘价。
type ExchangeProvider struct {
	cfg         config.ExchangeConfig
	logger      *zap.Logger
	retry       *Retry
	exchange    ohlcvFetcher
	loadMarkets func() error

	marketsMu     sync.Mutex
	marketsLoaded bool
}

// NewExchangeProvider 构造交易所数据源，目前支持 Binance USDⓈ-M。
func NewExchangeProvider(cfg config.ExchangeConfig, retry *Retry, logger *zap.Logger) (*ExchangeProvider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retry == nil {
		retry = NewRetry(config.RetryConfig{}, logger)
	}
	if !strings.EqualFold(cfg.Name, "binanceusdm") {
		return nil, fmt.Errorf("market: 不支持的交易所 %q", cfg.Name)
	}

	userConfig := map[string]interface{}{
		"enableRateLimit": true,
		"options": map[string]interface{}{
			"adjustForTimeDifference": true,
			"defaultType":             "future",
		},
	}
	if cfg.APIKey != "" {
		userConfig["apiKey"] = cfg.APIKey
	}
	if cfg.APISecret != "" {
		userConfig["secret"] = cfg.APISecret
	}

	ex := ccxt.NewBinanceusdm(userConfig)
	if cfg.UseSandbox {
		ex.SetSandboxMode(true)
	}

	return &ExchangeProvider{
		cfg:      cfg,
		logger:   logger,
		retry:    retry,
		exchange: ex,
		loadMarkets: func() error {
			_, err := ex.LoadMarkets()
			return err
		},
	}, nil
}

func (p *ExchangeProvider) Name() string {
	return "exchange:" + strings.ToLower(p.cfg.Name)
}

// Fetch 获取最近 limit 根日线收盘价并按 [start, end] 过滤。
func (p *ExchangeProvider) Fetch(ctx context.Context, asset string, start, end time.Time) (Series, error) {
	limit := int64(p.cfg.Limit)
	if limit <= 0 {
		limit = 1000
	}

	var raw []ccxt.OHLCV
	err := p.retry.Do(ctx, "fetch_ohlcv_"+asset, func() error {
		if err := p.ensureMarketsLoaded(ctx); err != nil {
			return err
		}

		result, err := p.exchange.FetchOHLCV(
			asset,
			ccxt.WithFetchOHLCVTimeframe(dailyTimeframe),
			ccxt.WithFetchOHLCVLimit(limit),
		)
		if err != nil {
			return err
		}

		raw = result
		return nil
	})
	if err != nil {
		return Series{}, err
	}

	series := Series{Asset: asset}
	for _, item := range raw {
		series.Dates = append(series.Dates, time.UnixMilli(item.Timestamp).UTC())
		series.Values = append(series.Values, item.Close)
	}
	if series.Len() == 0 {
		return Series{}, fmt.Errorf("%w: %s", ErrNoData, asset)
	}

	p.logger.Debug("交易所日线获取完成",
		zap.String("asset", asset),
		zap.Int("count", series.Len()),
	)
	return series.normalize().Between(start, end), nil
}

func (p *ExchangeProvider) ensureMarketsLoaded(ctx context.Context) error {
	p.marketsMu.Lock()
	defer p.marketsMu.Unlock()

	if p.marketsLoaded {
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.loadMarkets(); err != nil {
		return err
	}

	p.marketsLoaded = true
	p.logger.Info("已完成市场元数据加载", zap.String("exchange", p.cfg.Name))
	return nil
}
