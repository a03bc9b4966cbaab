package market

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"rebalance-backtest/internal/config"
)

// Provider 按资产提供收盘价序列。
type Provider interface {
	Name() string
	Fetch(ctx context.Context, asset string, start, end time.Time) (Series, error)
}

// NewProvider 根据 data.source 构造数据源。
func NewProvider(data config.DataConfig, exchange config.ExchangeConfig, logger *zap.Logger) (Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	retry := NewRetry(data.Retry, logger)

	switch strings.ToLower(data.Source) {
	case config.SourceCSV:
		return NewCSVProvider(data.CSVPath), nil
	case config.SourceYahoo:
		return NewYahooProvider(newHTTPFetcher(data, retry), logger), nil
	case config.SourceNaver:
		return NewNaverProvider(newHTTPFetcher(data, retry), logger), nil
	case config.SourceExchange:
		return NewExchangeProvider(exchange, retry, logger)
	default:
		return nil, fmt.Errorf("market: 不支持的数据源 %q", data.Source)
	}
}

// httpFetcher 为网页类数据源提供限速与重试的 GET 请求。
type httpFetcher struct {
	client  *http.Client
	limiter *rate.Limiter
	retry   *Retry
}

func newHTTPFetcher(data config.DataConfig, retry *Retry) *httpFetcher {
	timeout := data.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if data.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(data.RateLimit), 1)
	}
	return &httpFetcher{
		client:  &http.Client{Timeout: timeout},
		limiter: limiter,
		retry:   retry,
	}
}

func (f *httpFetcher) get(ctx context.Context, operation, url string, header http.Header) ([]byte, error) {
	var body []byte
	err := f.retry.Do(ctx, operation, func() error {
		if err := f.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("创建请求失败: %w", err)
		}
		req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}

		resp, err := f.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			_, _ = io.Copy(io.Discard, resp.Body)
			return &StatusError{URL: url, Code: resp.StatusCode}
		}

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("读取响应失败: %w", err)
		}
		body = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}
