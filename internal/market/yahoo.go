package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const yahooBaseURL = "https://query1.finance.yahoo.com"

type yahooChartResp struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// YahooProvider 通过 Yahoo chart 接口获取日线收盘价（优先复权价）。
type YahooProvider struct {
	http    *httpFetcher
	baseURL string
	logger  *zap.Logger
}

// NewYahooProvider 创建 Yahoo 数据源。
func NewYahooProvider(fetcher *httpFetcher, logger *zap.Logger) *YahooProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &YahooProvider{http: fetcher, baseURL: yahooBaseURL, logger: logger}
}

func (p *YahooProvider) Name() string {
	return "yahoo"
}

// Fetch 拉取 [start, end] 的日线，start 为零时从 1900 年开始。
func (p *YahooProvider) Fetch(ctx context.Context, asset string, start, end time.Time) (Series, error) {
	if start.IsZero() {
		start = time.Date(1900, 12, 31, 0, 0, 0, 0, time.UTC)
	}
	if end.IsZero() {
		end = time.Now().UTC().AddDate(0, 0, 3)
	}

	q := url.Values{}
	q.Set("period1", fmt.Sprintf("%d", start.Unix()))
	q.Set("period2", fmt.Sprintf("%d", end.AddDate(0, 0, 1).Unix()))
	q.Set("interval", "1d")
	q.Set("events", "div,split")
	fullURL := fmt.Sprintf("%s/v8/finance/chart/%s?%s", strings.TrimRight(p.baseURL, "/"), url.PathEscape(asset), q.Encode())

	body, err := p.http.get(ctx, "yahoo_chart_"+asset, fullURL, nil)
	if err != nil {
		return Series{}, err
	}

	series, err := parseYahooChart(asset, body)
	if err != nil {
		return Series{}, err
	}

	p.logger.Debug("Yahoo 日线获取完成",
		zap.String("asset", asset),
		zap.Int("count", series.Len()),
	)
	return series.Between(start, end), nil
}

func parseYahooChart(asset string, body []byte) (Series, error) {
	var resp yahooChartResp
	if err := json.Unmarshal(body, &resp); err != nil {
		return Series{}, fmt.Errorf("market: 解析 Yahoo 响应失败: %w", err)
	}
	if resp.Chart.Error != nil {
		return Series{}, fmt.Errorf("market: Yahoo 返回错误 %s: %s", resp.Chart.Error.Code, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return Series{}, fmt.Errorf("%w: %s", ErrNoData, asset)
	}

	result := resp.Chart.Result[0]
	var closes []*float64
	if len(result.Indicators.AdjClose) > 0 && len(result.Indicators.AdjClose[0].AdjClose) > 0 {
		closes = result.Indicators.AdjClose[0].AdjClose
	} else if len(result.Indicators.Quote) > 0 {
		closes = result.Indicators.Quote[0].Close
	}

	series := Series{Asset: asset}
	for i, ts := range result.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		series.Dates = append(series.Dates, time.Unix(ts, 0).UTC())
		series.Values = append(series.Values, *closes[i])
	}
	if series.Len() == 0 {
		return Series{}, fmt.Errorf("%w: %s", ErrNoData, asset)
	}
	return series.normalize(), nil
}
