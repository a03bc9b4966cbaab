package market

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

const naverBaseURL = "https://fchart.stock.naver.com"

// NaverProvider 通过 Naver fchart 接口获取韩国市场日线收盘价。
type NaverProvider struct {
	http    *httpFetcher
	baseURL string
	count   int
	logger  *zap.Logger
}

// NewNaverProvider 创建 Naver 数据源。
func NewNaverProvider(fetcher *httpFetcher, logger *zap.Logger) *NaverProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NaverProvider{http: fetcher, baseURL: naverBaseURL, count: 4000, logger: logger}
}

func (p *NaverProvider) Name() string {
	return "naver"
}

// Fetch 拉取最近 count 个交易日，再按 [start, end] 过滤。
func (p *NaverProvider) Fetch(ctx context.Context, asset string, start, end time.Time) (Series, error) {
	fullURL := fmt.Sprintf("%s/sise.nhn?symbol=%s&timeframe=day&count=%d&requestType=0",
		strings.TrimRight(p.baseURL, "/"), asset, p.count)

	header := http.Header{}
	header.Set("Referer", "https://finance.naver.com/")

	body, err := p.http.get(ctx, "naver_sise_"+asset, fullURL, header)
	if err != nil {
		return Series{}, err
	}

	series, err := parseNaverSise(asset, body)
	if err != nil {
		return Series{}, err
	}

	p.logger.Debug("Naver 日线获取完成",
		zap.String("asset", asset),
		zap.Int("count", series.Len()),
	)
	return series.Between(start, end), nil
}

// parseNaverSise 解析 <item data="YYYYMMDD|open|high|low|close|volume"/> 列表。
func parseNaverSise(asset string, body []byte) (Series, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Series{}, fmt.Errorf("market: 解析 Naver 响应失败: %w", err)
	}

	series := Series{Asset: asset}
	doc.Find("item").Each(func(_ int, item *goquery.Selection) {
		data, ok := item.Attr("data")
		if !ok {
			return
		}
		fields := strings.Split(data, "|")
		if len(fields) < 5 {
			return
		}
		date, err := time.Parse("20060102", strings.TrimSpace(fields[0]))
		if err != nil {
			return
		}
		closePrice, err := strconv.ParseFloat(strings.TrimSpace(fields[4]), 64)
		if err != nil {
			return
		}
		series.Dates = append(series.Dates, date)
		series.Values = append(series.Values, closePrice)
	})

	if series.Len() == 0 {
		return Series{}, fmt.Errorf("%w: %s", ErrNoData, asset)
	}
	return series.normalize(), nil
}
