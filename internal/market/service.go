package market

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Cache 持久化各数据源的价格序列。
type Cache interface {
	LoadSeries(ctx context.Context, source, asset string) (Series, bool, error)
	SaveSeries(ctx context.Context, source string, series Series) error
}

// Request 描述一次价格表加载。
type Request struct {
	Assets []string
	Start  time.Time
	End    time.Time
}

// Service 并发拉取多资产价格并按交易日对齐。
type Service struct {
	provider Provider
	cache    Cache
	logger   *zap.Logger
}

// NewService 创建价格服务，cache 可为 nil。
func NewService(provider Provider, cache Cache, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		provider: provider,
		cache:    cache,
		logger:   logger,
	}
}

// LoadPrices 返回请求资产的价格表，仅保留全部资产都有报价的交易日。
func (s *Service) LoadPrices(ctx context.Context, req Request) (Table, error) {
	if s.provider == nil {
		return Table{}, fmt.Errorf("market: provider 不能为空")
	}
	if len(req.Assets) == 0 {
		return Table{}, fmt.Errorf("market: 资产列表为空")
	}

	series := make([]Series, len(req.Assets))
	group, groupCtx := errgroup.WithContext(ctx)

	for i, asset := range req.Assets {
		group.Go(func() error {
			data, err := s.fetch(groupCtx, asset, req.Start, req.End)
			if err != nil {
				return fmt.Errorf("获取 %s 价格失败: %w", asset, err)
			}
			series[i] = data
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return Table{}, err
	}

	table, err := Align(series...)
	if err != nil {
		return Table{}, err
	}

	s.logger.Info("价格表加载完成",
		zap.String("source", s.provider.Name()),
		zap.Strings("assets", table.Assets),
		zap.Int("rows", table.Len()),
		zap.Time("first", table.Dates[0]),
		zap.Time("last", table.Dates[table.Len()-1]),
	)
	return table, nil
}

func (s *Service) fetch(ctx context.Context, asset string, start, end time.Time) (Series, error) {
	source := s.provider.Name()
	if s.cache != nil {
		cached, ok, err := s.cache.LoadSeries(ctx, source, asset)
		if err != nil {
			s.logger.Warn("读取价格缓存失败", zap.String("asset", asset), zap.Error(err))
		} else if ok && covers(cached, start, end) {
			s.logger.Debug("命中价格缓存", zap.String("asset", asset), zap.Int("count", cached.Len()))
			return cached.Between(start, end), nil
		}
	}

	data, err := s.provider.Fetch(ctx, asset, start, end)
	if err != nil {
		return Series{}, err
	}

	if s.cache != nil && data.Len() > 0 {
		if err := s.cache.SaveSeries(ctx, source, data); err != nil {
			s.logger.Warn("写入价格缓存失败", zap.String("asset", asset), zap.Error(err))
		}
	}
	return data, nil
}

// covers 判断缓存是否覆盖请求区间；未指定终点时要求缓存包含最近一周。
func covers(s Series, start, end time.Time) bool {
	if s.Len() == 0 {
		return false
	}
	first := s.Dates[0]
	last := s.Dates[s.Len()-1]
	if !start.IsZero() && first.After(start.AddDate(0, 0, 7)) {
		return false
	}
	if end.IsZero() {
		return !last.Before(time.Now().UTC().AddDate(0, 0, -7))
	}
	return !last.Before(end.AddDate(0, 0, -7))
}
