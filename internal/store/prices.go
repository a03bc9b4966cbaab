package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"rebalance-backtest/internal/market"
)

// PriceCache 将各数据源的收盘价缓存在 SQLite 中。
type PriceCache struct {
	store *Store
}

// NewPriceCache 创建价格缓存并初始化表结构。
func NewPriceCache(store *Store) (*PriceCache, error) {
	if store == nil {
		return nil, fmt.Errorf("store: store 不能为空")
	}
	c := &PriceCache{store: store}

	stmt := `
CREATE TABLE IF NOT EXISTS price_history (
	source TEXT NOT NULL,
	asset TEXT NOT NULL,
	date TEXT NOT NULL,
	close REAL NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (source, asset, date)
);
`
	if err := store.Migrate(context.Background(), "price_history_v1", stmt); err != nil {
		return nil, fmt.Errorf("store: 初始化价格表失败: %w", err)
	}
	return c, nil
}

// LoadSeries 读取缓存的价格序列，未缓存时 ok 为 false。
func (c *PriceCache) LoadSeries(ctx context.Context, source, asset string) (market.Series, bool, error) {
	rows, err := c.store.db.QueryContext(ctx,
		`SELECT date, close FROM price_history WHERE source = ? AND asset = ? ORDER BY date`,
		source, asset,
	)
	if err != nil {
		return market.Series{}, false, fmt.Errorf("store: 查询价格失败: %w", err)
	}
	defer rows.Close()

	series := market.Series{Asset: asset}
	for rows.Next() {
		var (
			raw   string
			price float64
		)
		if err := rows.Scan(&raw, &price); err != nil {
			return market.Series{}, false, fmt.Errorf("store: 解析价格失败: %w", err)
		}
		date, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			return market.Series{}, false, fmt.Errorf("store: 解析日期 %q 失败: %w", raw, err)
		}
		series.Dates = append(series.Dates, date)
		series.Values = append(series.Values, price)
	}
	if err := rows.Err(); err != nil {
		return market.Series{}, false, fmt.Errorf("store: 遍历价格失败: %w", err)
	}

	return series, series.Len() > 0, nil
}

// SaveSeries 在一个事务内写入或覆盖价格序列。
func (c *PriceCache) SaveSeries(ctx context.Context, source string, series market.Series) error {
	now := time.Now().UTC().Format(time.RFC3339)
	err := c.store.WithTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT OR REPLACE INTO price_history (source, asset, date, close, updated_at) VALUES (?, ?, ?, ?, ?)`,
		)
		if err != nil {
			return fmt.Errorf("准备写入语句失败: %w", err)
		}
		defer stmt.Close()

		for i, d := range series.Dates {
			if _, err := stmt.ExecContext(ctx, source, series.Asset, d.UTC().Format(time.DateOnly), series.Values[i], now); err != nil {
				return fmt.Errorf("写入价格失败: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store: 缓存 %s/%s 失败: %w", source, series.Asset, err)
	}
	return nil
}
