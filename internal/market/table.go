package market

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"rebalance-backtest/internal/portfolio"
)

var (
	// ErrUnsortedDates 表示日期索引未严格递增。
	ErrUnsortedDates = errors.New("market: 日期索引必须严格递增")
	// ErrShape 表示行列数量不一致。
	ErrShape = errors.New("market: 表格形状不一致")
	// ErrUnknownAsset 表示请求的资产不在表中。
	ErrUnknownAsset = errors.New("market: 资产不存在")
)

// Table 为按交易日排列的资产数值表（价格或日收益率）。
// Rows[i][j] 对应 Dates[i] 与 Assets[j]，创建后视为只读。
type Table struct {
	Dates  []time.Time
	Assets []string
	Rows   [][]float64

	cols map[string]int
}

// NewTable 校验并创建 Table。日期会被截断到 UTC 零点。
func NewTable(dates []time.Time, assets []string, rows [][]float64) (Table, error) {
	if len(dates) != len(rows) {
		return Table{}, fmt.Errorf("%w: %d 个日期对应 %d 行", ErrShape, len(dates), len(rows))
	}
	normalized := make([]time.Time, len(dates))
	for i, d := range dates {
		normalized[i] = portfolio.Day(d)
		if i > 0 && !normalized[i].After(normalized[i-1]) {
			return Table{}, fmt.Errorf("%w: 第 %d 行 %s", ErrUnsortedDates, i, normalized[i].Format(time.DateOnly))
		}
		if len(rows[i]) != len(assets) {
			return Table{}, fmt.Errorf("%w: 第 %d 行有 %d 列，期望 %d", ErrShape, i, len(rows[i]), len(assets))
		}
	}

	cols := make(map[string]int, len(assets))
	for j, asset := range assets {
		if _, dup := cols[asset]; dup {
			return Table{}, fmt.Errorf("%w: 资产重复 %s", ErrShape, asset)
		}
		cols[asset] = j
	}

	return Table{
		Dates:  normalized,
		Assets: append([]string(nil), assets...),
		Rows:   rows,
		cols:   cols,
	}, nil
}

// Len 返回行数。
func (t Table) Len() int {
	return len(t.Dates)
}

// Col 返回资产所在列，不存在时返回 -1。
func (t Table) Col(asset string) int {
	if t.cols != nil {
		if j, ok := t.cols[asset]; ok {
			return j
		}
		return -1
	}
	for j, a := range t.Assets {
		if a == asset {
			return j
		}
	}
	return -1
}

// Column 复制出单个资产的整列数据。
func (t Table) Column(asset string) ([]float64, error) {
	j := t.Col(asset)
	if j < 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAsset, asset)
	}
	out := make([]float64, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[j]
	}
	return out, nil
}

// Index 二分查找日期所在行。
func (t Table) Index(date time.Time) (int, bool) {
	date = portfolio.Day(date)
	i := sort.Search(len(t.Dates), func(i int) bool { return !t.Dates[i].Before(date) })
	if i < len(t.Dates) && t.Dates[i].Equal(date) {
		return i, true
	}
	return i, false
}

// Slice 返回 [from, to) 行的视图，与原表共享底层数组。
func (t Table) Slice(from, to int) Table {
	return Table{
		Dates:  t.Dates[from:to:to],
		Assets: t.Assets,
		Rows:   t.Rows[from:to:to],
		cols:   t.cols,
	}
}

// Between 返回日期位于 [start, end] 的视图，零值表示不限制。
func (t Table) Between(start, end time.Time) Table {
	from := 0
	if !start.IsZero() {
		from, _ = t.Index(start)
	}
	to := t.Len()
	if !end.IsZero() {
		i, found := t.Index(end)
		if found {
			i++
		}
		to = i
	}
	if from > to {
		from = to
	}
	return t.Slice(from, to)
}

// Select 按给定顺序复制出部分资产列。
func (t Table) Select(assets []string) (Table, error) {
	idx := make([]int, len(assets))
	for k, asset := range assets {
		j := t.Col(asset)
		if j < 0 {
			return Table{}, fmt.Errorf("%w: %s", ErrUnknownAsset, asset)
		}
		idx[k] = j
	}
	rows := make([][]float64, len(t.Rows))
	for i, row := range t.Rows {
		out := make([]float64, len(idx))
		for k, j := range idx {
			out[k] = row[j]
		}
		rows[i] = out
	}
	return NewTable(t.Dates, assets, rows)
}
