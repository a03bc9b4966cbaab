package market

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

var csvDateLayouts = []string{time.DateOnly, "2006/01/02", "20060102", time.RFC3339}

// CSVProvider 从宽表 CSV 读取价格：首列为日期，其余每列一个资产。
type CSVProvider struct {
	path string

	once  sync.Once
	table Table
	err   error
}

// NewCSVProvider 创建 CSV 数据源。
func NewCSVProvider(path string) *CSVProvider {
	return &CSVProvider{path: path}
}

func (p *CSVProvider) Name() string {
	return "csv"
}

// Fetch 返回指定资产的列，文件只解析一次。
func (p *CSVProvider) Fetch(ctx context.Context, asset string, start, end time.Time) (Series, error) {
	if err := ctx.Err(); err != nil {
		return Series{}, err
	}
	p.once.Do(func() {
		p.table, p.err = p.load()
	})
	if p.err != nil {
		return Series{}, p.err
	}

	values, err := p.table.Column(asset)
	if err != nil {
		return Series{}, err
	}
	return Series{Asset: asset, Dates: p.table.Dates, Values: values}.Between(start, end), nil
}

// Assets 返回文件中的全部资产列。
func (p *CSVProvider) Assets() ([]string, error) {
	p.once.Do(func() {
		p.table, p.err = p.load()
	})
	if p.err != nil {
		return nil, p.err
	}
	return append([]string(nil), p.table.Assets...), nil
}

func (p *CSVProvider) load() (Table, error) {
	f, err := os.Open(p.path)
	if err != nil {
		return Table{}, fmt.Errorf("market: 打开 CSV 失败: %w", err)
	}
	defer f.Close()
	return ParseCSV(f)
}

// ParseCSV 解析宽表 CSV，空白或无法解析的价格记为 NaN。
func ParseCSV(r io.Reader) (Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Table{}, fmt.Errorf("market: CSV 为空")
		}
		return Table{}, fmt.Errorf("market: 读取 CSV 表头失败: %w", err)
	}
	if len(header) < 2 {
		return Table{}, fmt.Errorf("market: CSV 至少需要日期列和一个资产列")
	}
	assets := make([]string, len(header)-1)
	for j, name := range header[1:] {
		assets[j] = strings.TrimSpace(name)
	}

	var (
		dates []time.Time
		rows  [][]float64
	)
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Table{}, fmt.Errorf("market: 读取 CSV 第 %d 行失败: %w", line, err)
		}

		date, err := parseCSVDate(record[0])
		if err != nil {
			return Table{}, fmt.Errorf("market: CSV 第 %d 行日期非法: %w", line, err)
		}
		row := make([]float64, len(assets))
		for j := range assets {
			row[j] = math.NaN()
			if j+1 >= len(record) {
				continue
			}
			raw := strings.ReplaceAll(strings.TrimSpace(record[j+1]), ",", "")
			if raw == "" {
				continue
			}
			if v, parseErr := strconv.ParseFloat(raw, 64); parseErr == nil {
				row[j] = v
			}
		}
		dates = append(dates, date)
		rows = append(rows, row)
	}

	return NewTable(dates, assets, rows)
}

func parseCSVDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range csvDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("无法识别的日期 %q", raw)
}
