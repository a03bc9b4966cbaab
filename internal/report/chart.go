package report

import (
	"fmt"
	"math"
	"time"

	charts "github.com/vicanso/go-charts/v2"
)

// ChartMode 控制收益曲线的绘制方式。
type ChartMode int

const (
	// ChartCompound 绘制复利累计收益。
	ChartCompound ChartMode = iota
	// ChartSimple 绘制单利累计收益。
	ChartSimple
	// ChartLog 绘制复利净值的自然对数。
	ChartLog
)

// ChartOptions 为图表尺寸与模式。
type ChartOptions struct {
	Mode   ChartMode
	Width  int
	Height int
}

// ReturnChart 渲染各组合的累计收益曲线（PNG）。
// 组合起点不同时只绘制共同日期，并在共同起点重新基准化。
func ReturnChart(reports []Report, opts ChartOptions) ([]byte, error) {
	dates, offsets, err := commonDates(reports)
	if err != nil {
		return nil, err
	}

	title := "Compound Return"
	values := make([][]float64, len(reports))
	for k, r := range reports {
		off := offsets[k]
		line := make([]float64, len(dates))
		for i := range dates {
			switch opts.Mode {
			case ChartSimple:
				line[i] = (r.SimpleSeries[off+i] - r.SimpleSeries[off]) * 100
			case ChartLog:
				line[i] = math.Log(r.CompoundSeries[off+i] / r.CompoundSeries[off])
			default:
				line[i] = (r.CompoundSeries[off+i]/r.CompoundSeries[off] - 1) * 100
			}
		}
		values[k] = line
	}
	switch opts.Mode {
	case ChartSimple:
		title = "Simple Return (%)"
	case ChartLog:
		title = "Log Compound Return"
	default:
		title += " (%)"
	}

	return render(title, dates, names(reports), values, opts.Width, opts.Height)
}

// DrawdownChart 渲染各组合的回撤曲线（百分比）。
func DrawdownChart(reports []Report, opts ChartOptions) ([]byte, error) {
	dates, offsets, err := commonDates(reports)
	if err != nil {
		return nil, err
	}

	values := make([][]float64, len(reports))
	for k, r := range reports {
		line := make([]float64, len(dates))
		for i := range dates {
			line[i] = r.Drawdown[offsets[k]+i] * 100
		}
		values[k] = line
	}

	height := opts.Height / 2
	if height < 200 {
		height = 200
	}
	return render("Drawdown (%)", dates, names(reports), values, opts.Width, height)
}

func render(title string, dates []time.Time, legend []string, values [][]float64, width, height int) ([]byte, error) {
	if width <= 0 {
		width = 1500
	}
	if height <= 0 {
		height = 450
	}

	labels := make([]string, len(dates))
	for i, d := range dates {
		labels[i] = d.Format(time.DateOnly)
	}
	subtitle := fmt.Sprintf("%s ~ %s", labels[0], labels[len(labels)-1])

	yMin, yMax := bounds(values)
	padding := (yMax - yMin) * 0.05
	if padding == 0 {
		padding = 1
	}
	yMin -= padding
	yMax += padding

	splitNum := 8
	if len(labels) <= 30 {
		splitNum = len(labels) / 3
		if splitNum < 3 {
			splitNum = 3
		}
	}

	p, err := charts.LineRender(
		values,
		charts.TitleTextOptionFunc(title, subtitle),
		charts.XAxisOptionFunc(charts.XAxisOption{
			Data:        labels,
			SplitNumber: splitNum,
			BoundaryGap: charts.FalseFlag(),
		}),
		charts.YAxisOptionFunc(charts.YAxisOption{
			Min:         &yMin,
			Max:         &yMax,
			DivideCount: 5,
		}),
		charts.LegendOptionFunc(charts.LegendOption{Data: legend}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(width),
		charts.HeightOptionFunc(height),
	)
	if err != nil {
		return nil, fmt.Errorf("report: 渲染图表失败: %w", err)
	}

	buf, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("report: 生成图表失败: %w", err)
	}
	return buf, nil
}

// commonDates 返回所有报告共有的日期区间及各报告在其中的起始偏移。
func commonDates(reports []Report) ([]time.Time, []int, error) {
	if len(reports) == 0 {
		return nil, nil, fmt.Errorf("report: 没有可绘制的组合")
	}

	start := reports[0].Start
	end := reports[0].End
	for _, r := range reports[1:] {
		if r.Start.After(start) {
			start = r.Start
		}
		if r.End.Before(end) {
			end = r.End
		}
	}

	var dates []time.Time
	for _, d := range reports[0].Dates {
		if !d.Before(start) && !d.After(end) {
			dates = append(dates, d)
		}
	}
	if len(dates) < 2 {
		return nil, nil, fmt.Errorf("report: 组合之间的共同日期不足")
	}

	offsets := make([]int, len(reports))
	for k, r := range reports {
		off := -1
		for i, d := range r.Dates {
			if d.Equal(dates[0]) {
				off = i
				break
			}
		}
		if off < 0 || off+len(dates) > len(r.Dates) {
			return nil, nil, fmt.Errorf("report: %s 的日期与其他组合不一致", r.Name)
		}
		for i, d := range dates {
			if !r.Dates[off+i].Equal(d) {
				return nil, nil, fmt.Errorf("report: %s 的日期与其他组合不一致", r.Name)
			}
		}
		offsets[k] = off
	}
	return dates, offsets, nil
}

func names(reports []Report) []string {
	out := make([]string, len(reports))
	for i, r := range reports {
		out[i] = r.Name
	}
	return out
}

func bounds(values [][]float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, line := range values {
		for _, v := range line {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	return lo, hi
}
