package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"

	"rebalance-backtest/internal/portfolio"
)

// ErrOffsetOutOfRange 表示偏移量超出某个周期内的交易日数量，该周期不产生调仓日。
var ErrOffsetOutOfRange = errors.New("schedule: 偏移量超出周期范围")

// Periodicity 为日历周期单位。
type Periodicity string

const (
	Daily     Periodicity = "D"
	Weekly    Periodicity = "W"
	Monthly   Periodicity = "M"
	Quarterly Periodicity = "Q"
	Yearly    Periodicity = "Y"
)

// ParsePeriodicity 解析 D/W/M/Q/Y 或对应英文单词，大小写不敏感。
func ParsePeriodicity(raw string) (Periodicity, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "d", "day", "daily":
		return Daily, nil
	case "w", "week", "weekly":
		return Weekly, nil
	case "m", "month", "monthly":
		return Monthly, nil
	case "q", "quarter", "quarterly":
		return Quarterly, nil
	case "y", "a", "year", "yearly", "annual":
		return Yearly, nil
	default:
		return "", fmt.Errorf("schedule: 未知周期 %q", raw)
	}
}

// Bucket 返回日期所属周期的起始日。周以周一开始。
func (p Periodicity) Bucket(t time.Time) time.Time {
	t = portfolio.Day(t)
	switch p {
	case Weekly:
		shift := (int(t.Weekday()) + 6) % 7
		return t.AddDate(0, 0, -shift)
	case Monthly:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	case Quarterly:
		month := time.Month((int(t.Month())-1)/3*3 + 1)
		return time.Date(t.Year(), month, 1, 0, 0, 0, 0, time.UTC)
	case Yearly:
		return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	default:
		return t
	}
}

// Add 将日期向后推 n 个周期单位。
func (p Periodicity) Add(t time.Time, n int) time.Time {
	switch p {
	case Weekly:
		return t.AddDate(0, 0, 7*n)
	case Monthly:
		return t.AddDate(0, n, 0)
	case Quarterly:
		return t.AddDate(0, 3*n, 0)
	case Yearly:
		return t.AddDate(n, 0, 0)
	default:
		return t.AddDate(0, 0, n)
	}
}

// Plan 按周期分桶，每桶取第 offset 个交易日（负数从末尾计，-1 为最后一个）。
// 偏移越界的桶被跳过，跳过原因以合并错误的形式返回，不影响已选出的日期。
func Plan(dates []time.Time, unit Periodicity, offset int) ([]time.Time, error) {
	var (
		out     []time.Time
		skipped error
	)

	for start := 0; start < len(dates); {
		key := unit.Bucket(dates[start])
		end := start + 1
		for end < len(dates) && unit.Bucket(dates[end]).Equal(key) {
			end++
		}

		size := end - start
		idx := offset
		if idx < 0 {
			idx += size
		}
		if idx < 0 || idx >= size {
			skipped = multierr.Append(skipped, fmt.Errorf("%w: %s 周期共 %d 个交易日，偏移 %d",
				ErrOffsetOutOfRange, key.Format(time.DateOnly), size, offset))
		} else {
			out = append(out, portfolio.Day(dates[start+idx]))
		}
		start = end
	}

	return out, skipped
}

// RebalanceDates 返回调仓日列表，越界的周期被静默跳过。
func RebalanceDates(dates []time.Time, unit Periodicity, offset int) []time.Time {
	out, _ := Plan(dates, unit, offset)
	return out
}
