package report

import (
	"fmt"
	"io"
	"strings"
	"time"
)

var tableColumns = []string{"Portfolio", "Period", "Compound_Return", "CAGR", "Sharpe Ratio", "MDD"}

// WriteTable 以 Markdown 表格输出各组合指标，CAGR 与 MDD 以百分比显示。
func WriteTable(w io.Writer, reports []Report) error {
	var b strings.Builder
	b.WriteString("| " + strings.Join(tableColumns, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(tableColumns)) + "\n")

	for _, r := range reports {
		cells := []string{
			r.Name,
			fmt.Sprintf("%s ~ %s", r.Start.Format(time.DateOnly), r.End.Format(time.DateOnly)),
			fmt.Sprintf("%.4f", r.Compound),
			Percent(r.CAGR),
			fmt.Sprintf("%.4f", r.Sharpe),
			Percent(r.MaxDrawdown),
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteProfile 输出调仓后第 n 日的平均对数收益。
func WriteProfile(w io.Writer, name string, profile []float64) error {
	if len(profile) == 0 {
		return nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "\n### %s 持有期收益\n\n| n | mean log return |\n| --- | --- |\n", name)
	for n, v := range profile {
		fmt.Fprintf(&b, "| %d | %.6f |\n", n, v)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// Percent 将小数格式化为两位小数的百分比。
func Percent(x float64) string {
	return fmt.Sprintf("%.2f%%", x*100)
}
