package ai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"text/template"

	"rebalance-backtest/internal/report"
)

const commentaryTemplate = `
你是一名资产配置研究员。下面是若干定期再平衡组合的回测统计，收益以小数表示，mdd 为最大回撤（负数）。
年化使用每年 {{ printf "%.0f" .TradingDays }} 个交易日。

回测统计：
{{ .ReportsJSON }}

请完成：
1. 用两三句话总结各组合的收益与风险特征；
2. 指出风险调整后表现最好的组合（按 sharpe 与 mdd 综合判断）；
3. 列出值得注意的亮点与风险，每条不超过一句。

请严格输出唯一的 JSON 对象，格式如下：
{
  "summary": "...",
  "best": "{{ .FirstName }}",
  "highlights": ["..."],
  "risks": ["..."]
}

注意事项：
- best 必须是回测统计中出现的组合名称之一。
- 不要编造统计中没有的数据。
`

var tmpl = template.Must(template.New("commentary").Parse(commentaryTemplate))

// PromptContext 用于渲染提示词。
type PromptContext struct {
	Reports     []report.Report
	ReportsJSON string
	TradingDays float64
	FirstName   string
}

// BuildPrompt 将报告指标渲染成提示词字符串。
func BuildPrompt(reports []report.Report) (string, error) {
	if len(reports) == 0 {
		return "", fmt.Errorf("没有可点评的报告")
	}

	reportsJSONBytes, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return "", fmt.Errorf("序列化报告失败: %w", err)
	}

	ctx := PromptContext{
		Reports:     reports,
		ReportsJSON: string(reportsJSONBytes),
		TradingDays: reports[0].TradingDays,
		FirstName:   reports[0].Name,
	}

	var buf bytes.Buffer
	if err = tmpl.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("渲染提示词失败: %w", err)
	}

	return buf.String(), nil
}
