package ai

import (
	"errors"
	"fmt"
	"strings"
)

// Commentary 表示大模型对回测报告的点评。
type Commentary struct {
	Summary    string   `json:"summary"`
	Best       string   `json:"best"`
	Highlights []string `json:"highlights"`
	Risks      []string `json:"risks"`
}

// Validate 校验点评内容。
func (c *Commentary) Validate(names []string) error {
	c.Summary = strings.TrimSpace(c.Summary)
	if c.Summary == "" {
		return errors.New("点评 summary 不能为空")
	}
	c.Best = strings.TrimSpace(c.Best)
	if c.Best == "" {
		return nil
	}
	for _, name := range names {
		if strings.EqualFold(name, c.Best) {
			c.Best = name
			return nil
		}
	}
	return fmt.Errorf("点评 best=%q 不在组合列表中", c.Best)
}

// Markdown 渲染点评为 Markdown 段落。
func (c Commentary) Markdown() string {
	var b strings.Builder
	b.WriteString("\n## 点评\n\n")
	b.WriteString(c.Summary + "\n")
	if c.Best != "" {
		fmt.Fprintf(&b, "\n最佳组合: **%s**\n", c.Best)
	}
	writeList(&b, "亮点", c.Highlights)
	writeList(&b, "风险", c.Risks)
	return b.String()
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:\n", title)
	for _, item := range items {
		b.WriteString("- " + strings.TrimSpace(item) + "\n")
	}
}
