package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"rebalance-backtest/internal/config"
	"rebalance-backtest/internal/report"
)

var (
	// ErrNoReports 表示没有可点评的组合。
	ErrNoReports = errors.New("ai: 没有可点评的回测报告")
	// ErrEmptyReply 表示模型没有返回可用内容。
	ErrEmptyReply = errors.New("ai: 模型返回内容为空")
)

const systemPrompt = "你是一名资产配置分析师，只根据给定的回测指标作答，并且只输出一个 JSON 对象。"

// Client 调用聊天模型为回测报告生成点评。
type Client struct {
	model   string
	timeout time.Duration
	logger  *zap.Logger
	sdk     *openai.Client
}

// NewClient 使用给定配置创建点评客户端。
func NewClient(cfg config.OpenAIConfig, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("ai: openai.api_key 不能为空")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	sdkCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		sdkCfg.BaseURL = cfg.BaseURL
	}
	// 上下文超时先于 HTTP 超时触发
	sdkCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout + 5*time.Second}

	return &Client{
		model:   cfg.Model,
		timeout: cfg.Timeout,
		logger:  logger.With(zap.String("component", "commentary"), zap.String("model", cfg.Model)),
		sdk:     openai.NewClientWithConfig(sdkCfg),
	}, nil
}

// Comment 请求模型点评一组回测报告，best 字段会校正为报告中的组合名。
func (c *Client) Comment(ctx context.Context, reports []report.Report) (Commentary, error) {
	if len(reports) == 0 {
		return Commentary{}, ErrNoReports
	}
	if c.model == "" {
		return Commentary{}, errors.New("ai: openai.model 不能为空")
	}

	prompt, err := BuildPrompt(reports)
	if err != nil {
		return Commentary{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	started := time.Now()
	resp, err := c.sdk.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0,
	})
	if err != nil {
		return Commentary{}, fmt.Errorf("ai: 请求点评失败（%d 个组合）: %w", len(reports), err)
	}

	content := ""
	if len(resp.Choices) > 0 {
		content = strings.TrimSpace(resp.Choices[0].Message.Content)
	}
	if content == "" {
		return Commentary{}, ErrEmptyReply
	}

	commentary, err := parseCommentary(content)
	if err != nil {
		c.logger.Warn("点评内容无法解析", zap.Error(err), zap.String("raw_content", content))
		return Commentary{}, err
	}
	if err := commentary.Validate(reportNames(reports)); err != nil {
		return Commentary{}, fmt.Errorf("ai: %w", err)
	}

	c.logger.Info("点评已生成",
		zap.Int("portfolios", len(reports)),
		zap.String("best", commentary.Best),
		zap.Int("risks", len(commentary.Risks)),
		zap.Int("tokens", resp.Usage.TotalTokens),
		zap.Duration("elapsed", time.Since(started)),
	)
	return commentary, nil
}

func reportNames(reports []report.Report) []string {
	names := make([]string, len(reports))
	for i, r := range reports {
		names[i] = r.Name
	}
	return names
}

func parseCommentary(content string) (Commentary, error) {
	payload, err := extractJSON(content)
	if err != nil {
		return Commentary{}, err
	}

	var commentary Commentary
	if err := json.Unmarshal(payload, &commentary); err != nil {
		return Commentary{}, fmt.Errorf("ai: 点评 JSON 格式错误: %w", err)
	}
	return commentary, nil
}

// extractJSON 截取首个 { 到最后一个 } 之间的内容，兼容模型附带的说明文字与代码块。
func extractJSON(content string) ([]byte, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("ai: 点评中没有 JSON 对象: %.80s", content)
	}
	return []byte(content[start : end+1]), nil
}
