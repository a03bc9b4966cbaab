package monitor

import (
	"time"

	"rebalance-backtest/internal/backtest"
	"rebalance-backtest/internal/report"
)

// EventType 表示监控事件类型。
type EventType string

const (
	EventPricesLoaded EventType = "prices_loaded"
	EventStrategy     EventType = "strategy"
	EventCommentary   EventType = "commentary"
	EventError        EventType = "error"
)

// Event 封装通用监控事件。
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// PricesPayload 记录一次价格加载。
type PricesPayload struct {
	Source string    `json:"source"`
	Assets []string  `json:"assets"`
	Rows   int       `json:"rows"`
	First  time.Time `json:"first"`
	Last   time.Time `json:"last"`
}

// StrategyPayload 记录单个策略的回测结果。
type StrategyPayload struct {
	Report  report.Report         `json:"report"`
	Periods []backtest.PeriodStat `json:"periods"`
}

// ErrorPayload 记录异常。
type ErrorPayload struct {
	Message string                 `json:"message"`
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Run 为一次完整回测的汇总记录。
type Run struct {
	ID         int64           `json:"id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Source     string          `json:"source"`
	Assets     []string        `json:"assets"`
	Reports    []report.Report `json:"reports"`
	Commentary string          `json:"commentary,omitempty"`
}
