package monitor

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"rebalance-backtest/internal/backtest"
	"rebalance-backtest/internal/market"
	"rebalance-backtest/internal/report"
	"rebalance-backtest/internal/store"
)

// Service 负责持久化监控事件。
type Service struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewService 初始化监控服务，创建所需表结构。
func NewService(store *store.Store, logger *zap.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("monitor: store 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		db:     store.DB(),
		logger: logger,
	}

	if err := store.Migrate(context.Background(), "monitor_v1", schema); err != nil {
		return nil, fmt.Errorf("monitor: 初始化表失败: %w", err)
	}

	return s, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS monitor_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event_type TEXT NOT NULL,
	payload TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_monitor_events_type ON monitor_events(event_type);
CREATE TABLE IF NOT EXISTS backtest_runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at TEXT NOT NULL,
	finished_at TEXT NOT NULL,
	source TEXT NOT NULL,
	assets TEXT NOT NULL,
	reports TEXT NOT NULL,
	commentary TEXT NOT NULL DEFAULT ''
);
`

// Record 写入单个事件。
func (s *Service) Record(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("monitor: 序列化事件失败: %w", err)
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO monitor_events (event_type, payload, created_at) VALUES (?, ?, ?)`,
		string(event.Type), string(payload), event.Timestamp.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("monitor: 写入事件失败: %w", err)
	}

	return nil
}

// RecordPrices 记录价格加载。
func (s *Service) RecordPrices(ctx context.Context, source string, table market.Table) {
	payload := PricesPayload{Source: source, Assets: table.Assets, Rows: table.Len()}
	if table.Len() > 0 {
		payload.First = table.Dates[0]
		payload.Last = table.Dates[table.Len()-1]
	}
	if err := s.Record(ctx, Event{
		Type:      EventPricesLoaded,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}); err != nil {
		s.logger.Warn("记录价格事件失败", zap.Error(err))
	}
}

// RecordStrategy 记录单个策略的报告与调仓统计。
func (s *Service) RecordStrategy(ctx context.Context, rep report.Report, periods []backtest.PeriodStat) {
	if err := s.Record(ctx, Event{
		Type:      EventStrategy,
		Timestamp: time.Now().UTC(),
		Payload:   StrategyPayload{Report: rep, Periods: periods},
	}); err != nil {
		s.logger.Warn("记录策略事件失败", zap.Error(err))
	}
}

// RecordCommentary 记录模型点评。
func (s *Service) RecordCommentary(ctx context.Context, commentary interface{}) {
	if err := s.Record(ctx, Event{
		Type:      EventCommentary,
		Timestamp: time.Now().UTC(),
		Payload:   commentary,
	}); err != nil {
		s.logger.Warn("记录点评事件失败", zap.Error(err))
	}
}

// RecordError 记录异常。
func (s *Service) RecordError(ctx context.Context, msg string, err error, ctxMap map[string]interface{}) {
	payload := ErrorPayload{
		Message: msg,
		Error:   err.Error(),
		Context: ctxMap,
	}
	if recErr := s.Record(ctx, Event{
		Type:      EventError,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}); recErr != nil {
		s.logger.Warn("记录异常事件失败", zap.Error(recErr))
	}
}

// ListEvents 按类型检索最近事件。
func (s *Service) ListEvents(ctx context.Context, eventType EventType, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT event_type, payload, created_at FROM monitor_events`
	args := make([]interface{}, 0, 2)
	if eventType != "" {
		query += ` WHERE event_type = ?`
		args = append(args, string(eventType))
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("monitor: 查询事件失败: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0, limit)
	for rows.Next() {
		var (
			typ     string
			payload string
			created string
		)
		if scanErr := rows.Scan(&typ, &payload, &created); scanErr != nil {
			return nil, fmt.Errorf("monitor: 解析事件失败: %w", scanErr)
		}

		ts, parseErr := time.Parse(time.RFC3339, created)
		if parseErr != nil {
			ts = time.Now().UTC()
		}

		events = append(events, Event{
			Type:      EventType(typ),
			Timestamp: ts,
			Payload:   json.RawMessage(payload),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("monitor: 读取事件失败: %w", err)
	}

	return events, nil
}

// SaveRun 写入一次回测汇总，返回记录 ID。
func (s *Service) SaveRun(ctx context.Context, run Run) (int64, error) {
	assets, err := json.Marshal(run.Assets)
	if err != nil {
		return 0, fmt.Errorf("monitor: 序列化资产失败: %w", err)
	}
	reports, err := json.Marshal(run.Reports)
	if err != nil {
		return 0, fmt.Errorf("monitor: 序列化报告失败: %w", err)
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO backtest_runs (started_at, finished_at, source, assets, reports, commentary) VALUES (?, ?, ?, ?, ?, ?)`,
		run.StartedAt.UTC().Format(time.RFC3339), run.FinishedAt.UTC().Format(time.RFC3339),
		run.Source, string(assets), string(reports), run.Commentary,
	)
	if err != nil {
		return 0, fmt.Errorf("monitor: 写入回测记录失败: %w", err)
	}
	return res.LastInsertId()
}

// ListRuns 返回最近的回测记录，按时间倒序。
func (s *Service) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, source, assets, reports, commentary FROM backtest_runs ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("monitor: 查询回测记录失败: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0, limit)
	for rows.Next() {
		var (
			run      Run
			started  string
			finished string
			assets   string
			reports  string
		)
		if err := rows.Scan(&run.ID, &started, &finished, &run.Source, &assets, &reports, &run.Commentary); err != nil {
			return nil, fmt.Errorf("monitor: 解析回测记录失败: %w", err)
		}
		run.StartedAt, _ = time.Parse(time.RFC3339, started)
		run.FinishedAt, _ = time.Parse(time.RFC3339, finished)
		if err := json.Unmarshal([]byte(assets), &run.Assets); err != nil {
			return nil, fmt.Errorf("monitor: 解析资产失败: %w", err)
		}
		if err := json.Unmarshal([]byte(reports), &run.Reports); err != nil {
			return nil, fmt.Errorf("monitor: 解析报告失败: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("monitor: 读取回测记录失败: %w", err)
	}
	return runs, nil
}
