package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
)

// Config 聚合了回测系统运行所需的全部配置项。
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Data       DataConfig       `mapstructure:"data"`
	Exchange   ExchangeConfig   `mapstructure:"exchange"`
	Strategies []StrategyConfig `mapstructure:"strategies"`
	Batch      BatchConfig      `mapstructure:"batch"`
	Report     ReportConfig     `mapstructure:"report"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Server     ServerConfig     `mapstructure:"server"`
}

// AppConfig 控制应用级参数。
type AppConfig struct {
	Environment string `mapstructure:"environment"`
}

// 支持的数据源。
const (
	SourceCSV      = "csv"
	SourceYahoo    = "yahoo"
	SourceNaver    = "naver"
	SourceExchange = "exchange"
)

// DataConfig 描述价格数据来源。
type DataConfig struct {
	Source    string        `mapstructure:"source"`
	Assets    []string      `mapstructure:"assets"`
	CSVPath   string        `mapstructure:"csv_path"`
	Start     string        `mapstructure:"start"`
	End       string        `mapstructure:"end"`
	Cache     bool          `mapstructure:"cache"`
	RateLimit float64       `mapstructure:"rate_limit"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Retry     RetryConfig   `mapstructure:"retry"`
}

// ExchangeConfig 描述加密货币交易所连接信息，仅在 data.source=exchange 时使用。
type ExchangeConfig struct {
	Name       string `mapstructure:"name"`
	APIKey     string `mapstructure:"api_key"`
	APISecret  string `mapstructure:"api_secret"`
	UseSandbox bool   `mapstructure:"use_sandbox"`
	Limit      int    `mapstructure:"limit"`
}

// RetryConfig 统一控制重试机制。
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	MinDelay    time.Duration `mapstructure:"min_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// StrategyConfig 描述单个再平衡策略。
type StrategyConfig struct {
	Name      string             `mapstructure:"name"`
	Hold      string             `mapstructure:"hold"`
	Offset    int                `mapstructure:"offset"`
	Fit       string             `mapstructure:"fit"`
	Allocator string             `mapstructure:"allocator"`
	Weights   map[string]float64 `mapstructure:"weights"`
	TopN      int                `mapstructure:"top_n"`
	Cost      *float64           `mapstructure:"cost"`
}

// BatchConfig 控制多策略并行度。
type BatchConfig struct {
	Workers int `mapstructure:"workers"`
}

// ReportConfig 控制报告输出。
type ReportConfig struct {
	OutputDir  string `mapstructure:"output_dir"`
	Charts     bool   `mapstructure:"charts"`
	Simple     bool   `mapstructure:"simple"`
	LogScale   bool   `mapstructure:"log_scale"`
	Width      int    `mapstructure:"width"`
	Height     int    `mapstructure:"height"`
	Commentary bool   `mapstructure:"commentary"`
}

// OpenAIConfig 描述大模型调用参数。
type OpenAIConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// DatabaseConfig 管理数据库连接。
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	InMemory        bool          `mapstructure:"in_memory"`
}

// LoggingConfig 控制日志输出。
type LoggingConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	Development      bool     `mapstructure:"development"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// ServerConfig 控制结果查询接口，Port 为 0 时不启动。
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// Validate 对配置进行基本校验。
func (c *Config) Validate() error {
	var err error

	if c.App.Environment == "" {
		err = multierr.Append(err, errors.New("app.environment 不能为空"))
	}

	switch strings.ToLower(c.Data.Source) {
	case SourceCSV:
		if c.Data.CSVPath == "" {
			err = multierr.Append(err, errors.New("data.source=csv 时 data.csv_path 不能为空"))
		}
	case SourceYahoo, SourceNaver, SourceExchange:
		if len(c.Data.Assets) == 0 {
			err = multierr.Append(err, fmt.Errorf("data.source=%s 时 data.assets 至少包含一个标的", c.Data.Source))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("data.source 取值非法: %q", c.Data.Source))
	}
	if c.Data.Start != "" {
		if _, parseErr := time.Parse(time.DateOnly, c.Data.Start); parseErr != nil {
			err = multierr.Append(err, fmt.Errorf("data.start 格式应为 YYYY-MM-DD: %w", parseErr))
		}
	}
	if c.Data.End != "" {
		if _, parseErr := time.Parse(time.DateOnly, c.Data.End); parseErr != nil {
			err = multierr.Append(err, fmt.Errorf("data.end 格式应为 YYYY-MM-DD: %w", parseErr))
		}
	}
	if c.Data.RateLimit < 0 {
		err = multierr.Append(err, errors.New("data.rate_limit 不能为负"))
	}
	if c.Data.Timeout <= 0 {
		err = multierr.Append(err, errors.New("data.timeout 必须大于0"))
	}
	if c.Data.Retry.MaxAttempts <= 0 {
		err = multierr.Append(err, errors.New("data.retry.max_attempts 必须大于0"))
	}
	if c.Data.Retry.MinDelay <= 0 || c.Data.Retry.MaxDelay <= 0 {
		err = multierr.Append(err, errors.New("data.retry.delay 必须为正"))
	}
	if c.Data.Retry.MinDelay > c.Data.Retry.MaxDelay {
		err = multierr.Append(err, errors.New("data.retry.min_delay 不能大于 max_delay"))
	}
	if strings.EqualFold(c.Data.Source, SourceExchange) && c.Exchange.Name == "" {
		err = multierr.Append(err, errors.New("exchange.name 不能为空"))
	}

	if len(c.Strategies) == 0 {
		err = multierr.Append(err, errors.New("strategies 至少包含一个策略"))
	}
	seen := make(map[string]struct{}, len(c.Strategies))
	for i, s := range c.Strategies {
		err = multierr.Append(err, s.validate(i))
		if _, dup := seen[s.Name]; dup && s.Name != "" {
			err = multierr.Append(err, fmt.Errorf("strategies[%d].name 重复: %s", i, s.Name))
		}
		seen[s.Name] = struct{}{}
	}

	if c.Batch.Workers <= 0 {
		err = multierr.Append(err, errors.New("batch.workers 必须大于0"))
	}
	if c.Report.Charts && (c.Report.Width <= 0 || c.Report.Height <= 0) {
		err = multierr.Append(err, errors.New("report.width/height 必须大于0"))
	}
	if c.Report.Commentary {
		if c.OpenAI.APIKey == "" {
			err = multierr.Append(err, errors.New("report.commentary 开启时 openai.api_key 不能为空"))
		}
		if c.OpenAI.Model == "" {
			err = multierr.Append(err, errors.New("openai.model 不能为空"))
		}
		if c.OpenAI.Timeout <= 0 {
			err = multierr.Append(err, errors.New("openai.timeout 必须大于0"))
		}
	}
	if c.Database.Path == "" && !c.Database.InMemory {
		err = multierr.Append(err, errors.New("database.path 不能为空"))
	}
	if c.Database.MaxOpenConns <= 0 {
		err = multierr.Append(err, errors.New("database.max_open_conns 必须大于0"))
	}
	if c.Database.MaxIdleConns < 0 {
		err = multierr.Append(err, errors.New("database.max_idle_conns 不能为负"))
	}
	if c.Database.ConnMaxLifetime < 0 {
		err = multierr.Append(err, errors.New("database.conn_max_lifetime 不能为负"))
	}
	if c.Logging.Level == "" {
		err = multierr.Append(err, errors.New("logging.level 不能为空"))
	}
	if c.Logging.Encoding == "" {
		err = multierr.Append(err, errors.New("logging.encoding 不能为空"))
	}
	if len(c.Logging.OutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.output_paths 至少包含一个输出目标"))
	}
	if len(c.Logging.ErrorOutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.error_output_paths 至少包含一个输出目标"))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		err = multierr.Append(err, errors.New("server.port 必须位于[0,65535]"))
	}

	if err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}

	return nil
}

func (s StrategyConfig) validate(i int) error {
	var err error
	if s.Name == "" {
		err = multierr.Append(err, fmt.Errorf("strategies[%d].name 不能为空", i))
	}
	if s.Hold == "" {
		err = multierr.Append(err, fmt.Errorf("strategies[%d].hold 不能为空", i))
	}
	if s.Fit == "" {
		err = multierr.Append(err, fmt.Errorf("strategies[%d].fit 不能为空", i))
	}
	switch s.Allocator {
	case "constant":
		if len(s.Weights) == 0 {
			err = multierr.Append(err, fmt.Errorf("strategies[%d] constant 分配需要 weights", i))
		}
	case "equal", "inverse_volatility":
	case "momentum":
		if s.TopN <= 0 {
			err = multierr.Append(err, fmt.Errorf("strategies[%d].top_n 必须大于0", i))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("strategies[%d].allocator 取值非法: %q", i, s.Allocator))
	}
	if s.Cost != nil && (*s.Cost < 0 || *s.Cost > 1) {
		err = multierr.Append(err, fmt.Errorf("strategies[%d].cost 应位于[0,1]", i))
	}
	return err
}
