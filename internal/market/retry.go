package market

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	ccxt "github.com/ccxt/ccxt/go/v4"
	"go.uber.org/zap"

	"rebalance-backtest/internal/config"
)

var (
	// ErrMaintenance 表示数据源处于维护状态，重试无意义。
	ErrMaintenance = errors.New("market: 数据源维护中")
	// ErrNoData 表示数据源没有返回任何有效价格。
	ErrNoData = errors.New("market: 数据源未返回数据")
)

// StatusError 表示数据源返回了非 200 状态码。
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("market: 请求 %s 返回状态码 %d", e.URL, e.Code)
}

// Retry 以指数退避方式重试数据源调用。
type Retry struct {
	cfg    config.RetryConfig
	logger *zap.Logger
}

// NewRetry 创建重试器。
func NewRetry(cfg config.RetryConfig, logger *zap.Logger) *Retry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	return &Retry{cfg: cfg, logger: logger}
}

// Do 执行 fn，可重试错误按退避间隔重试直至次数耗尽。
func (r *Retry) Do(ctx context.Context, operation string, fn func() error) error {
	attempt := 0
	delay := r.cfg.MinDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	maxDelay := r.cfg.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 5 * time.Second
	}

	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		attempt++
		start := time.Now()
		err := fn()
		duration := time.Since(start)
		if err == nil {
			if attempt > 1 {
				r.logger.Info("数据源调用重试后成功",
					zap.String("operation", operation),
					zap.Int("attempts", attempt),
					zap.Duration("latency", duration),
				)
			}
			return nil
		}

		normalizedErr, retry := classifyError(err)

		if errors.Is(normalizedErr, ErrMaintenance) {
			r.logger.Warn("数据源维护中",
				zap.String("operation", operation),
				zap.Error(normalizedErr),
			)
			return normalizedErr
		}

		if !retry || attempt >= r.cfg.MaxAttempts {
			r.logger.Error("数据源调用失败",
				zap.String("operation", operation),
				zap.Int("attempts", attempt),
				zap.Duration("latency", duration),
				zap.Error(normalizedErr),
			)
			return normalizedErr
		}

		wait := delay
		if wait > maxDelay {
			wait = maxDelay
		}

		r.logger.Warn("数据源调用失败，等待重试",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(normalizedErr),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}

// IsRetryable 判断错误是否可重试。
func IsRetryable(err error) bool {
	_, retry := classifyError(err)
	return retry
}

func classifyError(err error) (error, bool) {
	if err == nil {
		return nil, false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err, false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		retry := statusErr.Code == http.StatusTooManyRequests || statusErr.Code >= http.StatusInternalServerError
		return err, retry
	}

	var ccxtErr *ccxt.Error
	if errors.As(err, &ccxtErr) {
		switch ccxtErr.Type {
		case ccxt.NetworkErrorErrType,
			ccxt.RequestTimeoutErrType,
			ccxt.ExchangeNotAvailableErrType,
			ccxt.RateLimitExceededErrType,
			ccxt.DDoSProtectionErrType,
			ccxt.BadResponseErrType,
			ccxt.NullResponseErrType:
			return err, true
		case ccxt.OnMaintenanceErrType:
			message := strings.TrimSpace(ccxtErr.Message)
			if message == "" {
				message = "exchange under maintenance"
			}
			return fmt.Errorf("%w: %s", ErrMaintenance, message), false
		default:
			return err, false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return err, true
	}

	return err, false
}
