package backtest

import (
	"context"

	"golang.org/x/sync/errgroup"

	"rebalance-backtest/internal/market"
)

// RunBatch 并发运行多个策略，结果顺序与入参一致。收益表只读共享。
func (e *Engine) RunBatch(ctx context.Context, returns market.Table, strategies []Strategy, workers int) ([]Outcome, error) {
	if workers <= 0 {
		workers = 1
	}

	outcomes := make([]Outcome, len(strategies))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(workers)

	for i, s := range strategies {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			outcome, err := e.Run(returns, s)
			if err != nil {
				return err
			}
			outcomes[i] = outcome
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}
