package backtest

import "fmt"

// Options 控制一次复利计算。
type Options struct {
	// CostRate 为按换手率收取的成本比例，nil 表示不计成本。
	CostRate *float64
}

// CostRate 返回指向 rate 的指针，便于构造 Options。
func CostRate(rate float64) *float64 {
	return &rate
}

func (o Options) validate() error {
	if o.CostRate == nil {
		return nil
	}
	if rate := *o.CostRate; rate < 0 || rate > 1 {
		return fmt.Errorf("backtest: 成本比例必须位于 [0,1]，当前 %f", rate)
	}
	return nil
}
