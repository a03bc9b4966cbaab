package indicator

import (
	"math"
	"testing"
)

func TestVolatility_MatchesPopulationStdDev(t *testing.T) {
	returns := []float64{0.01, -0.02, 0.03, 0.0}
	mean := 0.005
	var ss float64
	for _, r := range returns {
		ss += (r - mean) * (r - mean)
	}
	want := math.Sqrt(ss / float64(len(returns)))

	if got := Volatility(returns); math.Abs(got-want) > 1e-9 {
		t.Fatalf("expected %f, got %f", want, got)
	}
}

func TestMomentum_IsCompoundedReturn(t *testing.T) {
	returns := []float64{0.1, -0.1, 0.05}
	want := 1.1*0.9*1.05 - 1
	if got := Momentum(returns); math.Abs(got-want) > 1e-9 {
		t.Fatalf("expected %f, got %f", want, got)
	}
}

func TestCompute_RequiresTwoFiniteObservations(t *testing.T) {
	if _, err := Compute([]float64{0.01}); err == nil {
		t.Errorf("expected error for single observation")
	}
	if _, err := Compute([]float64{0.01, math.NaN()}); err == nil {
		t.Errorf("expected error for NaN input")
	}
	res, err := Compute([]float64{0.01, 0.02})
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}
	if res.Observations != 2 || res.Volatility <= 0 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestIndex_StartsAtOne(t *testing.T) {
	idx := Index([]float64{0.5, -0.5})
	if len(idx) != 3 || idx[0] != 1 || idx[1] != 1.5 || idx[2] != 0.75 {
		t.Fatalf("unexpected index %v", idx)
	}
}
