package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func allocationOf(vals map[string]float64) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(vals))
	for k, v := range vals {
		out[k] = decimal.NewFromFloat(v)
	}
	return out
}

func TestTargetAllocationSumBoundaries(t *testing.T) {
	cases := []struct {
		name  string
		total float64
		want  bool
	}{
		{"exact", 1.0, true},
		{"slightly low accepted", 0.995, true},
		{"slightly high accepted", 1.005, true},
		{"too low rejected", 0.98, false},
		{"too high rejected", 1.02, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ta := TargetAllocation{Allocations: allocationOf(map[string]float64{"BTC": c.total})}
			require.Equal(t, c.want, ta.SumIsValid())
		})
	}
}

func TestIsValidRegimeRejectsUnknownLabels(t *testing.T) {
	require.True(t, IsValidRegime(RegimeTrendingBull))
	require.False(t, IsValidRegime(Regime("bullish")))
	require.False(t, IsValidRegime(Regime("volatile")))
}

func TestPositionNotionalValueUsesAbsoluteSize(t *testing.T) {
	p := Position{
		Size:         decimal.NewFromFloat(-2.5),
		CurrentPrice: decimal.NewFromFloat(100),
	}
	require.True(t, p.NotionalValue().Equal(decimal.NewFromFloat(250)))
	require.True(t, p.SignedValue().Equal(decimal.NewFromFloat(-250)))
}
