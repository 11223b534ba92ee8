package rebalancer

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/aristath/aegis/internal/domain"
)

func d(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func defaultConstraints() Constraints {
	return Constraints{
		MinTradeValue:      d(10),
		RebalanceThreshold: d(0.05),
		MaxSlippagePct:     d(0.01),
	}
}

func fixedSizeDecimals(m map[string]int) SizeDecimalsLookup {
	return func(coin string) int { return m[coin] }
}

func fixedPrice(m map[string]float64) PriceLookup {
	return func(coin string) (decimal.Decimal, bool) {
		v, ok := m[coin]
		if !ok {
			return decimal.Zero, false
		}
		return d(v), true
	}
}

// TestRebalanceScenarioS1 reproduces spec.md §8 scenario S1 exactly: a
// $50,000 portfolio of BTC/ETH/USDC rebalanced toward {BTC:0.40, ETH:0.30,
// USDC:0.30}, selling BTC down and buying ETH up with cash funding the gap
// between the two, never going negative.
func TestRebalanceScenarioS1(t *testing.T) {
	current := domain.PortfolioState{
		TotalValue: d(50000),
		Allocations: map[string]decimal.Decimal{
			"BTC":           d(26000).Div(d(50000)),
			"ETH":           d(7800).Div(d(50000)),
			domain.CashCoin: d(16200).Div(d(50000)),
		},
	}
	target := domain.TargetAllocation{
		Allocations: map[string]decimal.Decimal{
			"BTC":           d(0.40),
			"ETH":           d(0.30),
			domain.CashCoin: d(0.30),
		},
	}

	plan := Rebalance(
		current, target, domain.MarketSpot, defaultConstraints(),
		fixedPrice(map[string]float64{"BTC": 52000, "ETH": 2600}),
		fixedSizeDecimals(map[string]int{"BTC": 5, "ETH": 4}),
		nil,
	)

	require.Len(t, plan.Actions, 2)

	sell := plan.Actions[0]
	require.Equal(t, domain.ActionSell, sell.ActionType)
	require.Equal(t, "BTC", sell.Coin)
	require.True(t, sell.Size.Equal(d(0.11538)), "got %s", sell.Size)

	buy := plan.Actions[1]
	require.Equal(t, domain.ActionBuy, buy.ActionType)
	require.Equal(t, "ETH", buy.Coin)
	require.True(t, buy.Size.Equal(d(2.7692)), "got %s", buy.Size)

	for _, a := range plan.Actions {
		require.NotEqual(t, domain.CashCoin, a.Coin, "no cash trades emitted")
	}
}

func TestRebalanceRejectsInvalidTargetSum(t *testing.T) {
	current := domain.PortfolioState{TotalValue: d(1000), Allocations: map[string]decimal.Decimal{"BTC": d(1.0)}}
	target := domain.TargetAllocation{Allocations: map[string]decimal.Decimal{"BTC": d(0.5)}}

	plan := Rebalance(current, target, domain.MarketSpot, defaultConstraints(), fixedPrice(nil), fixedSizeDecimals(nil), nil)

	require.Empty(t, plan.Actions)
	require.Equal(t, "invalid target", plan.Reasoning)
}

func TestRebalanceNoSignificantDeviationsProducesEmptyPlan(t *testing.T) {
	current := domain.PortfolioState{
		TotalValue: d(1000),
		Allocations: map[string]decimal.Decimal{
			"BTC":           d(0.51),
			domain.CashCoin: d(0.49),
		},
	}
	target := domain.TargetAllocation{
		Allocations: map[string]decimal.Decimal{
			"BTC":           d(0.50),
			domain.CashCoin: d(0.50),
		},
	}

	plan := Rebalance(current, target, domain.MarketSpot, defaultConstraints(), fixedPrice(nil), fixedSizeDecimals(nil), nil)

	require.Empty(t, plan.Actions)
	require.Equal(t, "no significant deviations", plan.Reasoning)
}

func TestRebalanceZeroTargetEmitsClose(t *testing.T) {
	current := domain.PortfolioState{
		TotalValue: d(1000),
		Allocations: map[string]decimal.Decimal{
			"BTC":           d(0.50),
			domain.CashCoin: d(0.50),
		},
	}
	target := domain.TargetAllocation{
		Allocations: map[string]decimal.Decimal{
			"BTC":           d(0),
			domain.CashCoin: d(1.0),
		},
	}

	plan := Rebalance(current, target, domain.MarketSpot, defaultConstraints(), fixedPrice(map[string]float64{"BTC": 50000}), fixedSizeDecimals(map[string]int{"BTC": 5}), nil)

	require.Len(t, plan.Actions, 1)
	require.Equal(t, domain.ActionClose, plan.Actions[0].ActionType)
	require.Equal(t, "BTC", plan.Actions[0].Coin)
}

// TestRebalanceSkipsBuyWithoutPrice verifies that a coin with no available
// price is reported as a held-skip rather than causing the whole plan to
// fail, per spec.md §4.6 step 5.
func TestRebalanceSkipsBuyWithoutPrice(t *testing.T) {
	current := domain.PortfolioState{
		TotalValue: d(1000),
		Allocations: map[string]decimal.Decimal{
			domain.CashCoin: d(1.0),
		},
	}
	target := domain.TargetAllocation{
		Allocations: map[string]decimal.Decimal{
			"SOL":           d(0.50),
			domain.CashCoin: d(0.50),
		},
	}

	plan := Rebalance(current, target, domain.MarketSpot, defaultConstraints(), fixedPrice(nil), fixedSizeDecimals(nil), nil)

	require.Len(t, plan.Actions, 1)
	require.Equal(t, domain.ActionHold, plan.Actions[0].ActionType)
	require.Equal(t, "SOL", plan.Actions[0].Coin)
}

func TestRebalanceNeverDrivesAvailableCapitalNegative(t *testing.T) {
	current := domain.PortfolioState{
		TotalValue: d(50000),
		Allocations: map[string]decimal.Decimal{
			"BTC":           d(26000).Div(d(50000)),
			"ETH":           d(7800).Div(d(50000)),
			domain.CashCoin: d(16200).Div(d(50000)),
		},
	}
	target := domain.TargetAllocation{
		Allocations: map[string]decimal.Decimal{
			"BTC":           d(0.10),
			"ETH":           d(0.60),
			domain.CashCoin: d(0.30),
		},
	}

	plan := Rebalance(
		current, target, domain.MarketSpot, defaultConstraints(),
		fixedPrice(map[string]float64{"BTC": 52000, "ETH": 2600}),
		fixedSizeDecimals(map[string]int{"BTC": 5, "ETH": 4}),
		nil,
	)

	available := current.Allocations[domain.CashCoin].Mul(current.TotalValue)
	for _, a := range plan.Actions {
		price, _ := map[string]float64{"BTC": 52000, "ETH": 2600}[a.Coin], true
		notional := a.Size.Mul(d(price))
		switch a.ActionType {
		case domain.ActionSell, domain.ActionClose:
			available = available.Add(notional)
		case domain.ActionBuy:
			require.True(t, available.GreaterThanOrEqual(notional.Sub(d(0.01))), "available capital went negative")
			available = available.Sub(notional)
		}
	}
}
