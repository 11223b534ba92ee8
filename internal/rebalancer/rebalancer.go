// Package rebalancer implements the pure Portfolio Rebalancer (spec.md
// §4.6): same inputs always produce the same ordered trade sequence, with
// no clock reads, cache access or global state of any kind.
package rebalancer

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/aristath/aegis/internal/domain"
)

// Constraints bound the trade sizes the rebalancer will emit.
type Constraints struct {
	MinTradeValue      decimal.Decimal
	RebalanceThreshold decimal.Decimal
	MaxSlippagePct     decimal.Decimal
}

// PriceLookup resolves a coin's current price, reporting false if unknown
// (spec.md §4.6 step 5: "no price available... skip with reasoning note").
type PriceLookup func(coin string) (decimal.Decimal, bool)

// SizeDecimalsLookup resolves a market's size-decimal precision.
type SizeDecimalsLookup func(coin string) int

// SlippageLookup resolves the fast-bundle's estimated slippage in bps for
// a coin, used in the cost estimate; implementations fall back to a flat
// default when no fresh fast-bundle reading exists.
type SlippageLookup func(coin string) decimal.Decimal

// DefaultSlippageBps is used when no fast-bundle reading is available for
// a coin (spec.md §4.6 step 7).
var DefaultSlippageBps = decimal.NewFromFloat(10)

// FeeBps is the flat per-trade fee assumption folded into the cost
// estimate.
var FeeBps = decimal.NewFromFloat(5)

type delta struct {
	coin        string
	currentPct  decimal.Decimal
	targetPct   decimal.Decimal
	delta       decimal.Decimal
}

// Rebalance computes the full two-phase rebalancing plan for one market
// type. current must already be restricted to that market type's
// positions by the caller (spot and perp are rebalanced independently,
// per spec.md §4.6's `market_type` input).
func Rebalance(current domain.PortfolioState, target domain.TargetAllocation, marketType domain.MarketType, constraints Constraints, price PriceLookup, sizeDecimals SizeDecimalsLookup, slippage SlippageLookup) domain.RebalancingPlan {
	if !target.SumIsValid() {
		return domain.RebalancingPlan{Reasoning: "invalid target"}
	}

	deltas := computeDeltas(current, target, constraints.RebalanceThreshold)
	if len(deltas) == 0 {
		return domain.RebalancingPlan{Reasoning: "no significant deviations"}
	}

	var actions []domain.TradeAction
	availableCapital := current.Allocations[domain.CashCoin].Mul(current.TotalValue)

	sort.Slice(deltas, func(i, j int) bool { return deltas[i].delta.LessThan(deltas[j].delta) })
	for _, d := range deltas {
		if d.delta.GreaterThanOrEqual(decimal.Zero) {
			continue
		}
		reduceValue := d.currentPct.Sub(d.targetPct).Mul(current.TotalValue)
		if reduceValue.LessThan(constraints.MinTradeValue) {
			continue
		}
		availableCapital = availableCapital.Add(reduceValue)

		if d.targetPct.IsZero() {
			actions = append(actions, domain.TradeAction{
				ActionType: domain.ActionClose,
				Coin:       d.coin,
				MarketType: marketType,
				Reasoning:  "target allocation is zero",
			})
			continue
		}

		currentPrice, ok := price(d.coin)
		if !ok {
			continue
		}
		size := reduceValue.Div(currentPrice)
		size = roundDown(size, sizeDecimals(d.coin))
		if size.IsZero() {
			continue
		}
		actions = append(actions, domain.TradeAction{
			ActionType: domain.ActionSell,
			Coin:       d.coin,
			MarketType: marketType,
			Size:       size,
			Reasoning:  "reduce toward target allocation",
		})
	}

	sort.Slice(deltas, func(i, j int) bool { return deltas[i].delta.GreaterThan(deltas[j].delta) })
	for _, d := range deltas {
		if d.delta.LessThanOrEqual(decimal.Zero) {
			continue
		}
		desired := d.targetPct.Sub(d.currentPct).Mul(current.TotalValue)
		increaseValue := desired
		if availableCapital.LessThan(desired) {
			increaseValue = availableCapital
		}
		if increaseValue.LessThan(constraints.MinTradeValue) {
			continue
		}

		currentPrice, ok := price(d.coin)
		if !ok {
			// No price for a coin we don't already hold: skip with a
			// reasoning note, not a failure.
			actions = append(actions, domain.TradeAction{
				ActionType: domain.ActionHold,
				Coin:       d.coin,
				MarketType: marketType,
				Reasoning:  "no price available, skipping buy",
			})
			continue
		}
		size := increaseValue.Div(currentPrice)
		size = roundDown(size, sizeDecimals(d.coin))
		if size.IsZero() {
			continue
		}
		actions = append(actions, domain.TradeAction{
			ActionType: domain.ActionBuy,
			Coin:       d.coin,
			MarketType: marketType,
			Size:       size,
			Reasoning:  "deploy toward target allocation",
		})
		availableCapital = availableCapital.Sub(increaseValue)
	}

	cost := estimateCostBps(actions, slippage)
	return domain.RebalancingPlan{Actions: actions, EstimatedCostBps: cost, Reasoning: "rebalance toward target"}
}

func computeDeltas(current domain.PortfolioState, target domain.TargetAllocation, threshold decimal.Decimal) []delta {
	coins := make(map[string]bool)
	for c := range current.Allocations {
		coins[c] = true
	}
	for c := range target.Allocations {
		coins[c] = true
	}

	var out []delta
	for coin := range coins {
		if coin == domain.CashCoin {
			continue // cash is settlement capital, never traded directly
		}
		curPct := current.Allocations[coin]
		tgtPct := target.Allocations[coin]
		d := tgtPct.Sub(curPct)
		if d.Abs().LessThan(threshold) {
			continue
		}
		out = append(out, delta{coin: coin, currentPct: curPct, targetPct: tgtPct, delta: d})
	}
	return out
}

// roundDown truncates size to decimals fractional digits, never rounding
// up (spec.md §4.6 step 6).
func roundDown(size decimal.Decimal, decimals int) decimal.Decimal {
	return size.Truncate(int32(decimals))
}

func estimateCostBps(actions []domain.TradeAction, slippage SlippageLookup) decimal.Decimal {
	total := decimal.Zero
	for _, a := range actions {
		if a.ActionType != domain.ActionBuy && a.ActionType != domain.ActionSell {
			continue
		}
		s := DefaultSlippageBps
		if slippage != nil {
			if looked := slippage(a.Coin); !looked.IsZero() {
				s = looked
			}
		}
		total = total.Add(FeeBps).Add(s)
	}
	return total
}
