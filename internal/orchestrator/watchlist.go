package orchestrator

import "github.com/aristath/aegis/internal/domain"

// AlwaysWatched are the representative-asset coins every watchlist
// includes regardless of positions or active plan (spec.md §4.4.2).
var AlwaysWatched = []string{"BTC", "ETH"}

// BuildWatchlist returns the set of coins the fast/medium bundles must
// collect signals for: every perp position's coin, every perp coin named
// in the active plan's target allocation, and BTC/ETH always. Spot
// balances are excluded — they are settlement capital, not tradeable
// signal targets.
func BuildWatchlist(account domain.AccountState, activePlan *domain.PlanCard) map[string]bool {
	watchlist := make(map[string]bool)
	for _, coin := range AlwaysWatched {
		watchlist[coin] = true
	}
	for _, p := range account.Positions {
		if p.MarketType == domain.MarketPerp {
			watchlist[p.Coin] = true
		}
	}
	if activePlan != nil {
		for coin := range activePlan.TargetAllocations.Allocations {
			if coin == domain.CashCoin {
				continue
			}
			watchlist[coin] = true
		}
	}
	return watchlist
}
