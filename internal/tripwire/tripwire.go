// Package tripwire implements the Tripwire Service (spec.md §4.8): a set of
// independent safety rules evaluated every fast loop, regardless of the
// governor's event-lock state or the advisor's availability.
package tripwire

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/aristath/aegis/internal/domain"
)

// Config holds the rule thresholds, all spec.md §4.8 defaults.
type Config struct {
	MinMarginRatio            decimal.Decimal
	LiquidationProximityPct   decimal.Decimal
	DailyLossLimitPct         decimal.Decimal
	MaxDataStaleness          time.Duration
	MaxConsecutiveAPIFailures int
}

// DefaultConfig returns spec.md §4.8's stated defaults.
func DefaultConfig() Config {
	return Config{
		MinMarginRatio:            decimal.NewFromFloat(0.15),
		LiquidationProximityPct:   decimal.NewFromFloat(0.25),
		DailyLossLimitPct:         decimal.NewFromFloat(0.05),
		MaxDataStaleness:          300 * time.Second,
		MaxConsecutiveAPIFailures: 3,
	}
}

// TriggerEvaluator decides whether a named invalidation trigger fired for
// the active plan. Callers wire in their own interpreter (spec.md §4.8:
// "evaluated by interpreter or rule"); a nil evaluator means no
// plan_invalidation_trigger ever fires.
type TriggerEvaluator func(trigger string, account domain.AccountState, signals domain.SignalQualityMetadata) bool

// Evaluate runs every rule in spec.md §4.8's table against the given
// account snapshot, signal freshness metadata, consecutive API failure
// count and (optionally) the active plan's invalidation triggers. It
// returns every rule that fired, in table order, so callers can apply
// freeze_new_risk before cut_size_to_floor before escalation.
func Evaluate(cfg Config, account domain.AccountState, signals domain.SignalQualityMetadata, consecutiveAPIFailures int, activePlan *domain.PlanCard, evalTrigger TriggerEvaluator, now time.Time) []domain.TripwireEvent {
	var events []domain.TripwireEvent

	if !account.MarginRatio.IsZero() && account.MarginRatio.LessThan(cfg.MinMarginRatio) {
		events = append(events, event(now, "margin_ratio", domain.SeverityWarning, domain.ActionFreezeNewRisk,
			"margin_ratio below min_margin_ratio"))
	}

	for coin, liqPx := range account.LiquidationPrices {
		px := currentPriceFor(account, coin)
		if px.IsZero() {
			continue
		}
		proximity := px.Sub(liqPx).Div(px).Abs()
		if proximity.LessThan(cfg.LiquidationProximityPct) {
			events = append(events, event(now, "liquidation_proximity", domain.SeverityCritical, domain.ActionCutSizeToFloor,
				coin+" within liquidation_proximity threshold"))
		}
	}

	if !account.DayStartValue.IsZero() {
		dayPnLPct := account.PortfolioValue.Sub(account.DayStartValue).Div(account.DayStartValue)
		if dayPnLPct.LessThan(cfg.DailyLossLimitPct.Neg()) {
			events = append(events, event(now, "daily_loss_limit", domain.SeverityCritical, domain.ActionCutSizeToFloor,
				"day PnL below negative daily_loss_limit_pct"))
		}
	}

	if !signals.Timestamp.IsZero() && now.Sub(signals.Timestamp) > cfg.MaxDataStaleness {
		events = append(events, event(now, "data_staleness", domain.SeverityWarning, domain.ActionFreezeNewRisk,
			"signal bundle older than max_data_staleness_seconds"))
	}

	if consecutiveAPIFailures >= cfg.MaxConsecutiveAPIFailures {
		events = append(events, event(now, "api_failures", domain.SeverityWarning, domain.ActionEscalateToSlowLoop,
			"consecutive provider failures reached max_api_failure_count"))
	}

	if activePlan != nil && evalTrigger != nil {
		for _, trigger := range activePlan.InvalidationTriggers {
			if evalTrigger(trigger, account, signals) {
				events = append(events, event(now, "plan_invalidation_trigger", domain.SeverityWarning, domain.ActionInvalidatePlan,
					"active plan trigger fired: "+trigger))
				break
			}
		}
	}

	return events
}

func currentPriceFor(account domain.AccountState, coin string) decimal.Decimal {
	for _, p := range account.Positions {
		if p.Coin == coin {
			return p.CurrentPrice
		}
	}
	return decimal.Zero
}

func event(at time.Time, category string, severity domain.TripwireSeverity, action domain.TripwireAction, details string) domain.TripwireEvent {
	return domain.TripwireEvent{Category: category, Severity: severity, Action: action, TriggeredAt: at, Details: details}
}
