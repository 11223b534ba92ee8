package tripwire

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/aristath/aegis/internal/domain"
)

func d(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func TestEvaluateFiresMarginRatioWarning(t *testing.T) {
	now := time.Now()
	account := domain.AccountState{MarginRatio: d(0.10)}

	events := Evaluate(DefaultConfig(), account, domain.SignalQualityMetadata{Timestamp: now}, 0, nil, nil, now)

	require.Len(t, events, 1)
	require.Equal(t, "margin_ratio", events[0].Category)
	require.Equal(t, domain.ActionFreezeNewRisk, events[0].Action)
	require.Equal(t, domain.SeverityWarning, events[0].Severity)
}

func TestEvaluateFiresLiquidationProximityCritical(t *testing.T) {
	now := time.Now()
	account := domain.AccountState{
		MarginRatio: d(0.5),
		Positions:   []domain.Position{{Coin: "BTC", CurrentPrice: d(50000)}},
		LiquidationPrices: map[string]decimal.Decimal{
			"BTC": d(40000), // (50000-40000)/50000 = 0.20 < 0.25 threshold
		},
	}

	events := Evaluate(DefaultConfig(), account, domain.SignalQualityMetadata{Timestamp: now}, 0, nil, nil, now)

	require.Len(t, events, 1)
	require.Equal(t, "liquidation_proximity", events[0].Category)
	require.Equal(t, domain.SeverityCritical, events[0].Severity)
	require.Equal(t, domain.ActionCutSizeToFloor, events[0].Action)
}

func TestEvaluateFiresDailyLossLimit(t *testing.T) {
	now := time.Now()
	account := domain.AccountState{
		MarginRatio:    d(0.5),
		DayStartValue:  d(100000),
		PortfolioValue: d(94000), // -6% < -5% limit
	}

	events := Evaluate(DefaultConfig(), account, domain.SignalQualityMetadata{Timestamp: now}, 0, nil, nil, now)

	require.Len(t, events, 1)
	require.Equal(t, "daily_loss_limit", events[0].Category)
	require.Equal(t, domain.ActionCutSizeToFloor, events[0].Action)
}

func TestEvaluateFiresDataStaleness(t *testing.T) {
	now := time.Now()
	account := domain.AccountState{MarginRatio: d(0.5)}
	stale := domain.SignalQualityMetadata{Timestamp: now.Add(-10 * time.Minute)}

	events := Evaluate(DefaultConfig(), account, stale, 0, nil, nil, now)

	require.Len(t, events, 1)
	require.Equal(t, "data_staleness", events[0].Category)
}

func TestEvaluateFiresAPIFailuresEscalation(t *testing.T) {
	now := time.Now()
	account := domain.AccountState{MarginRatio: d(0.5)}

	events := Evaluate(DefaultConfig(), account, domain.SignalQualityMetadata{Timestamp: now}, 3, nil, nil, now)

	require.Len(t, events, 1)
	require.Equal(t, "api_failures", events[0].Category)
	require.Equal(t, domain.ActionEscalateToSlowLoop, events[0].Action)
}

func TestEvaluateFiresPlanInvalidationTrigger(t *testing.T) {
	now := time.Now()
	account := domain.AccountState{MarginRatio: d(0.5)}
	plan := &domain.PlanCard{PlanID: "A", InvalidationTriggers: []string{"adx_below_15"}}
	evalTrigger := func(trigger string, a domain.AccountState, s domain.SignalQualityMetadata) bool {
		return trigger == "adx_below_15"
	}

	events := Evaluate(DefaultConfig(), account, domain.SignalQualityMetadata{Timestamp: now}, 0, plan, evalTrigger, now)

	require.Len(t, events, 1)
	require.Equal(t, "plan_invalidation_trigger", events[0].Category)
	require.Equal(t, domain.ActionInvalidatePlan, events[0].Action)
}

func TestEvaluateReturnsNoEventsWhenHealthy(t *testing.T) {
	now := time.Now()
	account := domain.AccountState{
		MarginRatio:    d(0.9),
		DayStartValue:  d(100000),
		PortfolioValue: d(101000),
	}

	events := Evaluate(DefaultConfig(), account, domain.SignalQualityMetadata{Timestamp: now}, 0, nil, nil, now)

	require.Empty(t, events)
}
