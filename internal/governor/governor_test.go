package governor

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/aristath/aegis/internal/domain"
	"github.com/aristath/aegis/internal/rebalancer"
)

func planCard(id string, dwellMinutes int) domain.PlanCard {
	return domain.PlanCard{
		PlanID:              id,
		Status:              domain.PlanPending,
		MinimumDwellMinutes: dwellMinutes,
		TargetAllocations: domain.TargetAllocation{
			Allocations: map[string]decimal.Decimal{
				"BTC":           decimal.NewFromFloat(0.5),
				domain.CashCoin: decimal.NewFromFloat(0.5),
			},
		},
	}
}

// TestGovernorDwellCooldownScenario reproduces spec.md §8 scenario S5: a
// proposal arriving mid-dwell is rejected; the same proposal after dwell,
// cooldown and full rebalance have elapsed is accepted.
func TestGovernorDwellCooldownScenario(t *testing.T) {
	cfg := Config{MinimumAdvantageBps: 50, CooldownAfterChange: 60 * time.Minute, PartialRotationPct: 25}
	g := New(cfg, nil)

	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	planA := planCard("A", 120)
	decisionA := g.EvaluateProposal(planA, domain.RegimeRangeBound, 200, 0, t0, false, false)
	require.True(t, decisionA.Approved)
	require.Equal(t, "A", g.ActivePlan().PlanID)

	planB := planCard("B", 120)
	t30 := t0.Add(30 * time.Minute)
	decisionB := g.EvaluateProposal(planB, domain.RegimeRangeBound, 300, 0, t30, false, false)
	require.False(t, decisionB.Approved, "mid-dwell proposal must be rejected")
	require.Equal(t, "A", g.ActivePlan().PlanID, "active plan must remain A")

	// Advance rebalance_progress to 1.0 via four 25% rotation cycles so
	// can_review's rebalance_progress >= 1.0 condition is satisfied by
	// t=150 min, matching the scenario's stated precondition.
	current := domain.PortfolioState{
		TotalValue: decimal.NewFromFloat(10000),
		Allocations: map[string]decimal.Decimal{
			"BTC":           decimal.NewFromFloat(0.9),
			domain.CashCoin: decimal.NewFromFloat(0.1),
		},
	}
	constraints := rebalancer.Constraints{MinTradeValue: decimal.NewFromFloat(1), RebalanceThreshold: decimal.NewFromFloat(0.01)}
	price := func(coin string) (decimal.Decimal, bool) { return decimal.NewFromFloat(50000), true }
	sizeDecimals := func(coin string) int { return 5 }
	for i := 0; i < 4; i++ {
		g.StepRebalance(current, domain.MarketSpot, constraints, price, sizeDecimals, nil, t30)
	}
	require.Equal(t, 1.0, g.RebalanceProgress())

	t150 := t0.Add(150 * time.Minute)
	decisionB2 := g.EvaluateProposal(planB, domain.RegimeRangeBound, 300, 0, t150, false, false)
	require.True(t, decisionB2.Approved, "proposal after dwell+cooldown+full rebalance must be accepted")
	require.Equal(t, "B", g.ActivePlan().PlanID)

	log := g.ChangeLog()
	require.GreaterOrEqual(t, len(log), 3)
	require.Equal(t, "approved", log[0].Kind)
	require.Equal(t, "rejected", log[1].Kind)
}

func TestGovernorRejectsProposalInAvoidRegimes(t *testing.T) {
	g := New(DefaultConfig(), nil)
	proposal := planCard("A", 60)
	proposal.AvoidRegimes = map[domain.Regime]bool{domain.RegimeEventRisk: true}

	decision := g.EvaluateProposal(proposal, domain.RegimeEventRisk, 200, 0, time.Now(), false, false)

	require.False(t, decision.Approved)
	require.Nil(t, g.ActivePlan())
}

func TestGovernorRejectsBelowMinimumAdvantage(t *testing.T) {
	g := New(DefaultConfig(), nil)
	proposal := planCard("A", 60)

	decision := g.EvaluateProposal(proposal, domain.RegimeRangeBound, 40, 0, time.Now(), false, false)

	require.False(t, decision.Approved)
}

func TestGovernorTripwireOverrideBypassesDwell(t *testing.T) {
	cfg := Config{MinimumAdvantageBps: 50, CooldownAfterChange: 60 * time.Minute, PartialRotationPct: 25}
	g := New(cfg, nil)
	now := time.Now()

	g.EvaluateProposal(planCard("A", 120), domain.RegimeRangeBound, 200, 0, now, false, false)
	decision := g.EvaluateProposal(planCard("B", 120), domain.RegimeRangeBound, 200, 0, now.Add(time.Minute), false, true)

	require.True(t, decision.Approved)
	require.Equal(t, "B", g.ActivePlan().PlanID)
}

func TestGovernorInvalidateRetiresPlanAndAllowsImmediateProposal(t *testing.T) {
	g := New(DefaultConfig(), nil)
	now := time.Now()
	g.EvaluateProposal(planCard("A", 120), domain.RegimeRangeBound, 200, 0, now, false, false)

	g.Invalidate("risk trigger fired", now.Add(time.Minute))

	require.True(t, g.CanReview(now.Add(2*time.Minute), false))
	decision := g.EvaluateProposal(planCard("B", 60), domain.RegimeRangeBound, 200, 0, now.Add(2*time.Minute), false, false)
	require.True(t, decision.Approved)
}

func TestGovernorStepRebalanceReturnsNoActivePlan(t *testing.T) {
	g := New(DefaultConfig(), nil)
	plan := g.StepRebalance(domain.PortfolioState{}, domain.MarketSpot, rebalancer.Constraints{}, nil, nil, nil, time.Now())
	require.Equal(t, "no active plan", plan.Reasoning)
}
