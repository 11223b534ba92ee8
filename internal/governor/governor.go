// Package governor implements the Strategy Governor (spec.md §4.7): the
// single-writer owner of the active PlanCard, enforcing dwell, cooldown,
// partial rotation and change-cost analysis over plan transitions.
package governor

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aristath/aegis/internal/domain"
	"github.com/aristath/aegis/internal/rebalancer"
)

// Config holds the governor's tunable defaults, all overridable per
// deployment the way the teacher's scheduler intervals are.
type Config struct {
	MinimumAdvantageBps    float64
	CooldownAfterChange    time.Duration
	PartialRotationPct     float64 // percent per cycle, e.g. 25.0
}

// DefaultConfig returns spec.md §4.7's stated defaults.
func DefaultConfig() Config {
	return Config{
		MinimumAdvantageBps: 50,
		CooldownAfterChange: 60 * time.Minute,
		PartialRotationPct:  25.0,
	}
}

// Persister durably stores governor state across restarts. Implementations
// live in internal/persistence; the interface is declared here, mirroring
// internal/regime's locally-declared Classifier, to keep this package
// independent of any specific storage backend.
type Persister interface {
	SaveGovernorState(State) error
}

// State is the governor's full persisted record (spec.md §4.7).
type State struct {
	ActivePlan        *domain.PlanCard
	LastChangeAt      time.Time
	CooldownDeadline  time.Time
	RebalanceProgress float64
	ChangeLog         []domain.ChangeLogEntry
	ShadowPortfolios  []string
	PlanMetrics       map[string]domain.PlanMetrics
}

// Governor owns the active plan card. All mutating operations are
// serialized behind mu (spec.md §5: "only one evaluate_proposal or
// invalidate may be in flight at a time — single-writer lock around
// active_plan"), grounded on the teacher's work.Processor mutex-guarded
// single-writer queue.
type Governor struct {
	mu    sync.Mutex
	cfg   Config
	state State
	store Persister
}

// New constructs a Governor. store may be nil (no persistence, useful in
// tests); in production it is backed by internal/persistence.
func New(cfg Config, store Persister) *Governor {
	return &Governor{
		cfg: cfg,
		state: State{
			PlanMetrics: make(map[string]domain.PlanMetrics),
		},
		store: store,
	}
}

// Restore replaces in-memory state with a previously persisted snapshot,
// validating the active plan is non-nil before trusting it (spec.md §4.7:
// "on startup, deserialize and validate... invalid plans are retired").
func (g *Governor) Restore(s State) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if s.PlanMetrics == nil {
		s.PlanMetrics = make(map[string]domain.PlanMetrics)
	}
	if s.ActivePlan != nil && !s.ActivePlan.TargetAllocations.SumIsValid() {
		s.ActivePlan.Status = domain.PlanRetiring
	}
	g.state = s
}

// ActivePlan returns a read-only copy of the currently active plan, or nil.
func (g *Governor) ActivePlan() *domain.PlanCard {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state.ActivePlan == nil {
		return nil
	}
	cp := *g.state.ActivePlan
	return &cp
}

// CanReview reports whether a new proposal may be evaluated right now.
func (g *Governor) CanReview(now time.Time, eventLocked bool) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.canReviewLocked(now, eventLocked)
}

func (g *Governor) canReviewLocked(now time.Time, eventLocked bool) bool {
	if g.state.ActivePlan == nil {
		return true
	}
	plan := g.state.ActivePlan
	return !now.Before(plan.DwellDeadline) &&
		!now.Before(g.state.CooldownDeadline) &&
		g.state.RebalanceProgress >= 1.0 &&
		!eventLocked
}

// EvaluateProposal implements evaluate_proposal (spec.md §4.7).
// tripwireOverride allows approval even when CanReview would otherwise
// refuse (a fired tripwire, or an invalidation trigger on the active plan).
// observedCostsBps is the cost already paid holding the active plan this
// cycle, subtracted from the proposal's expected edge in the net-advantage
// calculation.
func (g *Governor) EvaluateProposal(proposed domain.PlanCard, currentRegime domain.Regime, expectedEdgeBps, observedCostsBps float64, now time.Time, eventLocked, tripwireOverride bool) domain.Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	if proposed.AvoidRegimes[currentRegime] {
		decision := domain.Decision{Approved: false, Reason: "regime in avoid_regimes"}
		g.logLocked(now, "rejected", proposed.PlanID, decision.Reason)
		return decision
	}

	netAdvantage := expectedEdgeBps - toFloat(proposed.ExpectedSwitchingCostBps) - observedCostsBps
	netDec := fromFloat(netAdvantage)
	if netAdvantage < g.cfg.MinimumAdvantageBps {
		decision := domain.Decision{Approved: false, NetAdvantageBps: netDec, Reason: "net advantage below minimum_advantage_over_cost_bps"}
		g.logLocked(now, "rejected", proposed.PlanID, decision.Reason)
		return decision
	}

	allowed := g.state.ActivePlan == nil || g.canReviewLocked(now, eventLocked) || tripwireOverride
	if !allowed {
		decision := domain.Decision{Approved: false, NetAdvantageBps: netDec, Reason: "active plan not reviewable yet (dwell/cooldown/rebalance in progress)"}
		g.logLocked(now, "rejected", proposed.PlanID, decision.Reason)
		return decision
	}

	proposed.Status = domain.PlanActive
	activatedAt := now
	proposed.ActivatedAt = &activatedAt
	proposed.DwellDeadline = now.Add(time.Duration(proposed.MinimumDwellMinutes) * time.Minute)
	proposed.CooldownDeadline = now.Add(g.cfg.CooldownAfterChange)

	g.state.ActivePlan = &proposed
	g.state.LastChangeAt = now
	g.state.CooldownDeadline = proposed.CooldownDeadline
	g.state.RebalanceProgress = 0

	decision := domain.Decision{Approved: true, NetAdvantageBps: netDec, Reason: "approved"}
	g.logLocked(now, "approved", proposed.PlanID, decision.Reason)
	g.persistLocked()
	return decision
}

// StepRebalance implements step_rebalance (spec.md §4.7): computes the full
// rebalancing plan via internal/rebalancer, then scales it down to the
// slice emitted this cycle and advances rebalance_progress.
func (g *Governor) StepRebalance(current domain.PortfolioState, marketType domain.MarketType, constraints rebalancer.Constraints, price rebalancer.PriceLookup, sizeDecimals rebalancer.SizeDecimalsLookup, slippage rebalancer.SlippageLookup, now time.Time) domain.RebalancingPlan {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state.ActivePlan == nil {
		return domain.RebalancingPlan{Reasoning: "no active plan"}
	}
	full := rebalancer.Rebalance(current, g.state.ActivePlan.TargetAllocations, marketType, constraints, price, sizeDecimals, slippage)
	if len(full.Actions) == 0 {
		g.state.RebalanceProgress = 1.0
		g.persistLocked()
		return full
	}

	pct := g.cfg.PartialRotationPct / 100.0
	scaled := make([]domain.TradeAction, 0, len(full.Actions))
	for _, a := range full.Actions {
		if a.ActionType == domain.ActionBuy || a.ActionType == domain.ActionSell {
			a.Size = a.Size.Mul(fromFloat(pct))
			if a.Size.IsZero() {
				continue
			}
		}
		scaled = append(scaled, a)
	}

	g.state.RebalanceProgress += pct
	if g.state.RebalanceProgress > 1.0 {
		g.state.RebalanceProgress = 1.0
	}
	g.logLocked(now, "rebalance_step", g.state.ActivePlan.PlanID, "partial rotation slice emitted")
	g.persistLocked()

	return domain.RebalancingPlan{Actions: scaled, EstimatedCostBps: full.EstimatedCostBps, Reasoning: "partial rotation slice"}
}

// Invalidate implements invalidate(reason) (spec.md §4.7): marks the active
// plan retiring, clears its dwell deadline, and allows an immediate
// proposal next cycle.
func (g *Governor) Invalidate(reason string, now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state.ActivePlan == nil {
		return
	}
	g.state.ActivePlan.Status = domain.PlanRetiring
	g.state.ActivePlan.DwellDeadline = now
	g.state.CooldownDeadline = now
	g.state.RebalanceProgress = 1.0
	g.logLocked(now, "invalidated", g.state.ActivePlan.PlanID, reason)
	g.persistLocked()
}

// RebalanceProgress returns the active plan's current rotation progress.
func (g *Governor) RebalanceProgress() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state.RebalanceProgress
}

// ChangeLog returns a copy of the append-only transition log.
func (g *Governor) ChangeLog() []domain.ChangeLogEntry {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]domain.ChangeLogEntry, len(g.state.ChangeLog))
	copy(out, g.state.ChangeLog)
	return out
}

// Snapshot returns a copy of the full persisted-shape state, for the
// snapshot writer (spec.md §4.10) and tests.
func (g *Governor) Snapshot() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

func (g *Governor) logLocked(at time.Time, kind, planID, reason string) {
	g.state.ChangeLog = append(g.state.ChangeLog, domain.ChangeLogEntry{At: at, Kind: kind, PlanID: planID, Reason: reason})
}

func (g *Governor) persistLocked() {
	if g.store == nil {
		return
	}
	_ = g.store.SaveGovernorState(g.state)
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func fromFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}
