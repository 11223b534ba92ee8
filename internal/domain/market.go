// Package domain holds the value types shared by every component of the
// governance engine: positions, account/portfolio snapshots, trade actions,
// rebalancing plans, plan cards and the signal bundles produced by the
// orchestrator. These are plain value types — construct them, read them,
// never mutate one after it has been shared across a goroutine boundary.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketType distinguishes spot holdings from perpetual-futures positions.
type MarketType string

const (
	MarketSpot MarketType = "spot"
	MarketPerp MarketType = "perp"
)

// Position is a single spot or perp holding.
//
// Invariant: |Size| * CurrentPrice <= account.PortfolioValue * maxPositionPct
// is not enforced by this type, and the governor does not check it either
// (the bound travels on PlanCard.RiskBudget.MaxPositionPct).
type Position struct {
	Coin         string
	MarketType   MarketType
	Size         decimal.Decimal // signed: negative == short (perp only)
	EntryPrice   decimal.Decimal
	CurrentPrice decimal.Decimal
	Leverage     *decimal.Decimal // nil for spot
}

// NotionalValue returns |Size| * CurrentPrice.
func (p Position) NotionalValue() decimal.Decimal {
	return p.Size.Abs().Mul(p.CurrentPrice)
}

// SignedValue returns Size * CurrentPrice (negative for shorts).
func (p Position) SignedValue() decimal.Decimal {
	return p.Size.Mul(p.CurrentPrice)
}

// AccountState is a point-in-time account snapshot from the exchange.
// It is recomputed wholesale each tick and never mutated after publication.
type AccountState struct {
	PortfolioValue   decimal.Decimal
	AvailableBalance decimal.Decimal
	Positions        []Position
	SpotBalances     map[string]decimal.Decimal
	Timestamp        time.Time
	IsStale          bool

	// MarginRatio and LiquidationPrices feed the tripwire service; they are
	// populated by the exchange collaborator alongside the rest of the
	// account payload (spec.md §4.8).
	MarginRatio       decimal.Decimal
	LiquidationPrices map[string]decimal.Decimal // coin -> liquidation price, perp only
	DayStartValue     decimal.Decimal
}

// CashCoin is the pseudo-coin aggregating perp margin + spot cash in a
// PortfolioState's allocation map.
const CashCoin = "USDC"

// PortfolioState is derived from AccountState: fractional allocations per
// coin (including the CashCoin pseudo-coin) summing to ~1.
type PortfolioState struct {
	TotalValue       decimal.Decimal
	AvailableBalance decimal.Decimal
	Allocations      map[string]decimal.Decimal // coin -> fraction of TotalValue, sums to ~1
	Positions        map[string]Position        // coin -> position (perp or spot), CashCoin excluded
	Timestamp        time.Time
}

// TargetAllocation is a desired allocation, proposed by a strategy (human,
// rule-based or LLM-advised) and consumed by the rebalancer.
type TargetAllocation struct {
	Allocations map[string]decimal.Decimal // coin or CashCoin -> fraction, sums to ~1
	StrategyID  string
	Reasoning   string
}

// SumIsValid reports whether the allocation sums to within [0.99, 1.01].
func (t TargetAllocation) SumIsValid() bool {
	return sumInRange(t.Allocations, decimal.NewFromFloat(0.99), decimal.NewFromFloat(1.01))
}

// SumIsValid reports whether the allocation sums to within [0.99, 1.01].
func (p PortfolioState) SumIsValid() bool {
	return sumInRange(p.Allocations, decimal.NewFromFloat(0.99), decimal.NewFromFloat(1.01))
}

func sumInRange(m map[string]decimal.Decimal, lo, hi decimal.Decimal) bool {
	sum := decimal.Zero
	for _, v := range m {
		sum = sum.Add(v)
	}
	return sum.GreaterThanOrEqual(lo) && sum.LessThanOrEqual(hi)
}

// ActionType enumerates the kinds of trade a RebalancingPlan can emit.
type ActionType string

const (
	ActionBuy   ActionType = "buy"
	ActionSell  ActionType = "sell"
	ActionHold  ActionType = "hold"
	ActionClose ActionType = "close"
)

// TradeAction is one leg of a rebalancing plan.
//
// Invariant: for Buy/Sell, Size > 0 and Size*price >= minNotional, and Size
// is rounded down to the market's size_decimals before being emitted.
type TradeAction struct {
	ActionType ActionType
	Coin       string
	MarketType MarketType
	Size       decimal.Decimal
	LimitPrice *decimal.Decimal
	Reasoning  string
}

// RebalancingPlan is the rebalancer's pure output: an ordered trade
// sequence where all sells precede all buys and no prefix drives available
// capital negative.
type RebalancingPlan struct {
	Actions          []TradeAction
	EstimatedCostBps decimal.Decimal
	Reasoning        string
}

// Regime is the closed set of market regimes the detector can emit. Extend
// only by a coordinated update to every strategy descriptor's
// CompatibleRegimes/AvoidRegimes.
type Regime string

const (
	RegimeTrendingBull  Regime = "trending-bull"
	RegimeTrendingBear  Regime = "trending-bear"
	RegimeRangeBound    Regime = "range-bound"
	RegimeCarryFriendly Regime = "carry-friendly"
	RegimeEventRisk     Regime = "event-risk"
)

// AllRegimes is the closed set, used to validate any label before it is
// accepted by the detector.
var AllRegimes = map[Regime]bool{
	RegimeTrendingBull:  true,
	RegimeTrendingBear:  true,
	RegimeRangeBound:    true,
	RegimeCarryFriendly: true,
	RegimeEventRisk:     true,
}

// IsValidRegime reports whether r is a member of the closed regime set.
func IsValidRegime(r Regime) bool {
	return AllRegimes[r]
}

// Horizon is the intended holding period of a plan card.
type Horizon string

const (
	HorizonMinutes Horizon = "minutes"
	HorizonHours   Horizon = "hours"
	HorizonDays    Horizon = "days"
)

// PlanStatus is the lifecycle state of a PlanCard.
type PlanStatus string

const (
	PlanPending     PlanStatus = "pending"
	PlanActive      PlanStatus = "active"
	PlanRebalancing PlanStatus = "rebalancing"
	PlanRetiring    PlanStatus = "retiring"
	PlanCompleted   PlanStatus = "completed"
)

// RiskBudget bounds a plan's exposure.
type RiskBudget struct {
	MaxLeverage              decimal.Decimal
	MaxPositionPct           decimal.Decimal
	MaxAdverseExcursionPct   decimal.Decimal
	MaxDrawdownPct           decimal.Decimal
}

// PlanCard is the governor's primary entity: the currently enforced target
// allocation plus risk budget, regime bindings and dwell timers.
type PlanCard struct {
	PlanID                  string
	StrategyID              string
	StrategyVersion          string
	Status                  PlanStatus
	TargetAllocations       TargetAllocation
	RiskBudget              RiskBudget
	CompatibleRegimes       map[Regime]bool
	AvoidRegimes            map[Regime]bool
	InvalidationTriggers    []string
	IntendedHorizon         Horizon
	MinimumDwellMinutes     int
	ExpectedSwitchingCostBps decimal.Decimal
	CreatedAt               time.Time
	ActivatedAt             *time.Time
	RebalanceProgress       float64 // [0,1]
	DwellDeadline           time.Time
	CooldownDeadline        time.Time
}

// SignalQualityMetadata accompanies every signal bundle.
type SignalQualityMetadata struct {
	Timestamp       time.Time
	Confidence      float64 // [0,1]
	StalenessSeconds float64
	Sources         map[string]bool
	IsCached        bool
}

// TripwireSeverity ranks how urgently a tripwire event must be handled.
type TripwireSeverity string

const (
	SeverityWarning  TripwireSeverity = "warning"
	SeverityCritical TripwireSeverity = "critical"
)

// TripwireAction is the prescribed response to a fired tripwire.
type TripwireAction string

const (
	ActionFreezeNewRisk       TripwireAction = "freeze_new_risk"
	ActionInvalidatePlan      TripwireAction = "invalidate_plan"
	ActionEscalateToSlowLoop  TripwireAction = "escalate_to_slow_loop"
	ActionCutSizeToFloor      TripwireAction = "cut_size_to_floor"
)

// TripwireEvent is emitted by the tripwire service when a safety rule fires.
type TripwireEvent struct {
	Category    string
	Severity    TripwireSeverity
	Action      TripwireAction
	TriggeredAt time.Time
	Details     string
}

// PlanMetrics tracks a plan card's realized performance since activation,
// used by the governor's change-cost analysis to estimate observed_costs.
type PlanMetrics struct {
	PlanID            string
	RealizedPnLBps    decimal.Decimal
	ObservedCostsBps  decimal.Decimal
	CyclesActive      int
	LastRebalancedAt  time.Time
}

// ChangeLogEntry records one governor state transition for audit purposes.
// Appended-only: the governor never mutates or removes a prior entry.
type ChangeLogEntry struct {
	At       time.Time
	Kind     string // "approved" | "rejected" | "invalidated" | "rebalance_step"
	PlanID   string
	Reason   string
}

// Decision is the outcome of evaluate_proposal.
type Decision struct {
	Approved    bool
	NetAdvantageBps decimal.Decimal
	Reason      string
}
