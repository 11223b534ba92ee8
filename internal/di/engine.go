package di

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aristath/aegis/internal/domain"
	"github.com/aristath/aegis/internal/exchange"
	"github.com/aristath/aegis/internal/orchestrator"
	"github.com/aristath/aegis/internal/persistence"
	"github.com/aristath/aegis/internal/rebalancer"
	"github.com/aristath/aegis/internal/regime"
	"github.com/aristath/aegis/internal/tripwire"
)

// Engine implements scheduler.Runner, wiring the orchestrator, regime
// detector, advisor, governor and tripwire service together over one tick.
// It owns the last collected bundle of each tier (spec.md §4.9: "trade
// execution uses the bundle it was decided on, no mid-tick refetch") and
// the rolling count of consecutive ExchangeClient.AccountState failures the
// api_failures tripwire keys off.
type Engine struct {
	c *Container

	mu                    sync.Mutex
	lastAccount           domain.AccountState
	lastFast              domain.FastBundle
	lastMedium            domain.MediumBundle
	lastSlow              domain.SlowBundle
	consecutiveAPIFailures int
	tick                  int64
	freezeNewRisk         bool
}

// NewEngine constructs an Engine bound to an already-wired Container.
func NewEngine(c *Container) *Engine {
	return &Engine{c: c}
}

func (e *Engine) refreshAccount(ctx context.Context) (domain.AccountState, error) {
	account, err := e.c.ExchangeClient.AccountState(ctx)
	e.mu.Lock()
	if err != nil {
		e.consecutiveAPIFailures++
	} else {
		e.consecutiveAPIFailures = 0
		e.lastAccount = account
	}
	failures := e.consecutiveAPIFailures
	e.mu.Unlock()
	_ = failures
	return account, err
}

// RunFast implements the fast loop (spec.md §4.4, <=1s target): refresh
// account state, collect the order-book bundle for the current watchlist,
// and evaluate every tripwire rule against it.
func (e *Engine) RunFast(ctx context.Context) error {
	account, err := e.refreshAccount(ctx)
	if err != nil {
		account = e.snapshotAccount()
	}

	activePlan := e.c.Governor.ActivePlan()
	watchlist := orchestrator.BuildWatchlist(account, activePlan)
	fast := e.c.Orchestrator.CollectFast(ctx, watchlist)

	e.mu.Lock()
	e.lastFast = fast
	failures := e.consecutiveAPIFailures
	e.mu.Unlock()

	events := e.lastSlowEvents()
	fired := tripwire.Evaluate(e.c.TripwireConfig, account, fast.Metadata, failures, activePlan, e.evalInvalidationTrigger(events), time.Now())
	e.handleTripwires(ctx, account, fired)

	e.writeSnapshot("fast", account, activePlan)
	return nil
}

// RunMedium implements the medium loop (spec.md §4.4/§4.5/§4.7, <=15s
// target): collect derivative/technical signals, classify the regime,
// solicit a plan proposal and step the active plan's rebalance.
func (e *Engine) RunMedium(ctx context.Context) error {
	e.mu.Lock()
	account := e.lastAccount
	e.mu.Unlock()

	activePlan := e.c.Governor.ActivePlan()
	watchlist := orchestrator.BuildWatchlist(account, activePlan)
	medium := e.c.Orchestrator.CollectMedium(ctx, watchlist)

	e.mu.Lock()
	e.lastMedium = medium
	fast := e.lastFast
	slow := e.lastSlow
	e.mu.Unlock()

	signals := regime.BuildSignals(account, fast, medium)
	currentRegime, err := e.c.Regime.Classify(signals, slow.MacroEventsUpcoming, time.Now())
	if err != nil {
		e.c.Log.Warn().Err(err).Msg("regime classification failed, keeping prior regime")
		currentRegime, _ = e.c.Regime.Current()
	}

	_, eventLocked := e.c.Regime.Current()
	e.evaluateProposal(account, signals, currentRegime, activePlan, eventLocked)
	e.stepRebalance(ctx, account, currentRegime)

	e.writeSnapshot("medium", account, e.c.Governor.ActivePlan())
	return nil
}

// RunSlow implements the slow loop (spec.md §4.4, <=30s target): macro and
// cross-asset context, cadenced by the scheduler's cron schedule.
func (e *Engine) RunSlow(ctx context.Context) error {
	e.mu.Lock()
	account := e.lastAccount
	fast := e.lastFast
	e.mu.Unlock()

	activePlan := e.c.Governor.ActivePlan()
	watchlist := orchestrator.BuildWatchlist(account, activePlan)
	slow := e.c.Orchestrator.CollectSlow(ctx, watchlist, largestPositionDepth(account, fast), venueHealthScore(fast))

	e.mu.Lock()
	e.lastSlow = slow
	e.mu.Unlock()

	e.writeSnapshot("slow", account, activePlan)
	return nil
}

func (e *Engine) snapshotAccount() domain.AccountState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastAccount
}

func (e *Engine) lastSlowEvents() []domain.MacroEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSlow.MacroEventsUpcoming
}

// evalInvalidationTrigger adapts the engine's available state into a
// tripwire.TriggerEvaluator: named invalidation triggers the plan card
// declares are matched against the upcoming macro-event calendar (an
// "event_risk_window" trigger fires when a high-impact event is imminent).
func (e *Engine) evalInvalidationTrigger(events []domain.MacroEvent) tripwire.TriggerEvaluator {
	return func(trigger string, account domain.AccountState, signals domain.SignalQualityMetadata) bool {
		if trigger != "event_risk_window" {
			return false
		}
		now := time.Now()
		for _, evt := range events {
			if evt.Impact == domain.ImpactHigh && evt.Time.After(now) && evt.Time.Before(now.Add(2*time.Hour)) {
				return true
			}
		}
		return false
	}
}

// handleTripwires dispatches every fired tripwire event to its spec.md
// §4.8 action. Tripwires run independently of the governor and the LLM:
// each action below takes effect immediately, even under event-lock.
func (e *Engine) handleTripwires(ctx context.Context, account domain.AccountState, events []domain.TripwireEvent) {
	freeze := false
	for _, evt := range events {
		e.c.Log.Warn().Str("category", evt.Category).Str("severity", string(evt.Severity)).Str("action", string(evt.Action)).Str("details", evt.Details).Msg("tripwire fired")
		switch evt.Action {
		case domain.ActionFreezeNewRisk:
			freeze = true
		case domain.ActionCutSizeToFloor:
			e.cutSizeToFloor(ctx, account, evt)
		case domain.ActionEscalateToSlowLoop:
			e.escalateToSlowLoop(ctx)
		case domain.ActionInvalidatePlan:
			e.c.Governor.Invalidate(evt.Details, evt.TriggeredAt)
		}
	}

	e.mu.Lock()
	e.freezeNewRisk = freeze
	e.mu.Unlock()
}

// cutSizeToFloor implements the cut_size_to_floor action (spec.md §4.8,
// worked example S6): every non-zero position gets an immediate
// reduce-only close, and the active plan is invalidated so a fresh
// proposal becomes reviewable right away instead of waiting out its dwell.
// Position.Size is signed (negative == short), so a long is closed with a
// sell and a short is closed by buying back to flat.
func (e *Engine) cutSizeToFloor(ctx context.Context, account domain.AccountState, evt domain.TripwireEvent) {
	for _, p := range account.Positions {
		if p.Size.IsZero() {
			continue
		}
		actionType := domain.ActionSell
		if p.Size.IsNegative() {
			actionType = domain.ActionBuy
		}
		e.submitAction(ctx, domain.TradeAction{
			ActionType: actionType,
			Coin:       p.Coin,
			MarketType: p.MarketType,
			Size:       p.Size.Abs(),
			Reasoning:  "cut_size_to_floor: " + evt.Details,
		}, true)
	}
	e.c.Governor.Invalidate(evt.Details, evt.TriggeredAt)
}

// escalateToSlowLoop implements the escalate_to_slow_loop action (spec.md
// §4.8): forces an out-of-turn slow-loop execution instead of waiting for
// the next scheduled cron tick.
func (e *Engine) escalateToSlowLoop(ctx context.Context) {
	if err := e.RunSlow(ctx); err != nil {
		e.c.Log.Error().Err(err).Msg("escalate_to_slow_loop: out-of-turn slow loop failed")
	}
}

func (e *Engine) isFrozenNewRisk() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.freezeNewRisk
}

func (e *Engine) evaluateProposal(account domain.AccountState, signals domain.RegimeSignals, currentRegime domain.Regime, activePlan *domain.PlanCard, eventLocked bool) {
	if e.isFrozenNewRisk() {
		e.c.Log.Warn().Msg("freeze_new_risk active, skipping plan proposal")
		return
	}

	now := time.Now()
	if !e.c.Governor.CanReview(now, eventLocked) {
		return
	}

	proposal, err := e.c.Advisor.ProposePlan(account, signals, currentRegime, activePlan)
	if err != nil {
		e.c.Log.Warn().Err(err).Msg("advisor propose_plan failed, maintaining active plan")
		return
	}
	if proposal.Maintain {
		return
	}

	observedCosts := 0.0
	if activePlan != nil {
		if m, ok := e.c.Governor.Snapshot().PlanMetrics[activePlan.PlanID]; ok {
			observedCosts, _ = m.ObservedCostsBps.Float64()
		}
	}
	expectedEdge, _ := proposal.PlanCard.ExpectedSwitchingCostBps.Float64()
	decision := e.c.Governor.EvaluateProposal(proposal.PlanCard, currentRegime, expectedEdge, observedCosts, now, eventLocked, false)
	e.c.Log.Info().Bool("approved", decision.Approved).Str("reason", decision.Reason).Msg("plan proposal evaluated")
}

func (e *Engine) stepRebalance(ctx context.Context, account domain.AccountState, currentRegime domain.Regime) {
	activePlan := e.c.Governor.ActivePlan()
	if activePlan == nil {
		return
	}

	current := portfolioStateFrom(account)
	constraints := rebalancer.Constraints{
		MinTradeValue:      decimal.NewFromFloat(10),
		RebalanceThreshold: decimal.NewFromFloat(0.02),
		MaxSlippagePct:     decimal.NewFromFloat(0.01),
	}

	e.mu.Lock()
	fast := e.lastFast
	e.mu.Unlock()

	priceLookup := func(coin string) (decimal.Decimal, bool) {
		if p, ok := current.Positions[coin]; ok {
			return p.CurrentPrice, true
		}
		return decimal.Zero, false
	}
	sizeDecimalsLookup := func(coin string) int {
		dec, err := e.c.Registry.GetSizeDecimals(coin, domain.MarketPerp)
		if err != nil {
			return 4
		}
		return dec
	}
	slippageLookup := func(coin string) decimal.Decimal {
		if bps, ok := fast.SlippageEstimateBps[coin]; ok {
			return decimal.NewFromFloat(bps)
		}
		return rebalancer.DefaultSlippageBps
	}

	plan := e.c.Governor.StepRebalance(current, domain.MarketPerp, constraints, priceLookup, sizeDecimalsLookup, slippageLookup, time.Now())
	for _, action := range plan.Actions {
		e.submitAction(ctx, action, false)
	}
	_ = currentRegime
}

// submitAction places an order for a rebalancer- or tripwire-originated
// TradeAction. reduceOnly marks a cut_size_to_floor close: those are
// permitted even while freeze_new_risk is active, since they shrink
// exposure rather than add it. A non-reduce-only buy is suppressed while
// freeze_new_risk is active (spec.md §4.8: "suppresses new buys but
// permits sells/closes"). A close becomes a reduce-only order for the full
// size of the coin's position in the last fetched account state (a sell for
// a long, a buy for a short); a close for a coin with no open position is
// dropped.
func (e *Engine) submitAction(ctx context.Context, action domain.TradeAction, reduceOnly bool) {
	if action.ActionType == domain.ActionClose {
		for _, p := range e.snapshotAccount().Positions {
			if p.Coin == action.Coin && !p.Size.IsZero() {
				action.ActionType, action.Size, reduceOnly = domain.ActionSell, p.Size.Abs(), true
				if p.Size.IsNegative() {
					action.ActionType = domain.ActionBuy
				}
				break
			}
		}
	}
	if action.ActionType != domain.ActionBuy && action.ActionType != domain.ActionSell {
		return
	}
	if action.ActionType == domain.ActionBuy && !reduceOnly && e.isFrozenNewRisk() {
		e.c.Log.Warn().Str("coin", action.Coin).Msg("freeze_new_risk active, skipping new buy")
		return
	}
	req := exchange.OrderRequest{
		Coin:       action.Coin,
		MarketType: action.MarketType,
		IsBuy:      action.ActionType == domain.ActionBuy,
		Size:       action.Size,
		LimitPrice: action.LimitPrice,
		ReduceOnly: reduceOnly,
	}
	result, err := e.c.ExchangeClient.PlaceOrder(ctx, req)
	if err != nil || !result.Success {
		e.c.Log.Error().Err(err).Str("coin", action.Coin).Str("action", string(action.ActionType)).Msg("order submission failed")
		return
	}
	e.c.Log.Info().Str("order_id", result.OrderID).Str("coin", action.Coin).Str("action", string(action.ActionType)).Msg("order submitted")
}

func (e *Engine) writeSnapshot(loop string, account domain.AccountState, activePlan *domain.PlanCard) {
	e.mu.Lock()
	e.tick++
	tick := e.tick
	e.mu.Unlock()

	currentRegime, _ := e.c.Regime.Current()
	e.c.SnapshotWriter.Write(persistence.Snapshot{
		LoopType:     loop,
		CapturedAt:   time.Now(),
		AccountState: account,
		PlanCard:     activePlan,
		Regime:       currentRegime,
		Tick:         tick,
	})
}

// portfolioStateFrom derives a PortfolioState from an AccountState
// (spec.md §4.6 step 0): fractional allocations per coin plus the CashCoin
// pseudo-coin (available balance plus spot balances), summing available
// balance, spot balances and every position's notional value into
// TotalValue.
func portfolioStateFrom(account domain.AccountState) domain.PortfolioState {
	total := account.AvailableBalance
	for _, p := range account.Positions {
		total = total.Add(p.NotionalValue())
	}
	for _, bal := range account.SpotBalances {
		total = total.Add(bal)
	}

	allocations := make(map[string]decimal.Decimal, len(account.Positions)+1)
	positions := make(map[string]domain.Position, len(account.Positions))
	if !total.IsZero() {
		cash := account.AvailableBalance
		for _, bal := range account.SpotBalances {
			cash = cash.Add(bal)
		}
		allocations[domain.CashCoin] = cash.Div(total)
	}
	for _, p := range account.Positions {
		positions[p.Coin] = p
		if !total.IsZero() {
			allocations[p.Coin] = p.NotionalValue().Div(total)
		}
	}

	return domain.PortfolioState{
		TotalValue:       total,
		AvailableBalance: account.AvailableBalance,
		Allocations:      allocations,
		Positions:        positions,
		Timestamp:        account.Timestamp,
	}
}

func largestPositionDepth(account domain.AccountState, fast domain.FastBundle) float64 {
	var largestCoin string
	var largestNotional decimal.Decimal
	for _, p := range account.Positions {
		if p.NotionalValue().GreaterThan(largestNotional) {
			largestNotional = p.NotionalValue()
			largestCoin = p.Coin
		}
	}
	if largestCoin == "" {
		return 0
	}
	return fast.OrderBookDepth[largestCoin]
}

func venueHealthScore(fast domain.FastBundle) float64 {
	if fast.APILatencyMs <= 0 {
		return 1.0
	}
	switch {
	case fast.APILatencyMs < 200:
		return 1.0
	case fast.APILatencyMs < 1000:
		return 0.7
	default:
		return 0.3
	}
}
