package advisor

import "github.com/aristath/aegis/internal/domain"

// Rule-based regime classification thresholds. These are deliberately
// simple and documented here rather than tuned against historical data —
// the rule advisor exists to make the detector testable without an LLM,
// not to be the production classifier of record.
const (
	trendADXThreshold      = 25.0
	highVolThreshold       = 1.2 // annualized realized vol
	carryFundingThreshold  = 0.0004
	carryVolCeiling        = 0.6
)

// RuleAdvisor is a deterministic Advisor requiring no network access. It
// satisfies spec.md §6.2's "rule-based fallback classifier... acceptable
// substitute" clause and backs every test in this module that needs an
// Advisor without standing up an LLM client.
type RuleAdvisor struct{}

// NewRuleAdvisor constructs a RuleAdvisor.
func NewRuleAdvisor() *RuleAdvisor { return &RuleAdvisor{} }

// ClassifyRegime applies a deterministic decision tree over the feature
// record, in priority order: high volatility first (overrides trend),
// then trend strength/direction, then carry conditions, else range-bound.
func (RuleAdvisor) ClassifyRegime(signals domain.RegimeSignals) (domain.Regime, float64, error) {
	switch {
	case signals.RealizedVol24h >= highVolThreshold:
		return domain.RegimeEventRisk, 0.8, nil
	case signals.ADX >= trendADXThreshold && signals.SMA20 > signals.SMA50:
		return domain.RegimeTrendingBull, 0.75, nil
	case signals.ADX >= trendADXThreshold && signals.SMA20 < signals.SMA50:
		return domain.RegimeTrendingBear, 0.75, nil
	case signals.WeightedFunding >= carryFundingThreshold && signals.RealizedVol24h <= carryVolCeiling:
		return domain.RegimeCarryFriendly, 0.65, nil
	default:
		return domain.RegimeRangeBound, 0.6, nil
	}
}

// ProposePlan always maintains the active plan: the rule advisor proposes
// no new allocations of its own, leaving plan authorship to either the
// OpenAIAdvisor or an operator-authored plan card fed in externally.
func (RuleAdvisor) ProposePlan(account domain.AccountState, signals domain.RegimeSignals, currentRegime domain.Regime, activePlan *domain.PlanCard) (ProposedPlanCard, error) {
	return ProposedPlanCard{Maintain: true, Reasoning: "rule advisor proposes no allocation changes"}, nil
}
