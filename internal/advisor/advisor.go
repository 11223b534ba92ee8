// Package advisor defines the LLM advisor collaborator (spec.md §6.2):
// plan proposal and optional regime classification, plus a deterministic
// RuleAdvisor fallback that needs no network access, so the detector and
// governor are fully testable without an LLM dependency.
package advisor

import (
	"time"

	"github.com/aristath/aegis/internal/domain"
)

// Usage records LLM token consumption for one advisor call (spec.md §6.2).
// It is returned on ProposedPlanCard.Usage; no CLI command reports it.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// ProposedPlanCard is the advisor's plan-proposal response: either a new
// plan card or a signal to keep the active plan unchanged ("maintain").
type ProposedPlanCard struct {
	Maintain  bool
	PlanCard  domain.PlanCard
	Reasoning string
	Usage     Usage
}

// Advisor is the LLM collaborator contract. Both calls run only from the
// medium/slow loops — never the fast loop — and must never block
// indefinitely; implementations are expected to apply their own timeout.
type Advisor interface {
	ProposePlan(account domain.AccountState, signals domain.RegimeSignals, currentRegime domain.Regime, activePlan *domain.PlanCard) (ProposedPlanCard, error)
	ClassifyRegime(signals domain.RegimeSignals) (domain.Regime, float64, error)
}

// clock lets tests pin CreatedAt without relying on time.Now directly.
var clock = time.Now
