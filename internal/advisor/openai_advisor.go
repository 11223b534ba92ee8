package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/shopspring/decimal"

	"github.com/aristath/aegis/internal/domain"
	"github.com/aristath/aegis/internal/errs"
)

// OpenAIAdvisor proposes plan cards and (optionally) classifies regimes by
// asking an LLM for a closed JSON schema response, grounded on the pack's
// DeFi-agent LLM-collaborator pattern (constrained JSON extraction rather
// than free-form chat).
type OpenAIAdvisor struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAIAdvisor constructs an OpenAIAdvisor. apiKey comes from
// config.Config.LLMAPIKey.
func NewOpenAIAdvisor(apiKey, model string) *OpenAIAdvisor {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIAdvisor{
		client:  openai.NewClient(apiKey),
		model:   model,
		timeout: 20 * time.Second,
	}
}

// planResponse is the closed JSON schema the model is instructed to emit.
// A nil Allocations map (or Maintain=true) means "keep the active plan".
type planResponse struct {
	Maintain    bool               `json:"maintain"`
	Allocations map[string]float64 `json:"allocations"`
	Horizon     string             `json:"horizon"`
	Reasoning   string             `json:"reasoning"`
}

// ProposePlan asks the model for a target allocation given the current
// account state, signal features and regime. A malformed or empty
// response downgrades to maintain (spec.md §7: LLMError -> maintain).
func (a *OpenAIAdvisor) ProposePlan(account domain.AccountState, signals domain.RegimeSignals, currentRegime domain.Regime, activePlan *domain.PlanCard) (ProposedPlanCard, error) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	prompt := buildPlanPrompt(account, signals, currentRegime, activePlan)
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: planSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		Temperature:    0.2,
	})
	if err != nil {
		return ProposedPlanCard{}, errs.New(errs.KindLLM, "advisor.ProposePlan", err)
	}
	if len(resp.Choices) == 0 {
		return ProposedPlanCard{Maintain: true, Reasoning: "empty advisor response, maintaining active plan"}, nil
	}

	var parsed planResponse
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &parsed); err != nil {
		return ProposedPlanCard{Maintain: true, Reasoning: "malformed advisor response, maintaining active plan"}, nil
	}

	usage := Usage{PromptTokens: resp.Usage.PromptTokens, CompletionTokens: resp.Usage.CompletionTokens}
	if parsed.Maintain || len(parsed.Allocations) == 0 {
		return ProposedPlanCard{Maintain: true, Reasoning: parsed.Reasoning, Usage: usage}, nil
	}

	allocations := make(map[string]decimal.Decimal, len(parsed.Allocations))
	for coin, frac := range parsed.Allocations {
		allocations[coin] = decimal.NewFromFloat(frac)
	}
	card := domain.PlanCard{
		TargetAllocations: domain.TargetAllocation{Allocations: allocations, Reasoning: parsed.Reasoning},
		IntendedHorizon:   domain.Horizon(parsed.Horizon),
		CreatedAt:         clock(),
		Status:            domain.PlanPending,
	}
	return ProposedPlanCard{PlanCard: card, Reasoning: parsed.Reasoning, Usage: usage}, nil
}

// regimeResponse is the closed JSON schema for a regime-classification
// call.
type regimeResponse struct {
	Regime     string  `json:"regime"`
	Confidence float64 `json:"confidence"`
}

// ClassifyRegime asks the model to label the current regime from the
// closed set. Any response outside that set, or a call failure, is
// reported as an error; regime.Detector.Classify then keeps its current
// regime.
func (a *OpenAIAdvisor) ClassifyRegime(signals domain.RegimeSignals) (domain.Regime, float64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: regimeSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildRegimePrompt(signals)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		Temperature:    0,
	})
	if err != nil {
		return "", 0, errs.New(errs.KindLLM, "advisor.ClassifyRegime", err)
	}
	if len(resp.Choices) == 0 {
		return "", 0, errs.New(errs.KindLLM, "advisor.ClassifyRegime", fmt.Errorf("empty response"))
	}

	var parsed regimeResponse
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &parsed); err != nil {
		return "", 0, errs.New(errs.KindLLM, "advisor.ClassifyRegime", err)
	}
	regime := domain.Regime(parsed.Regime)
	if !domain.IsValidRegime(regime) {
		return "", 0, errs.New(errs.KindLLM, "advisor.ClassifyRegime", fmt.Errorf("unknown regime label %q", parsed.Regime))
	}
	return regime, parsed.Confidence, nil
}

const planSystemPrompt = `You are a crypto portfolio governance advisor. Respond only with a JSON ` +
	`object matching {"maintain": bool, "allocations": {coin: fraction}, "horizon": "minutes"|"hours"|"days", "reasoning": string}. ` +
	`Allocation fractions must include a "USDC" cash entry and sum to approximately 1.0.`

const regimeSystemPrompt = `You classify crypto market regimes from a fixed feature record. Respond only ` +
	`with a JSON object matching {"regime": one of "trending-bull"|"trending-bear"|"range-bound"|"carry-friendly"|"event-risk", "confidence": 0..1}.`

func buildPlanPrompt(account domain.AccountState, signals domain.RegimeSignals, currentRegime domain.Regime, activePlan *domain.PlanCard) string {
	active := "none"
	if activePlan != nil {
		active = string(activePlan.Status)
	}
	return fmt.Sprintf(
		"portfolio_value=%s current_regime=%s active_plan_status=%s adx=%.2f sma20=%.2f sma50=%.2f realized_vol_24h=%.4f weighted_funding=%.6f",
		account.PortfolioValue.String(), currentRegime, active, signals.ADX, signals.SMA20, signals.SMA50, signals.RealizedVol24h, signals.WeightedFunding,
	)
}

func buildRegimePrompt(signals domain.RegimeSignals) string {
	return fmt.Sprintf(
		"representative_asset=%s adx=%.2f sma20=%.2f sma50=%.2f realized_vol_24h=%.4f weighted_funding=%.6f avg_spread_bps=%.2f avg_depth=%.2f",
		signals.RepresentativeAsset, signals.ADX, signals.SMA20, signals.SMA50, signals.RealizedVol24h, signals.WeightedFunding, signals.AvgSpreadBps, signals.AvgDepth,
	)
}
