// Package regime implements the Regime Detector (spec.md §4.5): feature
// extraction into a reproducible RegimeSignals record, hysteresis/
// confirmation-gated label changes, and the high-impact-macro-event lock
// that freezes the current regime.
package regime

import (
	"sync"
	"time"

	"github.com/aristath/aegis/internal/domain"
)

// Defaults per spec.md §4.5.
const (
	DefaultConfirmationCycles  = 3
	DefaultHysteresisEnter     = 0.70
	DefaultHysteresisExit      = 0.40
	DefaultHistoryLimit        = 500
	DefaultEventLockBefore     = 2 * time.Hour
	DefaultEventLockAfter      = 1 * time.Hour
)

// Config bounds the detector's hysteresis/event-lock behavior. Zero-value
// Config fields fall back to the package defaults in New.
type Config struct {
	ConfirmationCycles int
	HysteresisEnter    float64
	HysteresisExit     float64
	HistoryLimit       int
	EventLockBefore    time.Duration
	EventLockAfter     time.Duration
}

// Classifier produces a raw regime label from a deterministic
// RegimeSignals record. RuleAdvisor and OpenAIAdvisor both satisfy this
// (spec.md §6.2: LLM classification is optional, rule-based is an
// acceptable substitute).
type Classifier interface {
	ClassifyRegime(signals domain.RegimeSignals) (domain.Regime, float64, error)
}

// Detector holds the append-only classification history and the current
// confirmed regime. Single-writer: only the medium loop calls Classify.
type Detector struct {
	mu         sync.RWMutex
	cfg        Config
	classifier Classifier

	current domain.Regime
	history []domain.ClassificationRecord
	locked  bool
}

// New constructs a Detector. cfg zero fields fall back to spec defaults;
// the initial current regime is RegimeRangeBound, the most conservative
// default absent any observation.
func New(cfg Config, classifier Classifier) *Detector {
	if cfg.ConfirmationCycles == 0 {
		cfg.ConfirmationCycles = DefaultConfirmationCycles
	}
	if cfg.HysteresisEnter == 0 {
		cfg.HysteresisEnter = DefaultHysteresisEnter
	}
	if cfg.HysteresisExit == 0 {
		cfg.HysteresisExit = DefaultHysteresisExit
	}
	if cfg.HistoryLimit == 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	if cfg.EventLockBefore == 0 {
		cfg.EventLockBefore = DefaultEventLockBefore
	}
	if cfg.EventLockAfter == 0 {
		cfg.EventLockAfter = DefaultEventLockAfter
	}
	return &Detector{cfg: cfg, classifier: classifier, current: domain.RegimeRangeBound}
}

// BuildSignals derives the deterministic RegimeSignals record from an
// AccountState + medium/fast bundles, per spec.md §4.5's feature list.
func BuildSignals(account domain.AccountState, fast domain.FastBundle, medium domain.MediumBundle) domain.RegimeSignals {
	rep := representativeAsset(account, medium)

	var adx, sma20, sma50 float64
	if rep != "" {
		if ind, ok := medium.TechnicalIndicators[rep]; ok {
			if ind.ADX >= 0 && ind.ADX <= 100 && ind.SMA20 > 0 && ind.SMA50 > 0 {
				adx, sma20, sma50 = ind.ADX, ind.SMA20, ind.SMA50
			}
		}
	}

	var weightedSum, notionalSum float64
	for _, p := range account.Positions {
		funding, ok := medium.FundingBasis[p.Coin]
		if !ok {
			continue
		}
		notional := p.Size.Abs().Mul(p.CurrentPrice)
		n, _ := notional.Float64()
		weightedSum += n * funding
		notionalSum += n
	}
	var weightedFunding float64
	if notionalSum > 0 {
		weightedFunding = weightedSum / notionalSum
	}

	avgSpread, avgDepth := meanOf(fast.SpreadsBps), meanOf(fast.OrderBookDepth)

	return domain.RegimeSignals{
		RepresentativeAsset: rep,
		ADX:                 adx,
		SMA20:                sma20,
		SMA50:                sma50,
		RealizedVol24h:       meanOf(medium.RealizedVol24h),
		WeightedFunding:      weightedFunding,
		AvgSpreadBps:         avgSpread,
		AvgDepth:             avgDepth,
	}
}

// representativeAsset picks BTC if present, else the largest-notional
// position, else the first coin with non-null indicators (spec.md §4.5).
func representativeAsset(account domain.AccountState, medium domain.MediumBundle) string {
	if _, ok := medium.TechnicalIndicators["BTC"]; ok {
		return "BTC"
	}
	var best string
	var bestNotional float64
	for _, p := range account.Positions {
		if _, ok := medium.TechnicalIndicators[p.Coin]; !ok {
			continue
		}
		n, _ := p.Size.Abs().Mul(p.CurrentPrice).Float64()
		if n > bestNotional {
			bestNotional = n
			best = p.Coin
		}
	}
	if best != "" {
		return best
	}
	for coin := range medium.TechnicalIndicators {
		return coin
	}
	return ""
}

func meanOf(m map[string]float64) float64 {
	if len(m) == 0 {
		return 0
	}
	var sum float64
	for _, v := range m {
		sum += v
	}
	return sum / float64(len(m))
}

// Classify runs the classifier, appends the raw label to history, applies
// hysteresis/confirmation, and checks the event lock. It returns the
// current (possibly unchanged) confirmed regime.
func (d *Detector) Classify(signals domain.RegimeSignals, upcomingEvents []domain.MacroEvent, now time.Time) (domain.Regime, error) {
	raw, confidence, err := d.classifier.ClassifyRegime(signals)
	if err != nil {
		d.mu.RLock()
		cur := d.current
		d.mu.RUnlock()
		return cur, err
	}
	if !domain.IsValidRegime(raw) {
		d.mu.RLock()
		cur := d.current
		d.mu.RUnlock()
		return cur, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.history = append(d.history, domain.ClassificationRecord{Timestamp: now, Regime: raw, Confidence: confidence})
	if len(d.history) > d.cfg.HistoryLimit {
		d.history = d.history[len(d.history)-d.cfg.HistoryLimit:]
	}

	d.locked = eventLockActive(upcomingEvents, now, d.cfg.EventLockBefore, d.cfg.EventLockAfter)
	if d.locked {
		return d.current, nil
	}

	d.applyHysteresis(raw)
	return d.current, nil
}

// applyHysteresis changes current only when the confirmation window
// supports it (spec.md §4.5). Must be called with d.mu held.
func (d *Detector) applyHysteresis(candidate domain.Regime) {
	window := d.history
	if len(window) > d.cfg.ConfirmationCycles {
		window = window[len(window)-d.cfg.ConfirmationCycles:]
	}
	if len(window) < d.cfg.ConfirmationCycles {
		return
	}

	candidateCount := 0
	nonCurrentCount := 0
	for _, rec := range window {
		if rec.Regime == candidate {
			candidateCount++
		}
		if rec.Regime != d.current {
			nonCurrentCount++
		}
	}
	proportion := float64(candidateCount) / float64(len(window))
	nonCurrentProportion := float64(nonCurrentCount) / float64(len(window))

	if candidate != d.current && proportion >= d.cfg.HysteresisEnter {
		d.current = candidate
		return
	}
	if nonCurrentProportion >= (1 - d.cfg.HysteresisExit) {
		// The exit rule is self-sufficient: once the window has lost
		// confidence in the current regime, switch to whichever
		// non-current label is the plurality of the window.
		counts := make(map[domain.Regime]int)
		for _, rec := range window {
			if rec.Regime != d.current {
				counts[rec.Regime]++
			}
		}
		var top domain.Regime
		var topCount int
		for r, c := range counts {
			if c > topCount {
				top, topCount = r, c
			}
		}
		if topCount > 0 {
			d.current = top
		}
	}
}

// eventLockActive reports whether any high-impact event falls within
// [now-before, now+after].
func eventLockActive(events []domain.MacroEvent, now time.Time, before, after time.Duration) bool {
	windowStart := now.Add(-before)
	windowEnd := now.Add(after)
	for _, e := range events {
		if e.Impact != domain.ImpactHigh {
			continue
		}
		if !e.Time.Before(windowStart) && !e.Time.After(windowEnd) {
			return true
		}
	}
	return false
}

// Current returns the currently confirmed regime and whether the event
// lock is active.
func (d *Detector) Current() (domain.Regime, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.current, d.locked
}

// History returns a copy of the last n classification records (n<=0
// returns the full bounded history).
func (d *Detector) History(n int) []domain.ClassificationRecord {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if n <= 0 || n >= len(d.history) {
		out := make([]domain.ClassificationRecord, len(d.history))
		copy(out, d.history)
		return out
	}
	out := make([]domain.ClassificationRecord, n)
	copy(out, d.history[len(d.history)-n:])
	return out
}
