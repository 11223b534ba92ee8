package regime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aristath/aegis/internal/domain"
)

type fixedClassifier struct {
	sequence []domain.Regime
	i        int
}

func (f *fixedClassifier) ClassifyRegime(signals domain.RegimeSignals) (domain.Regime, float64, error) {
	r := f.sequence[f.i]
	if f.i < len(f.sequence)-1 {
		f.i++
	}
	return r, 0.9, nil
}

func TestClassifyRequiresConfirmationBeforeSwitching(t *testing.T) {
	classifier := &fixedClassifier{sequence: []domain.Regime{domain.RegimeTrendingBull}}
	d := New(Config{}, classifier)

	now := time.Now()
	cur, err := d.Classify(domain.RegimeSignals{}, nil, now)
	require.NoError(t, err)
	require.Equal(t, domain.RegimeRangeBound, cur, "single observation must not flip the regime yet")

	d.Classify(domain.RegimeSignals{}, nil, now)
	cur, err = d.Classify(domain.RegimeSignals{}, nil, now)
	require.NoError(t, err)
	require.Equal(t, domain.RegimeTrendingBull, cur, "three confirming observations must flip the regime")
}

func TestClassifyRejectsInvalidRegimeLabel(t *testing.T) {
	classifier := &fixedClassifier{sequence: []domain.Regime{domain.Regime("not-a-real-regime")}}
	d := New(Config{}, classifier)
	cur, err := d.Classify(domain.RegimeSignals{}, nil, time.Now())
	require.NoError(t, err)
	require.Equal(t, domain.RegimeRangeBound, cur)
}

func TestEventLockFreezesCurrentRegime(t *testing.T) {
	classifier := &fixedClassifier{sequence: []domain.Regime{domain.RegimeTrendingBear, domain.RegimeTrendingBear, domain.RegimeTrendingBear}}
	d := New(Config{}, classifier)
	now := time.Now()

	events := []domain.MacroEvent{{Name: "FOMC", Time: now.Add(30 * time.Minute), Impact: domain.ImpactHigh}}
	for i := 0; i < 3; i++ {
		d.Classify(domain.RegimeSignals{}, events, now)
	}
	cur, locked := d.Current()
	require.True(t, locked)
	require.Equal(t, domain.RegimeRangeBound, cur, "event lock must prevent the regime from switching")
}

func TestClassifyExitsHysteresisOnPluralityWithoutReclearingEnterThreshold(t *testing.T) {
	// spec.md §8 S4: enter=0.7, exit=0.4, confirmation_cycles=3, history
	// [tb,tb,tb,rb,rb]. The window on the final observation is [tb,rb,rb]:
	// nonCurrentProportion=2/3≈0.667 clears (1-exit)=0.6, so the detector
	// must exit to range-bound even though 2/3 doesn't also clear the 0.7
	// enter threshold.
	classifier := &fixedClassifier{sequence: []domain.Regime{
		domain.RegimeTrendingBull, domain.RegimeTrendingBull, domain.RegimeTrendingBull,
		domain.RegimeRangeBound, domain.RegimeRangeBound,
	}}
	d := New(Config{}, classifier)
	now := time.Now()

	var cur domain.Regime
	for i := 0; i < 5; i++ {
		cur, _ = d.Classify(domain.RegimeSignals{}, nil, now)
	}
	require.Equal(t, domain.RegimeRangeBound, cur, "exit rule must fire once nonCurrentProportion clears 1-exit, independent of the enter threshold")
}

func TestHistoryIsBoundedToLimit(t *testing.T) {
	classifier := &fixedClassifier{sequence: []domain.Regime{domain.RegimeRangeBound}}
	d := New(Config{HistoryLimit: 5}, classifier)
	now := time.Now()
	for i := 0; i < 20; i++ {
		d.Classify(domain.RegimeSignals{}, nil, now)
	}
	require.Len(t, d.History(0), 5)
}

func TestBuildSignalsPicksBTCAsRepresentativeAsset(t *testing.T) {
	medium := domain.MediumBundle{
		TechnicalIndicators: map[string]domain.TechnicalIndicators{
			"BTC": {ADX: 25, SMA20: 65000, SMA50: 64000},
			"ETH": {ADX: 30, SMA20: 2600, SMA50: 2500},
		},
		RealizedVol24h: map[string]float64{"BTC": 0.5},
	}
	signals := BuildSignals(domain.AccountState{}, domain.FastBundle{}, medium)
	require.Equal(t, "BTC", signals.RepresentativeAsset)
	require.Equal(t, 25.0, signals.ADX)
}
