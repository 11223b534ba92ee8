package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPriceHistoryReturnsRequireSufficientDepth(t *testing.T) {
	h := NewPriceHistory()
	for i := 0; i < 5; i++ {
		h.Append(100+float64(i), 101, 99, time.Now())
	}
	_, ok := h.Returns1d()
	require.False(t, ok, "only 5 bars present, Returns1d needs Lookback1d+1 = 7")
}

func TestPriceHistoryReturns1dComputesPctChange(t *testing.T) {
	h := NewPriceHistory()
	for i := 0; i <= Lookback1d; i++ {
		h.Append(100, 101, 99, time.Now())
	}
	h.Append(110, 111, 109, time.Now())
	ret, ok := h.Returns1d()
	require.True(t, ok)
	require.InDelta(t, 0.10, ret, 0.001)
}

func TestPriceHistoryWrapsAtCapacity(t *testing.T) {
	h := NewPriceHistory()
	for i := 0; i < PriceHistoryCapacity+10; i++ {
		h.Append(float64(i), float64(i)+1, float64(i)-1, time.Now())
	}
	require.Equal(t, PriceHistoryCapacity, h.Len())
}

func TestMarketStructureDetectsHigherHighsHigherLows(t *testing.T) {
	h := NewPriceHistory()
	// A simple sawtooth with each peak/trough higher than the last, long
	// enough for MarketStructure's 10-bar minimum.
	pattern := []float64{100, 95, 105, 98, 112, 101, 120, 108, 128, 115, 135}
	for _, p := range pattern {
		h.Append(p, p+1, p-1, time.Now())
	}
	hh, hl := h.MarketStructure()
	require.True(t, hh)
	require.True(t, hl)
}

func TestOpenInterestHistoryChange24hPct(t *testing.T) {
	h := NewOpenInterestHistory()
	h.Append(1000, time.Now())
	h.Append(1100, time.Now())
	change, ok := h.Change24hPct()
	require.True(t, ok)
	require.InDelta(t, 0.10, change, 0.001)
}

func TestOpenInterestHistoryInsufficientDataIsFalse(t *testing.T) {
	h := NewOpenInterestHistory()
	_, ok := h.Change24hPct()
	require.False(t, ok)
}
