package cli

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/aristath/aegis/internal/exchange"
)

func TestFundingRateAtPicksLatestNotAfter(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	funding := []exchange.FundingPoint{
		{Rate: decimal.NewFromFloat(0.0001), Timestamp: base},
		{Rate: decimal.NewFromFloat(0.0002), Timestamp: base.Add(8 * time.Hour)},
		{Rate: decimal.NewFromFloat(0.0003), Timestamp: base.Add(16 * time.Hour)},
	}

	rate := fundingRateAt(funding, base.Add(10*time.Hour))
	require.InDelta(t, 0.0002, rate, 1e-9)
}

func TestFundingRateAtReturnsZeroWhenNoPointQualifies(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	funding := []exchange.FundingPoint{
		{Rate: decimal.NewFromFloat(0.0005), Timestamp: base.Add(time.Hour)},
	}

	rate := fundingRateAt(funding, base)
	require.Equal(t, 0.0, rate)
}
