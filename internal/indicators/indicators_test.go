package indicators

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func syntheticCloses(n int) []float64 {
	closes := make([]float64, n)
	price := 100.0
	for i := range closes {
		price += 0.5
		closes[i] = price
	}
	return closes
}

func TestComputeRejectsShortHistory(t *testing.T) {
	_, err := Compute(syntheticCloses(10))
	require.ErrorIs(t, err, ErrInsufficientHistory)
}

func TestComputeReturnsBoundedBollingerPosition(t *testing.T) {
	ind, err := Compute(syntheticCloses(60))
	require.NoError(t, err)
	require.GreaterOrEqual(t, ind.BBPosition, 0.0)
	require.LessOrEqual(t, ind.BBPosition, 1.0)
	require.Greater(t, ind.SMA50, 0.0)
}

func TestRealizedVolZeroForFlatSeries(t *testing.T) {
	flat := make([]float64, 30)
	for i := range flat {
		flat[i] = 100
	}
	require.Equal(t, 0.0, RealizedVol(flat, 365))
}

func TestRealizedVolPositiveForMovingSeries(t *testing.T) {
	vol := RealizedVol(syntheticCloses(30), 365)
	require.Greater(t, vol, 0.0)
}

func TestCorrelationPerfectForIdenticalSeries(t *testing.T) {
	a := []float64{1, 2, 3, 4, 5}
	require.InDelta(t, 1.0, Correlation(a, a), 0.0001)
}
