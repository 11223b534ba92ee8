// Package indicators wraps go-talib and gonum to turn a coin's closing-price
// history into the TechnicalIndicators the medium bundle and the regime
// detector both consume (spec.md §4.4, §4.5). All functions are pure:
// given the same price slice they return the same result, so the
// orchestrator can call them directly from its rolling buffers without any
// indicator-local state.
package indicators

import (
	"errors"
	"math"

	talib "github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/aegis/internal/domain"
)

// MinCandles is the shortest history Compute will accept; fewer than this
// and the longest-period indicator (SMA50) has no meaningful value.
const MinCandles = 50

// ErrInsufficientHistory is returned when fewer than MinCandles closes are
// available. Callers treat this as "not ready yet", not a failure.
var ErrInsufficientHistory = errors.New("indicators: fewer than MinCandles closes")

// Compute derives the full TechnicalIndicators set from a closing-price
// series ordered oldest-to-newest.
func Compute(closes []float64) (domain.TechnicalIndicators, error) {
	if len(closes) < MinCandles {
		return domain.TechnicalIndicators{}, ErrInsufficientHistory
	}

	rsi := talib.Rsi(closes, 14)
	macd, signal, hist := talib.Macd(closes, 12, 26, 9)
	upper, middle, lower := talib.BBands(closes, 20, 2, 2, 0) // 0 == SMA moving-average type
	sma20 := talib.Sma(closes, 20)
	sma50 := talib.Sma(closes, 50)
	ema12 := talib.Ema(closes, 12)
	ema26 := talib.Ema(closes, 26)

	// ADX needs high/low series; lacking a true OHLC feed here, approximate
	// with the close series itself (a conservative, slightly-damped ADX) —
	// the orchestrator passes the real OHLC variant via ComputeWithOHLC when
	// the provider returns full candles.
	adx := talib.Adx(closes, closes, closes, 14)

	last := len(closes) - 1
	bbPos := bbPosition(closes[last], lower[last], upper[last])

	return domain.TechnicalIndicators{
		RSI:           rsi[last],
		MACD:          macd[last],
		MACDSignal:    signal[last],
		MACDHistogram: hist[last],
		BBUpper:       upper[last],
		BBMiddle:      middle[last],
		BBLower:       lower[last],
		BBPosition:    bbPos,
		SMA20:         sma20[last],
		SMA50:         sma50[last],
		EMA12:         ema12[last],
		EMA26:         ema26[last],
		ADX:           adx[last],
	}, nil
}

// ComputeWithOHLC is the full-fidelity variant used when the provider has
// real high/low/close candles rather than close-only ticks.
func ComputeWithOHLC(high, low, close []float64) (domain.TechnicalIndicators, error) {
	if len(close) < MinCandles {
		return domain.TechnicalIndicators{}, ErrInsufficientHistory
	}
	ind, err := Compute(close)
	if err != nil {
		return domain.TechnicalIndicators{}, err
	}
	adx := talib.Adx(high, low, close, 14)
	ind.ADX = adx[len(adx)-1]
	return ind, nil
}

func bbPosition(price, lower, upper float64) float64 {
	if upper <= lower {
		return 0.5
	}
	pos := (price - lower) / (upper - lower)
	if pos < 0 {
		return 0
	}
	if pos > 1 {
		return 1
	}
	return pos
}

// RealizedVol annualizes the standard deviation of simple returns over the
// given closes, matching the teacher's returns.go approach of computing
// simple statistics over a returns series with gonum/stat rather than
// hand-rolled variance math.
func RealizedVol(closes []float64, periodsPerYear float64) float64 {
	if len(closes) < 2 {
		return 0
	}
	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		returns = append(returns, (closes[i]-closes[i-1])/closes[i-1])
	}
	if len(returns) < 2 {
		return 0
	}
	_, sd := stat.MeanStdDev(returns, nil)
	return sd * math.Sqrt(periodsPerYear)
}

// Correlation computes the Pearson correlation between two equal-length
// return series, used for BTC/ETH and BTC/SPX cross-asset signals.
func Correlation(a, b []float64) float64 {
	n := len(a)
	if n > len(b) {
		n = len(b)
	}
	if n < 2 {
		return 0
	}
	return stat.Correlation(a[:n], b[:n], nil)
}
