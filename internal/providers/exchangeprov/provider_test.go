package exchangeprov

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/aristath/aegis/internal/cache"
	"github.com/aristath/aegis/internal/exchange"
	"github.com/aristath/aegis/internal/exchange/exchangetest"
)

func TestFetchOrderBookFreshThenCached(t *testing.T) {
	client := exchangetest.New()
	client.SetOrderBook("BTC", [][2]float64{{64900, 2}}, [][2]float64{{65100, 1}})
	p := New(client, cache.New(nil))

	first := p.FetchOrderBook(context.Background(), "BTC")
	require.Equal(t, 1.0, first.Confidence)
	require.False(t, first.IsCached)

	second := p.FetchOrderBook(context.Background(), "BTC")
	require.True(t, second.IsCached)
	require.Greater(t, second.Confidence, 0.0)
}

func TestFetchOrderBookFallsBackOnError(t *testing.T) {
	client := exchangetest.New()
	client.Errs["FetchOrderBook"] = errBoom
	p := New(client, cache.New(nil))

	result := p.FetchOrderBook(context.Background(), "BTC")
	require.Equal(t, 0.0, result.Confidence)
	require.Equal(t, "BTC", result.Value.Coin)
}

func TestFetchMidPriceDerivesFromOrderBook(t *testing.T) {
	client := exchangetest.New()
	client.SetOrderBook("ETH", [][2]float64{{2590, 5}}, [][2]float64{{2610, 5}})
	p := New(client, cache.New(nil))

	mid, ok := p.FetchMidPrice(context.Background(), "ETH")
	require.True(t, ok)
	require.Equal(t, 2600.0, mid.Value)
}

func TestFetchCandlesCachesAcrossIdenticalWindow(t *testing.T) {
	client := exchangetest.New()
	client.Candles["BTC"] = []exchange.Candle{{Close: decimal.NewFromFloat(65000)}}
	p := New(client, cache.New(nil))

	start := time.Unix(0, 0)
	end := start.Add(time.Hour)

	first := p.FetchCandles(context.Background(), "BTC", exchange.Interval1h, start, end)
	require.Len(t, first.Value, 1)
	require.False(t, first.IsCached)

	second := p.FetchCandles(context.Background(), "BTC", exchange.Interval1h, start, end)
	require.True(t, second.IsCached)
}

var errBoom = errBoomType{}

type errBoomType struct{}

func (errBoomType) Error() string { return "boom" }
