package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/aristath/aegis/internal/cache"
	"github.com/aristath/aegis/internal/domain"
	"github.com/aristath/aegis/internal/exchange"
	"github.com/aristath/aegis/internal/exchange/exchangetest"
	"github.com/aristath/aegis/internal/providers/exchangeprov"
	"github.com/aristath/aegis/internal/providers/externalmarket"
	"github.com/aristath/aegis/internal/providers/onchain"
	"github.com/aristath/aegis/internal/providers/sentiment"
)

type fakeOnchain struct{}

func (fakeOnchain) TokenUnlocks7d(ctx context.Context, coin string) (float64, error) { return 0.02, nil }
func (fakeOnchain) WhaleFlow24h(ctx context.Context, coin string) (domain.WhaleFlow, error) {
	return domain.WhaleFlow{Inflow: 10, Outflow: 5, Net: 5, TxCount: 3}, nil
}

type fakeExternalMarket struct{}

func (fakeExternalMarket) BTCEthCorrelation(ctx context.Context) (float64, error) { return 0.8, nil }
func (fakeExternalMarket) BTCSpxCorrelation(ctx context.Context) (*float64, error) { return nil, nil }
func (fakeExternalMarket) MacroEventsNext7d(ctx context.Context) ([]domain.MacroEvent, error) {
	return nil, nil
}

type fakeSentiment struct{}

func (fakeSentiment) FearGreedIndex(ctx context.Context) (float64, error) { return 0.1, nil }

func newTestOrchestrator(client *exchangetest.MockClient) *Orchestrator {
	c := cache.New(nil)
	return New(
		exchangeprov.New(client, c),
		onchain.New(fakeOnchain{}, c),
		externalmarket.New(fakeExternalMarket{}, c),
		sentiment.New(fakeSentiment{}, c),
	)
}

func TestCollectFastComputesSpreadAndDepth(t *testing.T) {
	client := exchangetest.New()
	client.SetOrderBook("BTC", [][2]float64{{64900, 150}}, [][2]float64{{65100, 150}})
	o := newTestOrchestrator(client)

	bundle := o.CollectFast(context.Background(), map[string]bool{"BTC": true})
	require.Greater(t, bundle.SpreadsBps["BTC"], 0.0)
	require.Greater(t, bundle.OrderBookDepth["BTC"], 0.0)
	require.Greater(t, bundle.SlippageEstimateBps["BTC"], 0.0)
}

func TestCollectMediumUpdatesRollingBuffers(t *testing.T) {
	client := exchangetest.New()
	candles := make([]exchange.Candle, 60)
	price := 100.0
	for i := range candles {
		price += 0.1
		candles[i] = exchange.Candle{
			Close:     decimal.NewFromFloat(price),
			High:      decimal.NewFromFloat(price + 1),
			Low:       decimal.NewFromFloat(price - 1),
			Timestamp: time.Now().Add(time.Duration(i) * time.Hour),
		}
	}
	client.Candles["BTC"] = candles
	client.Funding["BTC"] = []exchange.FundingPoint{
		{Rate: decimal.NewFromFloat(0.0001), Timestamp: time.Now()},
		{Rate: decimal.NewFromFloat(0.0002), Timestamp: time.Now()},
	}
	client.OpenInterest["BTC"] = exchange.OpenInterest{OpenInterest: decimal.NewFromFloat(5000), Timestamp: time.Now()}

	o := newTestOrchestrator(client)
	bundle := o.CollectMedium(context.Background(), map[string]bool{"BTC": true})

	require.Contains(t, bundle.TechnicalIndicators, "BTC")
	require.Equal(t, 60, o.historyFor("BTC").Len())
}

func TestCollectSlowAssemblesCrossAssetSignals(t *testing.T) {
	client := exchangetest.New()
	client.Funding["BTC"] = []exchange.FundingPoint{{Rate: decimal.NewFromFloat(0.0001), Timestamp: time.Now()}}
	o := newTestOrchestrator(client)

	bundle := o.CollectSlow(context.Background(), map[string]bool{"BTC": true}, 150, 0.95)
	require.Equal(t, domain.LiquidityHigh, bundle.LiquidityRegime)
	require.Equal(t, 0.8, bundle.BTCEthCorrelation)
	require.Nil(t, bundle.BTCSpxCorrelation)
}
