package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aristath/aegis/internal/domain"
	"github.com/aristath/aegis/internal/errs"
	"github.com/aristath/aegis/internal/exchange"
	"github.com/aristath/aegis/internal/exchange/exchangetest"
)

func seeded() *Registry {
	client := exchangetest.New()
	client.MetaResp = exchange.Meta{
		Perps: []exchange.PerpMarket{
			{Base: "BTC", MarketID: "BTC-PERP", SizeDecimals: 5},
			{Base: "ETH", MarketID: "ETH-PERP", SizeDecimals: 4},
		},
	}
	client.SpotMetaResp = exchange.SpotMeta{
		Markets: []exchange.SpotMarket{
			{Base: "BTC", Quote: "USDC", MarketID: "BTC/USDC", SizeDecimals: 5},
			{Base: "ETH", Quote: "USDT", MarketID: "ETH/USDT", SizeDecimals: 4},
		},
	}
	r := New(client)
	if err := r.Hydrate(context.Background()); err != nil {
		panic(err)
	}
	return r
}

func TestLookupBeforeHydrateFailsNotReady(t *testing.T) {
	r := New(exchangetest.New())
	_, err := r.GetMarketName("BTC", domain.MarketPerp, "")
	require.ErrorIs(t, err, errs.ErrRegistryNotReady)
}

func TestGetMarketNamePerp(t *testing.T) {
	r := seeded()
	id, err := r.GetMarketName("btc", domain.MarketPerp, "")
	require.NoError(t, err)
	require.Equal(t, "BTC-PERP", id)
}

func TestGetMarketNameSpotPrefersMatchingQuote(t *testing.T) {
	r := seeded()
	id, err := r.GetMarketName("BTC", domain.MarketSpot, "usdc")
	require.NoError(t, err)
	require.Equal(t, "BTC/USDC", id)
}

func TestGetMarketNameSpotFallsBackToFirstMarket(t *testing.T) {
	r := seeded()
	id, err := r.GetMarketName("ETH", domain.MarketSpot, "USDC")
	require.NoError(t, err)
	require.Equal(t, "ETH/USDT", id)
}

func TestGetMarketNameUnknownCoinFails(t *testing.T) {
	r := seeded()
	_, err := r.GetMarketName("DOGE", domain.MarketPerp, "")
	require.Error(t, err)
}

func TestNormalizeStripsWrappedAssetPrefix(t *testing.T) {
	r := seeded()
	id, err := r.GetMarketName("UETH", domain.MarketPerp, "")
	require.NoError(t, err)
	require.Equal(t, "ETH-PERP", id)
}

func TestNormalizeKeepsKnownAssetStartingWithU(t *testing.T) {
	// USDC itself must not be stripped to "SDC" since "SDC" is not a known
	// asset in the seeded registry.
	r := seeded()
	_, err := r.GetMarketName("USDC", domain.MarketPerp, "")
	require.Error(t, err) // USDC has no perp market in this fixture
}

func TestGetSizeDecimals(t *testing.T) {
	r := seeded()
	dec, err := r.GetSizeDecimals("BTC", domain.MarketPerp)
	require.NoError(t, err)
	require.Equal(t, 5, dec)
}

func TestResolveSymbolReverseLookup(t *testing.T) {
	r := seeded()
	base, mt, ok := r.ResolveSymbol("ETH-PERP")
	require.True(t, ok)
	require.Equal(t, "ETH", base)
	require.Equal(t, domain.MarketPerp, mt)
}
