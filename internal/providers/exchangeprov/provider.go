// Package exchangeprov is the authoritative signal provider (spec.md §4.3):
// order books, mid prices, candles, funding history and open interest, all
// cache-first with retry-then-fallback on the underlying exchange.Client.
package exchangeprov

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/aegis/internal/cache"
	"github.com/aristath/aegis/internal/exchange"
	"github.com/aristath/aegis/internal/providers"
)

// TTLs follow spec.md §4.1's advisory tiers: order books are fast-bundle
// material (<=10s), candles/funding/OI feed the medium bundle (300-600s).
const (
	OrderBookTTL = 8 * time.Second
	CandleTTL    = 5 * time.Minute
	FundingTTL   = 10 * time.Minute
	OITTL        = 5 * time.Minute
)

// Provider is the exchange signal provider.
type Provider struct {
	client exchange.Client
	cache  *cache.Cache
}

// New constructs a Provider over client and cache.
func New(client exchange.Client, c *cache.Cache) *Provider {
	return &Provider{client: client, cache: c}
}

// FetchOrderBook returns coin's order book, cache-first.
func (p *Provider) FetchOrderBook(ctx context.Context, coin string) providers.FetchResult[exchange.OrderBook] {
	key := "orderbook:" + coin
	var cached exchange.OrderBook
	if age, status := p.cache.Get(key, &cached); status == cache.Hit {
		return providers.Cached(cached, time.Duration(age*float64(time.Second)), OrderBookTTL)
	}

	var book exchange.OrderBook
	err := providers.Do(ctx, providers.DefaultRetryPolicy, func(ctx context.Context) error {
		var fetchErr error
		book, fetchErr = p.client.FetchOrderBook(ctx, coin)
		return fetchErr
	})
	if err != nil {
		return providers.Fallback(exchange.OrderBook{Coin: coin})
	}
	_ = p.cache.Set(key, book, OrderBookTTL)
	return providers.Fresh(book)
}

// FetchCandles returns interval candles for coin over [start,end],
// cache-first.
func (p *Provider) FetchCandles(ctx context.Context, coin string, interval exchange.Interval, start, end time.Time) providers.FetchResult[[]exchange.Candle] {
	key := fmt.Sprintf("candles:%s:%s:%d:%d", coin, interval, start.Unix(), end.Unix())
	var cached []exchange.Candle
	if age, status := p.cache.Get(key, &cached); status == cache.Hit {
		return providers.Cached(cached, time.Duration(age*float64(time.Second)), CandleTTL)
	}

	var candles []exchange.Candle
	err := providers.Do(ctx, providers.DefaultRetryPolicy, func(ctx context.Context) error {
		var fetchErr error
		candles, fetchErr = p.client.FetchCandles(ctx, coin, interval, start, end)
		return fetchErr
	})
	if err != nil {
		return providers.Fallback[[]exchange.Candle](nil)
	}
	_ = p.cache.Set(key, candles, CandleTTL)
	return providers.Fresh(candles)
}

// FetchFundingHistory returns funding history for coin over [start,end],
// cache-first.
func (p *Provider) FetchFundingHistory(ctx context.Context, coin string, start, end time.Time) providers.FetchResult[[]exchange.FundingPoint] {
	key := fmt.Sprintf("funding:%s:%d:%d", coin, start.Unix(), end.Unix())
	var cached []exchange.FundingPoint
	if age, status := p.cache.Get(key, &cached); status == cache.Hit {
		return providers.Cached(cached, time.Duration(age*float64(time.Second)), FundingTTL)
	}

	var points []exchange.FundingPoint
	err := providers.Do(ctx, providers.DefaultRetryPolicy, func(ctx context.Context) error {
		var fetchErr error
		points, fetchErr = p.client.FetchFundingHistory(ctx, coin, start, end)
		return fetchErr
	})
	if err != nil {
		return providers.Fallback[[]exchange.FundingPoint](nil)
	}
	_ = p.cache.Set(key, points, FundingTTL)
	return providers.Fresh(points)
}

// FetchOpenInterest returns the current open interest for coin,
// cache-first.
func (p *Provider) FetchOpenInterest(ctx context.Context, coin string) providers.FetchResult[exchange.OpenInterest] {
	key := "oi:" + coin
	var cached exchange.OpenInterest
	if age, status := p.cache.Get(key, &cached); status == cache.Hit {
		return providers.Cached(cached, time.Duration(age*float64(time.Second)), OITTL)
	}

	var oi exchange.OpenInterest
	err := providers.Do(ctx, providers.DefaultRetryPolicy, func(ctx context.Context) error {
		var fetchErr error
		oi, fetchErr = p.client.FetchOpenInterest(ctx, coin)
		return fetchErr
	})
	if err != nil {
		return providers.Fallback(exchange.OpenInterest{})
	}
	_ = p.cache.Set(key, oi, OITTL)
	return providers.Fresh(oi)
}

// FetchMidPrice derives the mid price from FetchOrderBook; its confidence
// is whatever the underlying order-book fetch produced.
func (p *Provider) FetchMidPrice(ctx context.Context, coin string) (providers.FetchResult[float64], bool) {
	book := p.FetchOrderBook(ctx, coin)
	mid, ok := book.Value.Mid()
	if !ok {
		return providers.FetchResult[float64]{}, false
	}
	f, _ := mid.Float64()
	return providers.FetchResult[float64]{Value: f, Confidence: book.Confidence, IsCached: book.IsCached, AgeSeconds: book.AgeSeconds}, true
}
