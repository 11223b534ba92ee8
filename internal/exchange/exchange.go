// Package exchange defines the venue collaborator boundary (spec.md §6.1):
// the Client interface every provider, the registry and the rebalancer's
// order submission path depend on, plus the payload types the exchange
// returns. Concrete implementations live alongside it — HTTPClient for the
// live venue, exchangetest.MockClient for tests — grounded on the teacher's
// client-adapter split between an SDK package and a thin translating
// wrapper (`internal/clients/exchangerate`).
package exchange

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aristath/aegis/internal/domain"
)

// Meta is the registry hydration payload for perpetual markets.
type Meta struct {
	Perps []PerpMarket
}

// PerpMarket describes one perpetual-futures market.
type PerpMarket struct {
	Base         string
	MarketID     string
	SizeDecimals int
}

// SpotMeta is the registry hydration payload for spot markets.
type SpotMeta struct {
	Markets []SpotMarket
}

// SpotMarket describes one spot market.
type SpotMarket struct {
	Base         string
	Quote        string
	MarketID     string
	SizeDecimals int
}

// PriceLevel is one (price, size) entry in an order book side.
type PriceLevel struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// OrderBook is a point-in-time snapshot of one market's book.
type OrderBook struct {
	Coin      string
	Bids      []PriceLevel
	Asks      []PriceLevel
	Timestamp time.Time
}

// BestBid returns the highest bid, or zero values if the book is empty.
func (b OrderBook) BestBid() (decimal.Decimal, bool) {
	if len(b.Bids) == 0 {
		return decimal.Zero, false
	}
	return b.Bids[0].Price, true
}

// BestAsk returns the lowest ask, or zero values if the book is empty.
func (b OrderBook) BestAsk() (decimal.Decimal, bool) {
	if len(b.Asks) == 0 {
		return decimal.Zero, false
	}
	return b.Asks[0].Price, true
}

// Mid returns the mid price from best bid/ask, or false if either side is
// empty.
func (b OrderBook) Mid() (decimal.Decimal, bool) {
	bid, ok := b.BestBid()
	if !ok {
		return decimal.Zero, false
	}
	ask, ok := b.BestAsk()
	if !ok {
		return decimal.Zero, false
	}
	return bid.Add(ask).Div(decimal.NewFromInt(2)), true
}

// Interval is a candle timeframe.
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval1h  Interval = "1h"
	Interval4h  Interval = "4h"
	Interval1d  Interval = "1d"
)

// Candle is one OHLCV bar.
type Candle struct {
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
	Timestamp time.Time
}

// MaxCandlesPerCall is the venue's hard cap on one fetch_candles call
// (spec.md §4.3).
const MaxCandlesPerCall = 5000

// FundingPoint is one historical funding-rate observation.
type FundingPoint struct {
	Rate      decimal.Decimal
	Premium   decimal.Decimal
	Timestamp time.Time
}

// OpenInterest is a point-in-time open-interest reading.
type OpenInterest struct {
	OpenInterest decimal.Decimal
	Timestamp    time.Time
}

// OrderRequest is one order submission.
type OrderRequest struct {
	Coin       string
	MarketType domain.MarketType
	IsBuy      bool
	Size       decimal.Decimal
	LimitPrice *decimal.Decimal
	ReduceOnly bool
	PostOnly   bool
}

// OrderResult is the venue's response to an OrderRequest.
type OrderResult struct {
	OrderID string
	Success bool
	Filled  *decimal.Decimal
	Err     string
}

// Client is the full venue collaborator contract. Every method must return
// promptly with a classified error (internal/errs) on failure — it must
// never panic, and retries belong to the caller (providers), not Client
// implementations.
type Client interface {
	Meta(ctx context.Context) (Meta, error)
	SpotMeta(ctx context.Context) (SpotMeta, error)
	FetchOrderBook(ctx context.Context, coin string) (OrderBook, error)
	FetchCandles(ctx context.Context, coin string, interval Interval, start, end time.Time) ([]Candle, error)
	FetchFundingHistory(ctx context.Context, coin string, start, end time.Time) ([]FundingPoint, error)
	FetchOpenInterest(ctx context.Context, coin string) (OpenInterest, error)
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
	AccountState(ctx context.Context) (domain.AccountState, error)
}
