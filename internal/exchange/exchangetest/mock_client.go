// Package exchangetest provides a deterministic in-memory exchange.Client
// used by every other package's tests, grounded on the teacher's
// internal/testing mock collaborators.
package exchangetest

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aristath/aegis/internal/domain"
	"github.com/aristath/aegis/internal/exchange"
)

// MockClient is a fully in-memory exchange.Client. Every field is
// pre-seeded by the test and read under a mutex so concurrent orchestrator
// fan-out is safe to exercise in tests.
type MockClient struct {
	mu sync.Mutex

	MetaResp     exchange.Meta
	SpotMetaResp exchange.SpotMeta
	OrderBooks   map[string]exchange.OrderBook
	Candles      map[string][]exchange.Candle
	Funding      map[string][]exchange.FundingPoint
	OpenInterest map[string]exchange.OpenInterest
	Account      domain.AccountState

	// Errs, keyed by method name, forces that call to fail — used to drive
	// provider fallback/retry tests.
	Errs map[string]error

	// Orders records every PlaceOrder call for assertions.
	Orders []exchange.OrderRequest
}

// New constructs an empty MockClient ready for a test to populate.
func New() *MockClient {
	return &MockClient{
		OrderBooks:   make(map[string]exchange.OrderBook),
		Candles:      make(map[string][]exchange.Candle),
		Funding:      make(map[string][]exchange.FundingPoint),
		OpenInterest: make(map[string]exchange.OpenInterest),
		Errs:         make(map[string]error),
	}
}

func (m *MockClient) errFor(method string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Errs[method]
}

func (m *MockClient) Meta(ctx context.Context) (exchange.Meta, error) {
	if err := m.errFor("Meta"); err != nil {
		return exchange.Meta{}, err
	}
	return m.MetaResp, nil
}

func (m *MockClient) SpotMeta(ctx context.Context) (exchange.SpotMeta, error) {
	if err := m.errFor("SpotMeta"); err != nil {
		return exchange.SpotMeta{}, err
	}
	return m.SpotMetaResp, nil
}

func (m *MockClient) FetchOrderBook(ctx context.Context, coin string) (exchange.OrderBook, error) {
	if err := m.errFor("FetchOrderBook"); err != nil {
		return exchange.OrderBook{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	book, ok := m.OrderBooks[coin]
	if !ok {
		return exchange.OrderBook{Coin: coin, Timestamp: time.Now()}, nil
	}
	return book, nil
}

func (m *MockClient) FetchCandles(ctx context.Context, coin string, interval exchange.Interval, start, end time.Time) ([]exchange.Candle, error) {
	if err := m.errFor("FetchCandles"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Candles[coin], nil
}

func (m *MockClient) FetchFundingHistory(ctx context.Context, coin string, start, end time.Time) ([]exchange.FundingPoint, error) {
	if err := m.errFor("FetchFundingHistory"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Funding[coin], nil
}

func (m *MockClient) FetchOpenInterest(ctx context.Context, coin string) (exchange.OpenInterest, error) {
	if err := m.errFor("FetchOpenInterest"); err != nil {
		return exchange.OpenInterest{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.OpenInterest[coin], nil
}

func (m *MockClient) PlaceOrder(ctx context.Context, req exchange.OrderRequest) (exchange.OrderResult, error) {
	if err := m.errFor("PlaceOrder"); err != nil {
		return exchange.OrderResult{}, err
	}
	m.mu.Lock()
	m.Orders = append(m.Orders, req)
	m.mu.Unlock()
	return exchange.OrderResult{OrderID: "mock-order", Success: true, Filled: &req.Size}, nil
}

func (m *MockClient) AccountState(ctx context.Context) (domain.AccountState, error) {
	if err := m.errFor("AccountState"); err != nil {
		return domain.AccountState{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Account, nil
}

// SetOrderBook is a convenience setter used by tests to build a book from
// flat bid/ask price-size pairs.
func (m *MockClient) SetOrderBook(coin string, bids, asks [][2]float64) {
	toLevels := func(pairs [][2]float64) []exchange.PriceLevel {
		out := make([]exchange.PriceLevel, 0, len(pairs))
		for _, p := range pairs {
			out = append(out, exchange.PriceLevel{
				Price: decimal.NewFromFloat(p[0]),
				Size:  decimal.NewFromFloat(p[1]),
			})
		}
		return out
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OrderBooks[coin] = exchange.OrderBook{
		Coin:      coin,
		Bids:      toLevels(bids),
		Asks:      toLevels(asks),
		Timestamp: time.Now(),
	}
}
