package di

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aristath/aegis/internal/domain"
)

// httpGetJSON is the shared request helper every data source below builds
// on, grounded on internal/exchange.HTTPClient's post() helper but for
// simple unauthenticated GET endpoints.
func httpGetJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s: unexpected status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// httpExternalMarketSource is externalmarket.DataSource's production
// implementation: a small REST facade (BaseURL is typically a self-hosted
// aggregator sitting in front of a traditional-markets feed and an
// economic-calendar API, since no single public endpoint covers both).
type httpExternalMarketSource struct {
	baseURL string
	client  *http.Client
}

func newHTTPExternalMarketSource(baseURL string) *httpExternalMarketSource {
	return &httpExternalMarketSource{baseURL: strings.TrimSuffix(baseURL, "/"), client: &http.Client{Timeout: 10 * time.Second}}
}

func (s *httpExternalMarketSource) BTCEthCorrelation(ctx context.Context) (float64, error) {
	var out struct {
		Correlation float64 `json:"correlation"`
	}
	if err := httpGetJSON(ctx, s.client, s.baseURL+"/correlation/btc-eth", &out); err != nil {
		return 0, err
	}
	return out.Correlation, nil
}

func (s *httpExternalMarketSource) BTCSpxCorrelation(ctx context.Context) (*float64, error) {
	var out struct {
		Correlation *float64 `json:"correlation"`
	}
	if err := httpGetJSON(ctx, s.client, s.baseURL+"/correlation/btc-spx", &out); err != nil {
		return nil, err
	}
	return out.Correlation, nil
}

func (s *httpExternalMarketSource) MacroEventsNext7d(ctx context.Context) ([]domain.MacroEvent, error) {
	var out struct {
		Events []struct {
			Name   string    `json:"name"`
			Time   time.Time `json:"time"`
			Impact string    `json:"impact"`
		} `json:"events"`
	}
	if err := httpGetJSON(ctx, s.client, s.baseURL+"/calendar/next7d", &out); err != nil {
		return nil, err
	}
	events := make([]domain.MacroEvent, 0, len(out.Events))
	for _, e := range out.Events {
		events = append(events, domain.MacroEvent{Name: e.Name, Time: e.Time, Impact: domain.ImpactLevel(e.Impact)})
	}
	return events, nil
}

// httpOnchainSource is onchain.DataSource's production implementation,
// fronting a Nansen/Arkham-shaped on-chain analytics REST API.
type httpOnchainSource struct {
	baseURL string
	client  *http.Client
}

func newHTTPOnchainSource(baseURL string) *httpOnchainSource {
	return &httpOnchainSource{baseURL: strings.TrimSuffix(baseURL, "/"), client: &http.Client{Timeout: 10 * time.Second}}
}

func (s *httpOnchainSource) TokenUnlocks7d(ctx context.Context, coin string) (float64, error) {
	var out struct {
		Fraction float64 `json:"unlock_fraction_7d"`
	}
	if err := httpGetJSON(ctx, s.client, s.baseURL+"/unlocks/"+coin, &out); err != nil {
		return 0, err
	}
	return out.Fraction, nil
}

func (s *httpOnchainSource) WhaleFlow24h(ctx context.Context, coin string) (domain.WhaleFlow, error) {
	var out struct {
		Inflow  float64 `json:"inflow"`
		Outflow float64 `json:"outflow"`
		TxCount int     `json:"tx_count"`
	}
	if err := httpGetJSON(ctx, s.client, s.baseURL+"/whales/"+coin+"/24h", &out); err != nil {
		return domain.WhaleFlow{}, err
	}
	return domain.WhaleFlow{Inflow: out.Inflow, Outflow: out.Outflow, Net: out.Inflow - out.Outflow, TxCount: out.TxCount}, nil
}

// httpSentimentSource is sentiment.DataSource's production implementation,
// fronting a fear-greed index feed (e.g. alternative.me-shaped).
type httpSentimentSource struct {
	baseURL string
	client  *http.Client
}

func newHTTPSentimentSource(baseURL string) *httpSentimentSource {
	return &httpSentimentSource{baseURL: strings.TrimSuffix(baseURL, "/"), client: &http.Client{Timeout: 10 * time.Second}}
}

func (s *httpSentimentSource) FearGreedIndex(ctx context.Context) (float64, error) {
	var out struct {
		Value float64 `json:"value"`
	}
	if err := httpGetJSON(ctx, s.client, s.baseURL+"/fear-greed", &out); err != nil {
		return 0, err
	}
	// Normalize alternative.me's [0,100] scale to [-1,+1] per spec.md §4.3.
	return (out.Value/50.0 - 1.0), nil
}
