// Package externalmarket is the cross-asset signal provider (spec.md
// §4.3): BTC/ETH and optional BTC/SPX correlation plus the upcoming
// macro-event calendar, cache-first with an empty-calendar fallback.
package externalmarket

import (
	"context"
	"time"

	"github.com/aristath/aegis/internal/cache"
	"github.com/aristath/aegis/internal/domain"
	"github.com/aristath/aegis/internal/providers"
)

// TTL follows spec.md §4.1's slow tier.
const TTL = 30 * time.Minute

// DataSource fronts whichever traditional-markets/calendar API supplies
// cross-asset correlation and macro events.
type DataSource interface {
	BTCEthCorrelation(ctx context.Context) (float64, error)
	BTCSpxCorrelation(ctx context.Context) (*float64, error) // nil when SPX data unavailable
	MacroEventsNext7d(ctx context.Context) ([]domain.MacroEvent, error)
}

// Provider is the external-market signal provider.
type Provider struct {
	source DataSource
	cache  *cache.Cache
}

// New constructs a Provider over source and cache.
func New(source DataSource, c *cache.Cache) *Provider {
	return &Provider{source: source, cache: c}
}

// FetchBTCEthCorrelation returns the rolling BTC/ETH return correlation,
// cache-first, falling back to 0.0 (no signal) on exhaustion.
func (p *Provider) FetchBTCEthCorrelation(ctx context.Context) providers.FetchResult[float64] {
	key := "corr:btc_eth"
	var cached float64
	if age, status := p.cache.Get(key, &cached); status == cache.Hit {
		return providers.Cached(cached, time.Duration(age*float64(time.Second)), TTL)
	}

	var value float64
	err := providers.Do(ctx, providers.DefaultRetryPolicy, func(ctx context.Context) error {
		var fetchErr error
		value, fetchErr = p.source.BTCEthCorrelation(ctx)
		return fetchErr
	})
	if err != nil {
		return providers.Fallback(0.0)
	}
	_ = p.cache.Set(key, value, TTL)
	return providers.Fresh(value)
}

// FetchBTCSpxCorrelation returns the rolling BTC/SPX correlation. A nil
// value (source has no SPX feed) is itself a valid fresh result, not a
// fallback — spec.md §4.4 marks this field optional.
func (p *Provider) FetchBTCSpxCorrelation(ctx context.Context) providers.FetchResult[*float64] {
	key := "corr:btc_spx"
	var cached *float64
	if age, status := p.cache.Get(key, &cached); status == cache.Hit {
		return providers.Cached(cached, time.Duration(age*float64(time.Second)), TTL)
	}

	var value *float64
	err := providers.Do(ctx, providers.DefaultRetryPolicy, func(ctx context.Context) error {
		var fetchErr error
		value, fetchErr = p.source.BTCSpxCorrelation(ctx)
		return fetchErr
	})
	if err != nil {
		return providers.Fallback[*float64](nil)
	}
	_ = p.cache.Set(key, value, TTL)
	return providers.Fresh(value)
}

// FetchMacroEventsNext7d returns the macro-event calendar, cache-first,
// falling back to an empty list on exhaustion.
func (p *Provider) FetchMacroEventsNext7d(ctx context.Context) providers.FetchResult[[]domain.MacroEvent] {
	key := "macro:next7d"
	var cached []domain.MacroEvent
	if age, status := p.cache.Get(key, &cached); status == cache.Hit {
		return providers.Cached(cached, time.Duration(age*float64(time.Second)), TTL)
	}

	var events []domain.MacroEvent
	err := providers.Do(ctx, providers.DefaultRetryPolicy, func(ctx context.Context) error {
		var fetchErr error
		events, fetchErr = p.source.MacroEventsNext7d(ctx)
		return fetchErr
	})
	if err != nil {
		return providers.Fallback[[]domain.MacroEvent](nil)
	}
	_ = p.cache.Set(key, events, TTL)
	return providers.Fresh(events)
}
