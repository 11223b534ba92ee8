// Package onchain is the on-chain signal provider (spec.md §4.3): token
// unlocks in the next 7 days and 24h whale net-flow, cache-first with a
// zero-flow fallback on exhaustion.
package onchain

import (
	"context"
	"time"

	"github.com/aristath/aegis/internal/cache"
	"github.com/aristath/aegis/internal/domain"
	"github.com/aristath/aegis/internal/providers"
)

// TTL follows spec.md §4.1's slow tier (1800-3600s): on-chain data moves
// slowly relative to order books.
const TTL = 30 * time.Minute

// DataSource is the on-chain analytics backend this provider fronts (e.g.
// a Nansen/Arkham-shaped REST API). Kept as a narrow interface so tests
// supply a fake without standing up HTTP.
type DataSource interface {
	TokenUnlocks7d(ctx context.Context, coin string) (float64, error)
	WhaleFlow24h(ctx context.Context, coin string) (domain.WhaleFlow, error)
}

// Provider is the on-chain signal provider.
type Provider struct {
	source DataSource
	cache  *cache.Cache
}

// New constructs a Provider over source and cache.
func New(source DataSource, c *cache.Cache) *Provider {
	return &Provider{source: source, cache: c}
}

// FetchTokenUnlocks7d returns the fraction of circulating supply unlocking
// in the next 7 days for coin, cache-first, falling back to 0.0.
func (p *Provider) FetchTokenUnlocks7d(ctx context.Context, coin string) providers.FetchResult[float64] {
	key := "unlocks7d:" + coin
	var cached float64
	if age, status := p.cache.Get(key, &cached); status == cache.Hit {
		return providers.Cached(cached, time.Duration(age*float64(time.Second)), TTL)
	}

	var value float64
	err := providers.Do(ctx, providers.DefaultRetryPolicy, func(ctx context.Context) error {
		var fetchErr error
		value, fetchErr = p.source.TokenUnlocks7d(ctx, coin)
		return fetchErr
	})
	if err != nil {
		return providers.Fallback(0.0)
	}
	_ = p.cache.Set(key, value, TTL)
	return providers.Fresh(value)
}

// FetchWhaleFlow24h returns 24h whale inflow/outflow for coin, cache-first,
// falling back to a zero WhaleFlow.
func (p *Provider) FetchWhaleFlow24h(ctx context.Context, coin string) providers.FetchResult[domain.WhaleFlow] {
	key := "whaleflow24h:" + coin
	var cached domain.WhaleFlow
	if age, status := p.cache.Get(key, &cached); status == cache.Hit {
		return providers.Cached(cached, time.Duration(age*float64(time.Second)), TTL)
	}

	var flow domain.WhaleFlow
	err := providers.Do(ctx, providers.DefaultRetryPolicy, func(ctx context.Context) error {
		var fetchErr error
		flow, fetchErr = p.source.WhaleFlow24h(ctx, coin)
		return fetchErr
	})
	if err != nil {
		return providers.Fallback(domain.WhaleFlow{})
	}
	_ = p.cache.Set(key, flow, TTL)
	return providers.Fresh(flow)
}
