// Package sentiment is the sentiment signal provider (spec.md §4.3): the
// fear-greed index normalized to [-1,+1], cache-first with a neutral
// fallback on exhaustion.
package sentiment

import (
	"context"
	"time"

	"github.com/aristath/aegis/internal/cache"
	"github.com/aristath/aegis/internal/providers"
)

// TTL follows spec.md §4.1's slow tier.
const TTL = 30 * time.Minute

// Neutral is the fallback fear-greed reading when the upstream source is
// unavailable after retry exhaustion.
const Neutral = 0.0

// DataSource fronts the fear-greed index feed.
type DataSource interface {
	FearGreedIndex(ctx context.Context) (float64, error)
}

// Provider is the sentiment signal provider.
type Provider struct {
	source DataSource
	cache  *cache.Cache
}

// New constructs a Provider over source and cache.
func New(source DataSource, c *cache.Cache) *Provider {
	return &Provider{source: source, cache: c}
}

// FetchFearGreedIndex returns the normalized fear-greed reading,
// cache-first, falling back to Neutral on exhaustion.
func (p *Provider) FetchFearGreedIndex(ctx context.Context) providers.FetchResult[float64] {
	key := "feargreed"
	var cached float64
	if age, status := p.cache.Get(key, &cached); status == cache.Hit {
		return providers.Cached(cached, time.Duration(age*float64(time.Second)), TTL)
	}

	var value float64
	err := providers.Do(ctx, providers.DefaultRetryPolicy, func(ctx context.Context) error {
		var fetchErr error
		value, fetchErr = p.source.FearGreedIndex(ctx)
		return fetchErr
	})
	if err != nil {
		return providers.Fallback(Neutral)
	}
	_ = p.cache.Set(key, value, TTL)
	return providers.Fresh(value)
}
