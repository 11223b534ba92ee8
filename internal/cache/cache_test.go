package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type quote struct {
	Price float64
}

func TestSetGetRoundTrip(t *testing.T) {
	c := New(nil)
	require.NoError(t, c.Set("orderbook:BTC", quote{Price: 65000}, time.Minute))

	var got quote
	age, status := c.Get("orderbook:BTC", &got)
	require.Equal(t, Hit, status)
	require.Less(t, age, 1.0)
	require.Equal(t, 65000.0, got.Price)
}

func TestGetMissingKeyIsMiss(t *testing.T) {
	c := New(nil)
	var got quote
	_, status := c.Get("nope", &got)
	require.Equal(t, Miss, status)
}

func TestExpiredEntryIsExpired(t *testing.T) {
	c := New(nil)
	require.NoError(t, c.Set("funding:ETH", quote{Price: 1}, -time.Second))

	var got quote
	_, status := c.Get("funding:ETH", &got)
	require.Equal(t, Expired, status)
}

func TestInvalidatePattern(t *testing.T) {
	c := New(nil)
	require.NoError(t, c.Set("orderbook:BTC", quote{Price: 1}, time.Minute))
	require.NoError(t, c.Set("orderbook:ETH", quote{Price: 2}, time.Minute))
	require.NoError(t, c.Set("funding:BTC", quote{Price: 3}, time.Minute))

	removed := c.Invalidate("orderbook:*")
	require.Equal(t, 2, removed)

	var got quote
	_, status := c.Get("funding:BTC", &got)
	require.Equal(t, Hit, status)
}

func TestCleanupExpiredRemovesOnlyStaleEntries(t *testing.T) {
	c := New(nil)
	require.NoError(t, c.Set("fresh", quote{Price: 1}, time.Minute))
	require.NoError(t, c.Set("stale", quote{Price: 2}, -time.Second))

	removed := c.CleanupExpired()
	require.Equal(t, 1, removed)
	require.Equal(t, 1, c.Metrics().Entries)
}

func TestMetricsTracksHitsAndMisses(t *testing.T) {
	c := New(nil)
	require.NoError(t, c.Set("k", quote{Price: 1}, time.Minute))

	var got quote
	c.Get("k", &got)
	c.Get("missing", &got)

	m := c.Metrics()
	require.Equal(t, int64(1), m.Hits)
	require.Equal(t, int64(1), m.Misses)
	require.InDelta(t, 0.5, m.HitRate, 0.001)
}
