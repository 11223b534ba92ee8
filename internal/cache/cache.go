// Package cache implements the typed TTL key/value store every provider
// sits on top of (spec.md §4.1). Reads never block on writes:
// the hot path takes a read lock over a plain map, matching the teacher's
// clientdata repository style but generalized to an in-process store with an
// optional SQLite-backed persistence layer instead of one table per data
// source.
package cache

import (
	"database/sql"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Status is the outcome of a Get call.
type Status int

const (
	Hit Status = iota
	Miss
	Expired
)

type entry struct {
	value     json.RawMessage
	expiresAt time.Time
	createdAt time.Time
	hitCount  int64
}

// Metrics summarizes cache health for observability (gov_metrics, status
// banners).
type Metrics struct {
	Entries        int
	Hits           int64
	Misses         int64
	HitRate        float64
	AvgAgeSeconds  float64
	ExpiredEntries int
}

// Cache is a typed TTL store. The zero value is not usable; construct with
// New. All methods are safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	hits    int64
	misses  int64

	db *sql.DB // optional persistence, see persistence.go
}

// New constructs an empty in-memory cache. db may be nil to disable
// persistence (tests, backtest replay).
func New(db *sql.DB) *Cache {
	c := &Cache{entries: make(map[string]*entry), db: db}
	if db != nil {
		if err := c.ensureSchema(); err == nil {
			c.loadFromDisk()
		}
	}
	return c
}

// Get returns the decoded value and its age if present and unexpired.
// A missing key is reported as Miss and a key past its TTL as Expired,
// never an error — callers treat anything but Hit as "go fetch fresh".
func (c *Cache) Get(key string, out any) (ageSeconds float64, status Status) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		atomic.AddInt64(&c.misses, 1)
		return 0, Miss
	}
	now := time.Now()
	if now.After(e.expiresAt) {
		atomic.AddInt64(&c.misses, 1)
		return 0, Expired
	}
	if out != nil {
		if err := json.Unmarshal(e.value, out); err != nil {
			atomic.AddInt64(&c.misses, 1)
			return 0, Miss
		}
	}
	atomic.AddInt64(&e.hitCount, 1)
	atomic.AddInt64(&c.hits, 1)
	return now.Sub(e.createdAt).Seconds(), Hit
}

// Set overwrites key with value and a fresh TTL. Persistence failures are
// logged by the caller (via the returned error) but never prevent the
// in-memory write — the in-memory store is always authoritative for reads.
func (c *Cache) Set(key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	now := time.Now()
	e := &entry{value: raw, expiresAt: now.Add(ttl), createdAt: now}
	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
	if c.db != nil {
		return c.persist(key, raw, e.expiresAt, e.createdAt)
	}
	return nil
}

// Invalidate removes every key matching pattern, a glob/SQL-LIKE suffix such
// as "orderbook:*". This is an O(n) scan by design (spec.md §4.1: "not hot").
func (c *Cache) Invalidate(pattern string) int {
	prefix := strings.TrimSuffix(pattern, "*")
	hasWildcard := strings.HasSuffix(pattern, "*")

	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k := range c.entries {
		matches := k == pattern
		if hasWildcard {
			matches = strings.HasPrefix(k, prefix)
		}
		if matches {
			delete(c.entries, k)
			removed++
		}
	}
	if c.db != nil {
		_ = c.deletePattern(prefix, hasWildcard)
	}
	return removed
}

// CleanupExpired removes every expired entry and returns the count removed.
func (c *Cache) CleanupExpired() int {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
			removed++
		}
	}
	if c.db != nil {
		_ = c.deleteExpired(now)
	}
	return removed
}

// Metrics reports aggregate cache health.
func (c *Cache) Metrics() Metrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := time.Now()
	var totalAge float64
	expired := 0
	for _, e := range c.entries {
		totalAge += now.Sub(e.createdAt).Seconds()
		if now.After(e.expiresAt) {
			expired++
		}
	}
	hits := atomic.LoadInt64(&c.hits)
	misses := atomic.LoadInt64(&c.misses)
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total)
	}
	var avgAge float64
	if len(c.entries) > 0 {
		avgAge = totalAge / float64(len(c.entries))
	}
	return Metrics{
		Entries:        len(c.entries),
		Hits:           hits,
		Misses:         misses,
		HitRate:        hitRate,
		AvgAgeSeconds:  avgAge,
		ExpiredEntries: expired,
	}
}
