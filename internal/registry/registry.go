// Package registry implements the Market Registry (spec.md §4.2): a
// hydrated, read-mostly map from (symbol, market type, quote) to venue
// market identifier and size-decimal precision. It mirrors the teacher's
// MarketStateDetector in internal/market_regime/market_state.go — a
// mutex-guarded struct hydrated once, refreshed atomically, read lock-free
// after hydration via an atomic pointer swap rather than a held read lock.
package registry

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/aristath/aegis/internal/domain"
	"github.com/aristath/aegis/internal/errs"
	"github.com/aristath/aegis/internal/exchange"
)

// snapshot is the immutable hydrated state, swapped atomically on refresh.
type snapshot struct {
	// perpByBase maps a normalized base symbol to its canonical perp market
	// identifier, e.g. "BTC" -> "BTC-PERP".
	perpByBase map[string]string
	// spotByBaseQuote maps "BASE/QUOTE" (quote uppercased) to a spot market
	// identifier.
	spotByBaseQuote map[string]string
	// spotFirstByBase is the first spot market seen for a base symbol,
	// used as the fallback when no quote match exists.
	spotFirstByBase map[string]string
	// sizeDecimals maps "marketID" -> precision.
	sizeDecimals map[string]int
	// knownAssets lets normalize() decide whether a leading "U" is the
	// wrapped-asset prefix ("UETH") or a real ticker ("USDC").
	knownAssets map[string]bool
}

// Registry is the hydrated market registry. The zero value is not ready;
// construct with New and call Hydrate before any lookup.
type Registry struct {
	client exchange.Client
	snap   atomic.Pointer[snapshot]
}

// New constructs a Registry bound to client. Hydrate must be called before
// any lookup method will succeed.
func New(client exchange.Client) *Registry {
	return &Registry{client: client}
}

// IsReady reports whether Hydrate has completed at least once.
func (r *Registry) IsReady() bool {
	return r.snap.Load() != nil
}

// Hydrate fetches market metadata from the exchange's meta/spot_meta
// endpoints and atomically installs the new snapshot. On failure, the
// previously-installed snapshot (if any) is left in place — refresh never
// leaves the registry partially updated.
func (r *Registry) Hydrate(ctx context.Context) error {
	meta, err := r.client.Meta(ctx)
	if err != nil {
		return errs.New(errs.KindTransient, "registry.Hydrate", err)
	}
	spotMeta, err := r.client.SpotMeta(ctx)
	if err != nil {
		return errs.New(errs.KindTransient, "registry.Hydrate", err)
	}

	next := &snapshot{
		perpByBase:      make(map[string]string, len(meta.Perps)),
		spotByBaseQuote: make(map[string]string, len(spotMeta.Markets)),
		spotFirstByBase: make(map[string]string, len(spotMeta.Markets)),
		sizeDecimals:    make(map[string]int, len(meta.Perps)+len(spotMeta.Markets)),
		knownAssets:     make(map[string]bool, len(meta.Perps)+len(spotMeta.Markets)),
	}

	for _, p := range meta.Perps {
		base := strings.ToUpper(p.Base)
		next.perpByBase[base] = p.MarketID
		next.sizeDecimals[p.MarketID] = p.SizeDecimals
		next.knownAssets[base] = true
	}
	for _, m := range spotMeta.Markets {
		base := strings.ToUpper(m.Base)
		quote := strings.ToUpper(m.Quote)
		key := base + "/" + quote
		next.spotByBaseQuote[key] = m.MarketID
		if _, ok := next.spotFirstByBase[base]; !ok {
			next.spotFirstByBase[base] = m.MarketID
		}
		next.sizeDecimals[m.MarketID] = m.SizeDecimals
		next.knownAssets[base] = true
	}

	r.snap.Store(next)
	return nil
}

func (r *Registry) loaded() (*snapshot, error) {
	s := r.snap.Load()
	if s == nil {
		return nil, errs.ErrRegistryNotReady
	}
	return s, nil
}

// normalize upper-cases and strips a leading "U" wrapped-asset prefix when
// the stripped form is itself a known asset (e.g. "UETH" -> "ETH", but
// "USDC" stays "USDC" since "SDC" is not a known asset).
func (s *snapshot) normalize(symbol string) string {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if strings.HasPrefix(sym, "U") {
		stripped := strings.TrimPrefix(sym, "U")
		if s.knownAssets[stripped] {
			return stripped
		}
	}
	return sym
}

// GetMarketName resolves symbol to a venue market identifier. quote
// defaults to domain.CashCoin ("USDC") when empty.
func (r *Registry) GetMarketName(symbol string, marketType domain.MarketType, quote string) (string, error) {
	s, err := r.loaded()
	if err != nil {
		return "", err
	}
	if quote == "" {
		quote = domain.CashCoin
	}
	base := s.normalize(symbol)

	switch marketType {
	case domain.MarketPerp:
		if id, ok := s.perpByBase[base]; ok {
			return id, nil
		}
		return "", errs.New(errs.KindValidation, "registry.GetMarketName", errs.ErrUnknownMarket)
	case domain.MarketSpot:
		key := base + "/" + strings.ToUpper(quote)
		if id, ok := s.spotByBaseQuote[key]; ok {
			return id, nil
		}
		if id, ok := s.spotFirstByBase[base]; ok {
			return id, nil
		}
		return "", errs.New(errs.KindValidation, "registry.GetMarketName", errs.ErrUnknownMarket)
	default:
		return "", errs.New(errs.KindValidation, "registry.GetMarketName", errs.ErrUnknownMarket)
	}
}

// GetSizeDecimals returns the size precision for symbol/marketType.
func (r *Registry) GetSizeDecimals(symbol string, marketType domain.MarketType) (int, error) {
	s, err := r.loaded()
	if err != nil {
		return 0, err
	}
	marketID, err := r.GetMarketName(symbol, marketType, domain.CashCoin)
	if err != nil {
		return 0, err
	}
	dec, ok := s.sizeDecimals[marketID]
	if !ok {
		return 0, errs.New(errs.KindValidation, "registry.GetSizeDecimals", errs.ErrUnknownMarket)
	}
	return dec, nil
}

// ResolveSymbol reverse-looks-up a venue market identifier back to a base
// symbol and market type.
func (r *Registry) ResolveSymbol(raw string) (base string, marketType domain.MarketType, ok bool) {
	s, err := r.loaded()
	if err != nil {
		return "", "", false
	}
	for b, id := range s.perpByBase {
		if id == raw {
			return b, domain.MarketPerp, true
		}
	}
	for key, id := range s.spotByBaseQuote {
		if id == raw {
			parts := strings.SplitN(key, "/", 2)
			return parts[0], domain.MarketSpot, true
		}
	}
	return "", "", false
}
