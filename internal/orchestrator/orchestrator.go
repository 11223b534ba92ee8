// Package orchestrator assembles the fast/medium/slow signal bundles
// (spec.md §4.4) from the per-source providers, owns the rolling
// PriceHistory/OpenInterestHistory buffers, and builds the watchlist each
// loop iteration consults. Provider fan-out is bounded concurrency via
// golang.org/x/sync's errgroup + semaphore, mirroring the teacher's queue
// scheduler's preference for explicit goroutine lifecycles over unbounded
// `go func` fan-out.
package orchestrator

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/aristath/aegis/internal/domain"
	"github.com/aristath/aegis/internal/exchange"
	"github.com/aristath/aegis/internal/indicators"
	"github.com/aristath/aegis/internal/providers/exchangeprov"
	"github.com/aristath/aegis/internal/providers/externalmarket"
	"github.com/aristath/aegis/internal/providers/onchain"
	"github.com/aristath/aegis/internal/providers/sentiment"
)

// MaxConcurrentFetches bounds how many provider calls run in parallel per
// bundle collection, protecting the venue from a fan-out burst.
const MaxConcurrentFetches = 8

// Orchestrator assembles signal bundles and owns the rolling buffers.
type Orchestrator struct {
	exchangeProv *exchangeprov.Provider
	onchainProv  *onchain.Provider
	extMarket    *externalmarket.Provider
	sentimentP   *sentiment.Provider

	priceHistory map[string]*PriceHistory
	oiHistory    map[string]*OpenInterestHistory
}

// New constructs an Orchestrator over the four signal providers.
func New(exchangeProv *exchangeprov.Provider, onchainProv *onchain.Provider, extMarket *externalmarket.Provider, sentimentP *sentiment.Provider) *Orchestrator {
	return &Orchestrator{
		exchangeProv: exchangeProv,
		onchainProv:  onchainProv,
		extMarket:    extMarket,
		sentimentP:   sentimentP,
		priceHistory: make(map[string]*PriceHistory),
		oiHistory:    make(map[string]*OpenInterestHistory),
	}
}

func (o *Orchestrator) historyFor(coin string) *PriceHistory {
	h, ok := o.priceHistory[coin]
	if !ok {
		h = NewPriceHistory()
		o.priceHistory[coin] = h
	}
	return h
}

func (o *Orchestrator) oiHistoryFor(coin string) *OpenInterestHistory {
	h, ok := o.oiHistory[coin]
	if !ok {
		h = NewOpenInterestHistory()
		o.oiHistory[coin] = h
	}
	return h
}

func sortedCoins(watchlist map[string]bool) []string {
	coins := make([]string, 0, len(watchlist))
	for c := range watchlist {
		coins = append(coins, c)
	}
	sort.Strings(coins)
	return coins
}

// CollectFast builds the fast bundle (target <=1s): per-coin order-book
// microstructure for every coin in the watchlist.
func (o *Orchestrator) CollectFast(ctx context.Context, watchlist map[string]bool) domain.FastBundle {
	coins := sortedCoins(watchlist)
	bundle := domain.FastBundle{
		SpreadsBps:          make(map[string]float64, len(coins)),
		OrderBookDepth:      make(map[string]float64, len(coins)),
		SlippageEstimateBps: make(map[string]float64, len(coins)),
		ShortTermVolatility: make(map[string]float64, len(coins)),
		MicroPnL:            make(map[string]float64, len(coins)),
	}

	type fastResult struct {
		coin       string
		book       exchange.OrderBook
		confidence float64
		elapsed    time.Duration
	}
	results := make([]fastResult, len(coins))

	sem := semaphore.NewWeighted(MaxConcurrentFetches)
	g, gctx := errgroup.WithContext(ctx)

	for i, coin := range coins {
		i, coin := i, coin
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return nil
			}
			defer sem.Release(1)

			start := time.Now()
			fetched := o.exchangeProv.FetchOrderBook(gctx, coin)
			elapsed := time.Since(start)

			results[i] = fastResult{coin: coin, book: fetched.Value, confidence: fetched.Confidence, elapsed: elapsed}
			return nil
		})
	}
	_ = g.Wait()

	var maxElapsed time.Duration
	for _, r := range results {
		if r.elapsed > maxElapsed {
			maxElapsed = r.elapsed
		}
	}

	var confidenceSum float64
	confidenceN := 0
	for _, r := range results {
		if r.coin == "" {
			continue
		}
		spread, depth, ok := spreadAndDepth(r.book)
		if !ok {
			continue
		}
		bundle.SpreadsBps[r.coin] = spread
		bundle.OrderBookDepth[r.coin] = depth
		bundle.SlippageEstimateBps[r.coin] = slippageEstimate(spread, depth)
		confidenceSum += r.confidence
		confidenceN++
	}

	bundle.APILatencyMs = float64(maxElapsed.Milliseconds())
	bundle.Metadata = metadataFrom(confidenceSum, confidenceN, len(coins))
	return bundle
}

// spreadAndDepth derives the spread in bps and the ±1% depth from an order
// book's best bid/ask, per spec.md §4.4.
func spreadAndDepth(book exchange.OrderBook) (spreadBps, depth float64, ok bool) {
	mid, ok := book.Mid()
	if !ok {
		return 0, 0, false
	}
	bestBid, _ := book.BestBid()
	bestAsk, _ := book.BestAsk()
	midF, _ := mid.Float64()
	if midF == 0 {
		return 0, 0, false
	}
	bidF, _ := bestBid.Float64()
	askF, _ := bestAsk.Float64()
	spreadBps = (askF - bidF) / midF * 10000

	band := midF * 0.01
	lo, hi := midF-band, midF+band
	for _, lvl := range book.Bids {
		px, _ := lvl.Price.Float64()
		sz, _ := lvl.Size.Float64()
		if px >= lo {
			depth += sz
		}
	}
	for _, lvl := range book.Asks {
		px, _ := lvl.Price.Float64()
		sz, _ := lvl.Size.Float64()
		if px <= hi {
			depth += sz
		}
	}
	return spreadBps, depth, true
}

// slippageEstimate implements the piecewise depth-based estimate of
// spec.md §4.4.
func slippageEstimate(spreadBps, depth float64) float64 {
	switch {
	case depth > 100:
		return spreadBps * 0.3
	case depth > 20:
		return spreadBps * 0.5
	default:
		return spreadBps * 0.8
	}
}

func metadataFrom(confidenceSum float64, confidenceN, total int) domain.SignalQualityMetadata {
	meta := domain.SignalQualityMetadata{Timestamp: time.Now(), Sources: map[string]bool{}}
	if total == 0 {
		meta.Confidence = 0
		return meta
	}
	if confidenceN == 0 {
		meta.Confidence = 0
		return meta
	}
	meta.Confidence = (confidenceSum / float64(confidenceN)) * (float64(confidenceN) / float64(total))
	return meta
}

// CollectMedium builds the medium bundle (target <=5s): derivatives and
// technical state per coin, updating the rolling buffers along the way.
func (o *Orchestrator) CollectMedium(ctx context.Context, watchlist map[string]bool) domain.MediumBundle {
	coins := sortedCoins(watchlist)
	bundle := domain.MediumBundle{
		RealizedVol1h:         make(map[string]float64, len(coins)),
		RealizedVol24h:        make(map[string]float64, len(coins)),
		TrendScore:            make(map[string]float64, len(coins)),
		FundingBasis:          make(map[string]float64, len(coins)),
		FundingRateTrend:      make(map[string]domain.FundingTrend, len(coins)),
		OpenInterestChange24h: make(map[string]float64, len(coins)),
		OIToVolumeRatio:       make(map[string]float64, len(coins)),
		TechnicalIndicators:   make(map[string]domain.TechnicalIndicators, len(coins)),
	}

	now := time.Now()
	sevenDaysAgo := now.Add(-7 * 24 * time.Hour)
	oneDayAgo := now.Add(-24 * time.Hour)

	confidenceN := 0
	var confidenceSum float64

	for _, coin := range coins {
		candlesResult := o.exchangeProv.FetchCandles(ctx, coin, exchange.Interval1h, sevenDaysAgo, now)
		fundingResult := o.exchangeProv.FetchFundingHistory(ctx, coin, oneDayAgo, now)
		oiResult := o.exchangeProv.FetchOpenInterest(ctx, coin)

		confidenceSum += (candlesResult.Confidence + fundingResult.Confidence + oiResult.Confidence) / 3
		confidenceN++

		closes := make([]float64, 0, len(candlesResult.Value))
		highs := make([]float64, 0, len(candlesResult.Value))
		lows := make([]float64, 0, len(candlesResult.Value))
		for _, c := range candlesResult.Value {
			close, _ := c.Close.Float64()
			closes = append(closes, close)
			high, _ := c.High.Float64()
			low, _ := c.Low.Float64()
			highs = append(highs, high)
			lows = append(lows, low)
			o.historyFor(coin).Append(close, high, low, c.Timestamp)
		}

		if len(closes) >= indicators.MinCandles {
			ind, err := indicators.ComputeWithOHLC(highs, lows, closes)
			if err == nil {
				bundle.TechnicalIndicators[coin] = ind
				bundle.TrendScore[coin] = trendScore(ind)
			}
			bundle.RealizedVol1h[coin] = indicators.RealizedVol(lastN(closes, 24), 24*365)
			bundle.RealizedVol24h[coin] = indicators.RealizedVol(closes, 365)
		}

		if !oiResult.Value.Timestamp.IsZero() {
			oi, _ := oiResult.Value.OpenInterest.Float64()
			o.oiHistoryFor(coin).Append(oi, oiResult.Value.Timestamp)
		}
		if change, ok := o.oiHistoryFor(coin).Change24hPct(); ok {
			bundle.OpenInterestChange24h[coin] = change
		}

		if len(fundingResult.Value) > 0 {
			bundle.FundingBasis[coin] = fundingBasis(fundingResult.Value)
			bundle.FundingRateTrend[coin] = fundingTrend(fundingResult.Value)
		}
	}

	bundle.Metadata = metadataFrom(confidenceSum, confidenceN, len(coins))
	return bundle
}

func lastN(xs []float64, n int) []float64 {
	if len(xs) <= n {
		return xs
	}
	return xs[len(xs)-n:]
}

func trendScore(ind domain.TechnicalIndicators) float64 {
	if ind.SMA50 == 0 {
		return 0
	}
	score := (ind.SMA20 - ind.SMA50) / ind.SMA50
	if score > 1 {
		score = 1
	}
	if score < -1 {
		score = -1
	}
	return score
}

func fundingBasis(points []exchange.FundingPoint) float64 {
	var sum float64
	for _, p := range points {
		f, _ := p.Rate.Float64()
		sum += f
	}
	return sum / float64(len(points))
}

// fundingTrend splits the history in half and compares means, per
// spec.md §4.4: ratio > 1.1 -> increasing, < 0.9 -> decreasing, else
// stable.
func fundingTrend(points []exchange.FundingPoint) domain.FundingTrend {
	if len(points) < 2 {
		return domain.FundingStable
	}
	mid := len(points) / 2
	firstHalf := points[:mid]
	secondHalf := points[mid:]

	mean := func(ps []exchange.FundingPoint) float64 {
		var sum float64
		for _, p := range ps {
			f, _ := p.Rate.Float64()
			sum += f
		}
		if len(ps) == 0 {
			return 0
		}
		return sum / float64(len(ps))
	}

	firstMean := mean(firstHalf)
	secondMean := mean(secondHalf)
	if firstMean == 0 {
		return domain.FundingStable
	}
	ratio := secondMean / firstMean
	switch {
	case ratio > 1.1:
		return domain.FundingIncreasing
	case ratio < 0.9:
		return domain.FundingDecreasing
	default:
		return domain.FundingStable
	}
}

// CollectSlow builds the slow bundle (target <=15s): macro/cross-asset
// context.
func (o *Orchestrator) CollectSlow(ctx context.Context, watchlist map[string]bool, largestPositionDepth float64, venueHealth float64) domain.SlowBundle {
	g, gctx := errgroup.WithContext(ctx)

	var macroEvents []domain.MacroEvent
	var btcEthCorr float64
	var btcSpxCorr *float64
	var fearGreed float64
	var btcFunding []exchange.FundingPoint
	var macroEventsConf, btcEthCorrConf, btcSpxCorrConf, fearGreedConf, btcFundingConf float64

	g.Go(func() error {
		r := o.extMarket.FetchMacroEventsNext7d(gctx)
		macroEvents, macroEventsConf = r.Value, r.Confidence
		return nil
	})
	g.Go(func() error {
		r := o.extMarket.FetchBTCEthCorrelation(gctx)
		btcEthCorr, btcEthCorrConf = r.Value, r.Confidence
		return nil
	})
	g.Go(func() error {
		r := o.extMarket.FetchBTCSpxCorrelation(gctx)
		btcSpxCorr, btcSpxCorrConf = r.Value, r.Confidence
		return nil
	})
	g.Go(func() error {
		r := o.sentimentP.FetchFearGreedIndex(gctx)
		fearGreed, fearGreedConf = r.Value, r.Confidence
		return nil
	})
	g.Go(func() error {
		r := o.exchangeProv.FetchFundingHistory(gctx, "BTC", time.Now().Add(-7*24*time.Hour), time.Now())
		btcFunding, btcFundingConf = r.Value, r.Confidence
		return nil
	})
	_ = g.Wait()

	confidenceSum := macroEventsConf + btcEthCorrConf + btcSpxCorrConf + fearGreedConf + btcFundingConf
	confidenceN := 5

	unlocks := make(map[string]float64, len(watchlist))
	whaleFlows := make(map[string]domain.WhaleFlow, len(watchlist))
	for coin := range watchlist {
		unlocksResult := o.onchainProv.FetchTokenUnlocks7d(ctx, coin)
		whaleFlowResult := o.onchainProv.FetchWhaleFlow24h(ctx, coin)
		unlocks[coin] = unlocksResult.Value
		whaleFlows[coin] = whaleFlowResult.Value
		confidenceSum += unlocksResult.Confidence + whaleFlowResult.Confidence
		confidenceN += 2
	}

	return domain.SlowBundle{
		MacroEventsUpcoming:   macroEvents,
		CrossAssetRiskOnScore: crossAssetRiskOnScore(btcFunding),
		VenueHealthScore:      venueHealth,
		LiquidityRegime:       liquidityRegime(largestPositionDepth),
		BTCEthCorrelation:     btcEthCorr,
		BTCSpxCorrelation:     btcSpxCorr,
		FearGreedIndex:        fearGreed,
		TokenUnlocks7d:        unlocks,
		WhaleFlow24h:          whaleFlows,
		Metadata:              metadataFrom(confidenceSum, confidenceN, confidenceN),
	}
}

// crossAssetRiskOnScore derives [-1,+1] from 7-day average BTC funding *
// 10000, clamped (spec.md §4.4).
func crossAssetRiskOnScore(points []exchange.FundingPoint) float64 {
	if len(points) == 0 {
		return 0
	}
	score := fundingBasis(points) * 10000
	if score > 1 {
		return 1
	}
	if score < -1 {
		return -1
	}
	return score
}

// liquidityRegime classifies book depth for the largest position using the
// same 100/20 thresholds as slippageEstimate (spec.md §4.4).
func liquidityRegime(depth float64) domain.LiquidityRegime {
	switch {
	case depth > 100:
		return domain.LiquidityHigh
	case depth > 20:
		return domain.LiquidityMedium
	default:
		return domain.LiquidityLow
	}
}
