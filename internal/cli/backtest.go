package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/aristath/aegis/internal/advisor"
	"github.com/aristath/aegis/internal/domain"
	"github.com/aristath/aegis/internal/exchange"
	"github.com/aristath/aegis/internal/indicators"
	"github.com/aristath/aegis/internal/regime"
)

// newBacktestCommand implements spec.md §6.3's backtest subcommand: replay
// the regime detector over historical signals reconstructed from candles +
// funding, using the deterministic RuleAdvisor classifier so the replay
// needs no LLM/network access beyond the exchange client's historical
// endpoints.
func newBacktestCommand() *cobra.Command {
	var startDate, endDate, interval, assetsFlag string
	var clearCache bool

	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Replay the regime detector over historical signals",
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := time.Parse("2006-01-02", startDate)
			if err != nil {
				return fmt.Errorf("invalid --start-date: %w", err)
			}
			end, err := time.Parse("2006-01-02", endDate)
			if err != nil {
				return fmt.Errorf("invalid --end-date: %w", err)
			}
			ivl := exchange.Interval(interval)
			switch ivl {
			case exchange.Interval1h, exchange.Interval4h, exchange.Interval1d:
			default:
				return fmt.Errorf("invalid --interval %q (want 1h, 4h or 1d)", interval)
			}
			assets := strings.Split(assetsFlag, ",")

			c := wireOrExit(cmd)
			defer c.Close()

			if clearCache {
				c.Cache.Invalidate("*")
			}

			ctx := context.Background()
			detector := regime.New(regime.Config{}, advisor.NewRuleAdvisor())
			tally := map[domain.Regime]int{}

			for _, coin := range assets {
				coin = strings.TrimSpace(coin)
				if coin == "" {
					continue
				}
				candles, err := c.ExchangeClient.FetchCandles(ctx, coin, ivl, start, end)
				if err != nil {
					fmt.Printf("%s: fetch candles failed: %v\n", coin, err)
					continue
				}
				funding, err := c.ExchangeClient.FetchFundingHistory(ctx, coin, start, end)
				if err != nil {
					funding = nil
				}

				closes := make([]float64, 0, len(candles))
				for i, candle := range candles {
					close, _ := candle.Close.Float64()
					closes = append(closes, close)
					if len(closes) < indicators.MinCandles {
						continue
					}
					ind, err := indicators.Compute(closes)
					if err != nil {
						continue
					}

					signals := domain.RegimeSignals{
						RepresentativeAsset: coin,
						ADX:                 ind.ADX,
						SMA20:               ind.SMA20,
						SMA50:               ind.SMA50,
						RealizedVol24h:      indicators.RealizedVol(closes, 365),
						WeightedFunding:     fundingRateAt(funding, candle.Timestamp),
					}

					result, err := detector.Classify(signals, nil, candle.Timestamp)
					if err != nil {
						continue
					}
					tally[result]++
					if i == len(candles)-1 {
						fmt.Printf("%s  %s  final_regime=%s\n", coin, candle.Timestamp.Format("2006-01-02"), result)
					}
				}
			}

			fmt.Println("regime distribution (bars):")
			for r, n := range tally {
				fmt.Printf("  %-16s %d\n", r, n)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&startDate, "start-date", "", "replay start date, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&endDate, "end-date", "", "replay end date, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&interval, "interval", "1h", "candle interval: 1h, 4h or 1d")
	cmd.Flags().StringVar(&assetsFlag, "assets", "BTC", "comma-separated coin list")
	cmd.Flags().BoolVar(&clearCache, "clear-cache", false, "invalidate the cache before replaying")
	_ = cmd.MarkFlagRequired("start-date")
	_ = cmd.MarkFlagRequired("end-date")
	return cmd
}

// fundingRateAt returns the funding rate whose timestamp is closest to (and
// not after) at, or 0 if none qualifies.
func fundingRateAt(funding []exchange.FundingPoint, at time.Time) float64 {
	var best float64
	var bestTime time.Time
	for _, f := range funding {
		if f.Timestamp.After(at) {
			continue
		}
		if f.Timestamp.After(bestTime) {
			bestTime = f.Timestamp
			best, _ = f.Rate.Float64()
		}
	}
	return best
}
