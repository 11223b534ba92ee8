package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newGovPlanCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "gov_plan",
		Short: "Print the active plan card",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := wireOrExit(cmd)
			defer c.Close()

			plan := c.Governor.ActivePlan()
			if plan == nil {
				fmt.Println("no active plan")
				return nil
			}
			fmt.Printf("plan_id:              %s\n", plan.PlanID)
			fmt.Printf("strategy:             %s v%s\n", plan.StrategyID, plan.StrategyVersion)
			fmt.Printf("status:               %s\n", plan.Status)
			fmt.Printf("horizon:              %s\n", plan.IntendedHorizon)
			fmt.Printf("minimum_dwell_min:    %d\n", plan.MinimumDwellMinutes)
			fmt.Printf("rebalance_progress:   %.2f\n", plan.RebalanceProgress)
			fmt.Printf("dwell_deadline:       %s\n", plan.DwellDeadline)
			fmt.Printf("cooldown_deadline:    %s\n", plan.CooldownDeadline)
			fmt.Println("target_allocations:")
			for coin, pct := range plan.TargetAllocations.Allocations {
				fmt.Printf("  %-6s %s\n", coin, pct)
			}
			return nil
		},
	}
}

func newGovRegimeCommand() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "gov_regime",
		Short: "Print the current regime and the last N classifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := wireOrExit(cmd)
			defer c.Close()

			current, locked := c.Regime.Current()
			fmt.Printf("current_regime: %s\n", current)
			fmt.Printf("event_locked:   %v\n", locked)
			fmt.Println("history:")
			for _, rec := range c.Regime.History(n) {
				fmt.Printf("  %s  %-16s confidence=%.2f\n", rec.Timestamp.Format("2006-01-02T15:04:05Z07:00"), rec.Regime, rec.Confidence)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&n, "last", 10, "number of recent classifications to print")
	return cmd
}

func newGovTripwireCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "gov_tripwire",
		Short: "Print current tripwire thresholds and overrides",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := wireOrExit(cmd)
			defer c.Close()

			cfg := c.TripwireConfig
			fmt.Printf("min_margin_ratio:             %.4f\n", cfg.MinMarginRatio)
			fmt.Printf("liquidation_proximity_pct:    %.4f\n", cfg.LiquidationProximityPct)
			fmt.Printf("daily_loss_limit_pct:         %.4f\n", cfg.DailyLossLimitPct)
			fmt.Printf("max_data_staleness:           %s\n", cfg.MaxDataStaleness)
			fmt.Printf("max_consecutive_api_failures: %d\n", cfg.MaxConsecutiveAPIFailures)

			if plan := c.Governor.ActivePlan(); plan != nil && len(plan.InvalidationTriggers) > 0 {
				fmt.Println("active_plan_invalidation_triggers:")
				for _, t := range plan.InvalidationTriggers {
					fmt.Printf("  %s\n", t)
				}
			}
			return nil
		},
	}
}

func newGovMetricsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "gov_metrics",
		Short: "Print per-plan execution and adherence metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := wireOrExit(cmd)
			defer c.Close()

			snap := c.Governor.Snapshot()
			fmt.Printf("rebalance_progress: %.2f\n", snap.RebalanceProgress)
			fmt.Println("plan_metrics:")
			for planID, m := range snap.PlanMetrics {
				fmt.Printf("  %-12s pnl_bps=%s cost_bps=%s cycles=%d last_rebalanced=%s\n",
					planID, m.RealizedPnLBps, m.ObservedCostsBps, m.CyclesActive, m.LastRebalancedAt)
			}

			cacheMetrics := c.Cache.Metrics()
			fmt.Printf("cache: entries=%d hit_rate=%.2f avg_age_s=%.0f\n", cacheMetrics.Entries, cacheMetrics.HitRate, cacheMetrics.AvgAgeSeconds)

			health := c.Scheduler.Health()
			fmt.Printf("loop_health: cpu=%.1f%% mem=%.1f%% sampled_at=%s\n", health.CPUPercent, health.MemUsedPct, health.SampledAt)
			return nil
		},
	}
}
