package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the current AccountState summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := wireOrExit(cmd)
			defer c.Close()

			account, err := c.ExchangeClient.AccountState(context.Background())
			if err != nil {
				return fmt.Errorf("fetch account state: %w", err)
			}

			fmt.Printf("portfolio_value:    %s\n", account.PortfolioValue)
			fmt.Printf("available_balance:  %s\n", account.AvailableBalance)
			fmt.Printf("margin_ratio:       %s\n", account.MarginRatio)
			fmt.Printf("stale:              %v\n", account.IsStale)
			fmt.Printf("positions:          %d\n", len(account.Positions))
			for _, p := range account.Positions {
				fmt.Printf("  %-6s %-5s size=%s entry=%s mark=%s notional=%s\n",
					p.Coin, p.MarketType, p.Size, p.EntryPrice, p.CurrentPrice, p.NotionalValue())
			}
			return nil
		},
	}
}
