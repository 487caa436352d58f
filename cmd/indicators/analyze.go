package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/tradepilot-indicators/internal/analyzer"
	"github.com/dgnsrekt/tradepilot-indicators/internal/config"
)

func analyzeCmd() *cobra.Command {
	var (
		indicator  string
		price      float64
		expiration string
	)

	cmd := &cobra.Command{
		Use:   "analyze SYMBOL",
		Short: "Run indicator analysis for one symbol",
		Long: `Run indicator analysis for one symbol and print the result as JSON.

Examples:
  # Full options-flow composite
  indicators analyze SPY

  # Gamma exposure profile
  indicators analyze SPY --indicator gex

  # Max pain for a specific expiration
  indicators analyze SPY --indicator max-pain --expiration 2026-09-18

  # ATM Greeks with a price override
  indicators analyze SPY --indicator greeks --price 560.25`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			symbol := config.NormalizeSymbol(args[0])
			if err := config.ValidateSymbol(symbol); err != nil {
				return err
			}
			if err := config.ValidateExpirationDate(expiration); err != nil {
				return err
			}

			var override *float64
			if price > 0 {
				override = &price
			}

			service := newService()

			var result any
			switch indicator {
			case "flow":
				result = service.Flow(ctx, symbol)
			case "gex":
				result = service.GEX(ctx, symbol, analyzer.GEXParams{CurrentPrice: override})
			case "max-pain":
				result = service.MaxPain(ctx, symbol, analyzer.MaxPainParams{
					CurrentPrice:   override,
					ExpirationDate: expiration,
				})
			case "greeks":
				result = service.ATMGreeks(ctx, symbol, override)
			default:
				return fmt.Errorf("unknown indicator %q (valid: flow, gex, max-pain, greeks)", indicator)
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}

	cmd.Flags().StringVarP(&indicator, "indicator", "i", "flow", "indicator to run: flow, gex, max-pain, greeks")
	cmd.Flags().Float64VarP(&price, "price", "p", 0, "current price override (default: previous close)")
	cmd.Flags().StringVarP(&expiration, "expiration", "e", "", "expiration date YYYY-MM-DD (max-pain only)")

	return cmd
}
