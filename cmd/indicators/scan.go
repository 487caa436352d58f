package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dgnsrekt/tradepilot-indicators/internal/config"
	"github.com/dgnsrekt/tradepilot-indicators/internal/notify"
	"github.com/dgnsrekt/tradepilot-indicators/internal/scan"
)

func scanCmd() *cobra.Command {
	var (
		workers    int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "scan [SYMBOL...]",
		Short: "Scan a watchlist for composite flow signals",
		Long: `Analyze every symbol and report the composite flow signal for each.

Symbols come from the command line, or from the configured watchlist when
none are given.

Examples:
  # Scan the configured watchlist
  indicators scan

  # Scan specific symbols with more workers
  indicators scan --workers 5 SPY QQQ IWM NVDA`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			symbols := args
			if len(symbols) == 0 {
				symbols = cfg.Watchlist
			}
			if len(symbols) == 0 {
				return fmt.Errorf("no symbols: pass them as arguments or set watchlist in config")
			}
			for i, s := range symbols {
				symbols[i] = config.NormalizeSymbol(s)
			}
			if err := config.ValidateWatchlist(symbols); err != nil {
				return err
			}

			if workers == 0 {
				workers = cfg.Scan.Workers
			}

			notifyCfg := notify.LoadConfig()
			if err := notifyCfg.Validate(); err != nil {
				return err
			}
			notifier := notify.New(notifyCfg, logger)

			service := newService()
			mgr := scan.NewManager(service, workers, logger)

			start := time.Now()
			result, err := mgr.Execute(ctx, symbols)
			if err != nil {
				return err
			}
			duration := time.Since(start)

			if err := notifier.SendScanSummary(ctx, result, duration); err != nil {
				logger.Warn("scan summary notification failed", zap.Error(err))
			}

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(result.Results)
			}

			printScanTable(result)
			fmt.Printf("\n%d analyzed, %d strong, %d unavailable, %d errors in %s\n",
				result.Analyzed, result.Strong, result.Unavailable, len(result.Errors), duration.Round(time.Second))
			return nil
		},
	}

	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "concurrent workers (default: config scan.workers)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print full results as JSON")

	return cmd
}

func printScanTable(result *scan.BatchResult) {
	fmt.Printf("%-8s %-10s %-10s %-8s %s\n", "SYMBOL", "SIGNAL", "STRENGTH", "PCR", "INTERPRETATION")
	for _, r := range result.Results {
		sig, strength, pcr := "-", "-", "-"
		if r.Result.OverallSignal != nil {
			sig = *r.Result.OverallSignal
		}
		if r.Result.SignalStrength != nil {
			strength = *r.Result.SignalStrength
		}
		if r.Result.PutCallRatio != nil {
			pcr = fmt.Sprintf("%.2f", *r.Result.PutCallRatio)
		}
		fmt.Printf("%-8s %-10s %-10s %-8s %s\n", r.Symbol, sig, strength, pcr, r.Result.Interpretation)
	}
}
