package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dgnsrekt/tradepilot-indicators/internal/analyzer"
	"github.com/dgnsrekt/tradepilot-indicators/internal/config"
	"github.com/dgnsrekt/tradepilot-indicators/internal/expiry"
	"github.com/dgnsrekt/tradepilot-indicators/internal/polygon"
)

var (
	cfgFile string
	verbose bool
	logger  *zap.Logger
	cfg     *config.Config
)

func setupLogger(verbose bool, logCfg *config.LoggingConfig) (*zap.Logger, error) {
	var zapConfig zap.Config
	if verbose {
		zapConfig = zap.NewDevelopmentConfig()
	} else {
		zapConfig = zap.NewProductionConfig()
		zapConfig.DisableStacktrace = true
	}

	if logCfg != nil && logCfg.Level != "" {
		var level zapcore.Level
		if err := level.UnmarshalText([]byte(logCfg.Level)); err == nil {
			zapConfig.Level = zap.NewAtomicLevelAt(level)
		}
	}

	return zapConfig.Build()
}

// newService builds the analysis service from the loaded config.
func newService() *analyzer.Service {
	client := polygon.NewClient(
		cfg.Polygon.BaseURL,
		cfg.Polygon.APIKey,
		cfg.Polygon.RatePerSecond,
		cfg.Polygon.Timeout(),
		cfg.Polygon.RetryDelay(),
		cfg.Polygon.RetryCount,
		logger,
	)

	cal := expiry.NewCalendar(cfg.Analysis.Timezone)

	return analyzer.NewService(client, cal, analyzer.Options{
		MaxExpiryDays:   cfg.Analysis.MaxExpiryDays,
		MinOpenInterest: cfg.Analysis.MinOpenInterest,
		ContractLimit:   cfg.Analysis.ContractLimit,
	}, logger)
}

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "indicators",
		Short: "Options-market indicators from live chain snapshots",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Skip config loading for help commands
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				var err error
				logger, err = setupLogger(verbose, nil)
				return err
			}

			var err error
			cfg, err = config.Load(cfgFile)
			if err != nil {
				return err
			}

			logger, err = setupLogger(verbose, &cfg.Logging)
			if err != nil {
				return err
			}

			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", os.Getenv("TRADEPILOT_CONFIG"), "config file path (or set TRADEPILOT_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(scanCmd())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
