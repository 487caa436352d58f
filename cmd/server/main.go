package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dgnsrekt/tradepilot-indicators/internal/analyzer"
	"github.com/dgnsrekt/tradepilot-indicators/internal/cache"
	"github.com/dgnsrekt/tradepilot-indicators/internal/config"
	"github.com/dgnsrekt/tradepilot-indicators/internal/expiry"
	"github.com/dgnsrekt/tradepilot-indicators/internal/metrics"
	"github.com/dgnsrekt/tradepilot-indicators/internal/notify"
	"github.com/dgnsrekt/tradepilot-indicators/internal/polygon"
	"github.com/dgnsrekt/tradepilot-indicators/internal/server"
	"github.com/dgnsrekt/tradepilot-indicators/internal/ws"
)

func main() {
	os.Exit(run())
}

func run() int {
	// .env is optional; real deployments set environment variables directly
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("TRADEPILOT_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}

	logger, err := setupLogger(&cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.String("port", cfg.Server.Port),
		zap.Duration("cacheTTL", cfg.Server.CacheTTL()),
		zap.Bool("wsEnabled", cfg.Server.WSEnabled),
		zap.Duration("wsInterval", cfg.Server.WSInterval()),
		zap.Int("maxExpiryDays", cfg.Analysis.MaxExpiryDays),
		zap.Int64("minOpenInterest", cfg.Analysis.MinOpenInterest),
	)

	metrics.Init()

	cal := expiry.NewCalendar(cfg.Analysis.Timezone)

	client := polygon.NewClient(
		cfg.Polygon.BaseURL,
		cfg.Polygon.APIKey,
		cfg.Polygon.RatePerSecond,
		cfg.Polygon.Timeout(),
		cfg.Polygon.RetryDelay(),
		cfg.Polygon.RetryCount,
		logger,
	)

	service := analyzer.NewService(client, cal, analyzer.Options{
		MaxExpiryDays:   cfg.Analysis.MaxExpiryDays,
		MinOpenInterest: cfg.Analysis.MinOpenInterest,
		ContractLimit:   cfg.Analysis.ContractLimit,
	}, logger)

	resultCache := cache.New(cfg.Server.CacheTTL())

	notifyCfg := notify.LoadConfig()
	if err := notifyCfg.Validate(); err != nil {
		logger.Error("invalid notification config", zap.Error(err))
		return 1
	}
	notifier := notify.New(notifyCfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Periodic cache sweep keeps expired entries from accumulating
	go func() {
		ticker := time.NewTicker(cfg.Server.CacheTTL())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := resultCache.Sweep(); n > 0 {
					logger.Debug("cache sweep", zap.Int("expired", n))
				}
			}
		}
	}()

	// WebSocket components (optional)
	var hub *ws.Hub
	var encoder *ws.Encoder

	if cfg.Server.WSEnabled {
		encoder, err = ws.NewEncoder()
		if err != nil {
			logger.Error("failed to create ws encoder", zap.Error(err))
			return 1
		}
		defer encoder.Close()

		hub = ws.NewHub(logger)
		go hub.Run(ctx)

		streamer := ws.NewStreamer(hub, service, notifier, cfg.Server.WSInterval(), logger)
		go streamer.Run(ctx)

		logger.Info("WebSocket enabled", zap.Duration("streamInterval", cfg.Server.WSInterval()))
	}

	srv := server.NewServer(service, resultCache, cfg, logger)
	router := server.NewRouter(srv, hub, encoder, logger)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", zap.Error(err))
		}
	}()

	// Wait for interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Stop streaming components before draining HTTP connections
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace())
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
		return 1
	}

	logger.Info("server stopped")
	return 0
}

func setupLogger(logCfg *config.LoggingConfig) (*zap.Logger, error) {
	zapConfig := zap.NewProductionConfig()
	zapConfig.DisableStacktrace = true

	if logCfg != nil && logCfg.Level != "" {
		var level zapcore.Level
		if err := level.UnmarshalText([]byte(logCfg.Level)); err == nil {
			zapConfig.Level = zap.NewAtomicLevelAt(level)
		}
	}

	return zapConfig.Build()
}
