package ws

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/tradepilot-indicators/internal/analyzer"
	"github.com/dgnsrekt/tradepilot-indicators/internal/flow"
	"github.com/dgnsrekt/tradepilot-indicators/internal/metrics"
	"github.com/dgnsrekt/tradepilot-indicators/internal/notify"
)

// Streamer re-runs the flow composite for every subscribed symbol on a
// fixed interval and broadcasts the results.
type Streamer struct {
	hub      *Hub
	service  *analyzer.Service
	notifier notify.Notifier
	interval time.Duration
	logger   *zap.Logger

	// last overall signal per symbol, for alert deduplication
	lastSignal map[string]string
}

// NewStreamer creates a new Streamer.
func NewStreamer(hub *Hub, service *analyzer.Service, notifier notify.Notifier, interval time.Duration, logger *zap.Logger) *Streamer {
	return &Streamer{
		hub:        hub,
		service:    service,
		notifier:   notifier,
		interval:   interval,
		logger:     logger,
		lastSignal: make(map[string]string),
	}
}

// Run starts the streaming loop. Call in a goroutine.
// Returns when context is cancelled.
func (s *Streamer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("streamer started", zap.Duration("interval", s.interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("streamer stopping")
			return

		case <-ticker.C:
			s.broadcastTick(ctx)
		}
	}
}

// broadcastTick analyzes every active symbol once and broadcasts.
func (s *Streamer) broadcastTick(ctx context.Context) {
	symbols := s.hub.ActiveSymbols()
	if len(symbols) == 0 {
		return
	}

	for _, symbol := range symbols {
		result := s.service.Flow(ctx, symbol)

		payload, err := json.Marshal(result)
		if err != nil {
			s.logger.Warn("failed to marshal flow result",
				zap.String("symbol", symbol),
				zap.Error(err),
			)
			continue
		}

		s.hub.BroadcastData(symbol, payload)
		s.maybeAlert(ctx, symbol, result)

		s.logger.Debug("broadcast flow update",
			zap.String("symbol", symbol),
			zap.Int("payloadSize", len(payload)),
		)
	}
}

// maybeAlert notifies on strong signals, once per signal change.
func (s *Streamer) maybeAlert(ctx context.Context, symbol string, result flow.Result) {
	if result.OverallSignal == nil || result.SignalStrength == nil || *result.SignalStrength != "STRONG" {
		delete(s.lastSignal, symbol)
		return
	}
	sig := *result.OverallSignal
	if s.lastSignal[symbol] == sig {
		return
	}
	s.lastSignal[symbol] = sig
	metrics.SignalsEmitted.WithLabelValues(sig, "STRONG").Inc()

	if err := s.notifier.SendSignal(ctx, result); err != nil {
		s.logger.Warn("signal alert failed",
			zap.String("symbol", symbol),
			zap.Error(err),
		)
	}
}
