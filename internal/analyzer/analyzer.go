// Package analyzer wires the market-data client to the indicator
// pipelines. One analysis call performs at most one chain fetch and one
// price fetch; every data-availability failure is absorbed into the
// indicator's all-null result rather than returned as an error.
package analyzer

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/tradepilot-indicators/internal/chain"
	"github.com/dgnsrekt/tradepilot-indicators/internal/expiry"
	"github.com/dgnsrekt/tradepilot-indicators/internal/flow"
	"github.com/dgnsrekt/tradepilot-indicators/internal/gex"
	"github.com/dgnsrekt/tradepilot-indicators/internal/greeks"
	"github.com/dgnsrekt/tradepilot-indicators/internal/maxpain"
	"github.com/dgnsrekt/tradepilot-indicators/internal/metrics"
	"github.com/dgnsrekt/tradepilot-indicators/internal/polygon"
)

// Options are the default chain constraints applied when a request does not
// override them.
type Options struct {
	MaxExpiryDays   int
	MinOpenInterest int64
	ContractLimit   int
}

type Service struct {
	market   polygon.MarketData
	calendar *expiry.Calendar
	opts     Options
	logger   *zap.Logger
}

func NewService(market polygon.MarketData, cal *expiry.Calendar, opts Options, logger *zap.Logger) *Service {
	return &Service{
		market:   market,
		calendar: cal,
		opts:     opts,
		logger:   logger,
	}
}

// GEXParams override the default chain constraints for a GEX request.
type GEXParams struct {
	MaxExpiryDays   int
	MinOpenInterest int64
	CurrentPrice    *float64
}

// MaxPainParams override spot and expiration for a max-pain request.
type MaxPainParams struct {
	CurrentPrice   *float64
	ExpirationDate string // YYYY-MM-DD; empty uses the nearest weekly expiration
}

// Flow runs the options-flow composite over one fresh snapshot.
func (s *Service) Flow(ctx context.Context, symbol string) flow.Result {
	oc, ok := s.fetchChain(ctx, symbol, polygon.ChainParams{
		MaxExpiryDays: s.opts.MaxExpiryDays,
		Limit:         s.opts.ContractLimit,
	}, "flow")
	if !ok {
		return flow.Unavailable(symbol)
	}
	return flow.Analyze(oc)
}

// GEX builds the gamma exposure profile for one symbol.
func (s *Service) GEX(ctx context.Context, symbol string, params GEXParams) gex.Profile {
	maxDays := params.MaxExpiryDays
	if maxDays == 0 {
		maxDays = s.opts.MaxExpiryDays
	}
	minOI := params.MinOpenInterest
	if minOI == 0 {
		minOI = s.opts.MinOpenInterest
	}

	spot, ok := s.resolveSpot(ctx, symbol, params.CurrentPrice)
	if !ok {
		return gex.Unavailable(symbol)
	}

	oc, ok := s.fetchChain(ctx, symbol, polygon.ChainParams{
		MaxExpiryDays: maxDays,
		Limit:         s.opts.ContractLimit,
	}, "gex")
	if !ok {
		return gex.Unavailable(symbol)
	}

	return gex.Analyze(oc, spot, minOI)
}

// MaxPain finds the max-pain strike for one expiration.
func (s *Service) MaxPain(ctx context.Context, symbol string, params MaxPainParams) maxpain.Result {
	expiration := params.ExpirationDate
	if expiration == "" {
		expiration = s.calendar.NearestExpiration(time.Now()).Format("2006-01-02")
	}

	spot, ok := s.resolveSpot(ctx, symbol, params.CurrentPrice)
	if !ok {
		return maxpain.Unavailable(symbol)
	}

	oc, ok := s.fetchChain(ctx, symbol, polygon.ChainParams{
		ExpirationDate: expiration,
		Limit:          s.opts.ContractLimit,
	}, "max_pain")
	if !ok {
		return maxpain.Unavailable(symbol)
	}

	return maxpain.Analyze(oc, spot)
}

// ATMGreeks reports the Greeks at the strike closest to spot.
func (s *Service) ATMGreeks(ctx context.Context, symbol string, currentPrice *float64) greeks.ATMResult {
	spot, ok := s.resolveSpot(ctx, symbol, currentPrice)
	if !ok {
		return greeks.UnavailableATM(symbol)
	}

	oc, ok := s.fetchChain(ctx, symbol, polygon.ChainParams{
		MaxExpiryDays: s.opts.MaxExpiryDays,
		Limit:         s.opts.ContractLimit,
	}, "greeks")
	if !ok {
		return greeks.UnavailableATM(symbol)
	}

	return greeks.ATM(oc, spot)
}

// PortfolioGreeks aggregates position Greeks, fetching each distinct
// symbol's chain once. Positions whose chain or contract cannot be resolved
// are skipped, not fatal.
func (s *Service) PortfolioGreeks(ctx context.Context, positions []greeks.Position) greeks.PortfolioResult {
	chains := make(map[string]*chain.OptionChain)
	for _, pos := range positions {
		if _, seen := chains[pos.Symbol]; seen {
			continue
		}
		oc, ok := s.fetchChain(ctx, pos.Symbol, polygon.ChainParams{
			MaxExpiryDays: s.opts.MaxExpiryDays,
			Limit:         s.opts.ContractLimit,
		}, "portfolio_greeks")
		if !ok {
			chains[pos.Symbol] = nil
			continue
		}
		chains[pos.Symbol] = oc
	}

	return greeks.Portfolio(positions, greeks.ChainLookup(chains))
}

// fetchChain fetches and filters one snapshot, recording the outcome.
func (s *Service) fetchChain(ctx context.Context, symbol string, params polygon.ChainParams, kind string) (*chain.OptionChain, bool) {
	start := time.Now()
	oc, err := s.market.GetOptionChain(ctx, symbol, params)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues("chain", "error").Inc()
		log := s.logger.Error
		if polygon.IsDataUnavailable(err) {
			log = s.logger.Warn
		}
		log("chain fetch failed",
			zap.String("symbol", symbol),
			zap.String("indicator", kind),
			zap.Error(err),
		)
		return nil, false
	}
	metrics.UpstreamRequests.WithLabelValues("chain", "success").Inc()
	metrics.AnalysisDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())

	filtered := oc.Filter(s.opts.MinOpenInterest, time.Time{})
	if filtered.Empty() {
		// Filtering can wipe thin chains; keep the unfiltered snapshot so
		// low-OI symbols still produce flow metrics.
		return oc, true
	}
	return filtered, true
}

// resolveSpot uses the caller's override or falls back to the previous close.
func (s *Service) resolveSpot(ctx context.Context, symbol string, override *float64) (float64, bool) {
	if override != nil && *override > 0 {
		return *override, true
	}

	spot, err := s.market.GetPreviousClose(ctx, symbol)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues("prev_close", "error").Inc()
		log := s.logger.Error
		if polygon.IsDataUnavailable(err) {
			log = s.logger.Warn
		}
		log("spot price fetch failed",
			zap.String("symbol", symbol),
			zap.Error(err),
		)
		return 0, false
	}
	metrics.UpstreamRequests.WithLabelValues("prev_close", "success").Inc()
	return spot, true
}
