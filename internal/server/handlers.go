package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dgnsrekt/tradepilot-indicators/internal/analyzer"
	"github.com/dgnsrekt/tradepilot-indicators/internal/cache"
	"github.com/dgnsrekt/tradepilot-indicators/internal/config"
	"github.com/dgnsrekt/tradepilot-indicators/internal/flow"
	"github.com/dgnsrekt/tradepilot-indicators/internal/greeks"
	"github.com/dgnsrekt/tradepilot-indicators/internal/metrics"
)

type Server struct {
	service *analyzer.Service
	cache   *cache.ResultCache
	config  *config.Config
	logger  *zap.Logger
	started time.Time
}

func NewServer(service *analyzer.Service, resultCache *cache.ResultCache, cfg *config.Config, logger *zap.Logger) *Server {
	return &Server{
		service: service,
		cache:   resultCache,
		config:  cfg,
		logger:  logger,
		started: time.Now(),
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, errorResponse{Error: msg})
}

// symbolParam validates and normalizes the {symbol} path parameter.
// A validation failure writes the 400 response and returns ok=false.
func symbolParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	symbol := config.NormalizeSymbol(chi.URLParam(r, "symbol"))
	if err := config.ValidateSymbol(symbol); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return symbol, true
}

// floatQuery parses an optional float query parameter.
func floatQuery(r *http.Request, name string) (*float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// HandleCacheReset handles DELETE /cache and DELETE /cache/{symbol}
func (s *Server) HandleCacheReset(w http.ResponseWriter, r *http.Request) {
	symbol := config.NormalizeSymbol(chi.URLParam(r, "symbol"))
	if symbol != "" {
		if err := config.ValidateSymbol(symbol); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	removed := s.cache.Reset(symbol)
	s.logger.Info("cache reset", zap.String("symbol", symbol), zap.Int("removed", removed))
	respondJSON(w, http.StatusOK, map[string]any{
		"symbol":  symbol,
		"removed": removed,
	})
}

// HandleHealth handles GET /health
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_sec":     int(time.Since(s.started).Seconds()),
		"cached_results": s.cache.Len(),
	})
}

// flowResult returns the cached flow analysis or computes a fresh one.
func (s *Server) flowResult(r *http.Request, symbol string) flow.Result {
	key := cache.Key(symbol, "flow")
	if v, ok := s.cache.Get(key); ok {
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		return v.(flow.Result)
	}
	metrics.CacheLookups.WithLabelValues("miss").Inc()

	result := s.service.Flow(r.Context(), symbol)
	if result.OverallSignal != nil {
		s.cache.Set(key, result)
	}
	return result
}

// HandleFlow handles GET /flow/{symbol}
func (s *Server) HandleFlow(w http.ResponseWriter, r *http.Request) {
	symbol, ok := symbolParam(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, s.flowResult(r, symbol))
}

// HandlePCR handles GET /flow/{symbol}/pcr
func (s *Server) HandlePCR(w http.ResponseWriter, r *http.Request) {
	symbol, ok := symbolParam(w, r)
	if !ok {
		return
	}
	result := s.flowResult(r, symbol)
	respondJSON(w, http.StatusOK, map[string]any{
		"symbol":         result.Symbol,
		"timestamp":      result.Timestamp,
		"put_call_ratio": result.PutCallRatio,
		"put_volume":     result.PutVolume,
		"call_volume":    result.CallVolume,
		"signal":         result.PCRSignal,
	})
}

// HandlePremium handles GET /flow/{symbol}/premium
func (s *Server) HandlePremium(w http.ResponseWriter, r *http.Request) {
	symbol, ok := symbolParam(w, r)
	if !ok {
		return
	}
	result := s.flowResult(r, symbol)
	respondJSON(w, http.StatusOK, map[string]any{
		"symbol":           result.Symbol,
		"timestamp":        result.Timestamp,
		"call_premium":     result.CallPremium,
		"put_premium":      result.PutPremium,
		"call_premium_pct": result.CallPremiumPct,
		"put_premium_pct":  result.PutPremiumPct,
		"premium_ratio":    result.PremiumRatio,
		"signal":           result.PremiumSignal,
	})
}

// HandleUnusual handles GET /flow/{symbol}/unusual
func (s *Server) HandleUnusual(w http.ResponseWriter, r *http.Request) {
	symbol, ok := symbolParam(w, r)
	if !ok {
		return
	}
	result := s.flowResult(r, symbol)
	respondJSON(w, http.StatusOK, map[string]any{
		"symbol":                    result.Symbol,
		"timestamp":                 result.Timestamp,
		"unusual_call_contracts":    result.UnusualCallContracts,
		"unusual_put_contracts":     result.UnusualPutContracts,
		"unusual_activity_detected": result.UnusualActivityFound,
		"signal":                    result.UnusualSignal,
		"top_unusual_calls":         result.TopUnusualCalls,
		"top_unusual_puts":          result.TopUnusualPuts,
	})
}

// HandleGEXQuick handles GET /gex/quick/{symbol}
// Returns the summary profile without per-strike levels.
func (s *Server) HandleGEXQuick(w http.ResponseWriter, r *http.Request) {
	symbol, ok := symbolParam(w, r)
	if !ok {
		return
	}
	price, err := floatQuery(r, "current_price")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid current_price")
		return
	}

	key := cache.Key(symbol, "gex")
	if price == nil {
		if v, ok := s.cache.Get(key); ok {
			metrics.CacheLookups.WithLabelValues("hit").Inc()
			respondJSON(w, http.StatusOK, v)
			return
		}
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	}

	profile := s.service.GEX(r.Context(), symbol, analyzer.GEXParams{CurrentPrice: price})
	profile.Levels = nil
	if price == nil && profile.Regime != nil {
		s.cache.Set(key, profile)
	}
	respondJSON(w, http.StatusOK, profile)
}

type gexAnalyzeRequest struct {
	Symbol          string   `json:"symbol"`
	CurrentPrice    *float64 `json:"current_price,omitempty"`
	MaxExpiryDays   int      `json:"max_expiry_days,omitempty"`
	MinOpenInterest int64    `json:"min_open_interest,omitempty"`
}

// HandleGEXAnalyze handles POST /gex/analyze
// Returns the full profile including per-strike levels.
func (s *Server) HandleGEXAnalyze(w http.ResponseWriter, r *http.Request) {
	var req gexAnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	symbol := config.NormalizeSymbol(req.Symbol)
	if err := config.ValidateSymbol(symbol); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := config.ValidateParams(req.MaxExpiryDays, req.MinOpenInterest); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	profile := s.service.GEX(r.Context(), symbol, analyzer.GEXParams{
		MaxExpiryDays:   req.MaxExpiryDays,
		MinOpenInterest: req.MinOpenInterest,
		CurrentPrice:    req.CurrentPrice,
	})
	respondJSON(w, http.StatusOK, profile)
}

// HandleMaxPain handles GET /max-pain/{symbol}
func (s *Server) HandleMaxPain(w http.ResponseWriter, r *http.Request) {
	symbol, ok := symbolParam(w, r)
	if !ok {
		return
	}
	price, err := floatQuery(r, "current_price")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid current_price")
		return
	}
	expiration := r.URL.Query().Get("expiration_date")
	if expiration != "" {
		if err := config.ValidateExpirationDate(expiration); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	key := cache.Key(symbol, "max_pain", expiration)
	if price == nil {
		if v, ok := s.cache.Get(key); ok {
			metrics.CacheLookups.WithLabelValues("hit").Inc()
			respondJSON(w, http.StatusOK, v)
			return
		}
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	}

	result := s.service.MaxPain(r.Context(), symbol, analyzer.MaxPainParams{
		CurrentPrice:   price,
		ExpirationDate: expiration,
	})
	if price == nil && result.MaxPainStrike != nil {
		s.cache.Set(key, result)
	}
	respondJSON(w, http.StatusOK, result)
}

// HandleATMGreeks handles GET /greeks/{symbol}
func (s *Server) HandleATMGreeks(w http.ResponseWriter, r *http.Request) {
	symbol, ok := symbolParam(w, r)
	if !ok {
		return
	}
	price, err := floatQuery(r, "current_price")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid current_price")
		return
	}

	respondJSON(w, http.StatusOK, s.service.ATMGreeks(r.Context(), symbol, price))
}

type portfolioRequest struct {
	Positions []greeks.Position `json:"positions"`
}

// HandlePortfolioGreeks handles POST /greeks/portfolio
func (s *Server) HandlePortfolioGreeks(w http.ResponseWriter, r *http.Request) {
	var req portfolioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Positions) == 0 {
		respondError(w, http.StatusBadRequest, "positions is required")
		return
	}
	for _, pos := range req.Positions {
		if err := config.ValidateSymbol(config.NormalizeSymbol(pos.Symbol)); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if pos.Strike <= 0 {
			respondError(w, http.StatusBadRequest, "strike must be positive")
			return
		}
		if pos.Quantity == 0 {
			respondError(w, http.StatusBadRequest, "quantity must be non-zero")
			return
		}
	}

	for i := range req.Positions {
		req.Positions[i].Symbol = config.NormalizeSymbol(req.Positions[i].Symbol)
	}

	respondJSON(w, http.StatusOK, s.service.PortfolioGreeks(r.Context(), req.Positions))
}
