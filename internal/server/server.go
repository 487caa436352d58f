package server

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/dgnsrekt/tradepilot-indicators/internal/metrics"
	"github.com/dgnsrekt/tradepilot-indicators/internal/ws"
)

func NewRouter(server *Server, hub *ws.Hub, encoder *ws.Encoder, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)
	r.Use(zapLoggerMiddleware(logger))
	r.Use(metricsMiddleware)

	r.Get("/health", server.HandleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/flow/{symbol}", func(r chi.Router) {
		r.Get("/", server.HandleFlow)
		r.Get("/pcr", server.HandlePCR)
		r.Get("/premium", server.HandlePremium)
		r.Get("/unusual", server.HandleUnusual)
	})

	r.Get("/gex/quick/{symbol}", server.HandleGEXQuick)
	r.Post("/gex/analyze", server.HandleGEXAnalyze)

	r.Get("/max-pain/{symbol}", server.HandleMaxPain)

	r.Get("/greeks/{symbol}", server.HandleATMGreeks)
	r.Post("/greeks/portfolio", server.HandlePortfolioGreeks)

	r.Delete("/cache", server.HandleCacheReset)
	r.Delete("/cache/{symbol}", server.HandleCacheReset)

	if hub != nil {
		r.Get("/ws", hub.HandleWS(encoder))
	}

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func zapLoggerMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("query", maskQueryKey(r.URL.RawQuery)),
			)
			next.ServeHTTP(w, r)
		})
	}
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(ww.Status())).Inc()
		metrics.HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// maskQueryKey masks the "apiKey" parameter in a query string
func maskQueryKey(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return rawQuery
	}
	if key := values.Get("apiKey"); key != "" {
		if len(key) > 4 {
			values.Set("apiKey", key[:4]+"****")
		}
	}
	var parts []string
	for k, vs := range values {
		for _, v := range vs {
			parts = append(parts, k+"="+v)
		}
	}
	return strings.Join(parts, "&")
}
