package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/tradepilot-indicators/internal/analyzer"
	"github.com/dgnsrekt/tradepilot-indicators/internal/cache"
	"github.com/dgnsrekt/tradepilot-indicators/internal/chain"
	"github.com/dgnsrekt/tradepilot-indicators/internal/config"
	"github.com/dgnsrekt/tradepilot-indicators/internal/expiry"
	"github.com/dgnsrekt/tradepilot-indicators/internal/polygon"
)

type fakeMarket struct {
	chain      *chain.OptionChain
	chainErr   error
	prevClose  float64
	prevErr    error
	chainCalls int
	closeCalls int
}

func (f *fakeMarket) GetOptionChain(_ context.Context, _ string, _ polygon.ChainParams) (*chain.OptionChain, error) {
	f.chainCalls++
	if f.chainErr != nil {
		return nil, f.chainErr
	}
	return f.chain, nil
}

func (f *fakeMarket) GetPreviousClose(_ context.Context, _ string) (float64, error) {
	f.closeCalls++
	if f.prevErr != nil {
		return 0, f.prevErr
	}
	return f.prevClose, nil
}

func newTestHandler(t *testing.T, market *fakeMarket) http.Handler {
	t.Helper()
	logger := zap.NewNop()
	svc := analyzer.NewService(market, expiry.NewCalendar("America/New_York"), analyzer.Options{
		MaxExpiryDays: 14,
		ContractLimit: 250,
	}, logger)
	srv := NewServer(svc, cache.New(time.Minute), &config.Config{}, logger)
	return NewRouter(srv, nil, nil, logger)
}

func testSnapshot(symbol string) *chain.OptionChain {
	expiration := time.Now().AddDate(0, 0, 3)
	greeks := func(delta, gamma float64) *chain.Greeks {
		return &chain.Greeks{Delta: delta, Gamma: gamma, Theta: -0.05, Vega: 0.1}
	}
	return &chain.OptionChain{
		Symbol:    symbol,
		Spot:      100,
		FetchedAt: time.Now(),
		Contracts: []chain.Contract{
			{Ticker: "O:C100", Side: chain.Call, Strike: 100, Expiration: expiration,
				Volume: 1500, OpenInterest: 2000, Price: 2.50, Greeks: greeks(0.5, 0.04)},
			{Ticker: "O:C105", Side: chain.Call, Strike: 105, Expiration: expiration,
				Volume: 800, OpenInterest: 1000, Price: 1.10, Greeks: greeks(0.3, 0.03)},
			{Ticker: "O:P100", Side: chain.Put, Strike: 100, Expiration: expiration,
				Volume: 900, OpenInterest: 1800, Price: 2.20, Greeks: greeks(-0.5, 0.04)},
			{Ticker: "O:P95", Side: chain.Put, Strike: 95, Expiration: expiration,
				Volume: 400, OpenInterest: 1200, Price: 0.90, Greeks: greeks(-0.25, 0.02)},
		},
	}
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding response: %v\nbody: %s", err, rec.Body.String())
	}
	return body
}

func TestHandleFlow(t *testing.T) {
	market := &fakeMarket{chain: testSnapshot("SPY")}
	h := newTestHandler(t, market)

	rec := doRequest(t, h, http.MethodGet, "/flow/SPY", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)

	if body["symbol"] != "SPY" {
		t.Errorf("symbol = %v, want SPY", body["symbol"])
	}
	if body["put_call_ratio"] == nil {
		t.Error("put_call_ratio is null, want a value")
	}
	if body["overall_signal"] == nil {
		t.Error("overall_signal is null, want a value")
	}
}

func TestHandleFlow_LowercaseSymbolNormalized(t *testing.T) {
	market := &fakeMarket{chain: testSnapshot("SPY")}
	h := newTestHandler(t, market)

	rec := doRequest(t, h, http.MethodGet, "/flow/spy", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body := decodeBody(t, rec); body["symbol"] != "SPY" {
		t.Errorf("symbol = %v, want SPY", body["symbol"])
	}
}

func TestHandleFlow_BadSymbolRejectedBeforeFetch(t *testing.T) {
	market := &fakeMarket{chain: testSnapshot("SPY")}
	h := newTestHandler(t, market)

	rec := doRequest(t, h, http.MethodGet, "/flow/TOOLONGNAME", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] == nil {
		t.Error("missing error field in response")
	}
	if market.chainCalls != 0 {
		t.Errorf("chain fetched %d times, want 0", market.chainCalls)
	}
}

func TestHandleFlow_UpstreamFailureDegradesToNulls(t *testing.T) {
	market := &fakeMarket{chainErr: polygon.ErrNoOptions}
	h := newTestHandler(t, market)

	rec := doRequest(t, h, http.MethodGet, "/flow/XYZ", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["put_call_ratio"] != nil {
		t.Errorf("put_call_ratio = %v, want null", body["put_call_ratio"])
	}
	if body["overall_signal"] != nil {
		t.Errorf("overall_signal = %v, want null", body["overall_signal"])
	}
}

func TestHandleFlow_CachesSuccessfulResults(t *testing.T) {
	market := &fakeMarket{chain: testSnapshot("SPY")}
	h := newTestHandler(t, market)

	doRequest(t, h, http.MethodGet, "/flow/SPY", "")
	doRequest(t, h, http.MethodGet, "/flow/SPY", "")
	if market.chainCalls != 1 {
		t.Errorf("chain fetched %d times, want 1 (second request cached)", market.chainCalls)
	}
}

func TestHandleFlow_DoesNotCacheUnavailable(t *testing.T) {
	market := &fakeMarket{chainErr: polygon.ErrNoOptions}
	h := newTestHandler(t, market)

	doRequest(t, h, http.MethodGet, "/flow/XYZ", "")
	doRequest(t, h, http.MethodGet, "/flow/XYZ", "")
	if market.chainCalls != 2 {
		t.Errorf("chain fetched %d times, want 2 (failures never cached)", market.chainCalls)
	}
}

func TestHandlePCR_SubsetFields(t *testing.T) {
	market := &fakeMarket{chain: testSnapshot("SPY")}
	h := newTestHandler(t, market)

	rec := doRequest(t, h, http.MethodGet, "/flow/SPY/pcr", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	for _, field := range []string{"put_call_ratio", "put_volume", "call_volume", "signal"} {
		if _, ok := body[field]; !ok {
			t.Errorf("missing field %q", field)
		}
	}
	if _, ok := body["call_premium"]; ok {
		t.Error("pcr endpoint should not include premium fields")
	}
}

func TestHandleGEXQuick_StripsLevels(t *testing.T) {
	market := &fakeMarket{chain: testSnapshot("SPY"), prevClose: 100}
	h := newTestHandler(t, market)

	rec := doRequest(t, h, http.MethodGet, "/gex/quick/SPY", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["regime"] == nil {
		t.Error("regime is null, want a value")
	}
	if _, ok := body["levels"]; ok {
		t.Error("quick endpoint should omit per-strike levels")
	}
	if market.closeCalls != 1 {
		t.Errorf("previous close fetched %d times, want 1", market.closeCalls)
	}
}

func TestHandleGEXQuick_PriceOverrideSkipsCloseFetch(t *testing.T) {
	market := &fakeMarket{chain: testSnapshot("SPY")}
	h := newTestHandler(t, market)

	rec := doRequest(t, h, http.MethodGet, "/gex/quick/SPY?current_price=101.5", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if market.closeCalls != 0 {
		t.Errorf("previous close fetched %d times, want 0", market.closeCalls)
	}
}

func TestHandleGEXQuick_InvalidPrice(t *testing.T) {
	h := newTestHandler(t, &fakeMarket{})

	rec := doRequest(t, h, http.MethodGet, "/gex/quick/SPY?current_price=abc", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleGEXAnalyze(t *testing.T) {
	market := &fakeMarket{chain: testSnapshot("SPY"), prevClose: 100}
	h := newTestHandler(t, market)

	rec := doRequest(t, h, http.MethodPost, "/gex/analyze", `{"symbol":"spy","max_expiry_days":30}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["symbol"] != "SPY" {
		t.Errorf("symbol = %v, want SPY", body["symbol"])
	}
	if _, ok := body["levels"]; !ok {
		t.Error("analyze endpoint should include per-strike levels")
	}
}

func TestHandleGEXAnalyze_InvalidParams(t *testing.T) {
	h := newTestHandler(t, &fakeMarket{})

	cases := []struct {
		name string
		body string
	}{
		{"bad body", `{not json`},
		{"bad symbol", `{"symbol":"not a symbol"}`},
		{"days out of range", `{"symbol":"SPY","max_expiry_days":500}`},
		{"negative oi", `{"symbol":"SPY","min_open_interest":-1}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, h, http.MethodPost, "/gex/analyze", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestHandleMaxPain(t *testing.T) {
	market := &fakeMarket{chain: testSnapshot("SPY"), prevClose: 100}
	h := newTestHandler(t, market)

	rec := doRequest(t, h, http.MethodGet, "/max-pain/SPY?expiration_date=2026-09-04", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["max_pain_strike"] == nil {
		t.Error("max_pain_strike is null, want a value")
	}
}

func TestHandleMaxPain_BadExpiration(t *testing.T) {
	h := newTestHandler(t, &fakeMarket{})

	rec := doRequest(t, h, http.MethodGet, "/max-pain/SPY?expiration_date=tomorrow", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleATMGreeks(t *testing.T) {
	market := &fakeMarket{chain: testSnapshot("SPY"), prevClose: 100}
	h := newTestHandler(t, market)

	rec := doRequest(t, h, http.MethodGet, "/greeks/SPY", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["atm_strike"] == nil {
		t.Error("atm_strike is null, want a value")
	}
	if body["call_greeks"] == nil {
		t.Error("call_greeks is null, want a value")
	}
}

func TestHandlePortfolioGreeks(t *testing.T) {
	market := &fakeMarket{chain: testSnapshot("SPY")}
	h := newTestHandler(t, market)

	req := `{"positions":[{"symbol":"spy","strike":100,"type":"call","quantity":2}]}`
	rec := doRequest(t, h, http.MethodPost, "/greeks/portfolio", req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200\nbody: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	totals, ok := body["portfolio_greeks"].(map[string]any)
	if !ok {
		t.Fatalf("portfolio_greeks = %v, want object", body["portfolio_greeks"])
	}
	// 2 contracts at delta 0.5 scaled by the 100x multiplier.
	if got := totals["delta"].(float64); got != 100 {
		t.Errorf("total delta = %v, want 100", got)
	}
}

func TestHandlePortfolioGreeks_Validation(t *testing.T) {
	h := newTestHandler(t, &fakeMarket{})

	cases := []struct {
		name string
		body string
	}{
		{"empty positions", `{"positions":[]}`},
		{"bad symbol", `{"positions":[{"symbol":"???","strike":100,"type":"call","quantity":1}]}`},
		{"zero strike", `{"positions":[{"symbol":"SPY","strike":0,"type":"call","quantity":1}]}`},
		{"zero quantity", `{"positions":[{"symbol":"SPY","strike":100,"type":"call","quantity":0}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, h, http.MethodPost, "/greeks/portfolio", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestHandleCacheReset(t *testing.T) {
	market := &fakeMarket{chain: testSnapshot("SPY")}
	h := newTestHandler(t, market)

	doRequest(t, h, http.MethodGet, "/flow/SPY", "")
	rec := doRequest(t, h, http.MethodDelete, "/cache/SPY", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body := decodeBody(t, rec); body["removed"].(float64) != 1 {
		t.Errorf("removed = %v, want 1", body["removed"])
	}

	// Next read recomputes.
	doRequest(t, h, http.MethodGet, "/flow/SPY", "")
	if market.chainCalls != 2 {
		t.Errorf("chain fetched %d times, want 2 after reset", market.chainCalls)
	}
}

func TestHandleHealth(t *testing.T) {
	h := newTestHandler(t, &fakeMarket{})

	rec := doRequest(t, h, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
}

func TestMaskQueryKey(t *testing.T) {
	got := maskQueryKey("apiKey=secret1234&symbol=SPY")
	if strings.Contains(got, "secret1234") {
		t.Errorf("masked query still contains the key: %s", got)
	}
	if !strings.Contains(got, "symbol=SPY") {
		t.Errorf("masked query lost other params: %s", got)
	}
}
